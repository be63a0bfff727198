package inject

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcastCSRNilYieldsNilReplicas(t *testing.T) {
	b, err := BroadcastCSR(nil, 3, t.TempDir(), 1<<20)
	require.NoError(t, err)
	defer b.Close()

	require.Len(t, b.Replicas, 3)
	for _, rep := range b.Replicas {
		require.Nil(t, rep)
	}
}

func TestBroadcastCSRReplicasMatchAcrossRanks(t *testing.T) {
	csr := &CSR{
		Indptr:  []int32{0, 2, 2, 3},
		Indices: []int32{1, 2, 0},
		Data:    []float32{1.5, 2.5, 3.5},
		NumRows: 3,
		NumCols: 3,
	}
	b, err := BroadcastCSR(csr, 4, t.TempDir(), 1<<20)
	require.NoError(t, err)
	defer b.Close()

	for _, rep := range b.Replicas {
		require.Equal(t, csr.Indptr, rep.Indptr)
		require.Equal(t, csr.Indices, rep.Indices)
		require.Equal(t, csr.Data, rep.Data)
		require.Equal(t, csr.NumRows, rep.NumRows)
		require.Equal(t, csr.NumCols, rep.NumCols)
	}

	// Non-root replicas are private copies.
	b.Replicas[1].Data[0] = 99
	require.EqualValues(t, 1.5, b.Replicas[0].Data[0])
	require.EqualValues(t, 1.5, b.Replicas[2].Data[0])
}

func TestBroadcastCSRMmapTier(t *testing.T) {
	csr := &CSR{
		Indptr:  []int32{0, 1},
		Indices: []int32{0},
		Data:    []float32{7},
		NumRows: 1,
		NumCols: 1,
	}
	b, err := BroadcastCSR(csr, 2, t.TempDir(), 0)
	require.NoError(t, err)

	require.Equal(t, csr.Indptr, b.Replicas[1].Indptr)
	require.Equal(t, csr.Data, b.Replicas[1].Data)
	require.NoError(t, b.Close())
}
