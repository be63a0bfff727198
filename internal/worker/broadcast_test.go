package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcastF32InMemoryReplicasAreIndependent(t *testing.T) {
	root := []float32{1, 2, 3}
	b, err := BroadcastF32(root, 3, t.TempDir(), 1<<20)
	require.NoError(t, err)
	defer b.Close()

	require.Len(t, b.Replicas, 3)
	for _, rep := range b.Replicas {
		require.Equal(t, root, rep)
	}

	b.Replicas[1][0] = 99
	require.EqualValues(t, 1, b.Replicas[0][0])
	require.EqualValues(t, 1, b.Replicas[2][0])
}

func TestBroadcastF32MmapTierStagesThroughTempFiles(t *testing.T) {
	root := []float32{4, 5, 6, 7}
	// Threshold of 0 forces every non-root replica onto the mmap tier.
	b, err := BroadcastF32(root, 4, t.TempDir(), 0)
	require.NoError(t, err)

	for _, rep := range b.Replicas {
		require.Equal(t, root, rep)
	}
	require.Len(t, b.maps, 3)

	paths := make([]string, 0, len(b.maps))
	for _, m := range b.maps {
		paths = append(paths, m.Path())
	}
	require.NoError(t, b.Close())
	for _, p := range paths {
		require.NoFileExists(t, p)
	}
}

func TestBroadcastI32MmapTierRoundTrips(t *testing.T) {
	root := []int32{0, 10, -3, 1 << 30}
	b, err := BroadcastI32(root, 2, t.TempDir(), 0)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, root, b.Replicas[1])
}

func TestBroadcastRankZeroAliasesRoot(t *testing.T) {
	root := []float32{1}
	b, err := BroadcastF32(root, 2, t.TempDir(), 1<<20)
	require.NoError(t, err)
	defer b.Close()

	root[0] = 42
	require.EqualValues(t, 42, b.Replicas[0][0])
	require.EqualValues(t, 1, b.Replicas[1][0])
}
