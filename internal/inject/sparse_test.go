package inject

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateReturnsNilWhenNoInjects(t *testing.T) {
	csr, err := Create(Params{NumInjects: 0})
	require.NoError(t, err)
	require.Nil(t, csr)
}

func TestCreateAtZeroDMProducesSingleRowPerInject(t *testing.T) {
	freqs := []float64{70.0, 70.1, 70.2, 70.3}
	zero := 0.0
	midTime := 5.0
	p := Params{
		Freqs:        freqs,
		ChannelWidth: 0.1,
		NumIntervals: 20,
		IntervalTime: 1.0,
		TotalPower:   4.0,
		NumInjects:   1,
		RegularTimes: true,
		RegularDMs:   true,
		TimeStart:    &midTime,
		TimeEnd:      &midTime,
		DMStart:      &zero,
		DMEnd:        &zero,
		Seed:         1,
	}
	csr, err := Create(p)
	require.NoError(t, err)
	require.NotNil(t, csr)
	require.Equal(t, 20, csr.NumRows)
	require.Equal(t, len(freqs), csr.NumCols)
	require.NotEmpty(t, csr.Data)
	// At DM 0 every channel lands in the single row floor(5.0/1.0) = 5.
	require.Len(t, csr.Data, len(freqs))
	require.EqualValues(t, len(freqs), csr.Indptr[6]-csr.Indptr[5])
}

func TestToCSRIndptrMatchesRowCounts(t *testing.T) {
	coo := &COO{
		Rows:    []int32{0, 0, 2},
		Cols:    []int32{1, 2, 0},
		Data:    []float32{1, 2, 3},
		NumRows: 3,
		NumCols: 3,
	}
	csr := coo.ToCSR()
	require.Equal(t, []int32{0, 2, 2, 3}, csr.Indptr)
	require.Len(t, csr.Indices, 3)
	require.Len(t, csr.Data, 3)
}

func TestCSRByteLen(t *testing.T) {
	csr := &CSR{Indptr: make([]int32, 5), Indices: make([]int32, 10), Data: make([]float32, 10)}
	require.Equal(t, 4*(5+10+10), csr.ByteLen())
}

func TestSpectrumNormalizesToUnitSum(t *testing.T) {
	freqs := []float64{70.0, 71.0, 72.0}
	out := Spectrum(freqs, -1.5)
	var sum float64
	for _, v := range out {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestSpectrumHandlesZeroSum(t *testing.T) {
	out := Spectrum(nil, -1.5)
	require.Empty(t, out)
}

func TestLinspaceEndpoints(t *testing.T) {
	dst := make([]float64, 5)
	linspace(dst, 0, 8)
	require.Equal(t, []float64{0, 2, 4, 6, 8}, dst)
}

func TestLinspaceSingleElement(t *testing.T) {
	dst := make([]float64, 1)
	linspace(dst, 3, 9)
	require.Equal(t, []float64{3}, dst)
}

func TestClipBounds(t *testing.T) {
	require.Equal(t, 0.0, clip(-5, 0, 10))
	require.Equal(t, 10.0, clip(50, 0, 10))
	require.Equal(t, 5.0, clip(5, 0, 10))
}
