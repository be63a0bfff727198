package rfi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSNRZeroForConstantSignal(t *testing.T) {
	x := []float64{3, 3, 3, 3}
	out := SNR(x)
	for _, v := range out {
		require.Zero(t, v)
	}
}

func TestSNRPositiveAboveMean(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	out := SNR(x)
	require.Less(t, out[0], 0.0)
	require.Greater(t, out[len(out)-1], 0.0)
}

func TestColumnMeansAndRowMeans(t *testing.T) {
	// 2 rows x 3 cols
	data := []float32{1, 2, 3, 4, 5, 6}
	col := ColumnMeans(data, 2, 3)
	require.InDeltaSlice(t, []float64{2.5, 3.5, 4.5}, col, 1e-9)

	row := RowMeans(data, 2, 3)
	require.InDeltaSlice(t, []float64{2, 5}, row, 1e-9)
}

func TestMaskFlagsOutlierIndices(t *testing.T) {
	means := []float64{1, 1, 1, 1, 1, 100}
	flagged := maskAxis(means)
	require.Contains(t, flagged, 5)
	require.NotContains(t, flagged, 0)
}

func TestMaskBothAxesUseSortedIndexOne(t *testing.T) {
	rowMeans := []float64{1, 1, 1, 50}
	colMeans := []float64{2, 2, 2, 2, 80}
	rows, cols := Mask(rowMeans, colMeans)
	require.Contains(t, rows, 3)
	require.Contains(t, cols, 4)
}

func TestMaskSingleEntryAxisFlagsNothing(t *testing.T) {
	rows, cols := Mask([]float64{5}, []float64{1, 1, 1, 40})
	require.Empty(t, rows)
	require.Contains(t, cols, 3)
}
