package rfi

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterProducesExpectedShapeAndFlagsOutlierRow(t *testing.T) {
	const rows, cols = 30, 16
	const kLo, kHi = 0, 15

	data := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			bandpassGain := 1.0 + 0.1*float64(c)
			data[r*cols+c] = float32(10.0 * bandpassGain)
		}
	}
	// One strongly outlying row should end up flagged.
	for c := 0; c < cols; c++ {
		data[5*cols+c] = 1000
	}

	result, err := Filter(context.Background(), data, rows, cols, kLo, kHi, 7, 7, 3)
	require.NoError(t, err)
	require.Equal(t, kHi-kLo+1, result.Cols)
	require.Len(t, result.Data, rows*result.Cols)
	require.Contains(t, result.FlaggedRows, 5)
}

func TestFilterRejectsInvalidChannelWindow(t *testing.T) {
	data := make([]float32, 10*10)
	_, err := Filter(context.Background(), data, 10, 10, 5, 2, 3, 3, 1)
	require.Error(t, err)

	_, err = Filter(context.Background(), data, 10, 10, 0, 10, 3, 3, 1)
	require.Error(t, err)
}

func TestFilterFlaggedRegionIsZeroed(t *testing.T) {
	const rows, cols = 30, 16
	data := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[r*cols+c] = float32(10.0 + 0.1*float64(c))
		}
	}
	for c := 0; c < cols; c++ {
		data[3*cols+c] = 5000
	}

	result, err := Filter(context.Background(), data, rows, cols, 0, cols-1, 7, 7, 2)
	require.NoError(t, err)
	require.Contains(t, result.FlaggedRows, 3)
	for c := 0; c < result.Cols; c++ {
		v := result.Data[3*result.Cols+c]
		require.True(t, math.Abs(float64(v)) < 1e-6)
	}
}
