package sgfilter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundUpOdd(t *testing.T) {
	require.Equal(t, 15, RoundUpOdd(15))
	require.Equal(t, 17, RoundUpOdd(16))
}

func TestSmoothPreservesLengthAndConstantSignal(t *testing.T) {
	y := make([]float64, 20)
	for i := range y {
		y[i] = 5.0
	}
	out, err := Smooth(y, 7, 2, 0)
	require.NoError(t, err)
	require.Len(t, out, len(y))
	for _, v := range out {
		require.InDelta(t, 5.0, v, 1e-9)
	}
}

func TestSmoothSmoothsNoisySignal(t *testing.T) {
	y := []float64{1, 10, 1, 10, 1, 10, 1, 10, 1, 10, 1, 10, 1, 10, 1}
	out, err := Smooth(y, 5, 2, 0)
	require.NoError(t, err)
	require.Len(t, out, len(y))

	var inputVar, outputVar float64
	for i := 1; i < len(y); i++ {
		inputVar += (y[i] - y[i-1]) * (y[i] - y[i-1])
		outputVar += (out[i] - out[i-1]) * (out[i] - out[i-1])
	}
	require.Less(t, outputVar, inputVar)
}

func TestKernelRejectsEvenWindow(t *testing.T) {
	_, err := kernel(4, 2, 0)
	require.Error(t, err)
}

func TestKernelRejectsWindowTooSmallForOrder(t *testing.T) {
	_, err := kernel(3, 4, 0)
	require.Error(t, err)
}

func TestKernelRejectsDerivGreaterThanOrder(t *testing.T) {
	_, err := kernel(7, 2, 3)
	require.Error(t, err)
}

func TestKernelIsCachedAcrossCalls(t *testing.T) {
	k1, err := kernel(9, 2, 0)
	require.NoError(t, err)
	k2, err := kernel(9, 2, 0)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}
