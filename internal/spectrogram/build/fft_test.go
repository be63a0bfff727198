package build

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFFTRadix2OfImpulseIsFlat(t *testing.T) {
	n := 16
	x := make([]complex128, n)
	x[0] = 1
	fftRadix2(x)
	for _, v := range x {
		require.InDelta(t, 1.0, real(v), 1e-9)
		require.InDelta(t, 0.0, imag(v), 1e-9)
	}
}

func TestFFTRadix2OfSinusoidPeaksAtExpectedBin(t *testing.T) {
	const n = 32
	const k = 5
	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(k) * float64(i) / float64(n)
		x[i] = complex(math.Cos(angle), math.Sin(angle))
	}
	fftRadix2(x)

	maxMag := 0.0
	maxIdx := -1
	for i, v := range x {
		mag := cmplx.Abs(v)
		if mag > maxMag {
			maxMag = mag
			maxIdx = i
		}
	}
	require.Equal(t, k, maxIdx)
	require.InDelta(t, float64(n), maxMag, 1e-6)
}

func TestFFTShiftSwapsHalves(t *testing.T) {
	x := []complex128{0, 1, 2, 3}
	out := fftshift(x)
	require.Equal(t, []complex128{2, 3, 0, 1}, out)
}

func TestHannWindowEndpointsAreZero(t *testing.T) {
	w := hannWindow(8)
	require.Len(t, w, 8)
	require.InDelta(t, 0.0, w[0], 1e-9)
	require.InDelta(t, 0.0, w[len(w)-1], 1e-9)
	require.Greater(t, w[4], 0.9)
}
