// Package sgfilter implements the Savitzky-Golay smoothing filter used by
// the RFI/Bandpass Filter stage. Kernels are cached per (window, order,
// deriv) by a process-wide, size-bounded cache.
package sgfilter

import (
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
)

var kernelCache = cache.New(cache.NoExpiration, cache.NoExpiration)

// kernelKey identifies one cached kernel.
type kernelKey struct {
	Window int
	Order  int
	Deriv  int
}

func (k kernelKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Window, k.Order, k.Deriv)
}

// RoundUpOdd rounds an even window size up to the next odd integer.
func RoundUpOdd(w int) int {
	if w%2 == 0 {
		return w + 1
	}
	return w
}

// kernel returns the length-`window` convolution kernel for the given
// polynomial order and derivative, building and caching it on first use.
// Built from the pseudo-inverse of the Vandermonde-like design matrix
// B[i,j] = (i - floor(window/2))^j.
func kernel(window, order, deriv int) ([]float64, error) {
	if window%2 == 0 || window < 1 {
		return nil, fmt.Errorf("sgfilter: window size %d must be a positive odd number", window)
	}
	if window < order+2 {
		return nil, fmt.Errorf("sgfilter: window size %d too small for order %d", window, order)
	}

	key := kernelKey{window, order, deriv}
	if v, ok := kernelCache.Get(key.String()); ok {
		return v.([]float64), nil
	}

	half := (window - 1) / 2
	// B is window x (order+1): B[i][j] = (i-half)^j
	b := make([][]float64, window)
	for i := 0; i < window; i++ {
		row := make([]float64, order+1)
		x := float64(i - half)
		p := 1.0
		for j := 0; j <= order; j++ {
			row[j] = p
			p *= x
		}
		b[i] = row
	}

	pinv, err := pseudoInverse(b)
	if err != nil {
		return nil, fmt.Errorf("sgfilter: %w", err)
	}
	if deriv > order {
		return nil, fmt.Errorf("sgfilter: derivative order %d exceeds polynomial order %d", deriv, order)
	}
	m := pinv[deriv]

	if kernelCache.ItemCount() >= conf.SGKernelCacheSize {
		kernelCache.Flush()
	}
	kernelCache.Set(key.String(), m, cache.NoExpiration)
	return m, nil
}

// Smooth applies the Savitzky-Golay filter of the given window/order/deriv
// to y, reflection-padding both ends: pad[i] = 2*y[0] -
// y[half-i] on the left (i=1..half) and analogously on the right.
func Smooth(y []float64, window, order, deriv int) ([]float64, error) {
	window = RoundUpOdd(window)
	m, err := kernel(window, order, deriv)
	if err != nil {
		return nil, err
	}
	half := (window - 1) / 2

	n := len(y)
	padded := make([]float64, n+2*half)
	for i := 0; i < half; i++ {
		padded[half-1-i] = 2*y[0] - y[i+1]
	}
	copy(padded[half:half+n], y)
	for i := 0; i < half; i++ {
		padded[half+n+i] = 2*y[n-1] - y[n-2-i]
	}

	return convolveValid(padded, m), nil
}

// convolveValid computes the valid-mode convolution of x with kernel m,
// matching numpy.convolve(..., mode='valid').
func convolveValid(x, m []float64) []float64 {
	outLen := len(x) - len(m) + 1
	if outLen < 0 {
		outLen = 0
	}
	out := make([]float64, outLen)
	for i := 0; i < outLen; i++ {
		var sum float64
		for j := 0; j < len(m); j++ {
			sum += x[i+len(m)-1-j] * m[j]
		}
		out[i] = sum
	}
	return out
}
