package build

import "math"

// fftRadix2 computes the length-N (N a power of two) discrete Fourier
// transform of x in place using an iterative Cooley-Tukey radix-2 scheme.
// The transform length is a fixed power of two, so this small direct
// implementation suffices.
func fftRadix2(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wlen := complex(math.Cos(ang), math.Sin(ang))
		for i := 0; i < n; i += length {
			w := complex(1.0, 0.0)
			half := length / 2
			for j := 0; j < half; j++ {
				u := x[i+j]
				v := x[i+j+half] * w
				x[i+j] = u + v
				x[i+j+half] = u - v
				w *= wlen
			}
		}
	}
}

// fftshift reorders a length-N (N even) spectrum so that index 0 corresponds
// to the most negative frequency, i.e. swaps the two halves of x, matching
// numpy.fft.fftshift.
func fftshift(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	half := n / 2
	copy(out[:n-half], x[half:])
	copy(out[n-half:], x[:half])
	return out
}

// hannWindow returns the N-point Hann window used to taper raw frame
// samples before the DFT.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
