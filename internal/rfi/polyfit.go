package rfi

import "fmt"

// polyFit fits a degree-th degree polynomial to (x, y) by ordinary least
// squares via the normal equations, returning coefficients highest-degree
// first. The (degree+1)x(degree+1) solve is small enough to do directly.
func polyFit(x, y []float64, degree int) []float64 {
	n := degree + 1
	// Vandermonde design matrix V[i][j] = x[i]^(degree-j).
	v := make([][]float64, len(x))
	for i, xi := range x {
		row := make([]float64, n)
		p := 1.0
		for j := n - 1; j >= 0; j-- {
			row[j] = p
			p *= xi
		}
		v[i] = row
	}

	// Normal equations: (V^T V) c = V^T y.
	vtv := make([][]float64, n)
	vty := make([]float64, n)
	for i := 0; i < n; i++ {
		vtv[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			var sum float64
			for k := range v {
				sum += v[k][i] * v[k][j]
			}
			vtv[i][j] = sum
		}
		var sumY float64
		for k := range v {
			sumY += v[k][i] * y[k]
		}
		vty[i] = sumY
	}

	coeffs, err := solveLinear(vtv, vty)
	if err != nil {
		// Degenerate fit (e.g. too few distinct points): fall back to a
		// flat line at the mean, which keeps downstream arithmetic finite.
		flat := make([]float64, n)
		flat[n-1] = meanOf(y)
		return flat
	}
	return coeffs
}

func polyEval(coeffs []float64, x float64) float64 {
	result := 0.0
	for _, c := range coeffs {
		result = result*x + c
	}
	return result
}

// solveLinear solves a x = b for square a via Gauss-Jordan elimination with
// partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, n+1)
		copy(aug[i], a[i])
		aug[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := abs(aug[r][col]); v > best {
				best = v
				pivot = r
			}
		}
		if best == 0 {
			return nil, fmt.Errorf("rfi: singular matrix in polynomial fit")
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for c := col; c <= n; c++ {
			aug[col][c] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for c := col; c <= n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = aug[i][n]
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
