package sgfilter

import "fmt"

// pseudoInverse computes the Moore-Penrose left pseudo-inverse of a tall,
// full-column-rank matrix b (window rows x (order+1) columns) as
// (B^T B)^-1 B^T, returned transposed so that result[deriv] is the
// convolution kernel for that derivative order. The matrix is small and
// fixed-size, so the solve is a direct Gauss-Jordan inversion.
func pseudoInverse(b [][]float64) ([][]float64, error) {
	rows := len(b)
	cols := len(b[0])

	// bt = B^T (cols x rows)
	bt := make([][]float64, cols)
	for i := range bt {
		bt[i] = make([]float64, rows)
		for j := 0; j < rows; j++ {
			bt[i][j] = b[j][i]
		}
	}

	// btb = B^T * B (cols x cols)
	btb := make([][]float64, cols)
	for i := range btb {
		btb[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			var sum float64
			for k := 0; k < rows; k++ {
				sum += bt[i][k] * b[k][j]
			}
			btb[i][j] = sum
		}
	}

	inv, err := invert(btb)
	if err != nil {
		return nil, err
	}

	// pinv = inv(B^T B) * B^T (cols x rows)
	pinv := make([][]float64, cols)
	for i := range pinv {
		pinv[i] = make([]float64, rows)
		for j := 0; j < rows; j++ {
			var sum float64
			for k := 0; k < cols; k++ {
				sum += inv[i][k] * bt[k][j]
			}
			pinv[i][j] = sum
		}
	}
	return pinv, nil
}

// invert computes the inverse of a square matrix via Gauss-Jordan
// elimination with partial pivoting.
func invert(a [][]float64) ([][]float64, error) {
	n := len(a)
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], a[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := aug[col][col]
		if best < 0 {
			best = -best
		}
		for r := col + 1; r < n; r++ {
			v := aug[r][col]
			if v < 0 {
				v = -v
			}
			if v > best {
				best = v
				pivot = r
			}
		}
		if best == 0 {
			return nil, fmt.Errorf("sgfilter: singular matrix, cannot invert")
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for c := 0; c < 2*n; c++ {
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
			for c := 0; c < 2*n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	inv := make([][]float64, n)
	for i := 0; i < n; i++ {
		inv[i] = make([]float64, n)
		copy(inv[i], aug[i][n:])
	}
	return inv, nil
}
