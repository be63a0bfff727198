// Package rfi implements the RFI/Bandpass Filter: a Savitzky-Golay bandpass
// curve divides out instrument gain shape along channels, a baseline curve
// subtracts slow temporal gain drift along time, and a final median-based
// mask zeroes rows/columns still dominated by RFI.
package rfi

import (
	"math"
	"sort"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/rfi/sgfilter"
)

// SNR computes (x - mean(x)) / std(x) per sample, with an entry forced to
// zero wherever both the deviation and the standard deviation are exactly
// zero.
func SNR(x []float64) []float64 {
	mean := meanOf(x)
	std := stdDevOf(x, mean)
	out := make([]float64, len(x))
	for i, v := range x {
		diff := v - mean
		if diff == 0 && std == 0 {
			out[i] = 0
			continue
		}
		if std < conf.Epsilon {
			std = conf.Epsilon
		}
		out[i] = diff / std
	}
	return out
}

func meanOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func stdDevOf(x []float64, mean float64) float64 {
	var sumSq float64
	for _, v := range x {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(x)))
}

// BandpassCurve implements bpf(x, window): divide x by its first-order
// Savitzky-Golay smooth, flag samples whose SNR exceeds 1, replace those
// samples with a degree-4 polynomial fit to the unflagged samples, then
// return the second-order Savitzky-Golay smooth of the result.
func BandpassCurve(y []float64, window int) ([]float64, error) {
	smooth1, err := sgfilter.Smooth(y, window, 1, 0)
	if err != nil {
		return nil, err
	}
	ratio := make([]float64, len(y))
	for i := range y {
		ratio[i] = y[i] / smooth1[i]
	}
	flagged := SNR(ratio)

	indices := make([]float64, len(y))
	var fitX, fitY []float64
	for i := range y {
		indices[i] = float64(i)
		if flagged[i] <= 1 {
			fitX = append(fitX, float64(i))
			fitY = append(fitY, y[i])
		}
	}

	corrected := make([]float64, len(y))
	copy(corrected, y)
	if len(fitX) > 4 {
		coeffs := polyFit(fitX, fitY, 4)
		for i := range y {
			if flagged[i] > 1 {
				corrected[i] = polyEval(coeffs, indices[i])
			}
		}
	}

	return sgfilter.Smooth(corrected, window, 2, 0)
}

// ColumnMeans returns the mean of every column across all rows of a
// row-major rows x cols matrix.
func ColumnMeans(data []float32, rows, cols int) []float64 {
	sums := make([]float64, cols)
	for r := 0; r < rows; r++ {
		base := r * cols
		for c := 0; c < cols; c++ {
			sums[c] += float64(data[base+c])
		}
	}
	for c := range sums {
		sums[c] /= float64(rows)
	}
	return sums
}

// RowMeans returns the mean of every row across all columns.
func RowMeans(data []float32, rows, cols int) []float64 {
	out := make([]float64, rows)
	for r := 0; r < rows; r++ {
		base := r * cols
		var sum float64
		for c := 0; c < cols; c++ {
			sum += float64(data[base+c])
		}
		out[r] = sum / float64(cols)
	}
	return out
}

// Mask computes the flagged row and column indices per RFImask: sort each
// mean vector, take the median (sorted[n/2]) and the sorted[1] value, and
// flag any index whose |mean| exceeds 2*median - sorted[1], with the
// sorted[1] term used uniformly on both axes.
func Mask(rowMeans, colMeans []float64) (flaggedRows, flaggedCols []int) {
	flaggedRows = maskAxis(rowMeans)
	flaggedCols = maskAxis(colMeans)
	return
}

func maskAxis(means []float64) []int {
	if len(means) < 2 {
		return nil
	}
	sorted := make([]float64, len(means))
	copy(sorted, means)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	threshold := 2*median - sorted[1]

	var flagged []int
	for i, v := range means {
		if math.Abs(v) > threshold {
			flagged = append(flagged, i)
		}
	}
	return flagged
}
