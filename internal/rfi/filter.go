package rfi

import (
	"context"

	"github.com/shirokudogi/Radio-Transient-Search/internal/rfi/sgfilter"
	"github.com/shirokudogi/Radio-Transient-Search/internal/worker"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// Result holds the output of Filter: the filtered, masked L x Cols
// spectrogram plus the row/column indices it zeroed.
type Result struct {
	Data        []float32
	Cols        int
	FlaggedRows []int
	FlaggedCols []int
}

// Filter implements the RFI/Bandpass Filter. It windows the
// L x cols input matrix to channels [kLo, kHi], divides every column by a
// Savitzky-Golay bandpass curve and subtracts a baseline curve from every
// row, then zeroes rows/columns still dominated by RFI and recenters the
// unflagged region to zero mean.
//
// Rows are partitioned across workers with internal/worker's goroutine
// communicator, rank 0 absorbing the residue (worker.Partition): each
// worker smooths its own row-slice against bp/bl curves that rank 0
// computes from a reduction of every worker's local column/row sums.
func Filter(ctx context.Context, data []float32, rows, cols, kLo, kHi, wBp, wBl, workers int) (*Result, error) {
	if kLo < 0 || kHi >= cols || kLo > kHi {
		return nil, xerrors.Newf("rfi: invalid channel window [%d,%d] for %d columns", kLo, kHi, cols).
			Category(xerrors.CategoryParameter).Component("rfi").Err()
	}
	wBp = sgfilter.RoundUpOdd(wBp)
	wBl = sgfilter.RoundUpOdd(wBl)
	outCols := kHi - kLo + 1

	sizes, offsets := worker.Partition(rows, workers)

	windowed := make([]float32, rows*outCols)
	for r := 0; r < rows; r++ {
		copy(windowed[r*outCols:(r+1)*outCols], data[r*cols+kLo:r*cols+kHi+1])
	}

	rowMeansFull := make([]float64, rows)
	bp := make([]float64, outCols)
	bl := make([]float64, rows)
	corrected := make([]float32, rows*outCols)

	colReducer := worker.NewReducer(workers, outCols)
	phaseABar := worker.NewBarrier(workers)

	rowMeans2Full := make([]float64, rows)
	colReducer2 := worker.NewReducer(workers, outCols)
	phaseBBar := worker.NewBarrier(workers)

	flaggedRowSet := make([]bool, rows)
	flaggedColSet := make([]bool, outCols)

	meanReducer := worker.NewReducer(workers, 2)

	var curveErr error

	comm := worker.New(workers)
	err := comm.Run(ctx, func(ctx context.Context, rank int) error {
		start := offsets[rank]
		nRows := sizes[rank]
		seg := worker.ScatterRowsF32(windowed, outCols, sizes, offsets, rank)

		localColSum := make([]float32, outCols)
		for r := 0; r < nRows; r++ {
			for c := 0; c < outCols; c++ {
				localColSum[c] += seg[r*outCols+c]
			}
		}
		for r := 0; r < nRows; r++ {
			var sum float64
			for c := 0; c < outCols; c++ {
				sum += float64(seg[r*outCols+c])
			}
			rowMeansFull[start+r] = sum / float64(outCols)
		}

		colTotal := colReducer.AllreduceSum(localColSum)

		if rank == 0 {
			colMeans := make([]float64, outCols)
			for c, s := range colTotal {
				colMeans[c] = float64(s) / float64(rows)
			}
			bpCurve, err := BandpassCurve(colMeans, wBp)
			if err != nil {
				curveErr = err
			} else {
				copy(bp, bpCurve)
			}
			blCurve, err := BandpassCurve(rowMeansFull, wBl)
			if err != nil {
				curveErr = err
			} else {
				copy(bl, blCurve)
			}
		}
		phaseABar.Wait()
		if curveErr != nil {
			return curveErr
		}

		for r := 0; r < nRows; r++ {
			globalRow := start + r
			for c := 0; c < outCols; c++ {
				v := float64(seg[r*outCols+c])/bp[c] - bl[globalRow]
				corrected[globalRow*outCols+c] = float32(v)
			}
		}

		localColSum2 := make([]float32, outCols)
		for r := 0; r < nRows; r++ {
			base := (start + r) * outCols
			var rowSum float64
			for c := 0; c < outCols; c++ {
				v := corrected[base+c]
				localColSum2[c] += v
				rowSum += float64(v)
			}
			rowMeans2Full[start+r] = rowSum / float64(outCols)
		}
		colTotal2 := colReducer2.AllreduceSum(localColSum2)

		if rank == 0 {
			colMeans2 := make([]float64, outCols)
			for c, s := range colTotal2 {
				colMeans2[c] = float64(s) / float64(rows)
			}
			flagRows, flagCols := Mask(rowMeans2Full, colMeans2)
			for _, r := range flagRows {
				flaggedRowSet[r] = true
			}
			for _, c := range flagCols {
				flaggedColSet[c] = true
			}
		}
		phaseBBar.Wait()

		var localSum float32
		var localCount float32
		for r := 0; r < nRows; r++ {
			globalRow := start + r
			base := globalRow * outCols
			rowFlagged := flaggedRowSet[globalRow]
			for c := 0; c < outCols; c++ {
				if rowFlagged || flaggedColSet[c] {
					corrected[base+c] = 0
					continue
				}
				localSum += corrected[base+c]
				localCount++
			}
		}
		totals := meanReducer.AllreduceSum([]float32{localSum, localCount})
		var globalMean float32
		if totals[1] > 0 {
			globalMean = totals[0] / totals[1]
		}
		for r := 0; r < nRows; r++ {
			globalRow := start + r
			base := globalRow * outCols
			rowFlagged := flaggedRowSet[globalRow]
			for c := 0; c < outCols; c++ {
				if rowFlagged || flaggedColSet[c] {
					continue
				}
				corrected[base+c] -= globalMean
			}
		}

		return nil
	})
	if err != nil {
		return nil, xerrors.New(err).Category(xerrors.CategoryNumerical).Component("rfi").Err()
	}

	var flaggedRows, flaggedCols []int
	for r, v := range flaggedRowSet {
		if v {
			flaggedRows = append(flaggedRows, r)
		}
	}
	for c, v := range flaggedColSet {
		if v {
			flaggedCols = append(flaggedCols, c)
		}
	}

	return &Result{
		Data:        corrected,
		Cols:        outCols,
		FlaggedRows: flaggedRows,
		FlaggedCols: flaggedCols,
	}, nil
}
