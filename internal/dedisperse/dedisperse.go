// Package dedisperse implements the De-dispersion Search: for each trial
// dispersion measure, every channel's time series is shifted by its
// dispersion delay and summed; the combined time series is searched for
// samples exceeding an SNR threshold, and any found are emitted as events
// into one shared output file.
package dedisperse

import (
	"context"
	"fmt"
	"math"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/worker"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// Params holds the search configuration for one tuning's filtered
// spectrogram.
type Params struct {
	// ChannelFreqs holds the N_bp channel-center frequencies, in MHz,
	// f_lo + Δf*(k+½), in ascending channel order.
	ChannelFreqs []float64
	// ChannelWidth is Δf in MHz.
	ChannelWidth float64
	// CenterFreq is the tuning's nominal center frequency, in MHz, recorded
	// on every emitted event.
	CenterFreq float64
	// IntegrationTime is Tᵢ in seconds.
	IntegrationTime float64

	DMStart, DMEnd, DMStep float64
	MaxPulseWidth          float64
	SNRThreshold           float64
	Workers                int
}

// Event is one detected transient, rendered as one fixed-width event-file
// record.
type Event struct {
	ID    string
	SNR   float64
	DM    float64
	Time  float64
	Width float64
	Dnu   float64
	Nu    float64
	Mean  float64
	RMS   float64
	Nu1   float64
	Nu2   float64
}

// Format renders an event as one fixed-column text line.
func (e Event) Format() string {
	return fmt.Sprintf("%-10s  %10.6f  %10.4f  %10.6f  %10.6f  %.4f  %.4f  %.5f  %.5f  %.4f  %.4f\n",
		e.ID, e.SNR, e.DM, e.Time, e.Width, e.Dnu, e.Nu, e.Mean, e.RMS, e.Nu1, e.Nu2)
}

func scaleDelays(freqs []float64, topFreq, integrationTime float64) []float64 {
	out := make([]float64, len(freqs))
	invTop := 1.0 / (topFreq * topFreq)
	for i, f := range freqs {
		out[i] = conf.DispersionConstant * (1.0/(f*f) - invTop) / integrationTime
	}
	return out
}

// dmTrials returns the half-open [DMStart, DMEnd) arange with step DMStep.
func dmTrials(start, end, step float64) []float64 {
	if step <= 0 {
		return nil
	}
	var out []float64
	for dm := start; dm < end; dm += step {
		out = append(out, dm)
	}
	return out
}

// Search runs the de-dispersion search over data, a rows x numChannels
// filtered spectrogram (row-major float32), writing discovered events to
// outPath via a shared-file append and returning the total event count.
// Rows are partitioned across p.Workers ranks by internal/worker's
// goroutine communicator, rank 0 absorbing the residue; the summed time
// series crosses ranks through worker.Reducer and events land in the shared
// output file through worker.SharedAppender.
func Search(ctx context.Context, data []float32, rows, numChannels int, p Params, outPath string) (int, error) {
	if len(p.ChannelFreqs) != numChannels {
		return 0, xerrors.Newf("dedisperse: ChannelFreqs length %d does not match %d channels", len(p.ChannelFreqs), numChannels).
			Category(xerrors.CategoryParameter).Component("dedisperse").Err()
	}
	if p.Workers < 1 {
		p.Workers = 1
	}

	topFreq := p.ChannelFreqs[numChannels-1] + p.ChannelWidth
	bottomFreq := p.ChannelFreqs[0]
	freqs := make([]float64, numChannels+1)
	copy(freqs, p.ChannelFreqs)
	freqs[numChannels] = topFreq

	scaledDelays := scaleDelays(freqs, topFreq, p.IntegrationTime)
	trials := dmTrials(p.DMStart, p.DMEnd, p.DMStep)

	tbMax := int(math.Floor(p.DMEnd * scaledDelays[0]))
	if tbMax < 0 {
		tbMax = 0
	}
	tsLen := tbMax + rows

	rankCutoff := int(math.Ceil(math.Log2(p.MaxPulseWidth/p.IntegrationTime))) + 1

	sizes, offsets := worker.Partition(rows, p.Workers)

	appender, err := worker.OpenShared(outPath)
	if err != nil {
		return 0, xerrors.New(err).Category(xerrors.CategoryIO).Component("dedisperse").Err()
	}
	defer appender.Close()

	reducer := worker.NewReducer(p.Workers, tsLen)
	resetBar := worker.NewBarrier(p.Workers)
	trialBar := worker.NewBarrier(p.Workers)

	eventCounts := make([]int, p.Workers)

	comm := worker.New(p.Workers)
	runErr := comm.Run(ctx, func(ctx context.Context, rank int) error {
		start := offsets[rank]
		nRows := sizes[rank]
		segment := make([]float32, nRows*numChannels)
		for r := 0; r < nRows; r++ {
			copy(segment[r*numChannels:(r+1)*numChannels], data[(start+r)*numChannels:(start+r+1)*numChannels])
		}

		ts := make([]float32, tsLen)
		localCounter := 0

		for _, dm := range trials {
			tShifts := make([]int, numChannels+1)
			for k, sd := range scaledDelays {
				tShifts[k] = int(math.Floor(dm * sd))
			}
			fShifts := make([]int, numChannels)
			for k := 0; k < numChannels; k++ {
				fShifts[k] = tShifts[0] - tShifts[k]
			}

			for k := 0; k < numChannels; k++ {
				begin := start + fShifts[k]
				for r := 0; r < nRows; r++ {
					ts[begin+r] += segment[r*numChannels+k]
				}
			}

			tsTotal := reducer.AllreduceSum(ts)
			for i := range ts {
				ts[i] = 0
			}

			if rank < rankCutoff {
				ndown := 1 << uint(rank)
				cutStart := tShifts[0]
				if cutStart < 0 {
					cutStart = 0
				}
				if cutStart < rows {
					cut := tsTotal[cutStart:rows]
					decimated := decimate1D(cut, ndown)
					if len(decimated) > 0 {
						snr, mean, rms := threshold(decimated, p.SNRThreshold)
						for i, s := range snr {
							if s == -1 {
								continue
							}
							ev := Event{
								ID:    fmt.Sprintf("%d_%d", localCounter, rank),
								SNR:   s,
								DM:    dm,
								Time:  (float64(i) + 0.5) * p.IntegrationTime * float64(ndown),
								Width: p.IntegrationTime * float64(ndown),
								Dnu:   p.ChannelWidth,
								Nu:    p.CenterFreq,
								Mean:  mean,
								RMS:   rms,
								Nu1:   bottomFreq,
								Nu2:   topFreq,
							}
							if err := appender.Append(ev.Format()); err != nil {
								return xerrors.New(err).Category(xerrors.CategoryIO).Component("dedisperse").Err()
							}
							localCounter++
						}
					}
				}
			}

			if rank == 0 {
				reducer.Reset()
			}
			resetBar.Wait()
			trialBar.Wait()
		}

		eventCounts[rank] = localCounter
		return nil
	})
	if runErr != nil {
		return 0, runErr
	}

	total := 0
	for _, c := range eventCounts {
		total += c
	}
	return total, nil
}

// decimate1D averages every ndown consecutive samples, dropping any
// remainder that doesn't fill a full group.
func decimate1D(x []float32, ndown int) []float64 {
	if ndown <= 1 {
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = float64(v)
		}
		return out
	}
	n := len(x) / ndown
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for k := 0; k < ndown; k++ {
			sum += float64(x[i*ndown+k])
		}
		out[i] = sum / float64(ndown)
	}
	return out
}

// threshold computes SNR = (x-mean)/std (std floored at conf.Epsilon) and
// sets any SNR below thresh to -1. No iterative sigma-clipping of the
// mean/std estimate is applied.
func threshold(x []float64, thresh float64) (snr []float64, mean, rms float64) {
	mean = meanF64(x)
	std := stdDevF64(x, mean)
	if std < conf.Epsilon {
		std = conf.Epsilon
	}
	snr = make([]float64, len(x))
	for i, v := range x {
		s := (v - mean) / std
		if s < thresh {
			s = -1
		}
		snr[i] = s
	}
	return snr, mean, std
}

func meanF64(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func stdDevF64(x []float64, mean float64) float64 {
	var sumSq float64
	for _, v := range x {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(x)))
}
