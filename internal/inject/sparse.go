// Package inject builds the synthetic, dispersion-curve-weighted signal
// spectrogram that the Spectrogram Builder sums into its pre-normalized
// power accumulators. The result is a sparse L x N matrix, built in
// coordinate (COO) form and converted to compressed-row (CSR) form for
// broadcast.
package inject

import (
	"math"
	"math/rand"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
)

// COO is a coordinate-form sparse matrix under construction.
type COO struct {
	Rows, Cols []int32
	Data       []float32
	NumRows    int
	NumCols    int
}

// CSR is a compressed sparse row matrix, the wire form broadcast to every
// worker rank.
type CSR struct {
	Indptr  []int32
	Indices []int32
	Data    []float32
	NumRows int
	NumCols int
}

// ToCSR converts a fully populated COO matrix to CSR.
func (c *COO) ToCSR() *CSR {
	indptr := make([]int32, c.NumRows+1)
	for _, r := range c.Rows {
		indptr[r+1]++
	}
	for i := 1; i <= c.NumRows; i++ {
		indptr[i] += indptr[i-1]
	}

	cursor := make([]int32, c.NumRows)
	copy(cursor, indptr[:c.NumRows])

	nnz := len(c.Data)
	indices := make([]int32, nnz)
	data := make([]float32, nnz)
	for i := range c.Rows {
		r := c.Rows[i]
		dst := cursor[r]
		indices[dst] = c.Cols[i]
		data[dst] = c.Data[i]
		cursor[r]++
	}

	return &CSR{Indptr: indptr, Indices: indices, Data: data, NumRows: c.NumRows, NumCols: c.NumCols}
}

// ByteLen returns the total size in bytes of the three CSR arrays, the
// quantity the broadcast-strategy threshold in internal/conf is measured
// against.
func (c *CSR) ByteLen() int {
	return 4*len(c.Indptr) + 4*len(c.Indices) + 4*len(c.Data)
}

// Spectrum computes the normalized power-law spectrum freqs[k]^alpha /
// sum(freqs^alpha), the injection's spectral shape.
func Spectrum(freqs []float64, spectralIndex float64) []float64 {
	out := make([]float64, len(freqs))
	var sum float64
	for i, f := range freqs {
		out[i] = math.Pow(f, spectralIndex)
		sum += out[i]
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func scaleDelays(freqs []float64, topFreq float64) []float64 {
	out := make([]float64, len(freqs))
	invTop := 1.0 / (topFreq * topFreq)
	for i, f := range freqs {
		out[i] = conf.DispersionConstant * (1.0/(f*f) - invTop)
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Params configures one call to Create.
type Params struct {
	Freqs         []float64
	ChannelWidth  float64
	NumIntervals  int
	IntervalTime  float64
	TotalPower    float64
	SpectralIndex float64

	// TimeStart/TimeEnd bound when injections may land, in seconds; nil
	// selects the full interval span.
	TimeStart, TimeEnd *float64
	// DMStart/DMEnd bound the injected dispersion measures, in pc cm^-3;
	// nil selects [0, 5000).
	DMStart, DMEnd *float64

	NumInjects   int
	RegularTimes bool
	RegularDMs   bool
	// Seed drives the random source used when RegularTimes/RegularDMs is
	// false. Fixed seed plus regular flags is what the determinism
	// property requires for bit-identical output across runs.
	Seed int64
}

// Create builds the CSR injection spectrogram for p. Returns nil, nil when
// p.NumInjects <= 0.
func Create(p Params) (*CSR, error) {
	if p.NumInjects <= 0 {
		return nil, nil
	}

	numFreqs := len(p.Freqs)
	topFreq := p.Freqs[numFreqs-1] + p.ChannelWidth
	invTopFreqSqrd := 1.0 / (topFreq * topFreq)
	invChannelWidth := 1.0 / p.ChannelWidth
	maxTime := p.IntervalTime * float64(p.NumIntervals)

	timeStart, timeEnd := 0.0, maxTime
	if p.TimeStart != nil {
		timeStart = *p.TimeStart
	}
	if p.TimeEnd != nil {
		timeEnd = *p.TimeEnd
	}
	timeStart = clip(timeStart, 0.0, maxTime)
	timeEnd = clip(timeEnd, 0.0, maxTime)

	dmStart, dmEnd := 0.0, 5000.0
	if p.DMStart != nil {
		dmStart = clip(*p.DMStart, 0.0, 5000.0)
	}
	if p.DMEnd != nil {
		dmEnd = clip(*p.DMEnd, 0.0, 5000.0)
	}

	injSpectrum := Spectrum(p.Freqs, p.SpectralIndex)
	for i := range injSpectrum {
		injSpectrum[i] *= p.TotalPower
	}

	rng := rand.New(rand.NewSource(p.Seed))
	injTimes := make([]float64, p.NumInjects)
	injDMs := make([]float64, p.NumInjects)
	if p.RegularTimes {
		linspace(injTimes, timeStart, timeEnd)
	} else {
		for i := range injTimes {
			injTimes[i] = rng.Float64()*(timeEnd-timeStart) + timeStart
		}
	}
	if p.RegularDMs {
		linspace(injDMs, dmStart, dmEnd)
	} else {
		for i := range injDMs {
			injDMs[i] = rng.Float64()*(dmEnd-dmStart) + dmStart
		}
	}

	delays := scaleDelays(p.Freqs, topFreq)
	scaledDelays := make([]float64, numFreqs)
	for i, d := range delays {
		scaledDelays[i] = d / p.IntervalTime
	}

	mIndices := make([]int32, numFreqs+1)
	qSpans := make([]int32, numFreqs)

	// Pass 1: size the COO buffers.
	dataCount := 0
	for i := 0; i < p.NumInjects; i++ {
		t0Prime := injTimes[i] / p.IntervalTime
		for k := 0; k < numFreqs; k++ {
			mIndices[k] = int32(math.Floor(scaledDelays[k]*injDMs[i] + t0Prime))
		}
		mIndices[numFreqs] = int32(math.Floor(t0Prime))
		for k := 0; k < numFreqs; k++ {
			qSpans[k] = (mIndices[k] - mIndices[k+1]) + 2
			if qSpans[k] < 1 {
				qSpans[k] = 1
			}
			dataCount += int(qSpans[k])
		}
	}

	coo := &COO{
		Rows:    make([]int32, 0, dataCount),
		Cols:    make([]int32, 0, dataCount),
		Data:    make([]float32, 0, dataCount),
		NumRows: p.NumIntervals,
		NumCols: numFreqs,
	}

	// Pass 2: fill coordinates and weights.
	for i := 0; i < p.NumInjects; i++ {
		t0 := injTimes[i]
		t0Prime := t0 / p.IntervalTime
		kFactor := conf.DispersionConstant * injDMs[i]

		for k := 0; k < numFreqs; k++ {
			mIndices[k] = int32(math.Floor(scaledDelays[k]*injDMs[i] + t0Prime))
		}
		mIndices[numFreqs] = int32(math.Floor(t0Prime))

		for k := 0; k < numFreqs; k++ {
			qSpan := int(mIndices[k] - mIndices[k+1])
			if qSpan <= 0 {
				row := mIndices[k+1]
				if int(row) < p.NumIntervals && row >= 0 {
					coo.Rows = append(coo.Rows, row)
					coo.Cols = append(coo.Cols, int32(k))
					coo.Data = append(coo.Data, float32(injSpectrum[k]))
				}
				continue
			}

			weights := make([]float64, qSpan+1)
			innerFreqs := make([]float64, qSpan)
			for q := 0; q < qSpan; q++ {
				innerTime := p.IntervalTime*float64(int(mIndices[k+1])+1+q) - t0
				innerFreqs[q] = math.Sqrt(1.0 / (innerTime/kFactor + invTopFreqSqrd))
			}

			if k == numFreqs-1 {
				weights[0] = invChannelWidth * (topFreq - innerFreqs[0])
			} else {
				weights[0] = invChannelWidth * (p.Freqs[k+1] - innerFreqs[0])
			}
			for q := 1; q < qSpan; q++ {
				weights[q] = invChannelWidth * (innerFreqs[q-1] - innerFreqs[q])
			}
			weights[qSpan] = invChannelWidth * (innerFreqs[qSpan-1] - p.Freqs[k])

			for q := 0; q <= qSpan; q++ {
				row := mIndices[k+1] + int32(q)
				if int(row) >= p.NumIntervals || row < 0 {
					continue
				}
				coo.Rows = append(coo.Rows, row)
				coo.Cols = append(coo.Cols, int32(k))
				coo.Data = append(coo.Data, float32(weights[q]*injSpectrum[k]))
			}
		}
	}

	return coo.ToCSR(), nil
}

func linspace(dst []float64, start, end float64) {
	n := len(dst)
	if n == 1 {
		dst[0] = start
		return
	}
	step := (end - start) / float64(n-1)
	for i := range dst {
		dst[i] = start + step*float64(i)
	}
}
