package dedisperse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventFormatIsFixedColumn(t *testing.T) {
	e := Event{ID: "0_0", SNR: 6.5, DM: 12.25, Time: 1.5, Width: 2.0, Dnu: 0.1, Nu: 70.0, Mean: 0.1, RMS: 1.0, Nu1: 69.9, Nu2: 70.1}
	line := e.Format()
	require.Contains(t, line, "0_0")
	require.Contains(t, line, "6.500000")
	require.True(t, len(line) > 40)
}

func TestDMTrialsHalfOpenRange(t *testing.T) {
	trials := dmTrials(0, 5, 1)
	require.Equal(t, []float64{0, 1, 2, 3, 4}, trials)
}

func TestDMTrialsEmptyForNonPositiveStep(t *testing.T) {
	require.Nil(t, dmTrials(0, 5, 0))
	require.Nil(t, dmTrials(0, 5, -1))
}

func TestScaleDelaysZeroAtTopFrequency(t *testing.T) {
	freqs := []float64{69.0, 69.5, 70.0}
	delays := scaleDelays(freqs, 70.0, 1.0)
	require.InDelta(t, 0.0, delays[len(delays)-1], 1e-9)
	require.Greater(t, delays[0], delays[1])
}

func TestDecimate1DAveragesGroups(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5, 6}
	out := decimate1D(x, 2)
	require.InDeltaSlice(t, []float64{1.5, 3.5, 5.5}, out, 1e-9)
}

func TestDecimate1DDropsRemainder(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5}
	out := decimate1D(x, 2)
	require.Len(t, out, 2)
}

func TestThresholdFlagsOnlyAboveCutoff(t *testing.T) {
	x := []float64{10, 10, 10, 10, 10000}
	snr, mean, rms := threshold(x, 3.0)
	require.Greater(t, mean, 0.0)
	require.Greater(t, rms, 0.0)
	require.Equal(t, -1.0, snr[0])
	require.Greater(t, snr[4], 3.0)
}

func TestSearchDetectsStrongSpikeAtZeroDM(t *testing.T) {
	const rows, numChannels = 50, 4
	data := make([]float32, rows*numChannels)
	for r := 0; r < rows; r++ {
		for c := 0; c < numChannels; c++ {
			data[r*numChannels+c] = 10
		}
	}
	for c := 0; c < numChannels; c++ {
		data[20*numChannels+c] = 100000
	}

	p := Params{
		ChannelFreqs:    []float64{70.0, 70.1, 70.2, 70.3},
		ChannelWidth:    0.1,
		CenterFreq:      70.15,
		IntegrationTime: 1.0,
		DMStart:         0,
		DMEnd:           1,
		DMStep:          1,
		MaxPulseWidth:   1.0,
		SNRThreshold:    5.0,
		Workers:         1,
	}

	outPath := filepath.Join(t.TempDir(), "events.txt")
	n, err := Search(context.Background(), data, rows, numChannels, p, outPath)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	contents, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(contents), "20.5")
}

func TestSearchRejectsChannelFreqsLengthMismatch(t *testing.T) {
	p := Params{ChannelFreqs: []float64{70, 71}, Workers: 1, DMEnd: 1, DMStep: 1}
	_, err := Search(context.Background(), make([]float32, 10), 5, 3, p, filepath.Join(t.TempDir(), "e.txt"))
	require.Error(t, err)
}
