// Package build implements the Spectrogram Builder: it streams a DRX file,
// accumulates per-tuning power spectra, optionally sums in an injected
// signal, and writes per-worker tile files plus the run parameters file
// every later stage reads.
package build

import (
	"fmt"
	"math"
	"os"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/drx"
)

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("build: stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// Params holds every value derived once, at the start of a build run, from
// the raw file's metadata and the command-line request.
type Params struct {
	DRXPath string
	Label   string
	Beam    int

	SampleRate       float64
	FrameTime        float64
	TuningFreq0      float64
	TuningFreq1      float64
	NumFrames        int64
	NumFramesPerTune int64

	IntegrationTime float64
	UtilizationFrac float64
	EnableHann      bool
	DFTLength       int

	NumDFTsPerLine int // I
	NumLines       int // L
	LinesPerTile   int // ell
	ResidueLines   int // L - W*ell, absorbed by worker 0's first tile

	Workers          int
	MemoryLimitBytes int64
	ChannelWidth     float64
}

// Derive computes every Builder parameter from a DRX file's metadata and the
// requested run configuration.
func Derive(drxPath string, integrationTimeSeconds float64, memoryLimitMB int, utilizationFrac float64, workers int, enableHann bool, label string) (*Params, error) {
	fileInfo, err := statSize(drxPath)
	if err != nil {
		return nil, err
	}

	md, err := drx.ReadMetadata(drxPath, drx.FrameSize, fileInfo)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	p := &Params{
		DRXPath:          drxPath,
		Label:            label,
		Beam:             md.Beam,
		SampleRate:       md.SampleRate,
		FrameTime:        md.FrameTime,
		TuningFreq0:      md.TuningFreq0,
		TuningFreq1:      md.TuningFreq1,
		NumFrames:        md.NumFrames,
		NumFramesPerTune: md.NumFramesPerTune,
		IntegrationTime:  integrationTimeSeconds,
		UtilizationFrac:  utilizationFrac,
		EnableHann:       enableHann,
		DFTLength:        conf.DFTLength,
		Workers:          workers,
		MemoryLimitBytes: int64(memoryLimitMB) * 1_000_000,
	}

	p.NumDFTsPerLine = maxInt(1, int(integrationTimeSeconds/p.FrameTime))
	rawNumLines := maxInt(1, int(float64(md.NumFramesPerTune)/float64(p.NumDFTsPerLine)))
	p.NumLines = maxInt(1, int(math.Abs(utilizationFrac)*float64(rawNumLines)))

	// More ranks than output lines would leave the extras with overlapping
	// or empty partitions; cap the communicator at one line per rank.
	if workers > p.NumLines {
		workers = p.NumLines
		p.Workers = workers
	}

	memLinesPerWorker := int(p.MemoryLimitBytes / (2 * int64(workers) * int64(p.DFTLength) * 4))
	p.LinesPerTile = minInt(p.NumLines/workers, memLinesPerWorker)
	if p.LinesPerTile < 1 {
		p.LinesPerTile = 1
	}
	p.ResidueLines = p.NumLines - workers*p.LinesPerTile

	p.ChannelWidth = p.SampleRate / 1e6 / float64(p.DFTLength)

	return p, nil
}

// BytesPerLine is the number of raw-file bytes consumed to produce one
// output spectrogram line: I groups of 4 frames each.
func (p *Params) BytesPerLine() int64 {
	return 4 * drx.FrameSize * int64(p.NumDFTsPerLine)
}

// FileStepBytes is the raw-file byte span of one uniform-width tile
// (LinesPerTile lines): the stride between the starts of adjacent ranks'
// uniform-width tiles, not between one rank's successive tiles.
func (p *Params) FileStepBytes() int64 {
	return p.BytesPerLine() * int64(p.LinesPerTile)
}

// LineOffset returns the global starting row of worker rank's q-th tile
// (q = 0, 1, 2, ...), honoring the rule that worker 0's very first tile
// absorbs the residue L - W*ell; every tile after that one is uniformly ell
// rows wide, shifted by the one-time residue.
func (p *Params) LineOffset(rank, q int) int {
	if q == 0 {
		if rank == 0 {
			return 0
		}
		return rank*p.LinesPerTile + p.ResidueLines
	}
	return q*p.Workers*p.LinesPerTile + p.ResidueLines + rank*p.LinesPerTile
}

// TileLines returns how many output rows worker rank's q-th tile holds
// before any end-of-file truncation.
func (p *Params) TileLines(rank, q int) int {
	if q == 0 && rank == 0 {
		return p.LinesPerTile + p.ResidueLines
	}
	return p.LinesPerTile
}

// ByteOffset returns the DRX file byte offset at which worker rank's q-th
// tile begins reading, honoring the utilization-fraction skip.
func (p *Params) ByteOffset(rank, q int) int64 {
	offset := int64(p.LineOffset(rank, q)) * p.BytesPerLine()
	if p.UtilizationFrac < 0 {
		rawNumLines := maxInt(1, int(float64(p.NumFramesPerTune)/float64(p.NumDFTsPerLine)))
		skipLines := int(math.Ceil((1 + p.UtilizationFrac) * float64(rawNumLines)))
		offset += int64(skipLines) * p.BytesPerLine()
	}
	return offset
}

// EndOffset returns the byte offset at which a build run stops reading,
// honoring a positive utilization fraction's end cap.
func (p *Params) EndOffset(fileSizeBytes int64) int64 {
	if p.UtilizationFrac > 0 && p.UtilizationFrac < 1.0 {
		return int64(math.Ceil(p.UtilizationFrac * float64(fileSizeBytes)))
	}
	return fileSizeBytes
}

// ComputeFreqs returns the N channel-center frequencies, in MHz, for a
// tuning with the given center frequency and total bandwidth, using the
// channel-center convention f_c + channelWidth*(k - N/2 + 1/2), with
// channelWidth = bandwidth/numBins.
func ComputeFreqs(centerFreqMHz, bandwidthMHz float64, numBins int) []float64 {
	out := make([]float64, numBins)
	channelWidth := bandwidthMHz / float64(numBins)
	half := float64(numBins) / 2.0
	for k := 0; k < numBins; k++ {
		out[k] = centerFreqMHz + channelWidth*(float64(k)-half+0.5)
	}
	return out
}

// TileFilename returns the tile filename,
// waterfall[_LABEL]-S{tile}-B{beam}T{tune}.npy, where tile is the global
// starting row index.
func TileFilename(tile, tune, beam int, label string) string {
	fileLabel := ""
	if label != "" {
		fileLabel = "_" + label
	}
	return fmt.Sprintf("waterfall%s-S%d-B%dT%d.npy", fileLabel, tile, beam, tune)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
