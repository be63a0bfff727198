package drx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildFrame constructs one raw FrameSize-byte DRX frame for beam/tune/pol,
// a fixed tuning word, and decimation factor, with every payload nibble set
// to a small constant so decoded samples are predictable.
func buildFrame(beam, tune, pol int, tuningWord uint32, decimation uint32) []byte {
	buf := make([]byte, FrameSize)
	copy(buf[0:4], []byte{0x5C, 0xDE, 0xC0, 0xDE})
	buf[7] = byte(beam&0x07) | byte((tune&0x01)<<3) | byte((pol&0x01)<<4)
	for i := 0; i < 4; i++ {
		buf[16+i] = byte(tuningWord >> uint(24-8*i))
	}
	for i := 0; i < 4; i++ {
		buf[20+i] = byte(decimation >> uint(24-8*i))
	}
	for i := headerSize; i < FrameSize; i++ {
		buf[i] = 0x12 // re=1, im=2
	}
	return buf
}

func writeDRXFile(t *testing.T, frames [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.drx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, fr := range frames {
		_, err := f.Write(fr)
		require.NoError(t, err)
	}
	return path
}

func TestDecodeFrameFields(t *testing.T) {
	raw := buildFrame(3, 1, 0, 1<<20, 10)
	frame, err := decodeFrame(raw)
	require.NoError(t, err)
	require.Equal(t, 3, frame.Beam)
	require.Equal(t, 1, frame.Tune)
	require.Equal(t, 0, frame.Pol)
	require.Equal(t, ClockRate/10, frame.SampleRate)
	require.Len(t, frame.Samples, SamplesPerFrame)
	require.Equal(t, complex64(complex(1, 2)), frame.Samples[0])
}

func TestDecodeFrameRejectsShortBuffer(t *testing.T) {
	_, err := decodeFrame(make([]byte, 10))
	require.Error(t, err)
}

func TestDecodeFrameDefaultsZeroDecimation(t *testing.T) {
	raw := buildFrame(0, 0, 0, 0, 0)
	frame, err := decodeFrame(raw)
	require.NoError(t, err)
	require.Equal(t, ClockRate/10, frame.SampleRate)
}

func TestReaderNextReadsSequentialFrames(t *testing.T) {
	f1 := buildFrame(0, 0, 0, 1<<20, 10)
	f2 := buildFrame(0, 1, 0, 1<<21, 10)
	path := writeDRXFile(t, [][]byte{f1, f2})

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	frame1, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, 0, frame1.Tune)

	frame2, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, 1, frame2.Tune)

	_, err = r.Next()
	require.Error(t, err)
}

func TestReaderNextResyncsAfterCorruption(t *testing.T) {
	good := buildFrame(0, 0, 0, 1<<20, 10)
	garbage := []byte{0xAA}
	path := writeDRXFile(t, [][]byte{garbage, good})

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	var syncErr *ErrSync
	require.ErrorAs(t, err, &syncErr)

	frame, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, 0, frame.Beam)
}

func TestOpenAtSeeksToOffset(t *testing.T) {
	f1 := buildFrame(0, 0, 0, 1<<20, 10)
	f2 := buildFrame(1, 1, 1, 1<<21, 10)
	path := writeDRXFile(t, [][]byte{f1, f2})

	r, err := OpenAt(path, FrameSize)
	require.NoError(t, err)
	defer r.Close()

	frame, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, 1, frame.Beam)
	require.Equal(t, 1, frame.Tune)
}

func TestReadMetadataDerivesFileWideCounts(t *testing.T) {
	frames := [][]byte{
		buildFrame(2, 0, 0, 1<<20, 10),
		buildFrame(2, 1, 0, 1<<21, 10),
		buildFrame(2, 0, 1, 1<<20, 10),
		buildFrame(2, 1, 1, 1<<21, 10),
	}
	path := writeDRXFile(t, frames)
	fileInfo, err := os.Stat(path)
	require.NoError(t, err)

	md, err := ReadMetadata(path, FrameSize, fileInfo.Size())
	require.NoError(t, err)
	require.Equal(t, 2, md.Beam)
	require.Equal(t, ClockRate/10, md.SampleRate)
	require.Equal(t, int64(4), md.NumFrames)
	require.Equal(t, int64(1), md.NumFramesPerTune)
	require.Greater(t, md.TuningFreq0, 0.0)
	require.Greater(t, md.TuningFreq1, 0.0)
}

func TestReadMetadataEmptyFileFallsBackToDefaults(t *testing.T) {
	path := writeDRXFile(t, nil)

	md, err := ReadMetadata(path, FrameSize, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultSampleRate, md.SampleRate)
	require.Equal(t, float64(SamplesPerFrame)/DefaultSampleRate, md.FrameTime)
	require.Equal(t, int64(0), md.NumFrames)
	require.Equal(t, int64(0), md.NumFramesPerTune)
}
