// Package drx implements the minimal reader for the DRX radio-voltage frame
// format this pipeline consumes: fixed 4128-byte frames,
// each beginning with a sync pattern, carrying a beam/tuning/polarization
// id, a time tag, a tuning word, a decimation factor, and 4096 complex
// time-domain samples, one per byte (4-bit signed real in the high nibble,
// 4-bit signed imaginary in the low nibble). No Go parser for the format exists, so this package decodes
// the fixed layout directly.
package drx

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// FrameSize is the fixed on-disk size of one DRX frame, in bytes.
const FrameSize = 4128

const headerSize = 32

// SamplesPerFrame is the number of complex time samples carried per frame.
const SamplesPerFrame = 4096

// ClockRate is the fixed master clock the tuning word and decimation factor
// are referenced to, in Hz.
const ClockRate = 196_000_000.0

// DefaultSampleRate is the sample rate assumed for a recording whose first
// frame group cannot be read (an empty file), the full-bandwidth DRX mode of
// ClockRate / 10.
const DefaultSampleRate = ClockRate / 10

var syncPattern = [4]byte{0x5C, 0xDE, 0xC0, 0xDE}

// Frame is one decoded DRX frame.
type Frame struct {
	Beam        int
	Tune        int
	Pol         int
	TimeTag     uint64
	CentralFreq float64
	SampleRate  float64
	Samples     []complex64
}

// Reader streams frames from a DRX file, forward-only, rewinding one byte at
// a time on a sync mismatch. It is not safe for concurrent use.
type Reader struct {
	r    *bufio.Reader
	f    *os.File
	buf  [FrameSize]byte
}

// Open opens path for frame-by-frame reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("drx: open %s: %w", path, err)
	}
	return &Reader{r: bufio.NewReaderSize(f, FrameSize*64), f: f}, nil
}

// OpenAt opens path for frame-by-frame reading starting offset bytes into
// the file, the entry point a worker uses to begin at its own partition of
// the raw data file.
func OpenAt(path string, offset int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("drx: open %s: %w", path, err)
	}
	if offset != 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("drx: seek %s to %d: %w", path, offset, err)
		}
	}
	return &Reader{r: bufio.NewReaderSize(f, FrameSize*64), f: f}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ErrSync is returned, wrapping the offending byte, whenever a candidate
// frame does not start with the sync pattern. Next should be called again;
// the reader has already rewound by 3 of the 4 peeked bytes.
type ErrSync struct {
	Byte byte
}

func (e *ErrSync) Error() string {
	return fmt.Sprintf("drx: sync error at byte 0x%02x", e.Byte)
}

// Next reads and decodes the next frame. On a sync mismatch it returns
// *ErrSync and the reader has already advanced by exactly one byte so the
// caller can call Next again to resynchronize. On end of file it returns
// io.EOF. A short read in the middle of a frame also yields io.EOF, which
// the Spectrogram Builder treats as "truncate current row, finish cleanly".
func (r *Reader) Next() (*Frame, error) {
	head := r.buf[:4]
	if _, err := io.ReadFull(r.r, head); err != nil {
		return nil, io.EOF
	}
	if head[0] != syncPattern[0] || head[1] != syncPattern[1] ||
		head[2] != syncPattern[2] || head[3] != syncPattern[3] {
		bad := head[0]
		// Rewind by 3 of the 4 consumed bytes: net advance is one byte.
		if err := r.unread(head[1:4]); err != nil {
			return nil, err
		}
		return nil, &ErrSync{Byte: bad}
	}

	rest := r.buf[4:FrameSize]
	if _, err := io.ReadFull(r.r, rest); err != nil {
		return nil, io.EOF
	}

	return decodeFrame(r.buf[:FrameSize])
}

// unread pushes bytes back onto the buffered reader so the next Next() call
// re-reads them; bufio.Reader can unread only a single byte, so the bytes
// are spliced in front of the current reader instead.
func (r *Reader) unread(b []byte) error {
	// bufio.Reader has no multi-byte unread; emulate it with a
	// io.MultiReader splice so callers keep using the same *bufio.Reader.
	combined := io.MultiReader(bytes.NewReader(b), r.r)
	r.r = bufio.NewReaderSize(combined, FrameSize*64)
	return nil
}

func decodeFrame(buf []byte) (*Frame, error) {
	if len(buf) != FrameSize {
		return nil, fmt.Errorf("drx: short frame buffer: %d bytes", len(buf))
	}
	id := buf[7]
	beam := int(id & 0x07)
	tune := int((id >> 3) & 0x01)
	pol := int((id >> 4) & 0x01)

	var timeTag uint64
	for i := 0; i < 8; i++ {
		timeTag = timeTag<<8 | uint64(buf[8+i])
	}

	var tuningWord uint32
	for i := 0; i < 4; i++ {
		tuningWord = tuningWord<<8 | uint32(buf[16+i])
	}

	var decimation uint32
	for i := 0; i < 4; i++ {
		decimation = decimation<<8 | uint32(buf[20+i])
	}
	if decimation == 0 {
		decimation = 10
	}

	centralFreq := float64(tuningWord) * ClockRate / 4294967296.0
	sampleRate := ClockRate / float64(decimation)

	payload := buf[headerSize:FrameSize]
	samples := make([]complex64, SamplesPerFrame)
	for i, b := range payload {
		re := int8(b&0xF0) >> 4
		im := int8(b<<4) >> 4
		samples[i] = complex(float32(re), float32(im))
	}

	return &Frame{
		Beam:        beam,
		Tune:        tune,
		Pol:         pol,
		TimeTag:     timeTag,
		CentralFreq: centralFreq,
		SampleRate:  sampleRate,
		Samples:     samples,
	}, nil
}
