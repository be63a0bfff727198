package drx

import "fmt"

// Metadata summarizes the file-wide properties the Spectrogram Builder
// derives from the first group of frames: sample rate, per-tuning center
// frequency, beam id, and file-wide frame counts.
type Metadata struct {
	Beam             int
	SampleRate       float64
	FrameTime        float64
	TuningFreq0      float64
	TuningFreq1      float64
	NumFrames        int64
	NumFramesPerTune int64
}

// ReadMetadata opens path, reads the first group of frames (up to 2x
// FramesPerGroup to tolerate a leading sync error), and derives file-wide
// metadata without consuming the caller's own reader.
func ReadMetadata(path string, frameSize int64, fileSize int64) (*Metadata, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	const framesPerBeam = 4
	md := &Metadata{}
	seenSampleRate := false
	var freq0, freq1 float64

	read := 0
	for read < framesPerBeam {
		frame, err := r.Next()
		if err != nil {
			if _, ok := err.(*ErrSync); ok {
				continue
			}
			// End of file before a full group: keep whatever was decoded
			// and fall back to the format default below for the rest.
			break
		}
		if !seenSampleRate {
			if frame.SampleRate == 0 {
				return nil, fmt.Errorf("drx: zero sample rate in first frame")
			}
			md.Beam = frame.Beam
			md.SampleRate = frame.SampleRate
			md.FrameTime = float64(SamplesPerFrame) / frame.SampleRate
			seenSampleRate = true
		}
		if frame.Pol == 0 {
			if frame.Tune == 0 {
				freq0 = frame.CentralFreq
			} else {
				freq1 = frame.CentralFreq
			}
		}
		read++
	}
	if !seenSampleRate {
		md.SampleRate = DefaultSampleRate
		md.FrameTime = float64(SamplesPerFrame) / md.SampleRate
	}
	md.TuningFreq0 = freq0
	md.TuningFreq1 = freq1
	md.NumFrames = fileSize / frameSize
	md.NumFramesPerTune = md.NumFrames / framesPerBeam

	return md, nil
}
