// conf/consts.go hard coded constants
package conf

// DispersionConstant is K in the dispersion-delay relation
// s(DM) = K*DM*(f_lo^-2 - f_hi^-2), in MHz^2 s pc^-1 cm^3.
const DispersionConstant = 4148.808

// DFTLength is the fixed transform length N used by the Spectrogram Builder.
const DFTLength = 4096

// FrameSize is the fixed byte size of one DRX frame.
const FrameSize = 4128

// SamplesPerFrame is the number of complex time samples carried per frame.
const SamplesPerFrame = 4096

// FramesPerGroup is the number of frames (2 tunings x 2 polarizations) that
// make up one time slot.
const FramesPerGroup = 4

// Epsilon floors the denominator of any SNR computation.
const Epsilon = 1e-15

// MaxInMemoryBroadcastBytes is the size threshold at or above which a broadcast
// buffer (injection CSR arrays, combined spectrogram) is backed by a
// memory-mapped temp file instead of an in-process allocation.
const MaxInMemoryBroadcastBytes = 1_000_000_000

// SGKernelCacheSize bounds the Savitzky-Golay kernel cache.
const SGKernelCacheSize = 16

// DefaultParametersFile is the default name of the sectioned key/value
// parameters file written by the builder and read by every later stage.
const DefaultParametersFile = "params.ini"

const (
	SectionRawData    = "Raw Data"
	SectionReducedDFT  = "Reduced DFT Data"
	SectionRFIBandpass = "RFI Bandpass"
	SectionDedisperse  = "De-disperse Search"
	SectionInjections  = "Injections"
	SectionRun         = "Run"
)
