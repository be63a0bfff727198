package conf

import "github.com/spf13/viper"

// Settings holds the run-wide configuration shared by every drxsearch
// subcommand: the working directory, the parameters file, and the
// stage-specific values each stage binds onto its own flag set.
type Settings struct {
	WorkingDir     string
	ParametersFile string
	MemoryLimitMB  int
	TempDir        string
	LogDir         string
	Debug          bool

	Build      BuildSettings
	Combine    CombineSettings
	RFIFilter  FilterSettings
	Dedisperse DedisperseSettings
	Inject     InjectSettings
}

// CombineSettings configures the Combiner stage.
type CombineSettings struct {
	Tune       int
	Label      string
	Decimation int
}

// BuildSettings configures the Spectrogram Builder stage.
type BuildSettings struct {
	DRXPath         string
	Beam            int
	IntegrationTime float64
	Workers         int
	UtilizationFrac float64
	EnableHann      bool
	Label           string
}

// FilterSettings configures the RFI/Bandpass Filter stage.
type FilterSettings struct {
	Tune           int
	LowerFFTIndex0 int
	UpperFFTIndex0 int
	LowerFFTIndex1 int
	UpperFFTIndex1 int
	BandpassWindow int
	BaselineWindow int
	RFIStdCutoff   float64
	Workers        int
}

// DedisperseSettings configures the De-dispersion Search stage.
type DedisperseSettings struct {
	Tune                 int
	DMStart              float64
	DMEnd                float64
	DMStep               float64
	MaxPulseWidthSeconds float64
	SNRThreshold         float64
	Workers              int
}

// InjectSettings configures the optional Injection Generator.
type InjectSettings struct {
	Enabled          bool
	Count            int
	Power            float64
	SpectralIndex    float64
	TimeStart        float64
	TimeEnd          float64
	DMStart          float64
	DMEnd            float64
	RegularTimes     bool
	RegularDMs       bool
	Seed             int64
}

// Defaults returns a Settings populated with the defaults a fresh viper
// instance would report before any flags are bound, seeded via
// viper.SetDefault ahead of the cobra flag wiring.
func Defaults() *Settings {
	v := viper.GetViper()
	setDefaults(v)
	return &Settings{
		WorkingDir:     v.GetString("workdir"),
		ParametersFile: v.GetString("paramsfile"),
		MemoryLimitMB:  v.GetInt("memorylimit"),
		TempDir:        v.GetString("tempdir"),
		LogDir:         v.GetString("logdir"),
		Debug:          v.GetBool("debug"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workdir", ".")
	v.SetDefault("paramsfile", DefaultParametersFile)
	v.SetDefault("memorylimit", 4000)
	v.SetDefault("tempdir", "/tmp")
	v.SetDefault("logdir", "logs")
	v.SetDefault("debug", false)

	v.SetDefault("build.workers", 1)
	v.SetDefault("build.integrationtime", 1.0)
	v.SetDefault("build.utilizationfrac", 1.0)
	v.SetDefault("build.enablehann", true)

	v.SetDefault("filter.bandpasswindow", 15)
	v.SetDefault("filter.baselinewindow", 15)
	v.SetDefault("filter.rfistdcutoff", 2.0)
	v.SetDefault("filter.workers", 1)

	v.SetDefault("combine.decimation", 10000)

	v.SetDefault("dedisperse.dmstep", 1.0)
	v.SetDefault("dedisperse.maxpulsewidth", 1.0)
	v.SetDefault("dedisperse.snrthreshold", 5.0)
	v.SetDefault("dedisperse.workers", 1)

	v.SetDefault("inject.regulartimes", false)
	v.SetDefault("inject.regulardms", false)
	v.SetDefault("inject.spectralindex", 0.0)
}
