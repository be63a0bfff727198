// Package build wires the cobra "build" subcommand to
// internal/spectrogram/build (the Spectrogram Builder) and,
// when injection flags are supplied, to internal/inject (the Injection
// Generator).
package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/inject"
	"github.com/shirokudogi/Radio-Transient-Search/internal/logging"
	"github.com/shirokudogi/Radio-Transient-Search/internal/metrics"
	"github.com/shirokudogi/Radio-Transient-Search/internal/paramstore"
	sgbuild "github.com/shirokudogi/Radio-Transient-Search/internal/spectrogram/build"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// Command creates the "build" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Stream a DRX file into per-tuning spectrogram tiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings)
		},
	}
	cmd.SilenceUsage = true

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Build.DRXPath, "drx", "", "Path to the DRX voltage recording (required)")
	cmd.Flags().IntVar(&settings.Build.Beam, "beam", 0, "Beam id to record in the parameters file")
	cmd.Flags().Float64Var(&settings.Build.IntegrationTime, "integration-time", viper.GetFloat64("build.integrationtime"), "Integration time Ti, in seconds, per output line")
	cmd.Flags().IntVar(&settings.Build.Workers, "workers", viper.GetInt("build.workers"), "Number of parallel workers (goroutine ranks)")
	cmd.Flags().Float64Var(&settings.Build.UtilizationFrac, "util-frac", viper.GetFloat64("build.utilizationfrac"), "Data-utilization fraction u in (-1,0) U (0,1]")
	cmd.Flags().BoolVar(&settings.Build.EnableHann, "hann", viper.GetBool("build.enablehann"), "Apply a Hann window before each frame's DFT")
	cmd.Flags().StringVar(&settings.Build.Label, "label", "", "Optional label embedded in tile filenames")

	cmd.Flags().BoolVar(&settings.Inject.Enabled, "inject", false, "Sum a synthetic injection spectrogram into the raw power before normalization")
	cmd.Flags().IntVar(&settings.Inject.Count, "inject-count", 0, "Number of injected pulses")
	cmd.Flags().Float64Var(&settings.Inject.Power, "inject-power", 0, "Total injected power per pulse")
	cmd.Flags().Float64Var(&settings.Inject.SpectralIndex, "inject-spectral-index", viper.GetFloat64("inject.spectralindex"), "Injection spectral index alpha")
	cmd.Flags().Float64Var(&settings.Inject.TimeStart, "inject-time-start", 0, "Earliest injection time, in seconds")
	cmd.Flags().Float64Var(&settings.Inject.TimeEnd, "inject-time-end", 0, "Latest injection time, in seconds")
	cmd.Flags().Float64Var(&settings.Inject.DMStart, "inject-dm-start", 0, "Lowest injected DM, pc cm^-3")
	cmd.Flags().Float64Var(&settings.Inject.DMEnd, "inject-dm-end", 0, "Highest injected DM, pc cm^-3")
	cmd.Flags().BoolVar(&settings.Inject.RegularTimes, "inject-regular-times", viper.GetBool("inject.regulartimes"), "Space injection times evenly instead of randomly")
	cmd.Flags().BoolVar(&settings.Inject.RegularDMs, "inject-regular-dms", viper.GetBool("inject.regulardms"), "Space injection DMs evenly instead of randomly")
	cmd.Flags().Int64Var(&settings.Inject.Seed, "inject-seed", 1, "Random seed for non-regular injection placement")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	const rank = 0
	start := time.Now()

	if settings.Build.DRXPath == "" {
		xerrors.Fatal(rank, xerrors.Newf("--drx is required").Category(xerrors.CategoryParameter).Component("cmd/build").Err())
	}
	settings.Build.UtilizationFrac = conf.ClampUtilizationFrac(rank, settings.Build.UtilizationFrac)

	fileInfo, err := os.Stat(settings.Build.DRXPath)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/build").Err())
	}
	fileSize := fileInfo.Size()

	conf.WarnIfMemoryLimitExceedsHost(rank, settings.MemoryLimitMB)

	params, err := sgbuild.Derive(
		settings.Build.DRXPath,
		settings.Build.IntegrationTime,
		settings.MemoryLimitMB,
		settings.Build.UtilizationFrac,
		settings.Build.Workers,
		settings.Build.EnableHann,
		settings.Build.Label,
	)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/build").Err())
	}
	params.Beam = settings.Build.Beam

	var csr0, csr1 *inject.CSR
	if settings.Inject.Enabled {
		csr0, csr1, err = buildInjections(cmd, settings, params)
		if err != nil {
			xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/build").Err())
		}
	}

	if err := os.MkdirAll(settings.WorkingDir, 0o755); err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/build").Err())
	}

	ctx := context.Background()
	if err := sgbuild.Run(ctx, params, settings.WorkingDir, settings.TempDir, csr0, csr1, fileSize); err != nil {
		xerrors.Fatal(rank, err)
	}

	pipeline, err := metrics.New(nil)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryWorker).Component("cmd/build").Err())
	}
	pipeline.RowsBuilt.WithLabelValues("0").Add(float64(params.NumLines))
	pipeline.RowsBuilt.WithLabelValues("1").Add(float64(params.NumLines))
	pipeline.StageDuration.WithLabelValues(string(metrics.StageBuild)).Observe(time.Since(start).Seconds())
	if csr0 != nil {
		pipeline.InjectionNonZero.Set(float64(len(csr0.Data)))
	}
	if err := pipeline.WriteTextFile(settings.WorkingDir + "/metrics.prom"); err != nil {
		logging.Warning(rank, fmt.Sprintf("failed to write metrics: %v", err))
	}

	paramsPath := settings.WorkingDir + "/" + settings.ParametersFile
	store, err := paramstore.Load(paramsPath)
	if err != nil {
		store = paramstore.New()
	}
	params.WriteRunParameters(store, settings.Build.Label, fileSize)
	if settings.Inject.Enabled && csr0 != nil {
		store.Set(conf.SectionInjections, "numinjects", settings.Inject.Count)
		store.Set(conf.SectionInjections, "injectpower", settings.Inject.Power)
		store.Set(conf.SectionInjections, "injectspectralindex", settings.Inject.SpectralIndex)
		store.Set(conf.SectionInjections, "injecttemporalprofile", boolToProfile(settings.Inject.RegularTimes))
		store.Set(conf.SectionInjections, "injectdmprofile", boolToProfile(settings.Inject.RegularDMs))
	}
	if err := store.Save(paramsPath); err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/build").Err())
	}

	if err := conf.RecordManifest(settings.WorkingDir, settings.Build.Label, "build", start); err != nil {
		logging.Warning(rank, fmt.Sprintf("manifest: %v", err))
	}

	logging.Info(rank, fmt.Sprintf("build complete: lines=%d linesPerTile=%d workers=%d", params.NumLines, params.LinesPerTile, params.Workers))
	return nil
}

func boolToProfile(regular bool) string {
	if regular {
		return "regular"
	}
	return "random"
}

func buildInjections(cmd *cobra.Command, settings *conf.Settings, params *sgbuild.Params) (csr0, csr1 *inject.CSR, err error) {
	if settings.Inject.Count <= 0 {
		return nil, nil, nil
	}

	freqs0 := sgbuild.ComputeFreqs(params.TuningFreq0/1e6, params.SampleRate/1e6, params.DFTLength)
	freqs1 := sgbuild.ComputeFreqs(params.TuningFreq1/1e6, params.SampleRate/1e6, params.DFTLength)
	totalPower := settings.Inject.Power * 4.0 * float64(params.DFTLength) * float64(params.NumDFTsPerLine)

	ip := inject.Params{
		ChannelWidth:  params.ChannelWidth,
		NumIntervals:  params.NumLines,
		IntervalTime:  params.IntegrationTime,
		TotalPower:    totalPower,
		SpectralIndex: settings.Inject.SpectralIndex,
		NumInjects:    settings.Inject.Count,
		RegularTimes:  settings.Inject.RegularTimes,
		RegularDMs:    settings.Inject.RegularDMs,
		Seed:          settings.Inject.Seed,
	}
	if cmd.Flags().Changed("inject-time-start") {
		v := settings.Inject.TimeStart
		ip.TimeStart = &v
	}
	if cmd.Flags().Changed("inject-time-end") {
		v := settings.Inject.TimeEnd
		ip.TimeEnd = &v
	}
	if cmd.Flags().Changed("inject-dm-start") {
		v := settings.Inject.DMStart
		ip.DMStart = &v
	}
	if cmd.Flags().Changed("inject-dm-end") {
		v := settings.Inject.DMEnd
		ip.DMEnd = &v
	}

	ip0 := ip
	ip0.Freqs = freqs0
	csr0, err = inject.Create(ip0)
	if err != nil {
		return nil, nil, err
	}

	ip1 := ip
	ip1.Freqs = freqs1
	csr1, err = inject.Create(ip1)
	if err != nil {
		return nil, nil, err
	}

	return csr0, csr1, nil
}
