// Package search wires the cobra "search" subcommand to internal/dedisperse
// (the De-dispersion Search stage).
package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/dedisperse"
	"github.com/shirokudogi/Radio-Transient-Search/internal/logging"
	"github.com/shirokudogi/Radio-Transient-Search/internal/metrics"
	"github.com/shirokudogi/Radio-Transient-Search/internal/npyio"
	"github.com/shirokudogi/Radio-Transient-Search/internal/paramstore"
	sgbuild "github.com/shirokudogi/Radio-Transient-Search/internal/spectrogram/build"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// Command creates the "search" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Sweep a dispersion-measure grid over a filtered spectrogram",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
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
	cmd.Flags().IntVar(&settings.Dedisperse.Tune, "tune", 0, "Tuning index (0 or 1) to search")
	cmd.Flags().StringVar(&settings.Build.Label, "label", "", "Label embedded in spectrogram filenames, if any")
	cmd.Flags().Float64Var(&settings.Dedisperse.DMStart, "dm-start", 0, "Lowest dispersion measure trial, pc cm^-3")
	cmd.Flags().Float64Var(&settings.Dedisperse.DMEnd, "dm-end", 0, "Highest dispersion measure trial, pc cm^-3 (exclusive)")
	cmd.Flags().Float64Var(&settings.Dedisperse.DMStep, "dm-step", viper.GetFloat64("dedisperse.dmstep"), "Dispersion measure trial step, pc cm^-3")
	cmd.Flags().Float64Var(&settings.Dedisperse.MaxPulseWidthSeconds, "max-pulse-width", viper.GetFloat64("dedisperse.maxpulsewidth"), "Maximum pulse width to search, in seconds")
	cmd.Flags().Float64Var(&settings.Dedisperse.SNRThreshold, "snr-threshold", viper.GetFloat64("dedisperse.snrthreshold"), "Minimum SNR for an event to be emitted")
	cmd.Flags().IntVar(&settings.Dedisperse.Workers, "workers", viper.GetInt("dedisperse.workers"), "Number of parallel workers (goroutine ranks, also sets the maximum decimation factor searched)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(settings *conf.Settings) error {
	const rank = 0
	start := time.Now()

	if err := conf.ValidateDMRange(settings.Dedisperse.DMStart, settings.Dedisperse.DMEnd); err != nil {
		xerrors.Fatal(rank, err)
	}

	paramsPath := filepath.Join(settings.WorkingDir, settings.ParametersFile)
	store, err := paramstore.Load(paramsPath)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/search").Err())
	}

	dftLength, err := store.GetInt(conf.SectionReducedDFT, "dftlength")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/search").Err())
	}
	sampleRate, err := store.GetFloat(conf.SectionRawData, "samplerate")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/search").Err())
	}
	integrationTime, err := store.GetFloat(conf.SectionReducedDFT, "integrationtime")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/search").Err())
	}
	beam, err := store.GetInt(conf.SectionRawData, "beam")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/search").Err())
	}

	tuningFreqKey := "tuningfreq0"
	lowerKey, upperKey := "lowerfftindex0", "upperfftindex0"
	if settings.Dedisperse.Tune == 1 {
		tuningFreqKey, lowerKey, upperKey = "tuningfreq1", "lowerfftindex1", "upperfftindex1"
	}
	tuningFreqHz, err := store.GetFloat(conf.SectionRawData, tuningFreqKey)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/search").Err())
	}
	kLo, err := store.GetInt(conf.SectionRFIBandpass, lowerKey)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/search").Err())
	}
	kHi, err := store.GetInt(conf.SectionRFIBandpass, upperKey)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/search").Err())
	}

	channelWidth := sampleRate / 1e6 / float64(dftLength)
	fullFreqs := sgbuild.ComputeFreqs(tuningFreqHz/1e6, sampleRate/1e6, dftLength)
	channelFreqs := append([]float64(nil), fullFreqs[kLo:kHi+1]...)

	labelPart := ""
	if settings.Build.Label != "" {
		labelPart = "_" + settings.Build.Label
	}
	inPath := filepath.Join(settings.WorkingDir, fmt.Sprintf("waterfall%s-filtered-B%dT%d.npy", labelPart, beam, settings.Dedisperse.Tune))
	rows, cols, data, err := npyio.ReadFloat32Matrix(inPath)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/search").Err())
	}
	if cols != len(channelFreqs) {
		xerrors.Fatal(rank, xerrors.Newf("search: filtered spectrogram has %d columns, expected %d from the persisted bandpass window", cols, len(channelFreqs)).
			Category(xerrors.CategoryFormat).Component("cmd/search").Err())
	}

	p := dedisperse.Params{
		ChannelFreqs:    channelFreqs,
		ChannelWidth:    channelWidth,
		CenterFreq:      tuningFreqHz / 1e6,
		IntegrationTime: integrationTime,
		DMStart:         settings.Dedisperse.DMStart,
		DMEnd:           settings.Dedisperse.DMEnd,
		DMStep:          settings.Dedisperse.DMStep,
		MaxPulseWidth:   settings.Dedisperse.MaxPulseWidthSeconds,
		SNRThreshold:    settings.Dedisperse.SNRThreshold,
		Workers:         settings.Dedisperse.Workers,
	}

	outPath := filepath.Join(settings.WorkingDir, "events.txt")
	ctx := context.Background()
	numEvents, err := dedisperse.Search(ctx, data, rows, cols, p, outPath)
	if err != nil {
		xerrors.Fatal(rank, err)
	}

	store.Set(conf.SectionDedisperse, "dmstart", settings.Dedisperse.DMStart)
	store.Set(conf.SectionDedisperse, "dmend", settings.Dedisperse.DMEnd)
	store.Set(conf.SectionDedisperse, "dmstep", settings.Dedisperse.DMStep)
	store.Set(conf.SectionDedisperse, "maxpulsewidth", settings.Dedisperse.MaxPulseWidthSeconds)
	if err := store.Save(paramsPath); err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/search").Err())
	}

	pipeline, err := metrics.New(nil)
	if err == nil {
		pipeline.EventsEmitted.WithLabelValues(fmt.Sprintf("%d", settings.Dedisperse.Tune)).Add(float64(numEvents))
		numTrials := 0
		for dm := settings.Dedisperse.DMStart; dm < settings.Dedisperse.DMEnd; dm += settings.Dedisperse.DMStep {
			numTrials++
		}
		pipeline.DMTrials.WithLabelValues(string(metrics.StageDedisperse)).Add(float64(numTrials))
		pipeline.StageDuration.WithLabelValues(string(metrics.StageDedisperse)).Observe(time.Since(start).Seconds())
		if err := pipeline.WriteTextFile(filepath.Join(settings.WorkingDir, "metrics.prom")); err != nil {
			logging.Warning(rank, fmt.Sprintf("failed to write metrics: %v", err))
		}
	}

	if err := conf.RecordManifest(settings.WorkingDir, settings.Build.Label, "search", start); err != nil {
		logging.Warning(rank, fmt.Sprintf("manifest: %v", err))
	}

	logging.Info(rank, fmt.Sprintf("search complete: tune=%d events=%d", settings.Dedisperse.Tune, numEvents))
	return nil
}
