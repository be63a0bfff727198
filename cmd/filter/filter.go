// Package filter wires the cobra "filter" subcommand to internal/rfi (the
// RFI/Bandpass Filter).
package filter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/logging"
	"github.com/shirokudogi/Radio-Transient-Search/internal/metrics"
	"github.com/shirokudogi/Radio-Transient-Search/internal/npyio"
	"github.com/shirokudogi/Radio-Transient-Search/internal/paramstore"
	"github.com/shirokudogi/Radio-Transient-Search/internal/rfi"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// Command creates the "filter" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Savitzky-Golay bandpass/baseline filtering and RFI excision",
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
	cmd.Flags().IntVar(&settings.RFIFilter.Tune, "tune", 0, "Tuning index (0 or 1) to filter")
	cmd.Flags().StringVar(&settings.Build.Label, "label", "", "Label embedded in spectrogram filenames, if any")
	cmd.Flags().IntVar(&settings.RFIFilter.LowerFFTIndex0, "lower-fft-index0", 0, "Lower bandpass channel index, tuning 0")
	cmd.Flags().IntVar(&settings.RFIFilter.UpperFFTIndex0, "upper-fft-index0", conf.DFTLength-1, "Upper bandpass channel index, tuning 0")
	cmd.Flags().IntVar(&settings.RFIFilter.LowerFFTIndex1, "lower-fft-index1", 0, "Lower bandpass channel index, tuning 1")
	cmd.Flags().IntVar(&settings.RFIFilter.UpperFFTIndex1, "upper-fft-index1", conf.DFTLength-1, "Upper bandpass channel index, tuning 1")
	cmd.Flags().IntVar(&settings.RFIFilter.BandpassWindow, "bandpass-window", viper.GetInt("filter.bandpasswindow"), "Savitzky-Golay window size along channels")
	cmd.Flags().IntVar(&settings.RFIFilter.BaselineWindow, "baseline-window", viper.GetInt("filter.baselinewindow"), "Savitzky-Golay window size along time")
	cmd.Flags().Float64Var(&settings.RFIFilter.RFIStdCutoff, "rfi-std-cutoff", viper.GetFloat64("filter.rfistdcutoff"), "RFI standard-deviation cutoff recorded in the parameters file (the mask itself derives its threshold from the data)")
	cmd.Flags().IntVar(&settings.RFIFilter.Workers, "workers", viper.GetInt("filter.workers"), "Number of parallel workers (goroutine ranks)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(settings *conf.Settings) error {
	const rank = 0
	start := time.Now()

	if err := conf.ValidateFFTWindow(settings.RFIFilter.LowerFFTIndex0, settings.RFIFilter.UpperFFTIndex0); err != nil {
		xerrors.Fatal(rank, err)
	}
	if err := conf.ValidateFFTWindow(settings.RFIFilter.LowerFFTIndex1, settings.RFIFilter.UpperFFTIndex1); err != nil {
		xerrors.Fatal(rank, err)
	}
	settings.RFIFilter.BandpassWindow = conf.ClampOdd(rank, "bandpass", settings.RFIFilter.BandpassWindow)
	settings.RFIFilter.BaselineWindow = conf.ClampOdd(rank, "baseline", settings.RFIFilter.BaselineWindow)

	paramsPath := filepath.Join(settings.WorkingDir, settings.ParametersFile)
	store, err := paramstore.Load(paramsPath)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/filter").Err())
	}
	beam, err := store.GetInt(conf.SectionRawData, "beam")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/filter").Err())
	}

	kLo, kHi := settings.RFIFilter.LowerFFTIndex0, settings.RFIFilter.UpperFFTIndex0
	if settings.RFIFilter.Tune == 1 {
		kLo, kHi = settings.RFIFilter.LowerFFTIndex1, settings.RFIFilter.UpperFFTIndex1
	}

	labelPart := ""
	if settings.Build.Label != "" {
		labelPart = "_" + settings.Build.Label
	}
	inPath := filepath.Join(settings.WorkingDir, fmt.Sprintf("waterfall%s-combined-B%dT%d.npy", labelPart, beam, settings.RFIFilter.Tune))
	rows, cols, data, err := npyio.ReadFloat32Matrix(inPath)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/filter").Err())
	}

	ctx := context.Background()
	result, err := rfi.Filter(ctx, data, rows, cols, kLo, kHi, settings.RFIFilter.BandpassWindow, settings.RFIFilter.BaselineWindow, settings.RFIFilter.Workers)
	if err != nil {
		xerrors.Fatal(rank, err)
	}

	outPath := filepath.Join(settings.WorkingDir, fmt.Sprintf("waterfall%s-filtered-B%dT%d.npy", labelPart, beam, settings.RFIFilter.Tune))
	if err := npyio.WriteFloat32Matrix(outPath, rows, result.Cols, result.Data); err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/filter").Err())
	}

	store.Set(conf.SectionRFIBandpass, "lowerfftindex0", settings.RFIFilter.LowerFFTIndex0)
	store.Set(conf.SectionRFIBandpass, "upperfftindex0", settings.RFIFilter.UpperFFTIndex0)
	store.Set(conf.SectionRFIBandpass, "lowerfftindex1", settings.RFIFilter.LowerFFTIndex1)
	store.Set(conf.SectionRFIBandpass, "upperfftindex1", settings.RFIFilter.UpperFFTIndex1)
	store.Set(conf.SectionRFIBandpass, "bandpasswindow", settings.RFIFilter.BandpassWindow)
	store.Set(conf.SectionRFIBandpass, "baselinewindow", settings.RFIFilter.BaselineWindow)
	store.Set(conf.SectionRFIBandpass, "rfistdcutoff", settings.RFIFilter.RFIStdCutoff)
	if err := store.Save(paramsPath); err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/filter").Err())
	}

	pipeline, err := metrics.New(nil)
	if err == nil {
		pipeline.RowsFlagged.WithLabelValues(string(metrics.StageFilter)).Set(float64(len(result.FlaggedRows)))
		pipeline.ColumnsFlagged.WithLabelValues(string(metrics.StageFilter)).Set(float64(len(result.FlaggedCols)))
		pipeline.StageDuration.WithLabelValues(string(metrics.StageFilter)).Observe(time.Since(start).Seconds())
		if err := pipeline.WriteTextFile(filepath.Join(settings.WorkingDir, "metrics.prom")); err != nil {
			logging.Warning(rank, fmt.Sprintf("failed to write metrics: %v", err))
		}
	}

	if err := conf.RecordManifest(settings.WorkingDir, settings.Build.Label, "filter", start); err != nil {
		logging.Warning(rank, fmt.Sprintf("manifest: %v", err))
	}

	logging.Info(rank, fmt.Sprintf("filter complete: tune=%d flaggedRows=%d flaggedCols=%d", settings.RFIFilter.Tune, len(result.FlaggedRows), len(result.FlaggedCols)))
	return nil
}
