// Package combine wires the cobra "combine" subcommand to
// internal/spectrogram/combine (the Combiner).
package combine

import (
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
	sgcombine "github.com/shirokudogi/Radio-Transient-Search/internal/spectrogram/combine"
	"github.com/shirokudogi/Radio-Transient-Search/internal/xerrors"
)

// Command creates the "combine" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Concatenate one tuning's tile files into a single spectrogram",
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
	cmd.Flags().IntVar(&settings.Combine.Tune, "tune", 0, "Tuning index (0 or 1) to combine")
	cmd.Flags().StringVar(&settings.Combine.Label, "label", "", "Label embedded in tile filenames, if any")
	cmd.Flags().IntVar(&settings.Combine.Decimation, "decimation", viper.GetInt("combine.decimation"), "Row-decimation factor for the coarse companion spectrogram")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(settings *conf.Settings) error {
	const rank = 0
	start := time.Now()

	paramsPath := filepath.Join(settings.WorkingDir, settings.ParametersFile)
	store, err := paramstore.Load(paramsPath)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/combine").Err())
	}

	numLines, err := store.GetInt(conf.SectionReducedDFT, "numspectrogramlines")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/combine").Err())
	}
	dftLength, err := store.GetInt(conf.SectionReducedDFT, "dftlength")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/combine").Err())
	}
	beam, err := store.GetInt(conf.SectionRawData, "beam")
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryParameter).Component("cmd/combine").Err())
	}

	labelPart := ""
	if settings.Combine.Label != "" {
		labelPart = "_" + settings.Combine.Label
	}
	pattern := filepath.Join(settings.WorkingDir, fmt.Sprintf("waterfall%s-S*-B%dT%d.npy", labelPart, beam, settings.Combine.Tune))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/combine").Err())
	}
	if len(matches) == 0 {
		xerrors.Fatal(rank, xerrors.Newf("no tile files matched %s", pattern).Category(xerrors.CategoryIO).Component("cmd/combine").Err())
	}

	sorted, err := sgcombine.SortTiles(matches)
	if err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryFormat).Component("cmd/combine").Err())
	}

	scratchPath := filepath.Join(settings.WorkingDir, fmt.Sprintf(".combine-scratch%s-B%dT%d.raw", labelPart, beam, settings.Combine.Tune))
	combined, err := sgcombine.Combine(sorted, scratchPath, numLines, dftLength)
	if err != nil {
		xerrors.Fatal(rank, err)
	}
	defer func() {
		combined.Close()
		os.Remove(scratchPath)
	}()

	outPath := filepath.Join(settings.WorkingDir, fmt.Sprintf("waterfall%s-combined-B%dT%d.npy", labelPart, beam, settings.Combine.Tune))
	if err := sgcombine.WriteNPY(combined, numLines, dftLength, outPath); err != nil {
		xerrors.Fatal(rank, err)
	}

	decimation := conf.ClampInt(settings.Combine.Decimation, 1, numLines)
	coarse, coarseLines := sgcombine.Decimate(combined.View, numLines, dftLength, decimation)
	coarsePath := filepath.Join(settings.WorkingDir, fmt.Sprintf("waterfall%s-coarse-B%dT%d.npy", labelPart, beam, settings.Combine.Tune))
	if err := npyio.WriteFloat32Matrix(coarsePath, coarseLines, dftLength, coarse); err != nil {
		xerrors.Fatal(rank, xerrors.New(err).Category(xerrors.CategoryIO).Component("cmd/combine").Err())
	}

	pipeline, err := metrics.New(nil)
	if err == nil {
		pipeline.StageDuration.WithLabelValues(string(metrics.StageCombine)).Observe(time.Since(start).Seconds())
		if err := pipeline.WriteTextFile(filepath.Join(settings.WorkingDir, "metrics.prom")); err != nil {
			logging.Warning(rank, fmt.Sprintf("failed to write metrics: %v", err))
		}
	}

	if err := conf.RecordManifest(settings.WorkingDir, settings.Combine.Label, "combine", start); err != nil {
		logging.Warning(rank, fmt.Sprintf("manifest: %v", err))
	}

	logging.Info(rank, fmt.Sprintf("combine complete: tune=%d lines=%d coarseLines=%d", settings.Combine.Tune, numLines, coarseLines))
	return nil
}
