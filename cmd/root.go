// root.go viper root command code
package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shirokudogi/Radio-Transient-Search/cmd/build"
	"github.com/shirokudogi/Radio-Transient-Search/cmd/combine"
	"github.com/shirokudogi/Radio-Transient-Search/cmd/filter"
	"github.com/shirokudogi/Radio-Transient-Search/cmd/search"
	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
	"github.com/shirokudogi/Radio-Transient-Search/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drxsearch",
		Short: "Dispersed single-pulse transient search over DRX voltage recordings",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	buildCmd := build.Command(settings)
	combineCmd := combine.Command(settings)
	filterCmd := filter.Command(settings)
	searchCmd := search.Command(settings)

	rootCmd.AddCommand(buildCmd, combineCmd, filterCmd, searchCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Init(settings.LogDir)
		return nil
	}

	return rootCmd
}

// setupFlags defines flags global to every drxsearch subcommand: working
// directory, parameters file, memory limit, temp directory, and debug
// verbosity.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	// Accept underscore spellings of multi-word flags.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVarP(&settings.WorkingDir, "workdir", "w", viper.GetString("workdir"), "Working directory holding tile/spectrogram/parameter files")
	rootCmd.PersistentFlags().StringVarP(&settings.ParametersFile, "params", "p", viper.GetString("paramsfile"), "Parameters file name, relative to workdir")
	rootCmd.PersistentFlags().IntVarP(&settings.MemoryLimitMB, "memory-limit", "m", viper.GetInt("memorylimit"), "Aggregate memory budget across all workers, in MB")
	rootCmd.PersistentFlags().StringVar(&settings.TempDir, "temp-dir", viper.GetString("tempdir"), "Directory for per-rank memory-mapped broadcast temp files")
	rootCmd.PersistentFlags().StringVar(&settings.LogDir, "log-dir", viper.GetString("logdir"), "Directory for rotated log files")
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug-level logging")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
