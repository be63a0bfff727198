// Command drxsearch is the CLI driver for the dispersed single-pulse
// transient search pipeline: build, combine, filter, and search
// subcommands, one per pipeline stage.
package main

import (
	"fmt"
	"os"

	"github.com/shirokudogi/Radio-Transient-Search/cmd"
	"github.com/shirokudogi/Radio-Transient-Search/internal/conf"
)

func main() {
	settings := conf.Defaults()
	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
