// Command extract runs the trace pipeline on image files outside the
// simulation.
//
// Usage:
//
//	go run ./cmd/extract trace logo.svg --csv logo.csv --png logo.png
//	go run ./cmd/extract render path_0_1.json --out path.png
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/tracer/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "extract",
	Short:         "Extract and inspect trace paths from images",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (empty = defaults)")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
