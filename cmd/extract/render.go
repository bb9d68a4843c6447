package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/tracer/preview"
	"github.com/pthm-cable/tracer/telemetry"
)

var (
	renderOut  string
	renderSize int
)

var renderCmd = &cobra.Command{
	Use:   "render [snapshot.json]",
	Short: "Render a saved path snapshot to PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "path.png", "output PNG file")
	renderCmd.Flags().IntVar(&renderSize, "size", 512, "image width and height in pixels")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	if renderSize <= 0 {
		return fmt.Errorf("size must be positive, got %d", renderSize)
	}
	snap, err := telemetry.LoadSnapshot(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p := snap.Path()
	if err := writePathPNG(renderOut, p, preview.OptionsFromConfig(cfg, renderSize, renderSize)); err != nil {
		return err
	}
	cmd.Printf("%s: %d points -> %s\n", args[0], p.Len(), renderOut)
	return nil
}
