package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/tracer/preview"
	"github.com/pthm-cable/tracer/telemetry"
	"github.com/pthm-cable/tracer/trace"
	"github.com/pthm-cable/tracer/watch"
)

var (
	traceCSV         string
	tracePNG         string
	traceSnapshotDir string
	traceVerbose     bool
)

var traceCmd = &cobra.Command{
	Use:   "trace [image]",
	Short: "Run the extraction pipeline on an image",
	Long: `Decodes the image, extracts its outline or centerline, filters and
orders the points, and prints the resulting path statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().StringVar(&traceCSV, "csv", "", "write path points as CSV")
	traceCmd.Flags().StringVar(&tracePNG, "png", "", "write a path preview PNG")
	traceCmd.Flags().StringVar(&traceSnapshotDir, "snapshot-dir", "", "save a replayable path snapshot into this directory")
	traceCmd.Flags().BoolVarP(&traceVerbose, "verbose", "v", false, "log pipeline stages")
	rootCmd.AddCommand(traceCmd)
}

// pointRow is one path vertex in the CSV output.
type pointRow struct {
	Index int     `csv:"index"`
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
}

func runTrace(cmd *cobra.Command, args []string) error {
	file := args[0]
	mime, ok := watch.MimeFor(file)
	if !ok {
		return fmt.Errorf("unsupported image type: %s", file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := trace.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	var logger *slog.Logger
	if traceVerbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	path, st, err := trace.NewPipeline(opts, logger).Run(context.Background(), data, mime)
	if errors.Is(err, trace.ErrNoPoints) {
		return fmt.Errorf("%s: nothing to trace (method %s, %d candidates)", file, st.Method, st.Candidates)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	printStats(cmd.OutOrStdout(), file, st)

	if traceCSV != "" {
		if err := writePointsCSV(traceCSV, path); err != nil {
			return err
		}
	}
	if tracePNG != "" {
		if err := writePathPNG(tracePNG, path, preview.OptionsFromConfig(cfg, 512, 512)); err != nil {
			return err
		}
	}
	if traceSnapshotDir != "" {
		snap := telemetry.NewPathSnapshot(path, st)
		snap.Source = filepath.Base(file)
		saved, err := telemetry.SaveSnapshot(snap, traceSnapshotDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot: %s\n", saved)
	}
	return nil
}

func printStats(w io.Writer, file string, st trace.Stats) {
	fmt.Fprintf(w, "%s\n", file)
	fmt.Fprintf(w, "  method:     %s\n", st.Method)
	fmt.Fprintf(w, "  candidates: %d\n", st.Candidates)
	fmt.Fprintf(w, "  filtered:   %d\n", st.Filtered)
	fmt.Fprintf(w, "  points:     %d\n", st.Final)
	fmt.Fprintf(w, "  length:     %.2f\n", st.Length)
	fmt.Fprintf(w, "  elapsed:    %s\n", st.Elapsed)
	if st.Warning != "" {
		fmt.Fprintf(w, "  warning:    %s\n", st.Warning)
	}
}

func writePointsCSV(name string, p *trace.Path) error {
	rows := make([]*pointRow, 0, p.Len())
	for i, v := range p.Points() {
		rows = append(rows, &pointRow{Index: i, X: v.X, Y: v.Y})
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(rows, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}

func writePathPNG(name string, p *trace.Path, opts preview.Options) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := preview.WritePathPNG(f, p, opts); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}
