package game

import (
	"context"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/telemetry"
	"github.com/pthm-cable/tracer/trace"
)

// maxFrameDT caps a single Update so a stalled frame does not explode the physics.
const maxFrameDT = 0.1

// Extractor turns image bytes into a trace path. *trace.Pipeline implements it.
type Extractor interface {
	Run(ctx context.Context, data []byte, mime string) (*trace.Path, trace.Stats, error)
}

// Options configures a Game.
type Options struct {
	Config *config.Config // nil = embedded defaults
	Seed   int64          // 0 = config seed, then time-based

	// Extractor overrides the pipeline built from Config.Tracing.
	Extractor Extractor

	LogStats       bool
	StatsWindowSec float64 // 0 = Config.Telemetry.StatsWindow
	OutputDir      string  // CSV logs, config snapshot and adopted paths
	StepsPerUpdate int     // headless ticks per UpdateHeadless call

	// StatsCallback, if set, receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}
