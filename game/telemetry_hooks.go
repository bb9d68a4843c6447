package game

import (
	"github.com/pthm-cable/tracer/telemetry"
)

// flushTelemetry closes the stats window when it is complete.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	pool := g.engine.Pool()
	stats := g.collector.Flush(g.tick, telemetry.Sample{
		State:      g.interp.State().String(),
		TracePhase: g.traces.Phase().String(),
		Active:     pool.Active(),
		Allocated:  pool.Count(),
		Capacity:   pool.Capacity(),
		PathPoints: g.traces.Path().Len(),
		Emission:   g.typing.EmissionFactor(g.interp.State()),
	})
	perfStats := g.perf.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		Logger().Info("stats", "window", stats)
		Logger().Info("perf", "window", perfStats)
	}

	if err := g.output.WriteTelemetry(stats); err != nil {
		Logger().Error("failed to write telemetry", "error", err)
	}
	if err := g.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		Logger().Error("failed to write perf", "error", err)
	}
}

// recordTrace writes a resolved request, and the path itself when adopted.
func (g *Game) recordTrace(res TraceResult) {
	rec := telemetry.TraceRecord{
		Tick:       g.tick,
		RequestID:  res.RequestID,
		Generation: res.Generation,
		Status:     res.Status.String(),
		Method:     string(res.Stats.Method),
		Candidates: res.Stats.Candidates,
		Filtered:   res.Stats.Filtered,
		Final:      res.Stats.Final,
		Length:     res.Stats.Length,
		ElapsedMS:  float64(res.Stats.Elapsed.Microseconds()) / 1000,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := g.output.WriteTrace(rec); err != nil {
		Logger().Error("failed to write trace record", "error", err)
	}

	if res.Path == nil || g.output == nil {
		return
	}
	snap := telemetry.NewPathSnapshot(res.Path, res.Stats)
	snap.Tick = g.tick
	snap.Generation = res.Generation
	snap.RequestID = res.RequestID
	if file, err := g.output.WritePath(snap); err != nil {
		Logger().Error("failed to save path", "error", err)
	} else {
		Logger().Debug("path saved", "file", file)
	}
}
