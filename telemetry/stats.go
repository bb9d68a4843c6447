package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for one time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Field state at window end
	State      string `csv:"state"`
	TracePhase string `csv:"trace_phase"`
	Active     int    `csv:"active"`
	Allocated  int    `csv:"allocated"`
	Capacity   int    `csv:"capacity"`
	PathPoints int    `csv:"path_points"`

	// Particle events during the window
	Emitted int `csv:"emitted"`
	Burst   int `csv:"burst"`
	Dropped int `csv:"dropped"`
	Retired int `csv:"retired"`

	// Trace requests resolved during the window
	TracesRequested  int `csv:"traces_requested"`
	TracesAdopted    int `csv:"traces_adopted"`
	TracesSuperseded int `csv:"traces_superseded"`
	TracesFailed     int `csv:"traces_failed"`

	// Extraction latency of completed requests, milliseconds
	ExtractMeanMS float64 `csv:"extract_mean_ms"`
	ExtractP50MS  float64 `csv:"extract_p50_ms"`
	ExtractP90MS  float64 `csv:"extract_p90_ms"`

	// Emission multiplier (typing boost) at window end
	Emission float64 `csv:"emission"`
}

// Percentile returns the p-th percentile of sorted, interpolating linearly
// between ranks. p is clamped to [0, 1]; an empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	idx := p * float64(n-1)
	lo := int(idx)
	if lo+1 >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// ComputeLatencyStats returns the mean, median and 90th percentile of values.
func ComputeLatencyStats(values []float64) (mean, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return stat.Mean(sorted, nil), Percentile(sorted, 0.5), Percentile(sorted, 0.9)
}

// LogValue implements slog.LogValuer.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.String("state", s.State),
		slog.String("trace_phase", s.TracePhase),
		slog.Int("active", s.Active),
		slog.Int("allocated", s.Allocated),
		slog.Int("capacity", s.Capacity),
		slog.Int("path_points", s.PathPoints),
		slog.Int("emitted", s.Emitted),
		slog.Int("burst", s.Burst),
		slog.Int("dropped", s.Dropped),
		slog.Int("retired", s.Retired),
		slog.Int("traces_requested", s.TracesRequested),
		slog.Int("traces_adopted", s.TracesAdopted),
		slog.Int("traces_superseded", s.TracesSuperseded),
		slog.Int("traces_failed", s.TracesFailed),
		slog.Float64("extract_mean_ms", s.ExtractMeanMS),
		slog.Float64("extract_p50_ms", s.ExtractP50MS),
		slog.Float64("extract_p90_ms", s.ExtractP90MS),
		slog.Float64("emission", s.Emission),
	)
}
