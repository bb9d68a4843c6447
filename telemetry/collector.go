package telemetry

import (
	"math"
	"time"

	"github.com/pthm-cable/tracer/systems"
)

// Outcome is how a trace request was resolved.
type Outcome uint8

const (
	OutcomeAdopted Outcome = iota
	OutcomeSuperseded
	OutcomeFailed
)

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowTicks int32
	dt          float64

	windowStart int32

	emitted, burst, dropped, retired int

	requested, adopted, superseded, failed int
	latencies                              []float64
}

// NewCollector creates a collector with windows of windowSec simulated seconds
// at dt seconds per tick.
func NewCollector(windowSec, dt float64) *Collector {
	ticks := int32(math.Round(windowSec / dt))
	if ticks < 1 {
		ticks = 1
	}
	return &Collector{windowTicks: ticks, dt: dt}
}

// RecordStep adds one tick's particle counts.
func (c *Collector) RecordStep(st systems.StepStats) {
	c.emitted += st.Emitted
	c.burst += st.Burst
	c.dropped += st.Dropped
	c.retired += st.Retired
}

// RecordRequests counts n issued trace requests.
func (c *Collector) RecordRequests(n int) {
	c.requested += n
}

// RecordOutcome counts a resolved request. elapsed is the extraction time;
// zero means the extraction did not run to completion.
func (c *Collector) RecordOutcome(o Outcome, elapsed time.Duration) {
	switch o {
	case OutcomeAdopted:
		c.adopted++
	case OutcomeSuperseded:
		c.superseded++
	case OutcomeFailed:
		c.failed++
	}
	if elapsed > 0 {
		c.latencies = append(c.latencies, float64(elapsed)/float64(time.Millisecond))
	}
}

// ShouldFlush reports whether the window ending at tick is complete.
func (c *Collector) ShouldFlush(tick int32) bool {
	return tick-c.windowStart >= c.windowTicks
}

// Sample is the field state the caller reads at window end.
type Sample struct {
	State      string
	TracePhase string
	Active     int
	Allocated  int
	Capacity   int
	PathPoints int
	Emission   float64
}

// Flush produces the WindowStats for the window ending at tick and resets
// the counters.
func (c *Collector) Flush(tick int32, s Sample) WindowStats {
	mean, p50, p90 := ComputeLatencyStats(c.latencies)
	stats := WindowStats{
		WindowStartTick: c.windowStart,
		WindowEndTick:   tick,
		SimTimeSec:      float64(tick) * c.dt,

		State:      s.State,
		TracePhase: s.TracePhase,
		Active:     s.Active,
		Allocated:  s.Allocated,
		Capacity:   s.Capacity,
		PathPoints: s.PathPoints,
		Emission:   s.Emission,

		Emitted: c.emitted,
		Burst:   c.burst,
		Dropped: c.dropped,
		Retired: c.retired,

		TracesRequested:  c.requested,
		TracesAdopted:    c.adopted,
		TracesSuperseded: c.superseded,
		TracesFailed:     c.failed,

		ExtractMeanMS: mean,
		ExtractP50MS:  p50,
		ExtractP90MS:  p90,
	}

	c.windowStart = tick
	c.emitted, c.burst, c.dropped, c.retired = 0, 0, 0, 0
	c.requested, c.adopted, c.superseded, c.failed = 0, 0, 0, 0
	c.latencies = c.latencies[:0]
	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowTicks
}
