package systems

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/trace"
)

// TracePhase is the trace lifecycle state.
type TracePhase uint8

const (
	PhaseIdle TracePhase = iota
	PhaseTracing
	PhaseTransitioning
)

func (p TracePhase) String() string {
	switch p {
	case PhaseTracing:
		return "tracing"
	case PhaseTransitioning:
		return "transitioning"
	}
	return "idle"
}

// TransitionEvent tells the engine what a TraceManager call changed.
type TransitionEvent uint8

const (
	EventNone     TransitionEvent = iota
	EventStarted                  // first path adopted; assign every particle
	EventQueued                   // new path waits for the transition window
	EventSwapped                  // pending path became current; reassign every particle
	EventTimedOut                 // display timeout; clear targets
	EventStopped                  // explicit stop; clear targets
)

// TraceManager owns the active and pending trace paths. It never hard-swaps a
// path that particles are following: a path arriving mid-trace waits out a
// transition window first.
type TraceManager struct {
	window  float64 // seconds of burst emission before a swap
	timeout float64 // seconds after the last adoption before reverting

	phase         TracePhase
	path          *trace.Path
	pending       *trace.Path
	transitionEnd float64
	lastAdopt     float64
}

// NewTraceManager creates an idle manager.
func NewTraceManager(window, timeout float64) *TraceManager {
	return &TraceManager{window: window, timeout: timeout}
}

// Adopt offers a freshly extracted path at time now. Empty paths are ignored.
// A path arriving during a transition replaces the pending one without
// restarting the window.
func (m *TraceManager) Adopt(p *trace.Path, now float64) TransitionEvent {
	if p.Len() == 0 {
		return EventNone
	}
	m.lastAdopt = now
	switch m.phase {
	case PhaseIdle:
		m.path = p
		m.phase = PhaseTracing
		return EventStarted
	case PhaseTracing:
		m.pending = p
		m.phase = PhaseTransitioning
		m.transitionEnd = now + m.window
		return EventQueued
	default:
		m.pending = p
		return EventQueued
	}
}

// Step advances timers to now.
func (m *TraceManager) Step(now float64) TransitionEvent {
	switch m.phase {
	case PhaseTransitioning:
		if now >= m.transitionEnd {
			m.path = m.pending
			m.pending = nil
			m.phase = PhaseTracing
			return EventSwapped
		}
	case PhaseTracing:
		if m.timeout > 0 && now-m.lastAdopt >= m.timeout {
			m.reset()
			return EventTimedOut
		}
	}
	return EventNone
}

// Stop returns to idle immediately, dropping both paths.
func (m *TraceManager) Stop() TransitionEvent {
	if m.phase == PhaseIdle {
		return EventNone
	}
	m.reset()
	return EventStopped
}

func (m *TraceManager) reset() {
	m.phase = PhaseIdle
	m.path = nil
	m.pending = nil
}

// Phase returns the lifecycle state.
func (m *TraceManager) Phase() TracePhase { return m.phase }

// IsTracing is true while a path is displayed, including mid-transition.
func (m *TraceManager) IsTracing() bool { return m.phase != PhaseIdle }

// Path returns the path particles currently follow, or nil.
func (m *TraceManager) Path() *trace.Path { return m.path }

// Pending returns the path waiting for the transition to end, or nil.
func (m *TraceManager) Pending() *trace.Path { return m.pending }

// BurstPoint picks a random point of the current path for transition
// emission. ok is false outside a transition.
func (m *TraceManager) BurstPoint(rng *rand.Rand) (pt r2.Vec, index int, ok bool) {
	if m.phase != PhaseTransitioning || m.path.Len() == 0 {
		return r2.Vec{}, 0, false
	}
	i := rng.Intn(m.path.Len())
	return m.path.At(i), i, true
}
