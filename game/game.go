// Package game owns the simulation context: the particle engine, the state
// interpolator, the typing overlay, the trace lifecycle and the background
// extraction tasks feeding it.
//
// A Game is driven by one goroutine calling Update (or UpdateHeadless). Only
// TraceImage may be called from other goroutines.
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/systems"
	"github.com/pthm-cable/tracer/telemetry"
	"github.com/pthm-cable/tracer/trace"
)

// Game holds the complete tracer state.
type Game struct {
	cfg *config.Config
	rng *rand.Rand

	engine *systems.Engine
	interp *systems.Interpolator
	typing *systems.TypingBoost
	traces *systems.TraceManager

	extractor Extractor
	tasks     taskState

	tick           int32
	simTime        float64
	lastStep       systems.StepStats
	stepsPerUpdate int

	// Telemetry
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	output        *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)

	closeOnce sync.Once
}

// NewGame creates a game with default options.
func NewGame() (*Game, error) {
	return NewGameWithOptions(Options{})
}

// NewGameWithOptions creates a game. The field starts settled in the
// unfocused state with an empty pool.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Simulation.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	extractor := opts.Extractor
	if extractor == nil {
		popts, err := trace.OptionsFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("tracing options: %w", err)
		}
		extractor = trace.NewPipeline(popts, componentLogger("pipeline"))
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, err
	}

	statsWindow := opts.StatsWindowSec
	if statsWindow <= 0 {
		statsWindow = cfg.Telemetry.StatsWindow
	}
	steps := opts.StepsPerUpdate
	if steps < 1 {
		steps = 1
	}

	traces := systems.NewTraceManager(cfg.Tracing.TransitionWindow, cfg.Tracing.Timeout)
	g := &Game{
		cfg:            cfg,
		rng:            rng,
		engine:         systems.NewEngine(cfg, traces, rng),
		interp:         systems.NewInterpolator(&cfg.States, cfg.Smoothing.Factor),
		typing:         systems.NewTypingBoost(cfg.Typing),
		traces:         traces,
		extractor:      extractor,
		tasks:          newTaskState(),
		stepsPerUpdate: steps,
		collector:      telemetry.NewCollector(statsWindow, cfg.Simulation.DT),
		perf:           telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		output:         output,
		logStats:       opts.LogStats,
		statsCallback:  opts.StatsCallback,
	}

	Logger().Info("game created",
		"seed", seed,
		"capacity", cfg.Simulation.Capacity,
		"state", g.interp.State().String(),
	)
	return g, nil
}

// SetState switches the ambient state. Unknown names fall back to unfocused.
func (g *Game) SetState(name string) {
	s, ok := systems.ParseState(name)
	if !ok {
		Logger().Warn("unknown state, using unfocused", "name", name)
	}
	g.interp.SetState(s)
}

// CurrentState returns the name of the active state.
func (g *Game) CurrentState() string {
	return g.interp.State().String()
}

// StopTracing returns to the ambient field immediately: in-flight extraction
// is cancelled, both paths are dropped and every particle target is cleared.
func (g *Game) StopTracing() {
	g.tasks.invalidate()
	g.handleEvent(g.traces.Stop())
}

// IsTracing reports whether a path is displayed, including mid-transition.
func (g *Game) IsTracing() bool {
	return g.traces.IsTracing()
}

// TracePhase returns the trace lifecycle phase.
func (g *Game) TracePhase() systems.TracePhase {
	return g.traces.Phase()
}

// Path returns the path particles currently follow, or nil.
func (g *Game) Path() *trace.Path {
	return g.traces.Path()
}

// SetUserTyping drives the typing overlay.
func (g *Game) SetUserTyping(on bool) {
	g.typing.SetTyping(on)
}

// SetCharacterCount records the length of the text being typed.
func (g *Game) SetCharacterCount(n int) {
	g.typing.SetCharacterCount(n)
}

// Update advances the simulation by dt seconds of wall time. dt is clamped
// to maxFrameDT; non-positive values use the configured tick.
func (g *Game) Update(dt float64) {
	if dt <= 0 {
		dt = g.cfg.Simulation.DT
	}
	g.step(min(dt, maxFrameDT))
}

// UpdateHeadless runs StepsPerUpdate fixed ticks.
func (g *Game) UpdateHeadless() {
	for range g.stepsPerUpdate {
		g.step(g.cfg.Simulation.DT)
	}
}

func (g *Game) step(dt float64) {
	g.perf.StartTick()

	g.perf.StartPhase(telemetry.PhaseResults)
	g.drainResults()

	g.perf.StartPhase(telemetry.PhaseInterpolate)
	g.typing.Step(g.simTime, g.cfg.Smoothing.Factor)
	g.interp.Step(g.simTime)

	g.perf.StartPhase(telemetry.PhaseTransition)
	g.handleEvent(g.traces.Step(g.simTime))

	g.perf.StartPhase(telemetry.PhaseSimulate)
	state := g.interp.State()
	g.lastStep = g.engine.Step(dt, g.interp.Live(), systems.StepContext{
		Time:       g.simTime,
		Emission:   g.typing.EmissionFactor(state),
		SizeFactor: g.typing.SizeFactor(),
	})

	g.perf.StartPhase(telemetry.PhaseTelemetry)
	g.collector.RecordStep(g.lastStep)
	g.tick++
	g.simTime += dt
	g.flushTelemetry()

	g.perf.EndTick()
}

// handleEvent applies a trace lifecycle change to the particles and the
// ambient state.
func (g *Game) handleEvent(ev systems.TransitionEvent) {
	g.engine.ApplyEvent(ev)
	switch ev {
	case systems.EventStarted, systems.EventQueued:
		g.interp.SetState(systems.StateTracing)
	case systems.EventSwapped:
		Logger().Debug("trace swapped", "points", g.traces.Path().Len())
	case systems.EventTimedOut:
		Logger().Info("trace timed out", "after_sec", g.cfg.Tracing.Timeout)
		g.interp.SetState(systems.StateUnfocused)
	case systems.EventStopped:
		Logger().Info("tracing stopped")
		g.interp.SetState(systems.StateUnfocused)
	}
}

// Render returns the attributes published by the last tick. The buffer is
// reused; read it before the next Update.
func (g *Game) Render() *systems.RenderBuffer {
	return g.engine.Buffer()
}

// Config returns the game configuration.
func (g *Game) Config() *config.Config { return g.cfg }

// Tick returns the number of ticks run.
func (g *Game) Tick() int32 { return g.tick }

// SimTime returns simulated seconds since start.
func (g *Game) SimTime() float64 { return g.simTime }

// LastStep returns the particle counts of the last tick.
func (g *Game) LastStep() systems.StepStats { return g.lastStep }

// Live returns the eased particle config.
func (g *Game) Live() config.ParticleConfig { return g.interp.Live() }

// Typing reports whether the typing overlay is on.
func (g *Game) Typing() bool { return g.typing.Typing() }

// CharacterCount returns the last reported character count.
func (g *Game) CharacterCount() int { return g.typing.Chars() }

// PerfStats returns tick timings over the rolling window.
func (g *Game) PerfStats() telemetry.PerfStats {
	return g.perf.Stats()
}

// RecordFrame records frame timing in windowed mode.
func (g *Game) RecordFrame() {
	g.perf.RecordFrame()
}

// Close cancels in-flight extraction and closes output files. Pending
// TraceImage results resolve as superseded.
func (g *Game) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.tasks.close()
		g.drainResults()
		err = g.output.Close()
	})
	return err
}
