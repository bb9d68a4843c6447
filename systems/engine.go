package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tracer/components"
	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/trace"
)

// Noise sampling: position frequency, drift per second of sim time, and
// per-particle phase weight for the small and large fields.
const (
	smallFreq     = 0.025
	smallDrift    = 0.8
	smallPhase    = 0.001
	largeFreq     = 0.012
	largeDrift    = 0.4
	largePhase    = 0.0005
	largeSeedStep = 100
	noiseTimeRate = 0.1
	variationGain = 0.12
)

// Spawn variation ranges.
const (
	spawnSpeedGain   = 0.1
	spawnJitterMin   = 0.8
	spawnJitterRange = 0.4
	speedMulMin      = 0.5
	speedMulRange    = 1.0
	noiseOffsetRange = 1000.0
)

// StepContext carries per-tick inputs owned by the caller.
type StepContext struct {
	Time       float64 // simulation seconds since start
	Emission   float64 // emission multiplier (typing boost)
	SizeFactor float64 // size multiplier (typing boost)
}

// StepStats counts what happened during one Step.
type StepStats struct {
	Emitted int
	Burst   int
	Dropped int
	Retired int
	Active  int
}

// Engine runs the particle physics over a fixed-capacity pool.
type Engine struct {
	sim    config.SimulationConfig
	burst  float64 // particles per second while transitioning
	jitter float64 // burst scatter radius

	pool   *ParticlePool
	traces *TraceManager
	noise  *noiseBank
	rng    *rand.Rand
	buf    *RenderBuffer

	carry      float64 // fractional particles owed by emission
	burstCarry float64
}

// NewEngine creates an engine with an empty pool.
func NewEngine(cfg *config.Config, traces *TraceManager, rng *rand.Rand) *Engine {
	return &Engine{
		sim:    cfg.Simulation,
		burst:  cfg.Tracing.BurstRate,
		jitter: cfg.Tracing.BurstJitter,
		pool:   NewParticlePool(cfg.Simulation.Capacity),
		traces: traces,
		noise:  newNoiseBank(),
		rng:    rng,
		buf:    NewRenderBuffer(cfg.Simulation.Capacity),
	}
}

// Pool returns the particle pool.
func (e *Engine) Pool() *ParticlePool { return e.pool }

// Buffer returns the render attributes published by the last Step.
func (e *Engine) Buffer() *RenderBuffer { return e.buf }

// ApplyEvent updates particle targets after a trace lifecycle change.
func (e *Engine) ApplyEvent(ev TransitionEvent) {
	switch ev {
	case EventStarted, EventSwapped:
		e.assignTargets()
	case EventTimedOut, EventStopped:
		e.clearTargets()
	}
}

// assignTargets gives every active particle a path index, round-robin.
func (e *Engine) assignTargets() {
	n := e.traces.Path().Len()
	if n == 0 {
		e.clearTargets()
		return
	}
	next := 0
	e.pool.Each(func(_ *components.Motion, _ *components.Life, _ *components.Look, tr *components.Trace) {
		tr.Index = int32(next)
		next = (next + 1) % n
	})
}

func (e *Engine) clearTargets() {
	e.pool.Each(func(_ *components.Motion, _ *components.Life, _ *components.Look, tr *components.Trace) {
		tr.Index = components.NoTarget
	})
}

// Step emits, integrates, ages and publishes one tick of dt seconds using the
// live (already interpolated) config.
func (e *Engine) Step(dt float64, live config.ParticleConfig, sc StepContext) StepStats {
	var st StepStats
	if sc.Emission <= 0 {
		sc.Emission = 1
	}
	if sc.SizeFactor <= 0 {
		sc.SizeFactor = 1
	}

	e.emit(dt, live, sc, &st)
	e.integrate(dt, live, sc, &st)
	st.Active = e.pool.Active()
	return st
}

func (e *Engine) emit(dt float64, live config.ParticleConfig, sc StepContext, st *StepStats) {
	if live.Lifetime > 0 && live.Count > 0 {
		e.carry += live.Count / live.Lifetime * sc.Emission * dt
		n := int(e.carry)
		e.carry -= float64(n)
		spawned := e.pool.Emit(n, e.ambientSpawner(live))
		st.Emitted += spawned
		st.Dropped += n - spawned
	}

	if e.traces.Phase() != PhaseTransitioning {
		e.burstCarry = 0
		return
	}
	e.burstCarry += e.burst * dt
	n := int(e.burstCarry)
	e.burstCarry -= float64(n)
	spawned := e.pool.Emit(n, e.burstSpawner(live))
	st.Burst += spawned
	st.Dropped += n - spawned
}

func (e *Engine) spawnCommon(live config.ParticleConfig, l *components.Life, look *components.Look) {
	l.Lifetime = live.Lifetime * (spawnJitterMin + e.rng.Float64()*spawnJitterRange)
	look.Size = live.Size * (spawnJitterMin + e.rng.Float64()*spawnJitterRange)
	look.SpeedMultiplier = speedMulMin + e.rng.Float64()*speedMulRange
	look.Color = live.Color
	look.NoiseOffset = r3.Vec{
		X: e.rng.Float64() * noiseOffsetRange,
		Y: e.rng.Float64() * noiseOffsetRange,
		Z: e.rng.Float64() * noiseOffsetRange,
	}
}

func (e *Engine) ambientSpawner(live config.ParticleConfig) Spawner {
	return func(m *components.Motion, l *components.Life, look *components.Look, tr *components.Trace) {
		theta := e.rng.Float64() * 2 * math.Pi
		phi := math.Acos(2*e.rng.Float64() - 1)
		r := live.SphereRadius + (e.rng.Float64()-0.5)*e.sim.SpawnShellJitter
		m.Pos = r3.Vec{
			X: r * math.Sin(phi) * math.Cos(theta),
			Y: r * math.Sin(phi) * math.Sin(theta),
			Z: r * math.Cos(phi),
		}
		m.Vel = e.randVec(live.Speed * spawnSpeedGain)
		e.spawnCommon(live, l, look)

		if n := e.traces.Path().Len(); e.traces.IsTracing() && n > 0 {
			tr.Index = int32(e.rng.Intn(n))
		}
	}
}

func (e *Engine) burstSpawner(live config.ParticleConfig) Spawner {
	return func(m *components.Motion, l *components.Life, look *components.Look, tr *components.Trace) {
		e.spawnCommon(live, l, look)
		pt, idx, ok := e.traces.BurstPoint(e.rng)
		if !ok {
			return
		}
		m.Pos = r3.Add(r3.Vec{X: pt.X, Y: pt.Y}, e.randVec(2*e.jitter))
		m.Vel = e.randVec(live.Speed * spawnSpeedGain)
		tr.Index = int32(idx)
	}
}

// randVec returns a vector with components uniform in [-span/2, span/2].
func (e *Engine) randVec(span float64) r3.Vec {
	return r3.Vec{
		X: (e.rng.Float64() - 0.5) * span,
		Y: (e.rng.Float64() - 0.5) * span,
		Z: (e.rng.Float64() - 0.5) * span,
	}
}

func (e *Engine) integrate(dt float64, live config.ParticleConfig, sc StepContext, st *StepStats) {
	path := e.traces.Path()
	tracing := e.traces.IsTracing() && path.Len() > 0
	small := e.noise.get(live.Noise.Seed)
	large := e.noise.get(live.Noise.Seed + largeSeedStep)
	t := sc.Time * noiseTimeRate
	varStrength := live.Noise.Variation * variationGain
	sim := &e.sim
	buf := e.buf
	buf.Len = e.pool.Count()

	e.pool.Each(func(m *components.Motion, l *components.Life, look *components.Look, tr *components.Trace) {
		slot := int(l.Slot)

		l.Age += dt
		if l.Age >= l.Lifetime {
			l.Age = l.Lifetime
			e.pool.retire(l)
			buf.Alpha[slot] = 0
			st.Retired++
			return
		}

		// Turbulence, jitter and gravity.
		sp := noisePoint(m.Pos, look.NoiseOffset, smallFreq, t*smallDrift, smallPhase)
		lp := noisePoint(m.Pos, look.NoiseOffset, largeFreq, t*largeDrift, largePhase)
		n := r3.Add(
			r3.Scale(live.Noise.SmallStrength, small.Sample(sp, live.Noise.SmallScale)),
			r3.Scale(live.Noise.LargeStrength, large.Sample(lp, live.Noise.LargeScale)),
		)
		kick := r3.Add(r3.Scale(varStrength, n), e.randVec(sim.Jitter))
		m.Vel = r3.Add(m.Vel, r3.Scale(look.SpeedMultiplier, kick))
		m.Vel.Y -= live.Gravity * sim.GravityScale

		if tracing && tr.HasTarget() {
			e.steer(m, tr, path, dt)
		} else {
			e.contain(m, l, live, look, dt)
		}

		alpha := (1 - l.Age/l.Lifetime) * live.Opacity
		size := look.Size * sc.SizeFactor
		if tracing && tr.HasTarget() {
			size *= sim.TraceSizeBoost
		}
		buf.Positions[slot*3] = float32(m.Pos.X)
		buf.Positions[slot*3+1] = float32(m.Pos.Y)
		buf.Positions[slot*3+2] = float32(m.Pos.Z)
		buf.Colors[slot*3] = float32(look.Color.R)
		buf.Colors[slot*3+1] = float32(look.Color.G)
		buf.Colors[slot*3+2] = float32(look.Color.B)
		buf.Alpha[slot] = float32(alpha)
		buf.Size[slot] = float32(size)
	})
	buf.Active = e.pool.Active()
}

func noisePoint(pos, offset r3.Vec, freq, drift, phase float64) r3.Vec {
	return r3.Vec{
		X: pos.X*freq + drift + offset.X*phase,
		Y: pos.Y*freq + drift + offset.Y*phase,
		Z: pos.Z*freq + drift + offset.Z*phase,
	}
}

// steer pulls the particle toward its path target, advancing (and wrapping)
// the index on arrival.
func (e *Engine) steer(m *components.Motion, tr *components.Trace, path *trace.Path, dt float64) {
	sim := &e.sim
	n := path.Len()
	idx := int(tr.Index) % n
	target := path.At(idx)
	d := r3.Sub(r3.Vec{X: target.X, Y: target.Y}, m.Pos)
	dist := r3.Norm(d)
	if dist < sim.ArrivalEpsilon {
		idx = (idx + 1) % n
	}
	tr.Index = int32(idx)

	if dist > sim.NearDistance {
		m.Vel = r3.Scale(sim.TracePull, d)
	} else {
		m.Vel = r3.Scale(sim.NearDamping, m.Vel)
	}
	m.Vel = r3.Scale(sim.TraceDrag, m.Vel)
	m.Pos = r3.Add(m.Pos, r3.Scale(dt*sim.TraceSpeed, m.Vel))
}

// contain keeps ambient particles near a breathing spherical shell.
func (e *Engine) contain(m *components.Motion, l *components.Life, live config.ParticleConfig, look *components.Look, dt float64) {
	sim := &e.sim
	distC := r3.Norm(m.Pos)
	if distC > 0 {
		nrm := r3.Scale(1/distC, m.Pos)
		targetR := live.SphereRadius + math.Sin(l.Age*sim.ShellBreathRate)*sim.ShellBreathAmp
		pull := (distC - targetR) * sim.ShellPull
		m.Vel = r3.Sub(m.Vel, r3.Scale(pull, nrm))
		if distC > live.ColliderRadius {
			push := (distC - live.ColliderRadius) * sim.ColliderPush
			m.Vel = r3.Sub(m.Vel, r3.Scale(push, nrm))
		}
	}
	m.Vel = r3.Scale(sim.AmbientDrag, m.Vel)
	m.Pos = r3.Add(m.Pos, r3.Scale(dt*look.SpeedMultiplier, m.Vel))
}
