package systems

import (
	"math"
	"strings"

	"github.com/pthm-cable/tracer/config"
)

// State is the ambient mode of the particle field.
type State uint8

const (
	StateUnfocused State = iota
	StateFocused
	StateThinking
	StateTyping
	StateTracing
)

var stateNames = [...]string{"unfocused", "focused", "thinking", "typing", "tracing"}

// States lists every state in declaration order.
var States = []State{StateUnfocused, StateFocused, StateThinking, StateTyping, StateTracing}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ParseState maps a name to a state. Unknown names map to StateUnfocused and
// ok is false.
func ParseState(name string) (s State, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return StateUnfocused, false
}

// StateConfig returns the canonical particle config for s.
func StateConfig(states *config.StatesConfig, s State) config.ParticleConfig {
	switch s {
	case StateFocused:
		return states.Focused
	case StateThinking:
		return states.Thinking
	case StateTyping:
		return states.Typing
	case StateTracing:
		return states.Tracing
	default:
		return states.Unfocused
	}
}

// Breathing pulses applied on top of the target while typing or thinking.
const (
	typingPulseRate = 5.0
	typingPulseAmp  = 0.15
	typingPulseBase = 1.05
	typingSizeGain  = 0.4
	typingSizeBase  = 0.75
	thinkPulseRate  = 2.5
	thinkPulseAmp   = 0.1
	thinkPulseBase  = 1.0
	thinkSizeGain   = 0.5
	thinkSizeBase   = 0.5
)

// Interpolator eases the live particle config toward the active state's target.
type Interpolator struct {
	states *config.StatesConfig
	factor float64

	state  State
	live   config.ParticleConfig
	target config.ParticleConfig
}

// NewInterpolator starts fully settled in the unfocused state.
func NewInterpolator(states *config.StatesConfig, factor float64) *Interpolator {
	in := &Interpolator{states: states, factor: factor}
	in.target = StateConfig(states, StateUnfocused)
	in.live = in.target
	return in
}

// SetState changes the target only; Step does the easing.
func (in *Interpolator) SetState(s State) {
	in.state = s
	in.target = StateConfig(in.states, s)
}

// State returns the active state.
func (in *Interpolator) State() State { return in.state }

// Live returns the current eased config.
func (in *Interpolator) Live() config.ParticleConfig { return in.live }

// Target returns the undecorated target of the active state.
func (in *Interpolator) Target() config.ParticleConfig { return in.target }

// Breath returns the radius and size multipliers for the active state at time t.
func (in *Interpolator) Breath(t float64) (radius, size float64) {
	switch in.state {
	case StateTyping:
		pulse := math.Sin(t*typingPulseRate)*typingPulseAmp + typingPulseBase
		return pulse, pulse*typingSizeGain + typingSizeBase
	case StateThinking:
		pulse := math.Sin(t*thinkPulseRate)*thinkPulseAmp + thinkPulseBase
		return pulse, pulse*thinkSizeGain + thinkSizeBase
	}
	return 1, 1
}

// Step moves every numeric field of the live config a fixed fraction of the
// way to its target. Radii and size follow the breathing target at time t;
// the noise seed snaps.
func (in *Interpolator) Step(t float64) {
	radiusMul, sizeMul := in.Breath(t)
	tg := in.target
	l := &in.live
	f := in.factor

	l.Count = lerp(l.Count, tg.Count, f)
	l.Size = lerp(l.Size, tg.Size*sizeMul, f)
	l.Speed = lerp(l.Speed, tg.Speed, f)
	l.Lifetime = lerp(l.Lifetime, tg.Lifetime, f)
	l.Opacity = lerp(l.Opacity, tg.Opacity, f)
	l.Gravity = lerp(l.Gravity, tg.Gravity, f)
	l.SphereRadius = lerp(l.SphereRadius, tg.SphereRadius*radiusMul, f)
	l.ColliderRadius = lerp(l.ColliderRadius, tg.ColliderRadius*radiusMul, f)
	l.Color.R = lerp(l.Color.R, tg.Color.R, f)
	l.Color.G = lerp(l.Color.G, tg.Color.G, f)
	l.Color.B = lerp(l.Color.B, tg.Color.B, f)

	l.Noise.Scale = lerp(l.Noise.Scale, tg.Noise.Scale, f)
	l.Noise.Variation = lerp(l.Noise.Variation, tg.Noise.Variation, f)
	l.Noise.SmallScale = lerp(l.Noise.SmallScale, tg.Noise.SmallScale, f)
	l.Noise.LargeScale = lerp(l.Noise.LargeScale, tg.Noise.LargeScale, f)
	l.Noise.SmallStrength = lerp(l.Noise.SmallStrength, tg.Noise.SmallStrength, f)
	l.Noise.LargeStrength = lerp(l.Noise.LargeStrength, tg.Noise.LargeStrength, f)
	l.Noise.Seed = tg.Noise.Seed
}

// Distance is the largest absolute difference between the live config and
// the undecorated target over all eased fields.
func (in *Interpolator) Distance() float64 {
	a, b := in.live, in.target
	d := 0.0
	for _, pair := range [][2]float64{
		{a.Count, b.Count}, {a.Size, b.Size}, {a.Speed, b.Speed}, {a.Lifetime, b.Lifetime},
		{a.Opacity, b.Opacity}, {a.Gravity, b.Gravity}, {a.SphereRadius, b.SphereRadius},
		{a.ColliderRadius, b.ColliderRadius},
		{a.Color.R, b.Color.R}, {a.Color.G, b.Color.G}, {a.Color.B, b.Color.B},
		{a.Noise.Scale, b.Noise.Scale}, {a.Noise.Variation, b.Noise.Variation},
		{a.Noise.SmallScale, b.Noise.SmallScale}, {a.Noise.LargeScale, b.Noise.LargeScale},
		{a.Noise.SmallStrength, b.Noise.SmallStrength}, {a.Noise.LargeStrength, b.Noise.LargeStrength},
	} {
		d = math.Max(d, math.Abs(pair[0]-pair[1]))
	}
	return d
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
