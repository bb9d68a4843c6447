// Package components defines ECS components for the particle simulation.
package components

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tracer/config"
)

// NoTarget marks a particle that is not following a trace path.
const NoTarget int32 = -1

// Motion holds a particle's position and velocity in world units.
type Motion struct {
	Pos r3.Vec
	Vel r3.Vec
}

// Life tracks a particle's age against its lifetime.
// Invariant: 0 <= Age <= Lifetime.
type Life struct {
	Age      float64
	Lifetime float64
	Slot     int32 // Stable index into the render buffer
	Active   bool  // Inactive particles are free for reuse
}

// Look holds per-particle appearance and motion variation fixed at spawn.
type Look struct {
	Size            float64
	SpeedMultiplier float64
	Color           config.Color
	NoiseOffset     r3.Vec // Phase offset into the noise field
}

// Trace holds the particle's position along the active trace path.
type Trace struct {
	Index int32 // Path point index, or NoTarget
}

// HasTarget reports whether the particle is assigned to a path point.
func (t Trace) HasTarget() bool { return t.Index >= 0 }
