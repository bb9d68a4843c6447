// Package renderer draws the particle field and trace overlays with raylib.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tracer/camera"
	"github.com/pthm-cable/tracer/systems"
	"github.com/pthm-cable/tracer/trace"
)

const minDotRadius = 0.5

// ParticleRenderer draws a RenderBuffer as additive discs through a camera.
type ParticleRenderer struct {
	cam *camera.Camera
}

// NewParticleRenderer creates a renderer viewing through cam.
func NewParticleRenderer(cam *camera.Camera) *ParticleRenderer {
	return &ParticleRenderer{cam: cam}
}

// Draw renders every slot with positive alpha.
func (r *ParticleRenderer) Draw(buf *systems.RenderBuffer) int {
	drawn := 0
	rl.BeginBlendMode(rl.BlendAdditive)
	for i := 0; i < buf.Len; i++ {
		a := buf.Alpha[i]
		if a <= 0 {
			continue
		}
		x, y, z := buf.Position(i)
		sx, sy, scale, ok := r.cam.Project(r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)})
		if !ok {
			continue
		}
		radius := max(buf.Size[i]*float32(scale)*0.5, minDotRadius)
		cr, cg, cb := buf.Color(i)
		rl.DrawCircleV(rl.Vector2{X: float32(sx), Y: float32(sy)}, radius, rl.Color{
			R: toByte(cr),
			G: toByte(cg),
			B: toByte(cb),
			A: toByte(a),
		})
		drawn++
	}
	rl.EndBlendMode()
	return drawn
}

// DrawPath overlays the adopted trace in the z=0 plane.
func (r *ParticleRenderer) DrawPath(p *trace.Path, color rl.Color) {
	var prev rl.Vector2
	havePrev := false
	for _, v := range p.Points() {
		sx, sy, _, ok := r.cam.Project(r3.Vec{X: v.X, Y: v.Y})
		if !ok {
			havePrev = false
			continue
		}
		cur := rl.Vector2{X: float32(sx), Y: float32(sy)}
		if havePrev {
			rl.DrawLineV(prev, cur, color)
		}
		prev, havePrev = cur, true
	}
}

func toByte(v float32) uint8 {
	return uint8(max(0, min(1, v)) * 255)
}
