package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tracer/config"
)

// BackgroundRenderer clears to the configured colour with a faint central glow.
type BackgroundRenderer struct {
	base rl.Color
	glow rl.Color
}

// NewBackgroundRenderer creates a renderer for the given background colour.
func NewBackgroundRenderer(bg config.Color) *BackgroundRenderer {
	r, g, b := bg.RGBA8()
	base := rl.Color{R: r, G: g, B: b, A: 255}
	return &BackgroundRenderer{
		base: base,
		glow: rl.Color{R: lift(r), G: lift(g), B: lift(b), A: 255},
	}
}

// Draw fills the screen.
func (b *BackgroundRenderer) Draw(screenW, screenH int32) {
	rl.ClearBackground(b.base)
	radius := float32(min(screenW, screenH)) * 0.6
	rl.DrawCircleGradient(screenW/2, screenH/2, radius, b.glow, b.base)
}

// lift brightens a channel slightly.
func lift(c uint8) uint8 {
	return uint8(min(255, int(c)+12))
}
