package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tracer/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title      string
	State      string
	TracePhase string
	Active     int
	Capacity   int
	PathPoints int
	Emission   float64 // live count target
	Tick       int32
	FPS        int32
	Typing     bool
	Chars      int
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD in the top-right corner.
func (h *HUD) Draw(data HUDData, screenW int32) {
	r := h.renderer
	const width = 240
	x := screenW - width - 10
	y := int32(10)

	rl.DrawText(data.Title, x, y, 20, rl.RayWhite)
	y += 26

	y = r.DrawLabelValue(x, y, "State", data.State)
	y = r.DrawLabelValue(x, y, "Trace", data.TracePhase)
	if data.PathPoints > 0 {
		y = r.DrawLabelValue(x, y, "Path", fmt.Sprintf("%d points", data.PathPoints))
	}
	y = r.DrawLabelValue(x, y, "Particles", fmt.Sprintf("%d / %d", data.Active, data.Capacity))
	if data.Capacity > 0 {
		y = r.DrawBar(x, y, "Pool", float32(data.Active)/float32(data.Capacity), width)
	}
	y = r.DrawLabelValue(x, y, "Target", fmt.Sprintf("%.0f", data.Emission))
	if data.Typing {
		y = r.DrawLabelValue(x, y, "Typing", fmt.Sprintf("%d chars", data.Chars))
	}
	r.DrawLabelValue(x, y, "Tick", fmt.Sprintf("%d | FPS %d", data.Tick, data.FPS))
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders per-phase tick timings.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats, phases []string) {
	x, y := p.x, p.y

	rl.DrawText("Tick Performance", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Avg: %s  Max: %s", stats.AvgTickDuration.Round(time.Microsecond), stats.MaxTickDuration.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	for _, name := range phases {
		pct := stats.PhasePct[name]
		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}
		rl.DrawText(
			fmt.Sprintf("%-12s %8s %5.1f%%", name, stats.PhaseAvg[name].Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
