package ui

import (
	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tracer/systems"
)

// Action is what the user asked for in one frame of the controls panel.
type Action struct {
	State        string // non-empty when a state button was pressed
	StopTracing  bool
	ToggleTyping bool
	ResetCamera  bool
}

// ControlsData is the game state the panel reflects.
type ControlsData struct {
	State   string
	Tracing bool
	Typing  bool
}

// ControlsPanel renders state buttons and tracing controls.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
	}
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Contains reports whether the screen point is over the panel.
func (c *ControlsPanel) Contains(p rl.Vector2) bool {
	return c.visible && rl.CheckCollisionPointRec(p, c.bounds())
}

func (c *ControlsPanel) bounds() rl.Rectangle {
	t := c.renderer.Theme
	rows := int32(len(systems.States) + 3)
	h := t.LineHeight + t.Padding*3 + rows*(t.ButtonHeight+4)
	return rl.Rectangle{X: float32(c.x), Y: float32(c.y), Width: float32(c.width), Height: float32(h)}
}

// Draw renders the panel and returns the requested action.
func (c *ControlsPanel) Draw(data ControlsData) Action {
	var act Action
	if !c.visible {
		return act
	}

	r := c.renderer
	t := r.Theme
	b := c.bounds()
	r.DrawPanel(c.x, c.y, c.width, int32(b.Height))

	x := float32(c.x + t.Padding)
	w := float32(c.width - t.Padding*2)
	y := r.DrawSectionHeader(c.x+t.Padding, c.y+t.Padding, "State")

	button := func(label string) bool {
		pressed := gui.Button(rl.Rectangle{X: x, Y: float32(y), Width: w, Height: float32(t.ButtonHeight)}, label)
		y += t.ButtonHeight + 4
		return pressed
	}

	for _, s := range systems.States {
		label := s.String()
		if label == data.State {
			label = "> " + label
		}
		if button(label) {
			act.State = s.String()
		}
	}

	y += t.Padding
	if data.Tracing && button("Stop Tracing") {
		act.StopTracing = true
	} else if !data.Tracing {
		rl.DrawText("no trace", int32(x), y+6, t.FontSize, t.LabelColor)
		y += t.ButtonHeight + 4
	}
	if button(toggleText(data.Typing, "Typing: on", "Typing: off")) {
		act.ToggleTyping = true
	}
	if button("Reset Camera") {
		act.ResetCamera = true
	}
	return act
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
