package systems

// RenderBuffer holds per-slot draw attributes published once per tick.
// Slots beyond Len were never allocated; inactive slots have zero alpha.
type RenderBuffer struct {
	Positions []float32 // xyz per slot
	Colors    []float32 // rgb per slot
	Alpha     []float32
	Size      []float32
	Len       int // allocated slots
	Active    int
}

// NewRenderBuffer allocates buffers for capacity slots.
func NewRenderBuffer(capacity int) *RenderBuffer {
	return &RenderBuffer{
		Positions: make([]float32, capacity*3),
		Colors:    make([]float32, capacity*3),
		Alpha:     make([]float32, capacity),
		Size:      make([]float32, capacity),
	}
}

// Position returns the xyz of slot i.
func (b *RenderBuffer) Position(i int) (x, y, z float32) {
	return b.Positions[i*3], b.Positions[i*3+1], b.Positions[i*3+2]
}

// Color returns the rgb of slot i.
func (b *RenderBuffer) Color(i int) (r, g, bl float32) {
	return b.Colors[i*3], b.Colors[i*3+1], b.Colors[i*3+2]
}
