// Package extract finds outline candidate points in a canonical canvas.
package extract

import "image"

// Grid is a row-major float field the size of an image.
type Grid struct {
	W, H int
	Data []float64
}

// NewGrid allocates a zeroed w x h grid.
func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, Data: make([]float64, w*h)}
}

// At returns the value at (x, y). Coordinates must be in range.
func (g *Grid) At(x, y int) float64 { return g.Data[y*g.W+x] }

// Set stores v at (x, y).
func (g *Grid) Set(x, y int, v float64) { g.Data[y*g.W+x] = v }

// Mask is a row-major binary image.
type Mask struct {
	W, H int
	Bits []bool
}

// NewMask allocates an empty w x h mask.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Bits: make([]bool, w*h)}
}

// At reports whether (x, y) is set.
func (m *Mask) At(x, y int) bool { return m.Bits[y*m.W+x] }

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Invert flips every pixel in place.
func (m *Mask) Invert() {
	for i, b := range m.Bits {
		m.Bits[i] = !b
	}
}

// Binarize marks pixels whose mean RGB exceeds 128 as foreground.
func Binarize(img *image.RGBA) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.H; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < m.W; x++ {
			p := row[x*4:]
			sum := int(p[0]) + int(p[1]) + int(p[2])
			m.Bits[y*m.W+x] = sum > 3*128
		}
	}
	return m
}

// Grayscale converts to luminance using 0.299R + 0.587G + 0.114B.
func Grayscale(img *image.RGBA) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := 0; y < g.H; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < g.W; x++ {
			p := row[x*4:]
			g.Data[y*g.W+x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}
	return g
}

// bounds is the inclusive-exclusive interior scanned after margins are removed.
type bounds struct {
	x0, y0, x1, y1 int
}

// interior excludes a fractional margin, and always at least one pixel, from each side.
func interior(w, h int, margin float64) bounds {
	mx := int(float64(w) * margin)
	my := int(float64(h) * margin)
	mx = max(mx, 1)
	my = max(my, 1)
	return bounds{x0: mx, y0: my, x1: w - mx, y1: h - my}
}

func (b bounds) contains(x, y int) bool {
	return x >= b.x0 && x < b.x1 && y >= b.y0 && y < b.y1
}
