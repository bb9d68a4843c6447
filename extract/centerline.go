package extract

import (
	"math"
)

// DistanceTransform returns, for every foreground pixel, the chamfer distance
// to the nearest background pixel (orthogonal step 1, diagonal step √2).
// Background pixels are 0. Pixels outside the image do not count as background.
func DistanceTransform(m *Mask) *Grid {
	w, h := m.W, m.H
	inf := math.Inf(1)
	d := NewGrid(w, h)
	for i, b := range m.Bits {
		if b {
			d.Data[i] = inf
		}
	}
	get := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return inf
		}
		return d.Data[y*w+x]
	}

	// Forward: up, left, up-left, up-right.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !m.Bits[i] {
				continue
			}
			v := d.Data[i]
			v = math.Min(v, get(x, y-1)+1)
			v = math.Min(v, get(x-1, y)+1)
			v = math.Min(v, get(x-1, y-1)+math.Sqrt2)
			v = math.Min(v, get(x+1, y-1)+math.Sqrt2)
			d.Data[i] = v
		}
	}
	// Backward: down, right, down-right, down-left.
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			if !m.Bits[i] {
				continue
			}
			v := d.Data[i]
			v = math.Min(v, get(x, y+1)+1)
			v = math.Min(v, get(x+1, y)+1)
			v = math.Min(v, get(x+1, y+1)+math.Sqrt2)
			v = math.Min(v, get(x-1, y+1)+math.Sqrt2)
			d.Data[i] = v
		}
	}
	return d
}

// Pixel is a candidate location in canvas pixel coordinates.
type Pixel struct {
	X, Y     int
	Strength float64
}

// Centerline returns ridge pixels of the distance field inside the margin.
// Pixels deeper than 1 survive only as 8-neighbourhood maxima; pixels with
// distance in [0.5, 1] are thin strokes and are all kept.
func Centerline(dist *Grid, margin float64) []Pixel {
	b := interior(dist.W, dist.H, margin)
	var out []Pixel
	for y := b.y0; y < b.y1; y++ {
		for x := b.x0; x < b.x1; x++ {
			v := dist.At(x, y)
			if v == 0 || math.IsInf(v, 1) {
				continue
			}
			switch {
			case v > 1:
				if isRidge(dist, x, y, v) {
					out = append(out, Pixel{X: x, Y: y, Strength: v})
				}
			case v >= 0.5:
				out = append(out, Pixel{X: x, Y: y, Strength: v})
			}
		}
	}
	return out
}

func isRidge(dist *Grid, x, y int, v float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= dist.W || ny >= dist.H {
				continue
			}
			if dist.At(nx, ny) > v {
				return false
			}
		}
	}
	return true
}
