// Package trace turns candidate outline points into an ordered path.
package trace

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrNoPoints is returned when extraction finds nothing to trace.
var ErrNoPoints = errors.New("no outline points found")

// Path is an immutable ordered sequence of points with no consecutive
// duplicates. It is replaced wholesale, never edited.
type Path struct {
	pts    []r2.Vec
	length float64
}

// NewPath copies pts, dropping consecutive duplicates.
func NewPath(pts []r2.Vec) *Path {
	out := make([]r2.Vec, 0, len(pts))
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1] == p {
			continue
		}
		out = append(out, p)
	}
	return &Path{pts: out, length: floats.Sum(Spacing(out))}
}

// Len returns the number of points. A nil path has none.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.pts)
}

// At returns point i.
func (p *Path) At(i int) r2.Vec { return p.pts[i] }

// Points returns a copy of the points.
func (p *Path) Points() []r2.Vec {
	if p == nil {
		return nil
	}
	return append([]r2.Vec(nil), p.pts...)
}

// Length returns the polyline length.
func (p *Path) Length() float64 {
	if p == nil {
		return 0
	}
	return p.length
}
