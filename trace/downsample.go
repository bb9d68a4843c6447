package trace

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// Downsample resamples an ordered path to exactly target points spaced
// evenly by arc length. The first and last points are kept; interior points
// are interpolated along segments. Paths already at or below target, and
// targets below 2, are returned unchanged. A path of zero length collapses to
// its first point.
func Downsample(path []r2.Vec, target int) []r2.Vec {
	if len(path) <= target || target < 2 {
		return append([]r2.Vec(nil), path...)
	}
	seg := Spacing(path)
	total := floats.Sum(seg)
	if total == 0 {
		return []r2.Vec{path[0]}
	}

	spacing := total / float64(target-1)
	out := make([]r2.Vec, 0, target)
	out = append(out, path[0])
	next := spacing
	acc := 0.0
	for i := 1; i < len(path); i++ {
		l := seg[i-1]
		for l > 0 && acc+l >= next-1e-12 && len(out) < target-1 {
			t := (next - acc) / l
			out = append(out, r2.Add(path[i-1], r2.Scale(t, r2.Sub(path[i], path[i-1]))))
			next += spacing
		}
		acc += l
	}
	return append(out, path[len(path)-1])
}

// Spacing returns the lengths of consecutive segments of path.
func Spacing(path []r2.Vec) []float64 {
	if len(path) < 2 {
		return nil
	}
	out := make([]float64, len(path)-1)
	for i := 1; i < len(path); i++ {
		out[i-1] = r2.Norm(r2.Sub(path[i], path[i-1]))
	}
	return out
}

// SpacingStats summarises segment lengths of a path.
type SpacingStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// CV is the coefficient of variation, StdDev / Mean.
func (s SpacingStats) CV() float64 {
	if s.Mean == 0 {
		return 0
	}
	return s.StdDev / s.Mean
}

// MeasureSpacing computes SpacingStats for path.
func MeasureSpacing(path []r2.Vec) SpacingStats {
	seg := Spacing(path)
	if len(seg) == 0 {
		return SpacingStats{}
	}
	mean, std := stat.PopMeanStdDev(seg, nil)
	return SpacingStats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(seg),
		Max:    floats.Max(seg),
	}
}
