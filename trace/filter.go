package trace

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// FilterOutliers keeps points that have at least minNeighbors other points
// within radius, preserving input order, and stops after maxPoints are kept.
// Neighbour counting only visits the surrounding hash cells.
func FilterOutliers(pts []r2.Vec, radius float64, minNeighbors, maxPoints int) []r2.Vec {
	if len(pts) == 0 || maxPoints <= 0 {
		return nil
	}
	if radius <= 0 {
		if minNeighbors > 0 {
			return nil
		}
		return append([]r2.Vec(nil), pts[:min(len(pts), maxPoints)]...)
	}

	h := NewSpatialHash(pts, radius)
	kept := make([]r2.Vec, 0, min(len(pts), maxPoints))
	var buf []int32
	for i, p := range pts {
		if minNeighbors > 0 {
			buf = h.QueryRadiusInto(buf[:0], pts, i, radius, minNeighbors)
			if len(buf) < minNeighbors {
				continue
			}
		}
		kept = append(kept, p)
		if len(kept) >= maxPoints {
			break
		}
	}
	return kept
}
