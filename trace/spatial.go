package trace

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

type cellKey struct{ col, row int }

// SpatialHash buckets point indices by square cell. Unlike a fixed grid it
// covers an unbounded plane, so points may lie anywhere.
type SpatialHash struct {
	cellSize float64
	cells    map[cellKey][]int32
}

// NewSpatialHash indexes pts with the given cell size.
func NewSpatialHash(pts []r2.Vec, cellSize float64) *SpatialHash {
	h := &SpatialHash{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int32, len(pts)/4+1),
	}
	for i, p := range pts {
		k := h.key(p)
		h.cells[k] = append(h.cells[k], int32(i))
	}
	return h
}

func (h *SpatialHash) key(p r2.Vec) cellKey {
	return cellKey{
		col: int(math.Floor(p.X / h.cellSize)),
		row: int(math.Floor(p.Y / h.cellSize)),
	}
}

// QueryRadiusInto appends indices of points within radius of pts[i], excluding
// i itself, and returns the updated slice. Reuse dst across calls to avoid
// allocations. limit > 0 stops the scan once that many neighbours are found.
func (h *SpatialHash) QueryRadiusInto(dst []int32, pts []r2.Vec, i int, radius float64, limit int) []int32 {
	p := pts[i]
	center := h.key(p)
	reach := int(math.Ceil(radius / h.cellSize))
	radiusSq := radius * radius
	found := 0

	for dr := -reach; dr <= reach; dr++ {
		for dc := -reach; dc <= reach; dc++ {
			for _, j := range h.cells[cellKey{center.col + dc, center.row + dr}] {
				if int(j) == i {
					continue
				}
				d := r2.Sub(pts[j], p)
				if d.X*d.X+d.Y*d.Y <= radiusSq {
					dst = append(dst, j)
					found++
					if limit > 0 && found >= limit {
						return dst
					}
				}
			}
		}
	}
	return dst
}
