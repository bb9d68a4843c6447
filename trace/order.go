package trace

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// tieEpsilon is the squared-distance window within which two candidates count
// as equally near.
const tieEpsilon = 1e-9

// degreeRadiusScale sets the neighbourhood used for tie-breaking, in units of
// the median nearest-neighbour distance.
const degreeRadiusScale = 1.5

// ctxCheckEvery is how many outer iterations run between context checks.
const ctxCheckEvery = 64

// OrderIndices returns a greedy nearest-neighbour traversal of pts as a
// permutation of their indices. The walk starts at the point farthest from
// the origin (lowest index on ties). When several unvisited points are
// equally near, the one with the fewest unvisited neighbours is taken first,
// so the walk finishes thin spurs and stroke edges instead of stranding them.
//
// Cost is O(n²); callers bound n upstream.
func OrderIndices(ctx context.Context, pts []r2.Vec) ([]int, error) {
	n := len(pts)
	if n == 0 {
		return nil, nil
	}

	deg, nbrs, err := neighbourDegrees(ctx, pts)
	if err != nil {
		return nil, err
	}

	start := 0
	best := -1.0
	for i, p := range pts {
		if d := r2.Norm2(p); d > best {
			best = d
			start = i
		}
	}

	visited := make([]bool, n)
	visit := func(i int) {
		visited[i] = true
		for _, j := range nbrs[i] {
			deg[j]--
		}
	}

	order := make([]int, 0, n)
	order = append(order, start)
	visit(start)
	cur := start
	for step := 1; step < n; step++ {
		if step%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := pts[cur]
		bi := -1
		bd := math.Inf(1)
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			d := r2.Sub(pts[j], c)
			dd := d.X*d.X + d.Y*d.Y
			if dd < bd-tieEpsilon || (math.Abs(dd-bd) <= tieEpsilon && deg[j] < deg[bi]) {
				bd = dd
				bi = j
			}
		}
		visit(bi)
		order = append(order, bi)
		cur = bi
	}
	return order, nil
}

// Order returns pts rearranged by OrderIndices.
func Order(ctx context.Context, pts []r2.Vec) ([]r2.Vec, error) {
	idx, err := OrderIndices(ctx, pts)
	if err != nil {
		return nil, err
	}
	out := make([]r2.Vec, len(idx))
	for i, j := range idx {
		out[i] = pts[j]
	}
	return out, nil
}

// neighbourDegrees counts, for each point, the points within
// degreeRadiusScale times the median nearest-neighbour distance.
func neighbourDegrees(ctx context.Context, pts []r2.Vec) ([]int, [][]int32, error) {
	n := len(pts)
	deg := make([]int, n)
	nbrs := make([][]int32, n)
	if n < 2 {
		return deg, nbrs, nil
	}

	nn := make([]float64, n)
	for i := range pts {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		best := math.Inf(1)
		for j := range pts {
			if i == j {
				continue
			}
			d := r2.Sub(pts[j], pts[i])
			best = math.Min(best, d.X*d.X+d.Y*d.Y)
		}
		nn[i] = best
	}
	sort.Float64s(nn)
	radius := degreeRadiusScale * math.Sqrt(nn[n/2])
	if radius <= 0 {
		return deg, nbrs, nil
	}

	h := NewSpatialHash(pts, radius)
	for i := range pts {
		nbrs[i] = h.QueryRadiusInto(nil, pts, i, radius, 0)
		deg[i] = len(nbrs[i])
	}
	return deg, nbrs, nil
}
