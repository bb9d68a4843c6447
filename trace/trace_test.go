package trace

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/extract"
	"github.com/pthm-cable/tracer/imaging"
)

func TestFilterOutliers(t *testing.T) {
	pts := []r2.Vec{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, // cluster
		{X: 50, Y: 50}, // isolated
		{X: 2, Y: 1},
		{X: -30, Y: 10}, // isolated
	}

	t.Run("drops isolated points in order", func(t *testing.T) {
		got := FilterOutliers(pts, 4, 1, 100)
		assert.Equal(t, []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 2, Y: 1}}, got)
	})
	t.Run("stricter neighbour count", func(t *testing.T) {
		got := FilterOutliers(pts, 1.5, 2, 100)
		// (2,1) only has (1,0) within 1.5.
		assert.Equal(t, []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, got)
	})
	t.Run("caps at max points", func(t *testing.T) {
		got := FilterOutliers(pts, 4, 1, 2)
		assert.Equal(t, []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}}, got)
	})
	t.Run("zero min neighbours keeps all", func(t *testing.T) {
		assert.Len(t, FilterOutliers(pts, 4, 0, 100), len(pts))
	})
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, FilterOutliers(nil, 4, 1, 100))
	})
	t.Run("negative coordinates share cells correctly", func(t *testing.T) {
		// Straddling zero must still find each other across the cell boundary.
		got := FilterOutliers([]r2.Vec{{X: -0.5, Y: -0.5}, {X: 0.5, Y: 0.5}}, 2, 1, 10)
		assert.Len(t, got, 2)
	})
}

func TestOrderIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pts := make([]r2.Vec, 500)
	for i := range pts {
		pts[i] = r2.Vec{X: rng.Float64()*200 - 100, Y: rng.Float64()*200 - 100}
	}

	idx, err := OrderIndices(context.Background(), pts)
	require.NoError(t, err)
	require.Len(t, idx, len(pts))

	seen := make([]bool, len(pts))
	for _, i := range idx {
		require.False(t, seen[i], "index %d repeated", i)
		seen[i] = true
	}

	// Start is the point farthest from the origin.
	far := 0
	for i, p := range pts {
		if r2.Norm2(p) > r2.Norm2(pts[far]) {
			far = i
		}
	}
	assert.Equal(t, far, idx[0])
}

func TestOrderLine(t *testing.T) {
	// Shuffled collinear points come back as a walk from the far end.
	var pts []r2.Vec
	for i := 0; i < 20; i++ {
		pts = append(pts, r2.Vec{X: float64(i), Y: 0})
	}
	rng := rand.New(rand.NewSource(3))
	rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })

	got, err := Order(context.Background(), pts)
	require.NoError(t, err)
	for i, p := range got {
		assert.Equal(t, float64(19-i), p.X)
	}
}

func TestOrderTieStartsAtLowestIndex(t *testing.T) {
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: -5, Y: 0}}
	idx, err := OrderIndices(context.Background(), pts)
	require.NoError(t, err)
	assert.Equal(t, 1, idx[0])
}

func TestOrderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pts := make([]r2.Vec, 200)
	for i := range pts {
		pts[i] = r2.Vec{X: float64(i)}
	}
	_, err := Order(ctx, pts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrderSmallInputs(t *testing.T) {
	idx, err := OrderIndices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, idx)

	idx, err = OrderIndices(context.Background(), []r2.Vec{{X: 3, Y: 4}})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, idx)

	// Duplicates give a zero median spacing and must not break degree counting.
	idx, err = OrderIndices(context.Background(), []r2.Vec{{X: 1}, {X: 1}, {X: 1}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2}, idx)
}

func TestDownsample(t *testing.T) {
	// Dense cluster at one end, sparse at the other: arc length spacing ignores density.
	var path []r2.Vec
	for i := 0; i <= 100; i++ {
		path = append(path, r2.Vec{X: float64(i) * 0.1})
	}
	for i := 1; i <= 10; i++ {
		path = append(path, r2.Vec{X: 10 + float64(i)})
	}

	got := Downsample(path, 21)
	require.Len(t, got, 21)
	assert.Equal(t, path[0], got[0])
	assert.Equal(t, path[len(path)-1], got[len(got)-1])
	for i, p := range got {
		assert.InDelta(t, float64(i), p.X, 1e-9)
	}
}

func TestDownsampleNoOpAndDegenerate(t *testing.T) {
	short := []r2.Vec{{X: 0}, {X: 1}, {X: 2}}
	assert.Equal(t, short, Downsample(short, 3))
	assert.Equal(t, short, Downsample(short, 10))
	assert.Equal(t, short, Downsample(short, 1))

	same := []r2.Vec{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}
	assert.Equal(t, []r2.Vec{{X: 1, Y: 1}}, Downsample(same, 2))
}

func TestDownsampleIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var path []r2.Vec
	for i := 0; i < 800; i++ {
		a := float64(i) / 800 * 2 * math.Pi
		r := 50 + rng.Float64()*0.02
		path = append(path, r2.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)})
	}

	once := Downsample(path, 100)
	twice := Downsample(once, 100)
	require.Len(t, once, 100)
	assert.Equal(t, once, twice)

	s1, s2 := MeasureSpacing(once), MeasureSpacing(twice)
	assert.InDelta(t, s1.StdDev*s1.StdDev, s2.StdDev*s2.StdDev, 1e-9)
	assert.Less(t, s1.CV(), 0.1)
}

func TestNewPathDropsConsecutiveDuplicates(t *testing.T) {
	p := NewPath([]r2.Vec{{X: 0}, {X: 0}, {X: 1}, {X: 1}, {X: 0}})
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []r2.Vec{{X: 0}, {X: 1}, {X: 0}}, p.Points())
	assert.InDelta(t, 2.0, p.Length(), 1e-12)

	pts := p.Points()
	pts[0] = r2.Vec{X: 99}
	assert.Equal(t, r2.Vec{X: 0}, p.At(0), "Points must return a copy")

	var nilPath *Path
	assert.Equal(t, 0, nilPath.Len())
	assert.Zero(t, nilPath.Length())
}

// ringPNG is a 64x64 black image with a 2px white ring of radius 20 at (32,32).
func ringPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{0, 0, 0, 255}
			if math.Abs(math.Hypot(float64(x-32), float64(y-32))-20) < 1 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ringOptions() Options {
	ex := extract.DefaultOptions()
	ex.Extent = 64
	return Options{
		CanvasSize:     64,
		Background:     color.Black,
		Extract:        ex,
		NeighborRadius: 4,
		MinNeighbors:   1,
		MaxPoints:      5000,
		TargetPoints:   50,
	}
}

func TestRingEndToEnd(t *testing.T) {
	data := ringPNG(t)
	opts := ringOptions()

	// Stage by stage so the ordered sequence can be inspected.
	res, err := imaging.Preprocess(data, "image/png", imaging.Options{Size: 64, Background: color.Black})
	require.NoError(t, err)
	cands, method := extract.NewExtractor(opts.Extract).Extract(res.Canvas)
	require.Equal(t, extract.MethodCenterline, method)

	want := 2 * math.Pi * 20 / 0.5
	assert.InDelta(t, want, float64(len(cands)), want*0.2)

	pts := make([]r2.Vec, len(cands))
	for i, c := range cands {
		pts[i] = c.Pos
	}
	pts = FilterOutliers(pts, opts.NeighborRadius, opts.MinNeighbors, opts.MaxPoints)
	require.Len(t, pts, len(cands), "a connected ring has no outliers")

	ordered, err := Order(context.Background(), pts)
	require.NoError(t, err)
	steps := Spacing(ordered)
	short := 0
	for _, s := range steps {
		if s <= 1.5 {
			short++
		}
		assert.LessOrEqual(t, s, 3.0, "ordered walk jumps across the ring")
	}
	assert.GreaterOrEqual(t, float64(short)/float64(len(steps)), 0.95)

	ds := Downsample(ordered, 50)
	require.Len(t, ds, 50)
	for _, p := range ds {
		assert.InDelta(t, 20, r2.Norm(p), 1.5)
	}
	assert.Less(t, MeasureSpacing(ds).CV(), 0.35)

	angles := make([]float64, len(ds))
	for i, p := range ds {
		angles[i] = math.Atan2(p.Y, p.X)
	}
	sort.Float64s(angles)
	maxGap := angles[0] + 2*math.Pi - angles[len(angles)-1]
	for i := 1; i < len(angles); i++ {
		maxGap = math.Max(maxGap, angles[i]-angles[i-1])
	}
	assert.Less(t, maxGap, 30*math.Pi/180, "downsampled ring has a hole")

	// The pipeline composes the same stages.
	path, st, err := NewPipeline(opts, nil).Run(context.Background(), data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, 50, path.Len())
	assert.Equal(t, extract.MethodCenterline, st.Method)
	assert.Equal(t, len(cands), st.Candidates)
	assert.Equal(t, ds, path.Points())
}

func TestPipelineErrors(t *testing.T) {
	p := NewPipeline(ringOptions(), nil)

	_, _, err := p.Run(context.Background(), []byte("garbage"), "image/png")
	var de *imaging.DecodeError
	assert.True(t, errors.As(err, &de))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64))))
	_, st, err := p.Run(context.Background(), buf.Bytes(), "image/png")
	assert.ErrorIs(t, err, ErrNoPoints)
	assert.Equal(t, extract.MethodNone, st.Method)
	assert.NotEmpty(t, st.Warning, "a blank canvas has no bright quadrants")
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewPipeline(ringOptions(), nil).Run(ctx, ringPNG(t), "image/png")
	assert.ErrorIs(t, err, context.Canceled)
}
