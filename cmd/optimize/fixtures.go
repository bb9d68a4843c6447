package main

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"math/rand"

	"github.com/gogpu/gg"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/extract"
)

// truthSamples is how many points each fixture's reference curve is
// sampled at.
const truthSamples = 240

// Fixture is a synthetic image with a known reference curve.
type Fixture struct {
	Name   string
	Light  bool // dark strokes on a light background
	Filled bool
	draw  func(dc *gg.Context, n float64)
	truth func(t float64, n float64) (x, y float64) // pixel coords, t in [0, 1)
}

// Fixtures returns the standard tuning set.
func Fixtures() []Fixture {
	return []Fixture{
		{
			Name: "ring",
			draw: func(dc *gg.Context, n float64) {
				dc.SetLineWidth(2)
				dc.DrawCircle(n/2, n/2, 0.3*n)
			},
			truth: circle(0.3),
		},
		{
			Name:   "disc",
			Filled: true,
			draw: func(dc *gg.Context, n float64) {
				dc.DrawCircle(n/2, n/2, 0.25*n)
			},
			truth: circle(0.25),
		},
		{
			Name: "square",
			draw: func(dc *gg.Context, n float64) {
				dc.SetLineWidth(2)
				a, b := 0.25*n, 0.75*n
				dc.MoveTo(a, a)
				dc.LineTo(b, a)
				dc.LineTo(b, b)
				dc.LineTo(a, b)
				dc.ClosePath()
			},
			truth: func(t, n float64) (float64, float64) {
				a, side := 0.25*n, 0.5*n
				s := t * 4
				switch k := int(s); k {
				case 0:
					return a + (s-0)*side, a
				case 1:
					return a + side, a + (s-1)*side
				case 2:
					return a + side - (s-2)*side, a + side
				default:
					return a, a + side - (s-3)*side
				}
			},
		},
		{
			Name:  "ink-stroke",
			Light: true,
			draw: func(dc *gg.Context, n float64) {
				dc.SetLineWidth(3)
				dc.MoveTo(0.3*n, 0.2*n)
				dc.LineTo(0.3*n, 0.75*n)
				dc.LineTo(0.7*n, 0.75*n)
			},
			truth: func(t, n float64) (float64, float64) {
				// Two legs of equal length.
				if t < 0.5 {
					return 0.3 * n, (0.2 + 0.55*t*2) * n
				}
				return (0.3 + 0.4*(t-0.5)*2) * n, 0.75 * n
			},
		},
	}
}

func circle(radius float64) func(t, n float64) (float64, float64) {
	return func(t, n float64) (float64, float64) {
		s, c := math.Sincos(2 * math.Pi * t)
		return n/2 + radius*n*c, n/2 + radius*n*s
	}
}

// Render draws the fixture at size x size pixels, adds Gaussian pixel noise
// with the given standard deviation and returns PNG bytes.
func (f Fixture) Render(size int, noise float64, rng *rand.Rand) ([]byte, error) {
	dc := gg.NewContext(size, size)
	defer dc.Close()

	bg, fg := 0.0, 1.0
	if f.Light {
		bg, fg = 1.0, 0.0
	}
	dc.ClearWithColor(gg.RGB(bg, bg, bg))
	dc.SetRGBA(fg, fg, fg, 1)
	f.draw(dc, float64(size))
	paint := dc.Stroke
	if f.Filled {
		paint = dc.Fill
	}
	if err := paint(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", f.Name, err)
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, err
	}

	src := dc.Image()
	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	if noise > 0 && rng != nil {
		addNoise(img, noise, rng)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addNoise(img *image.RGBA, sigma float64, rng *rand.Rand) {
	for i := 0; i < len(img.Pix); i += 4 {
		d := rng.NormFloat64() * sigma
		for c := range 3 {
			v := float64(img.Pix[i+c]) + d
			img.Pix[i+c] = uint8(max(0, min(255, v)))
		}
	}
}

// Truth samples the reference curve in centred space.
func (f Fixture) Truth(size int, extent float64) []r2.Vec {
	n := float64(size)
	pts := make([]r2.Vec, truthSamples)
	for i := range pts {
		x, y := f.truth(float64(i)/truthSamples, n)
		pts[i] = extract.ToCentered(int(math.Round(x)), int(math.Round(y)), size, size, extent)
	}
	return pts
}
