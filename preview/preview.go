// Package preview renders particle frames and trace paths to PNG without a
// window.
package preview

import (
	"fmt"
	"image"
	"io"

	"github.com/gogpu/gg"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tracer/camera"
	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/systems"
	"github.com/pthm-cable/tracer/trace"
)

const minDotRadius = 0.5

// Options configures an image.
type Options struct {
	Width, Height int
	Background    config.Color
	Foreground    config.Color // path stroke colour
	Extent        float64      // world units spanned by the image (path previews)
	PointRadius   float64      // path vertex marker radius in pixels; 0 hides markers
	Camera        *camera.Camera
}

// OptionsFromConfig builds options matching the windowed view.
func OptionsFromConfig(cfg *config.Config, w, h int) Options {
	return Options{
		Width:       w,
		Height:      h,
		Background:  cfg.Derived.Background,
		Foreground:  cfg.States.Tracing.Color,
		Extent:      cfg.Tracing.Extent,
		PointRadius: 1.5,
		Camera:      camera.New(float64(w), float64(h), cfg.Screen.CameraZ, cfg.Screen.FOV),
	}
}

func newContext(opts Options) *gg.Context {
	dc := gg.NewContext(opts.Width, opts.Height)
	bg := opts.Background
	dc.ClearWithColor(gg.RGB(bg.R, bg.G, bg.B))
	return dc
}

// Frame draws every visible particle of buf as a disc.
func Frame(buf *systems.RenderBuffer, opts Options) (image.Image, error) {
	return render(opts, func(dc *gg.Context) error { return drawFrame(dc, buf, opts) })
}

// Path draws p as an open polyline with optional vertex markers.
func Path(p *trace.Path, opts Options) (image.Image, error) {
	return render(opts, func(dc *gg.Context) error { return drawPath(dc, p, opts) })
}

// WriteFramePNG encodes Frame as PNG.
func WriteFramePNG(w io.Writer, buf *systems.RenderBuffer, opts Options) error {
	return encode(w, opts, func(dc *gg.Context) error { return drawFrame(dc, buf, opts) })
}

// WritePathPNG encodes Path as PNG.
func WritePathPNG(w io.Writer, p *trace.Path, opts Options) error {
	return encode(w, opts, func(dc *gg.Context) error { return drawPath(dc, p, opts) })
}

func render(opts Options, draw func(*gg.Context) error) (image.Image, error) {
	dc := newContext(opts)
	defer dc.Close()
	if err := draw(dc); err != nil {
		return nil, err
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

func encode(w io.Writer, opts Options, draw func(*gg.Context) error) error {
	dc := newContext(opts)
	defer dc.Close()
	if err := draw(dc); err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

func drawFrame(dc *gg.Context, buf *systems.RenderBuffer, opts Options) error {
	cam := opts.Camera
	if cam == nil {
		return fmt.Errorf("preview: frame needs a camera")
	}
	for i := 0; i < buf.Len; i++ {
		a := float64(buf.Alpha[i])
		if a <= 0 {
			continue
		}
		x, y, z := buf.Position(i)
		sx, sy, scale, ok := cam.Project(r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)})
		if !ok {
			continue
		}
		r, g, b := buf.Color(i)
		dc.SetRGBA(float64(r), float64(g), float64(b), min(a, 1))
		dc.DrawCircle(sx, sy, max(float64(buf.Size[i])*scale*0.5, minDotRadius))
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("preview: fill: %w", err)
		}
	}
	return nil
}

// toPixels maps centred path space onto the image, +Y up.
func toPixels(x, y float64, opts Options) (float64, float64) {
	s := float64(min(opts.Width, opts.Height)) / opts.Extent
	return float64(opts.Width)/2 + x*s, float64(opts.Height)/2 - y*s
}

func drawPath(dc *gg.Context, p *trace.Path, opts Options) error {
	if opts.Extent <= 0 {
		return fmt.Errorf("preview: extent must be positive")
	}

	fg := opts.Foreground
	dc.SetRGBA(fg.R, fg.G, fg.B, 1)
	dc.SetLineWidth(1)
	for i, v := range p.Points() {
		x, y := toPixels(v.X, v.Y, opts)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	if p.Len() > 1 {
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("preview: stroke: %w", err)
		}
	} else {
		dc.ClearPath()
	}

	if opts.PointRadius > 0 {
		for _, v := range p.Points() {
			x, y := toPixels(v.X, v.Y, opts)
			dc.DrawCircle(x, y, opts.PointRadius)
		}
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("preview: fill: %w", err)
		}
	}
	return nil
}
