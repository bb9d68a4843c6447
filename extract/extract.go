package extract

import (
	"fmt"
	"image"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Mode selects the extraction algorithm.
type Mode int

const (
	ModeAuto       Mode = iota // centerline, falling back to edges when empty
	ModeCenterline             // centerline only
	ModeEdges                  // edges only
)

// ParseMode parses "auto", "centerline" or "edges".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "centerline":
		return ModeCenterline, nil
	case "edges":
		return ModeEdges, nil
	}
	return ModeAuto, fmt.Errorf("unknown extraction mode %q", s)
}

// Method reports which algorithm produced a candidate set.
type Method string

const (
	MethodNone       Method = "none"
	MethodCenterline Method = "centerline"
	MethodEdges      Method = "edges"
)

// Candidate is an unordered outline point in centred space.
type Candidate struct {
	Pos      r2.Vec
	Strength float64
}

// Options configures an Extractor.
type Options struct {
	Mode          Mode
	Margin        float64 // fraction of each dimension excluded at the border
	LowThreshold  float64
	HighThreshold float64
	BlurSigma     float64
	Extent        float64 // canvas maps to [-Extent/2, Extent/2] on both axes

	// InvertLight treats dark strokes on a light background as foreground
	// for centerline extraction.
	InvertLight bool
}

// DefaultOptions mirrors the shipped configuration.
func DefaultOptions() Options {
	return Options{
		Mode:          ModeAuto,
		Margin:        0.05,
		LowThreshold:  5,
		HighThreshold: 20,
		BlurSigma:     0.5,
		Extent:        220,
		InvertLight:   true,
	}
}

// Extractor turns a canvas into candidate points.
type Extractor struct {
	opts Options
}

// NewExtractor creates an extractor with the given options.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

// Options returns the extractor's configuration.
func (e *Extractor) Options() Options { return e.opts }

// Extract returns candidates sorted by strength, strongest first, and the
// method that produced them. An empty result reports MethodNone.
func (e *Extractor) Extract(img *image.RGBA) ([]Candidate, Method) {
	var (
		px     []Pixel
		method = MethodNone
	)
	if e.opts.Mode != ModeEdges {
		px = e.centerline(img)
		if len(px) > 0 {
			method = MethodCenterline
		}
	}
	if len(px) == 0 && e.opts.Mode != ModeCenterline {
		px = Edges(Grayscale(img), e.opts.BlurSigma, e.opts.LowThreshold, e.opts.HighThreshold, e.opts.Margin)
		if len(px) > 0 {
			method = MethodEdges
		}
	}
	if len(px) == 0 {
		return nil, MethodNone
	}

	sort.SliceStable(px, func(i, j int) bool { return px[i].Strength > px[j].Strength })

	b := img.Bounds()
	out := make([]Candidate, len(px))
	for i, p := range px {
		out[i] = Candidate{
			Pos:      ToCentered(p.X, p.Y, b.Dx(), b.Dy(), e.opts.Extent),
			Strength: p.Strength,
		}
	}
	return out, method
}

func (e *Extractor) centerline(img *image.RGBA) []Pixel {
	mask := Binarize(img)
	if e.opts.InvertLight && mask.Count()*2 > len(mask.Bits) {
		mask.Invert()
	}
	return Centerline(DistanceTransform(mask), e.opts.Margin)
}

// ToCentered maps pixel (x, y) of a w x h canvas into centred space with y up.
func ToCentered(x, y, w, h int, extent float64) r2.Vec {
	return r2.Vec{
		X: (float64(x)/float64(w) - 0.5) * extent,
		Y: -(float64(y)/float64(h) - 0.5) * extent,
	}
}
