package trace

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/extract"
	"github.com/pthm-cable/tracer/imaging"
)

// Options configures a Pipeline.
type Options struct {
	CanvasSize int
	Background color.Color
	Extract    extract.Options

	NeighborRadius float64
	MinNeighbors   int
	MaxPoints      int
	TargetPoints   int
}

// OptionsFromConfig builds pipeline options from the tracing section.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	tc := cfg.Tracing
	mode, err := extract.ParseMode(tc.Mode)
	if err != nil {
		return Options{}, err
	}
	r, g, b := cfg.Derived.Background.RGBA8()
	return Options{
		CanvasSize: tc.CanvasSize,
		Background: color.RGBA{R: r, G: g, B: b, A: 255},
		Extract: extract.Options{
			Mode:          mode,
			Margin:        tc.Margin,
			LowThreshold:  tc.LowThreshold,
			HighThreshold: tc.HighThreshold,
			BlurSigma:     tc.BlurSigma,
			Extent:        tc.Extent,
			InvertLight:   true,
		},
		NeighborRadius: tc.NeighborRadius,
		MinNeighbors:   tc.MinNeighbors,
		MaxPoints:      tc.MaxPoints,
		TargetPoints:   tc.TargetPoints,
	}, nil
}

// Stats records what each stage produced.
type Stats struct {
	Method     extract.Method
	Candidates int
	Filtered   int
	Ordered    int
	Final      int
	Length     float64
	Warning    string
	Elapsed    time.Duration
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("method", string(s.Method)),
		slog.Int("candidates", s.Candidates),
		slog.Int("filtered", s.Filtered),
		slog.Int("final", s.Final),
		slog.Float64("length", s.Length),
		slog.Duration("elapsed", s.Elapsed),
	}
	if s.Warning != "" {
		attrs = append(attrs, slog.String("warning", s.Warning))
	}
	return slog.GroupValue(attrs...)
}

// Pipeline converts image bytes into a Path.
type Pipeline struct {
	opts      Options
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewPipeline creates a pipeline. A nil logger discards output.
func NewPipeline(opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		opts:      opts,
		extractor: extract.NewExtractor(opts.Extract),
		logger:    logger,
	}
}

// Run preprocesses, extracts, filters, orders and downsamples. It checks ctx
// between stages and inside ordering. Decode failures return the
// imaging.DecodeError; an empty extraction returns ErrNoPoints.
func (p *Pipeline) Run(ctx context.Context, data []byte, mime string) (*Path, Stats, error) {
	start := time.Now()
	var st Stats

	res, err := imaging.Preprocess(data, mime, imaging.Options{Size: p.opts.CanvasSize, Background: p.opts.Background})
	if err != nil {
		return nil, st, err
	}
	if res.Warning != nil {
		st.Warning = res.Warning.Error()
		p.logger.Warn("incomplete image", "warning", st.Warning)
	}
	if err := ctx.Err(); err != nil {
		return nil, st, err
	}

	cands, method := p.extractor.Extract(res.Canvas)
	st.Method = method
	st.Candidates = len(cands)
	if len(cands) == 0 {
		return nil, st, ErrNoPoints
	}
	if err := ctx.Err(); err != nil {
		return nil, st, err
	}

	pts := make([]r2.Vec, len(cands))
	for i, c := range cands {
		pts[i] = c.Pos
	}
	pts = FilterOutliers(pts, p.opts.NeighborRadius, p.opts.MinNeighbors, p.opts.MaxPoints)
	st.Filtered = len(pts)
	if len(pts) == 0 {
		return nil, st, ErrNoPoints
	}

	ordered, err := Order(ctx, pts)
	if err != nil {
		return nil, st, fmt.Errorf("ordering: %w", err)
	}
	st.Ordered = len(ordered)

	path := NewPath(Downsample(ordered, p.opts.TargetPoints))
	st.Final = path.Len()
	st.Length = path.Length()
	st.Elapsed = time.Since(start)

	p.logger.Debug("trace extracted", "stats", st)
	return path, st, nil
}
