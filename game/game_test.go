package game

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/components"
	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/imaging"
	"github.com/pthm-cable/tracer/systems"
	"github.com/pthm-cable/tracer/telemetry"
	"github.com/pthm-cable/tracer/trace"
)

// stubExtractor returns canned paths keyed by the request bytes. A key with a
// gate blocks until the gate is closed, ignoring cancellation like a slow
// extraction stuck inside a stage.
type stubExtractor struct {
	paths map[string]*trace.Path
	gates map[string]chan struct{}
}

func (s *stubExtractor) Run(_ context.Context, data []byte, mime string) (*trace.Path, trace.Stats, error) {
	key := string(data)
	if gate, ok := s.gates[key]; ok {
		<-gate
	}
	p, ok := s.paths[key]
	if !ok {
		return nil, trace.Stats{}, &imaging.DecodeError{Mime: mime, Err: errors.New("not an image")}
	}
	return p, trace.Stats{Final: p.Len(), Elapsed: time.Millisecond}, nil
}

func circlePath(n int, r float64) *trace.Path {
	pts := make([]r2.Vec, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r2.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	return trace.NewPath(pts)
}

func newTestGame(t *testing.T, cfg *config.Config, ex Extractor) *Game {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Simulation.Capacity = 2000
	g, err := NewGameWithOptions(Options{Config: cfg, Seed: 7, Extractor: ex})
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

// await ticks the game until ch delivers.
func await(t *testing.T, g *Game, ch <-chan TraceResult) TraceResult {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		g.Update(1.0 / 60)
		select {
		case r := <-ch:
			return r
		default:
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("trace result was not delivered")
	return TraceResult{}
}

func targets(g *Game) (withTarget, without int, maxIndex int32) {
	maxIndex = -1
	g.engine.Pool().Each(func(_ *components.Motion, _ *components.Life, _ *components.Look, tr *components.Trace) {
		if tr.HasTarget() {
			withTarget++
			maxIndex = max(maxIndex, tr.Index)
		} else {
			without++
		}
	})
	return withTarget, without, maxIndex
}

func TestGame_SetState(t *testing.T) {
	g := newTestGame(t, nil, &stubExtractor{})
	assert.Equal(t, "unfocused", g.CurrentState())

	g.SetState("thinking")
	assert.Equal(t, "thinking", g.CurrentState())

	g.SetState("Focused")
	assert.Equal(t, "focused", g.CurrentState())

	g.SetState("dancing")
	assert.Equal(t, "unfocused", g.CurrentState(), "unknown names fall back to unfocused")
}

func TestGame_TraceImageAdopts(t *testing.T) {
	p := circlePath(40, 50)
	g := newTestGame(t, nil, &stubExtractor{paths: map[string]*trace.Path{"ring": p}})
	for range 30 {
		g.Update(1.0 / 60)
	}

	res := await(t, g, g.TraceImage(context.Background(), []byte("ring"), "image/png"))
	require.Equal(t, TraceAdopted, res.Status, "err: %v", res.Err)
	assert.Same(t, p, res.Path)
	assert.NotEmpty(t, res.RequestID)
	assert.True(t, g.IsTracing())
	assert.Equal(t, "tracing", g.CurrentState())
	assert.Same(t, p, g.Path())

	g.Update(1.0 / 60)
	with, without, maxIdx := targets(g)
	assert.Positive(t, with)
	assert.Zero(t, without, "every particle gets a target when tracing starts")
	assert.Less(t, maxIdx, int32(p.Len()))
}

func TestGame_RapidDoubleTraceAdoptsLatest(t *testing.T) {
	first, second := circlePath(30, 40), circlePath(12, 20)
	gate := make(chan struct{})
	g := newTestGame(t, nil, &stubExtractor{
		paths: map[string]*trace.Path{"first": first, "second": second},
		gates: map[string]chan struct{}{"first": gate},
	})

	ch1 := g.TraceImage(context.Background(), []byte("first"), "image/png")
	ch2 := g.TraceImage(context.Background(), []byte("second"), "image/png")

	res2 := await(t, g, ch2)
	require.Equal(t, TraceAdopted, res2.Status)
	assert.Greater(t, res2.Generation, uint64(1))

	// The slow first extraction finishes after it was superseded.
	close(gate)
	res1 := await(t, g, ch1)
	assert.Equal(t, TraceSuperseded, res1.Status)
	assert.Nil(t, res1.Path)

	assert.Same(t, second, g.Path(), "only the latest generation is adopted")
	assert.Equal(t, systems.PhaseTracing, g.TracePhase())
}

func TestGame_DecodeFailureKeepsPriorTrace(t *testing.T) {
	p := circlePath(20, 30)
	g := newTestGame(t, nil, &stubExtractor{paths: map[string]*trace.Path{"ok": p}})

	require.Equal(t, TraceAdopted, await(t, g, g.TraceImage(context.Background(), []byte("ok"), "image/png")).Status)

	res := await(t, g, g.TraceImage(context.Background(), []byte("garbage"), "image/png"))
	assert.Equal(t, TraceFailed, res.Status)
	var de *imaging.DecodeError
	assert.ErrorAs(t, res.Err, &de)
	assert.Nil(t, res.Path)

	assert.True(t, g.IsTracing())
	assert.Same(t, p, g.Path())
}

func TestGame_SecondTraceTransitions(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.TransitionWindow = 0.25
	cfg.Tracing.BurstRate = 600
	oldPath, newPath := circlePath(400, 60), circlePath(9, 25)
	g := newTestGame(t, cfg, &stubExtractor{paths: map[string]*trace.Path{"old": oldPath, "new": newPath}})

	require.Equal(t, TraceAdopted, await(t, g, g.TraceImage(context.Background(), []byte("old"), "image/png")).Status)
	for range 20 {
		g.Update(1.0 / 60)
	}

	res := await(t, g, g.TraceImage(context.Background(), []byte("new"), "image/png"))
	require.Equal(t, TraceQueued, res.Status)
	require.Equal(t, systems.PhaseTransitioning, g.TracePhase())

	bursts := 0
	for g.TracePhase() == systems.PhaseTransitioning {
		require.True(t, g.IsTracing(), "tracing never drops mid-transition")
		require.Same(t, oldPath, g.Path(), "old path stays until the window ends")
		g.Update(1.0 / 60)
		bursts += g.LastStep().Burst
	}
	assert.Positive(t, bursts)
	assert.Same(t, newPath, g.Path())

	g.Update(1.0 / 60)
	with, without, maxIdx := targets(g)
	assert.Positive(t, with)
	assert.Zero(t, without)
	assert.Less(t, maxIdx, int32(newPath.Len()), "after the swap every target indexes the new path")
}

func TestGame_StopTracingSupersedesInFlight(t *testing.T) {
	p := circlePath(20, 30)
	gate := make(chan struct{})
	g := newTestGame(t, nil, &stubExtractor{
		paths: map[string]*trace.Path{"a": p, "slow": circlePath(10, 10)},
		gates: map[string]chan struct{}{"slow": gate},
	})

	require.Equal(t, TraceAdopted, await(t, g, g.TraceImage(context.Background(), []byte("a"), "image/png")).Status)
	ch := g.TraceImage(context.Background(), []byte("slow"), "image/png")

	g.StopTracing()
	assert.False(t, g.IsTracing())
	assert.Equal(t, "unfocused", g.CurrentState())
	with, _, _ := targets(g)
	assert.Zero(t, with, "stop clears every target")

	close(gate)
	assert.Equal(t, TraceSuperseded, await(t, g, ch).Status)
	assert.False(t, g.IsTracing())
	assert.Nil(t, g.Path())
}

func TestGame_TimeoutRevertsToUnfocused(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.Timeout = 0.5
	g := newTestGame(t, cfg, &stubExtractor{paths: map[string]*trace.Path{"a": circlePath(10, 10)}})

	require.Equal(t, TraceAdopted, await(t, g, g.TraceImage(context.Background(), []byte("a"), "image/png")).Status)
	for range 45 {
		g.Update(1.0 / 60)
	}
	assert.False(t, g.IsTracing())
	assert.Equal(t, "unfocused", g.CurrentState())
}

func TestGame_CloseResolvesPending(t *testing.T) {
	gate := make(chan struct{})
	g, err := NewGameWithOptions(Options{Seed: 3, Extractor: &stubExtractor{
		paths: map[string]*trace.Path{"a": circlePath(10, 10)},
		gates: map[string]chan struct{}{"a": gate},
	}})
	require.NoError(t, err)

	ch := g.TraceImage(context.Background(), []byte("a"), "image/png")
	close(gate)
	require.NoError(t, g.Close())

	select {
	case res := <-ch:
		assert.Equal(t, TraceSuperseded, res.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("pending request not resolved by Close")
	}

	res := <-g.TraceImage(context.Background(), []byte("a"), "image/png")
	assert.Equal(t, TraceFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrClosed)
}

func TestGame_TypingRaisesEmission(t *testing.T) {
	emitted := func(typing bool) int {
		g := newTestGame(t, nil, &stubExtractor{})
		if typing {
			g.SetUserTyping(true)
			g.SetCharacterCount(20)
		}
		total := 0
		for range 30 {
			g.Update(1.0 / 60)
			total += g.LastStep().Emitted
		}
		return total
	}
	base, boosted := emitted(false), emitted(true)
	assert.Positive(t, base)
	assert.Greater(t, boosted, base*2)
}

func TestGame_AgeInvariantAcrossStates(t *testing.T) {
	g := newTestGame(t, nil, &stubExtractor{})
	for i, s := range []string{"focused", "thinking", "typing", "unfocused"} {
		g.SetState(s)
		for range 90 {
			g.Update(1.0 / 30)
			require.LessOrEqual(t, g.engine.Pool().Count(), g.Config().Simulation.Capacity)
			g.engine.Pool().Each(func(_ *components.Motion, l *components.Life, _ *components.Look, _ *components.Trace) {
				if l.Age < 0 || l.Age > l.Lifetime {
					t.Fatalf("state %d: age %v outside [0, %v]", i, l.Age, l.Lifetime)
				}
			})
		}
	}
}

func TestGame_HeadlessTelemetryOutput(t *testing.T) {
	dir := t.TempDir()
	var windows []telemetry.WindowStats
	g, err := NewGameWithOptions(Options{
		Seed:           11,
		Extractor:      &stubExtractor{paths: map[string]*trace.Path{"a": circlePath(16, 30)}},
		StatsWindowSec: 0.5,
		StepsPerUpdate: 60,
		OutputDir:      dir,
		StatsCallback:  func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	require.NoError(t, err)

	res := g.AdoptPath(circlePath(16, 30))
	require.Equal(t, TraceAdopted, res.Status)

	g.UpdateHeadless()
	assert.Equal(t, int32(60), g.Tick())
	require.Len(t, windows, 2)
	assert.Equal(t, "tracing", windows[1].State)
	assert.Equal(t, 16, windows[1].PathPoints)
	assert.Positive(t, windows[0].Emitted)

	require.NoError(t, g.Close())
	for _, name := range []string{"telemetry.csv", "perf.csv", "traces.csv", "config.yaml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	saved, err := filepath.Glob(filepath.Join(dir, "paths", "*.json"))
	require.NoError(t, err)
	require.Len(t, saved, 1)

	snap, err := telemetry.LoadSnapshot(saved[0])
	require.NoError(t, err)
	assert.Equal(t, 16, snap.Path().Len())
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

func TestGame_TraceImageWithPipeline(t *testing.T) {
	cfg := config.Default()
	px := cfg.Tracing.Extent / 64
	cfg.Tracing.CanvasSize = 64
	cfg.Tracing.TargetPoints = 50
	cfg.Tracing.NeighborRadius = 4 * px
	g := newTestGame(t, cfg, nil)

	res := await(t, g, g.TraceImage(context.Background(), ringPNG(t), "image/png"))
	require.Equal(t, TraceAdopted, res.Status, "err: %v", res.Err)
	assert.Equal(t, 50, res.Path.Len())
	assert.NotEqual(t, "none", string(res.Stats.Method))

	for _, v := range res.Path.Points() {
		assert.InDelta(t, 20*px, r2.Norm(v), 1.5*px)
	}
}
