package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tracer/camera"
	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/game"
	"github.com/pthm-cable/tracer/preview"
	"github.com/pthm-cable/tracer/renderer"
	"github.com/pthm-cable/tracer/systems"
	"github.com/pthm-cable/tracer/telemetry"
	"github.com/pthm-cable/tracer/ui"
	"github.com/pthm-cable/tracer/watch"
)

const controlsLegend = "[1-5] state  [S] stop trace  [T] typing (Tab ends)  [Tab] panel  [P] perf  [R] reset camera  [F12] snapshot"

type flags struct {
	configPath     string
	headless       bool
	logStats       bool
	logLevel       string
	statsWindow    float64
	outputDir      string
	seed           int64
	maxTicks       int
	stepsPerUpdate int
	watchDir       string
	image          string
	replay         string
	snapshotPNG    string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	flag.BoolVar(&f.headless, "headless", false, "Run without graphics")
	flag.BoolVar(&f.logStats, "log-stats", false, "Output window stats via slog")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Float64Var(&f.statsWindow, "stats-window", 0, "Stats window size in seconds (0 = use config)")
	flag.StringVar(&f.outputDir, "output-dir", "", "Output directory for CSV logs, path snapshots and config")
	flag.Int64Var(&f.seed, "seed", 0, "RNG seed (0 = config, then time-based)")
	flag.IntVar(&f.maxTicks, "max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	flag.IntVar(&f.stepsPerUpdate, "steps-per-update", 1, "Simulation ticks per headless update")
	flag.StringVar(&f.watchDir, "watch", "", "Trace images dropped into this directory (overrides config)")
	flag.StringVar(&f.image, "image", "", "Trace this image file at startup")
	flag.StringVar(&f.replay, "replay", "", "Adopt a saved path snapshot (JSON) at startup")
	flag.StringVar(&f.snapshotPNG, "snapshot-png", "", "Write the final frame to this PNG file")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", f.logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	game.SetLogger(logger)

	if err := run(f, logger); err != nil {
		logger.Error("tracer failed", "error", err)
		os.Exit(1)
	}
}

func run(f flags, logger *slog.Logger) error {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	if f.watchDir != "" {
		cfg.Watch.Dir = f.watchDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, err := game.NewGameWithOptions(game.Options{
		Config:         cfg,
		Seed:           f.seed,
		LogStats:       f.logStats,
		StatsWindowSec: f.statsWindow,
		OutputDir:      f.outputDir,
		StepsPerUpdate: f.stepsPerUpdate,
	})
	if err != nil {
		return err
	}
	defer g.Close()

	if err := startInputs(ctx, f, cfg, g, logger); err != nil {
		return err
	}

	if f.headless {
		runHeadless(ctx, f, g, logger)
	} else {
		runWindowed(ctx, f, cfg, g, logger)
	}

	if f.snapshotPNG != "" {
		if err := writeFrame(f.snapshotPNG, g, cfg); err != nil {
			return err
		}
		logger.Info("frame written", "file", f.snapshotPNG)
	}
	return nil
}

// startInputs feeds the startup image, the replayed path and the watched
// directory into g.
func startInputs(ctx context.Context, f flags, cfg *config.Config, g *game.Game, logger *slog.Logger) error {
	if f.replay != "" {
		snap, err := telemetry.LoadSnapshot(f.replay)
		if err != nil {
			return err
		}
		res := g.AdoptPath(snap.Path())
		logger.Info("path replayed", "file", f.replay, "request_id", snap.RequestID, "status", res.Status.String())
	}

	if f.image != "" {
		mime, ok := watch.MimeFor(f.image)
		if !ok {
			return fmt.Errorf("unsupported image type: %s", f.image)
		}
		data, err := os.ReadFile(f.image)
		if err != nil {
			return err
		}
		ch := g.TraceImage(ctx, data, mime)
		go func() {
			res := <-ch
			attrs := []any{"file", filepath.Base(f.image), "status", res.Status.String(), "points", res.Path.Len()}
			if res.Err != nil {
				attrs = append(attrs, "error", res.Err)
			}
			logger.Info("startup trace resolved", attrs...)
		}()
	}

	if cfg.Watch.Dir != "" {
		opts := watch.OptionsFromConfig(cfg.Watch)
		opts.Logger = logger
		w, err := watch.New(opts, g)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("watcher stopped", "error", err)
			}
		}()
	}
	return nil
}

func runHeadless(ctx context.Context, f flags, g *game.Game, logger *slog.Logger) {
	logger.Info("starting headless simulation",
		"stats_window", f.statsWindow,
		"max_ticks", f.maxTicks,
		"steps_per_update", f.stepsPerUpdate,
		"watch", g.Config().Watch.Dir,
	)

	// Watching is paced to wall time so dropped files arrive at a sane rate.
	var pace *time.Ticker
	if g.Config().Watch.Dir != "" {
		pace = time.NewTicker(time.Duration(g.Config().Simulation.DT * float64(f.stepsPerUpdate) * float64(time.Second)))
		defer pace.Stop()
	}

	for ctx.Err() == nil {
		g.UpdateHeadless()

		if f.maxTicks > 0 && int(g.Tick()) >= f.maxTicks {
			logger.Info("max ticks reached", "tick", g.Tick())
			return
		}
		if pace != nil {
			select {
			case <-pace.C:
			case <-ctx.Done():
			}
		}
	}
}

func runWindowed(ctx context.Context, f flags, cfg *config.Config, g *game.Game, logger *slog.Logger) {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Tracer")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	cam := camera.New(float64(cfg.Screen.Width), float64(cfg.Screen.Height), cfg.Screen.CameraZ, cfg.Screen.FOV)
	bg := renderer.NewBackgroundRenderer(cfg.Derived.Background)
	particles := renderer.NewParticleRenderer(cam)
	hud := ui.NewHUD()
	controls := ui.NewControlsPanel(10, 10, 180)
	perfPanel := ui.NewPerfPanel(10, 0)
	showPerf := false
	pr, pg, pb := cfg.States.Tracing.Color.RGBA8()
	pathColor := rl.Color{R: pr, G: pg, B: pb, A: 90}

	for !rl.WindowShouldClose() && ctx.Err() == nil {
		if rl.IsWindowResized() {
			cam.Resize(float64(rl.GetScreenWidth()), float64(rl.GetScreenHeight()))
		}
		screenW, screenH := int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight())

		handleKeys(g, cam, controls, &showPerf)
		mouse := rl.GetMousePosition()
		if rl.IsMouseButtonDown(rl.MouseButtonLeft) && !controls.Contains(mouse) {
			d := rl.GetMouseDelta()
			cam.Orbit(float64(d.X)*0.005, float64(d.Y)*0.005)
		}
		if wheel := rl.GetMouseWheelMove(); wheel != 0 {
			cam.ZoomBy(1 + float64(wheel)*0.1)
		}
		if g.Typing() {
			for c := rl.GetCharPressed(); c > 0; c = rl.GetCharPressed() {
				g.SetCharacterCount(g.CharacterCount() + 1)
			}
		}

		g.Update(float64(rl.GetFrameTime()))
		g.RecordFrame()

		buf := g.Render()
		rl.BeginDrawing()
		bg.Draw(screenW, screenH)
		if p := g.Path(); p != nil && g.IsTracing() {
			particles.DrawPath(p, pathColor)
		}
		particles.Draw(buf)

		act := controls.Draw(ui.ControlsData{State: g.CurrentState(), Tracing: g.IsTracing(), Typing: g.Typing()})
		applyAction(g, cam, act)

		hud.Draw(ui.HUDData{
			Title:      "Tracer",
			State:      g.CurrentState(),
			TracePhase: g.TracePhase().String(),
			Active:     buf.Active,
			Capacity:   g.Config().Simulation.Capacity,
			PathPoints: g.Path().Len(),
			Emission:   g.Live().Count,
			Tick:       g.Tick(),
			FPS:        rl.GetFPS(),
			Typing:     g.Typing(),
			Chars:      g.CharacterCount(),
		}, screenW)
		if showPerf {
			perfPanel.SetPosition(screenW-260, screenH-140)
			perfPanel.Draw(g.PerfStats(), telemetry.Phases())
		}
		hud.DrawControls(screenH, controlsLegend)
		rl.EndDrawing()

		if rl.IsKeyPressed(rl.KeyF12) {
			name := fmt.Sprintf("frame_%d.png", g.Tick())
			if f.snapshotPNG != "" {
				name = f.snapshotPNG
			}
			if err := writeFrame(name, g, cfg); err != nil {
				logger.Warn("writing frame", "error", err)
			} else {
				logger.Info("frame written", "file", name)
			}
		}

		if f.maxTicks > 0 && int(g.Tick()) >= f.maxTicks {
			break
		}
	}
}

func handleKeys(g *game.Game, cam *camera.Camera, controls *ui.ControlsPanel, showPerf *bool) {
	// Typing mode swallows the shortcuts.
	if g.Typing() {
		if rl.IsKeyPressed(rl.KeyTab) {
			g.SetUserTyping(false)
		}
		return
	}
	for i, s := range systems.States {
		if rl.IsKeyPressed(rl.KeyOne + int32(i)) {
			g.SetState(s.String())
		}
	}
	if rl.IsKeyPressed(rl.KeyS) {
		g.StopTracing()
	}
	if rl.IsKeyPressed(rl.KeyT) {
		for rl.GetCharPressed() > 0 {
		}
		g.SetUserTyping(true)
		g.SetCharacterCount(0)
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyP) {
		*showPerf = !*showPerf
	}
	if rl.IsKeyPressed(rl.KeyR) {
		cam.Reset()
	}
}

func applyAction(g *game.Game, cam *camera.Camera, act ui.Action) {
	if act.State != "" {
		g.SetState(act.State)
	}
	if act.StopTracing {
		g.StopTracing()
	}
	if act.ToggleTyping {
		on := !g.Typing()
		g.SetUserTyping(on)
		if on {
			g.SetCharacterCount(0)
		}
	}
	if act.ResetCamera {
		cam.Reset()
	}
}

func writeFrame(path string, g *game.Game, cfg *config.Config) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	opts := preview.OptionsFromConfig(cfg, cfg.Screen.Width, cfg.Screen.Height)
	if err := preview.WriteFramePNG(out, g.Render(), opts); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
