// Package main provides CMA-ES optimization of the extraction parameters
// against synthetic fixtures with known outlines.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/preview"
	"github.com/pthm-cable/tracer/trace"
)

// evalRow is one line of optimize_log.csv.
type evalRow struct {
	Eval           int     `csv:"eval"`
	Fitness        float64 `csv:"fitness"`
	Failures       int     `csv:"failures"`
	BlurSigma      float64 `csv:"blur_sigma"`
	LowThreshold   float64 `csv:"low_threshold"`
	HighThreshold  float64 `csv:"high_threshold"`
	NeighborRadius float64 `csv:"neighbor_radius"`
	MinNeighbors   int     `csv:"min_neighbors"`
	Margin         float64 `csv:"margin"`
}

func newEvalRow(eval int, fitness float64, failures int, cfg *config.Config) *evalRow {
	t := cfg.Tracing
	return &evalRow{
		Eval:           eval,
		Fitness:        fitness,
		Failures:       failures,
		BlurSigma:      t.BlurSigma,
		LowThreshold:   t.LowThreshold,
		HighThreshold:  t.HighThreshold,
		NeighborRadius: t.NeighborRadius,
		MinNeighbors:   t.MinNeighbors,
		Margin:         t.Margin,
	}
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	canvas := flag.Int("canvas", 256, "Canvas size used for fixtures (overrides config)")
	seeds := flag.Int("seeds", 3, "Noise seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	baseCfg := config.Default()
	if *configPath != "" {
		var err error
		if baseCfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *canvas > 0 {
		baseCfg.Tracing.CanvasSize = *canvas
	}

	params := NewParamVector()
	fixtures := Fixtures()

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, fixtures, evalSeeds, baseCfg)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Evaluate parallelises internally
	}

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := failurePenalty * 2
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)
			evalCount++

			clamped := params.Clamp(raw)
			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			cfg := *baseCfg
			params.ApplyToConfig(&cfg, clamped)
			_, failures := evaluator.LastScores()
			row := []*evalRow{newEvalRow(evalCount, fitness, failures, &cfg)}
			if evalCount == 1 {
				err = gocsv.Marshal(row, logFile)
			} else {
				err = gocsv.MarshalWithoutHeaders(row, logFile)
			}
			if err != nil {
				log.Printf("writing eval log: %v", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval
			fmt.Printf("Eval %d/%d: fitness=%.4f failures=%d (best=%.4f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, fitness, failures, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))
			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Fixtures: %d, seeds per evaluation: %d, canvas: %d\n", len(fixtures), *seeds, baseCfg.Tracing.CanvasSize)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluations completed")
	}

	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.4f\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Name, bestParams[i])
	}

	bestCfg := *baseCfg
	params.ApplyToConfig(&bestCfg, bestParams)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	if err := writePreviews(&bestCfg, fixtures, *outputDir); err != nil {
		log.Printf("failed to write previews: %v", err)
	}
}

// writePreviews traces each clean fixture with cfg and saves the path.
func writePreviews(cfg *config.Config, fixtures []Fixture, dir string) error {
	opts, err := trace.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	pipeline := trace.NewPipeline(opts, nil)
	popts := preview.OptionsFromConfig(cfg, 512, 512)

	for _, f := range fixtures {
		data, err := f.Render(cfg.Tracing.CanvasSize, 0, nil)
		if err != nil {
			return err
		}
		path, _, err := pipeline.Run(context.Background(), data, "image/png")
		if err != nil {
			fmt.Printf("  %s: %v\n", f.Name, err)
			continue
		}
		name := filepath.Join(dir, "best_"+f.Name+".png")
		out, err := os.Create(name)
		if err != nil {
			return err
		}
		if err := preview.WritePathPNG(out, path, popts); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		fmt.Printf("  %s: %d points -> %s\n", f.Name, path.Len(), name)
	}
	return nil
}
