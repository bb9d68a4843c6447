package main

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/trace"
)

// failurePenalty is the score of a fixture that produced no path. Scores
// are in units of the extent, so a working trace lands far below it.
const failurePenalty = 1.0

// pixelNoise is the standard deviation of noise added to fixtures, in
// 8-bit levels.
const pixelNoise = 12.0

// FitnessEvaluator runs the pipeline over noisy fixtures and scores how
// closely the paths follow each reference curve.
type FitnessEvaluator struct {
	params     *ParamVector
	fixtures   []Fixture
	seeds      []int64
	baseConfig *config.Config

	mu          sync.Mutex
	lastScores  map[string]float64 // per-fixture mean from the most recent Evaluate
	lastFailure int
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, fixtures []Fixture, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		fixtures:   fixtures,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastScores returns the per-fixture scores from the most recent evaluation.
func (fe *FitnessEvaluator) LastScores() (map[string]float64, int) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastScores, fe.lastFailure
}

type fixtureResult struct {
	fixture int
	score   float64
	failed  bool
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	opts, err := trace.OptionsFromConfig(cfg)
	if err != nil {
		return failurePenalty
	}
	pipeline := trace.NewPipeline(opts, nil)

	// Every (seed, fixture) pair runs in parallel.
	results := make([]fixtureResult, len(fe.seeds)*len(fe.fixtures))
	var wg sync.WaitGroup
	for si, seed := range fe.seeds {
		for fi := range fe.fixtures {
			wg.Add(1)
			go func(idx, fi int, seed int64) {
				defer wg.Done()
				score, ok := fe.runFixture(pipeline, cfg, fe.fixtures[fi], seed)
				results[idx] = fixtureResult{fixture: fi, score: score, failed: !ok}
			}(si*len(fe.fixtures)+fi, fi, seed)
		}
	}
	wg.Wait()

	all := make([]float64, len(results))
	perFixture := make(map[string][]float64, len(fe.fixtures))
	failures := 0
	for i, r := range results {
		all[i] = r.score
		name := fe.fixtures[r.fixture].Name
		perFixture[name] = append(perFixture[name], r.score)
		if r.failed {
			failures++
		}
	}

	scores := make(map[string]float64, len(perFixture))
	for name, v := range perFixture {
		scores[name] = stat.Mean(v, nil)
	}
	fe.mu.Lock()
	fe.lastScores = scores
	fe.lastFailure = failures
	fe.mu.Unlock()

	return stat.Mean(all, nil)
}

// runFixture traces one noisy rendering of f.
func (fe *FitnessEvaluator) runFixture(p *trace.Pipeline, cfg *config.Config, f Fixture, seed int64) (float64, bool) {
	rng := rand.New(rand.NewSource(seed))
	size := cfg.Tracing.CanvasSize
	data, err := f.Render(size, pixelNoise, rng)
	if err != nil {
		return failurePenalty, false
	}
	path, _, err := p.Run(context.Background(), data, "image/png")
	if err != nil || path.Len() == 0 {
		return failurePenalty, false
	}
	return curveScore(path.Points(), f.Truth(size, cfg.Tracing.Extent), cfg.Tracing.Extent), true
}

// curveScore is the symmetric mean nearest-point distance between got and
// want, divided by extent. Zero means the curves coincide.
func curveScore(got, want []r2.Vec, extent float64) float64 {
	if len(got) == 0 || len(want) == 0 {
		return failurePenalty
	}
	precision := meanNearest(got, want)
	recall := meanNearest(want, got)
	return min(failurePenalty, (precision+recall)/extent)
}

// meanNearest averages, over a, the distance to the closest point of b.
func meanNearest(a, b []r2.Vec) float64 {
	d := make([]float64, len(a))
	for i, p := range a {
		best := math.Inf(1)
		for _, q := range b {
			best = min(best, r2.Norm2(r2.Sub(p, q)))
		}
		d[i] = math.Sqrt(best)
	}
	return stat.Mean(d, nil)
}

// copyConfig returns a copy of the base config. Config holds only values.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}
