package main

import (
	"math"

	"github.com/pthm-cable/tracer/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Integer bool    // rounded before use
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of extraction parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Preprocessing
			{Name: "blur_sigma", Path: "tracing.blur_sigma", Min: 0.2, Max: 3.0, Default: 0.5},
			// Edge hysteresis; high is expressed as a multiple of low so it never drops below it
			{Name: "low_threshold", Path: "tracing.low_threshold", Min: 1, Max: 40, Default: 5},
			{Name: "high_ratio", Path: "tracing.high_threshold", Min: 1.2, Max: 6, Default: 4},
			// Outlier filter
			{Name: "neighbor_radius", Path: "tracing.neighbor_radius", Min: 1, Max: 12, Default: 4},
			{Name: "min_neighbors", Path: "tracing.min_neighbors", Min: 0, Max: 6, Default: 1, Integer: true},
			{Name: "margin", Path: "tracing.margin", Min: 0, Max: 0.15, Default: 0.05},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds and integers are whole.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := max(spec.Min, min(spec.Max, v[i]))
		if spec.Integer {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	t := &cfg.Tracing
	t.BlurSigma = c[0]
	t.LowThreshold = c[1]
	t.HighThreshold = c[1] * c[2]
	t.NeighborRadius = c[3]
	t.MinNeighbors = int(c[4])
	t.Margin = c[5]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	t := cfg.Tracing
	ratio := pv.Specs[2].Default
	if t.LowThreshold > 0 {
		ratio = t.HighThreshold / t.LowThreshold
	}
	return []float64{
		t.BlurSigma,
		t.LowThreshold,
		ratio,
		t.NeighborRadius,
		float64(t.MinNeighbors),
		t.Margin,
	}
}
