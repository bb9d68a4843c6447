// Package config provides configuration loading and access for the tracer.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all tracer configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Smoothing  SmoothingConfig  `yaml:"smoothing"`
	Typing     TypingConfig     `yaml:"typing"`
	Tracing    TracingConfig    `yaml:"tracing"`
	States     StatesConfig     `yaml:"states"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Watch      WatchConfig      `yaml:"watch"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	TargetFPS int     `yaml:"target_fps"`
	CameraZ   float64 `yaml:"camera_z"` // Camera distance from the origin
	FOV       float64 `yaml:"fov"`
}

// SimulationConfig holds particle physics parameters shared by every state.
type SimulationConfig struct {
	Capacity int     `yaml:"capacity"` // Fixed pool size, never grows
	DT       float64 `yaml:"dt"`       // Seconds per headless tick
	Seed     int64   `yaml:"seed"`     // RNG seed (0 = time-based)

	AmbientDrag float64 `yaml:"ambient_drag"` // Velocity multiplier per tick when not tracing
	TraceDrag   float64 `yaml:"trace_drag"`   // Velocity multiplier per tick when tracing

	TracePull      float64 `yaml:"trace_pull"`      // Spring coefficient toward the path target
	ArrivalEpsilon float64 `yaml:"arrival_epsilon"` // Distance at which a target counts as reached
	NearDistance   float64 `yaml:"near_distance"`   // Below this the pull is replaced by damping
	NearDamping    float64 `yaml:"near_damping"`    // Velocity multiplier when near the target
	TraceSpeed     float64 `yaml:"trace_speed"`     // Position integration scale while tracing
	TraceSizeBoost float64 `yaml:"trace_size_boost"`

	Jitter       float64 `yaml:"jitter"`        // Random velocity kick amplitude
	GravityScale float64 `yaml:"gravity_scale"` // Gravity is multiplied by this before use

	ShellPull        float64 `yaml:"shell_pull"`        // Spring toward the breathing shell
	ShellBreathAmp   float64 `yaml:"shell_breath_amp"`  // Shell radius oscillation amplitude
	ShellBreathRate  float64 `yaml:"shell_breath_rate"` // Shell radius oscillation rate (rad/s of particle age)
	ColliderPush     float64 `yaml:"collider_push"`     // Push-back coefficient beyond collider radius
	SpawnShellJitter float64 `yaml:"spawn_shell_jitter"`
}

// SmoothingConfig holds state interpolation parameters.
type SmoothingConfig struct {
	Factor float64 `yaml:"factor"` // Fraction of the remaining distance covered per tick
}

// TypingConfig holds the typing boost overlay parameters.
type TypingConfig struct {
	CharFactor    float64 `yaml:"char_factor"`    // Emission gain per typed character
	MaxFactor     float64 `yaml:"max_factor"`     // Emission gain ceiling
	QuietInterval float64 `yaml:"quiet_interval"` // Seconds without keystrokes before the boost ends
	SizeBoost     float64 `yaml:"size_boost"`     // Extra size fraction while typing
}

// TracingConfig holds extraction pipeline and trace lifecycle parameters.
type TracingConfig struct {
	CanvasSize int     `yaml:"canvas_size"` // Preprocessor output is CanvasSize x CanvasSize
	Extent     float64 `yaml:"extent"`      // Canvas maps to [-Extent/2, Extent/2]
	Background string  `yaml:"background"`  // Fill colour for letterboxing

	Mode          string  `yaml:"mode"`   // auto, centerline or edges
	Margin        float64 `yaml:"margin"` // Excluded border as a fraction of each dimension
	LowThreshold  float64 `yaml:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold"`
	BlurSigma     float64 `yaml:"blur_sigma"`

	NeighborRadius float64 `yaml:"neighbor_radius"`
	MinNeighbors   int     `yaml:"min_neighbors"`
	MaxPoints      int     `yaml:"max_points"`
	TargetPoints   int     `yaml:"target_points"`

	TransitionWindow float64 `yaml:"transition_window"` // Seconds of burst emission before a swap
	Timeout          float64 `yaml:"timeout"`           // Seconds before a trace reverts to ambient
	BurstRate        float64 `yaml:"burst_rate"`        // Particles per second during a transition
	BurstJitter      float64 `yaml:"burst_jitter"`      // Spawn scatter around old path points
}

// StatesConfig holds one particle config per simulation state.
type StatesConfig struct {
	Unfocused ParticleConfig `yaml:"unfocused"`
	Focused   ParticleConfig `yaml:"focused"`
	Thinking  ParticleConfig `yaml:"thinking"`
	Typing    ParticleConfig `yaml:"typing"`
	Tracing   ParticleConfig `yaml:"tracing"`
}

// ParticleConfig describes the look and motion of the particle field in one state.
type ParticleConfig struct {
	Count          float64     `yaml:"count"`
	Size           float64     `yaml:"size"`
	Speed          float64     `yaml:"speed"`
	Lifetime       float64     `yaml:"lifetime"`
	Color          Color       `yaml:"color"`
	Opacity        float64     `yaml:"opacity"`
	Gravity        float64     `yaml:"gravity"`
	SphereRadius   float64     `yaml:"sphere_radius"`
	ColliderRadius float64     `yaml:"collider_radius"`
	Noise          NoiseConfig `yaml:"noise"`
}

// NoiseConfig holds curl noise parameters.
type NoiseConfig struct {
	Scale         float64 `yaml:"scale"`
	Variation     float64 `yaml:"variation"`
	Seed          int64   `yaml:"seed"`
	SmallScale    float64 `yaml:"small_scale"`
	LargeScale    float64 `yaml:"large_scale"`
	SmallStrength float64 `yaml:"small_strength"`
	LargeStrength float64 `yaml:"large_strength"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // Seconds per stats window
	PerfWindow  int     `yaml:"perf_window"`  // Ticks per perf rolling window
}

// WatchConfig holds drop-folder image source parameters.
type WatchConfig struct {
	Dir      string  `yaml:"dir"`
	Interval float64 `yaml:"interval"` // Minimum seconds between trace requests
	Burst    int     `yaml:"burst"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	HalfExtent float64 // Tracing.Extent / 2
	Background Color   // Parsed Tracing.Background
}

// Color is an RGB colour with channels in [0, 1]. In YAML it is written as "#rrggbb".
type Color struct {
	R, G, B float64
}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

// Hex formats the colour as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel8(c.R), channel8(c.G), channel8(c.B))
}

// RGBA8 returns the colour as 8-bit channels.
func (c Color) RGBA8() (r, g, b uint8) {
	return channel8(c.R), channel8(c.G), channel8(c.B)
}

func channel8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c Color) MarshalYAML() (any, error) {
	return c.Hex(), nil
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.overlay(data); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded defaults. It panics if they are invalid.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// overlay decodes data into the already populated config. Only fields present in
// data are overwritten; unknown keys are rejected so typos do not pass silently.
func (c *Config) overlay(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) finish() error {
	if err := c.validate(); err != nil {
		return err
	}
	return c.computeDerived()
}

func (c *Config) validate() error {
	switch {
	case c.Simulation.Capacity <= 0:
		return fmt.Errorf("simulation.capacity must be positive, got %d", c.Simulation.Capacity)
	case c.Simulation.DT <= 0:
		return fmt.Errorf("simulation.dt must be positive, got %v", c.Simulation.DT)
	case c.Tracing.CanvasSize <= 0:
		return fmt.Errorf("tracing.canvas_size must be positive, got %d", c.Tracing.CanvasSize)
	case c.Tracing.Extent <= 0:
		return fmt.Errorf("tracing.extent must be positive, got %v", c.Tracing.Extent)
	case c.Tracing.MaxPoints <= 0:
		return fmt.Errorf("tracing.max_points must be positive, got %d", c.Tracing.MaxPoints)
	case c.Tracing.TargetPoints < 2:
		return fmt.Errorf("tracing.target_points must be at least 2, got %d", c.Tracing.TargetPoints)
	case c.Tracing.Margin < 0 || c.Tracing.Margin >= 0.5:
		return fmt.Errorf("tracing.margin must be in [0, 0.5), got %v", c.Tracing.Margin)
	case c.Smoothing.Factor <= 0 || c.Smoothing.Factor > 1:
		return fmt.Errorf("smoothing.factor must be in (0, 1], got %v", c.Smoothing.Factor)
	}
	switch c.Tracing.Mode {
	case "auto", "centerline", "edges":
	default:
		return fmt.Errorf("tracing.mode must be auto, centerline or edges, got %q", c.Tracing.Mode)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	c.Derived.HalfExtent = c.Tracing.Extent / 2

	bg, err := ParseColor(c.Tracing.Background)
	if err != nil {
		return fmt.Errorf("tracing.background: %w", err)
	}
	c.Derived.Background = bg
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
