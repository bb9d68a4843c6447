package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/tracer/config"
)

// TraceRecord is one resolved trace request.
type TraceRecord struct {
	Tick       int32   `csv:"tick"`
	RequestID  string  `csv:"request_id"`
	Generation uint64  `csv:"generation"`
	Status     string  `csv:"status"`
	Method     string  `csv:"method"`
	Candidates int     `csv:"candidates"`
	Filtered   int     `csv:"filtered"`
	Final      int     `csv:"final"`
	Length     float64 `csv:"length"`
	ElapsedMS  float64 `csv:"elapsed_ms"`
	Error      string  `csv:"error"`
}

// csvFile writes gocsv records, emitting the header only once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func openCSV(dir, name string) (*csvFile, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvFile{f: f}, nil
}

func writeRecords[T any](c *csvFile, records []T) error {
	if c.headerWritten {
		return gocsv.MarshalWithoutHeaders(records, c.f)
	}
	if err := gocsv.Marshal(records, c.f); err != nil {
		return err
	}
	c.headerWritten = true
	return nil
}

// OutputManager writes run output: CSV logs, the config snapshot and saved paths.
type OutputManager struct {
	dir       string
	telemetry *csvFile
	perf      *csvFile
	traces    *csvFile
}

// NewOutputManager creates dir and opens the CSV files.
// Returns nil if dir is empty (output disabled); all methods accept a nil receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	if om.telemetry, err = openCSV(dir, "telemetry.csv"); err != nil {
		return nil, err
	}
	if om.perf, err = openCSV(dir, "perf.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.traces, err = openCSV(dir, "traces.csv"); err != nil {
		om.Close()
		return nil, err
	}
	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry appends a window to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.telemetry, []WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf appends a perf window to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.perf, []PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteTrace appends a resolved request to traces.csv.
func (om *OutputManager) WriteTrace(r TraceRecord) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.traces, []TraceRecord{r}); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// WritePath saves an adopted path under dir/paths.
func (om *OutputManager) WritePath(s *PathSnapshot) (string, error) {
	if om == nil {
		return "", nil
	}
	return SaveSnapshot(s, filepath.Join(om.dir, "paths"))
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files and returns the first error.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	for _, c := range []*csvFile{om.telemetry, om.perf, om.traces} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
