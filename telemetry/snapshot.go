package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/trace"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// PathSnapshot is an adopted trace path saved for replay.
type PathSnapshot struct {
	Version    int    `json:"version"`
	RequestID  string `json:"request_id,omitempty"`
	Generation uint64 `json:"generation"`
	Tick       int32  `json:"tick"`
	Source     string `json:"source,omitempty"`

	Method     string  `json:"method"`
	Candidates int     `json:"candidates"`
	Filtered   int     `json:"filtered"`
	Length     float64 `json:"length"`
	Warning    string  `json:"warning,omitempty"`

	Points [][2]float64 `json:"points"`
}

// NewPathSnapshot captures p and its extraction stats.
func NewPathSnapshot(p *trace.Path, st trace.Stats) *PathSnapshot {
	s := &PathSnapshot{
		Version:    SnapshotVersion,
		Method:     string(st.Method),
		Candidates: st.Candidates,
		Filtered:   st.Filtered,
		Length:     p.Length(),
		Warning:    st.Warning,
		Points:     make([][2]float64, 0, p.Len()),
	}
	for _, v := range p.Points() {
		s.Points = append(s.Points, [2]float64{v.X, v.Y})
	}
	return s
}

// Path rebuilds the trace path.
func (s *PathSnapshot) Path() *trace.Path {
	pts := make([]r2.Vec, len(s.Points))
	for i, p := range s.Points {
		pts[i] = r2.Vec{X: p[0], Y: p[1]}
	}
	return trace.NewPath(pts)
}

// SaveSnapshot writes a snapshot into dir and returns its file path.
func SaveSnapshot(s *PathSnapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("path_%d_%d.json", s.Tick, s.Generation))

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*PathSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s PathSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	return &s, nil
}
