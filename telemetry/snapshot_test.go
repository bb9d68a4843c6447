package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/tracer/extract"
	"github.com/pthm-cable/tracer/trace"
)

func TestSnapshotSaveLoad(t *testing.T) {
	dir := t.TempDir()

	p := trace.NewPath([]r2.Vec{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 0}})
	s := NewPathSnapshot(p, trace.Stats{Method: extract.MethodCenterline, Candidates: 9, Filtered: 8})
	s.Tick = 300
	s.Generation = 4
	s.RequestID = "req-1"

	path, err := SaveSnapshot(s, dir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if filepath.Base(path) != "path_300_4.json" {
		t.Errorf("file name = %s", filepath.Base(path))
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Method != "centerline" || loaded.Candidates != 9 || loaded.RequestID != "req-1" {
		t.Errorf("metadata mismatch: %+v", loaded)
	}
	if loaded.Length != 9 {
		t.Errorf("length = %v, want 9", loaded.Length)
	}

	got := loaded.Path()
	if got.Len() != p.Len() {
		t.Fatalf("len = %d, want %d", got.Len(), p.Len())
	}
	for i := 0; i < p.Len(); i++ {
		if got.At(i) != p.At(i) {
			t.Errorf("point %d = %v, want %v", i, got.At(i), p.At(i))
		}
	}
}

func TestLoadSnapshot_RejectsOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "points": []}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected a version error")
	}
}

func TestLoadSnapshot_MissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
