package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/game"
)

type call struct {
	data string
	mime string
}

// recordingTracer resolves every request as adopted and reports it on calls.
type recordingTracer struct {
	calls chan call
}

func newRecordingTracer() *recordingTracer {
	return &recordingTracer{calls: make(chan call, 16)}
}

func (r *recordingTracer) TraceImage(_ context.Context, data []byte, mime string) <-chan game.TraceResult {
	r.calls <- call{data: string(data), mime: mime}
	ch := make(chan game.TraceResult, 1)
	ch <- game.TraceResult{RequestID: "test", Status: game.TraceAdopted}
	close(ch)
	return ch
}

func startWatcher(t *testing.T, opts Options) (*recordingTracer, string) {
	t.Helper()
	dir := t.TempDir()
	opts.Dir = dir
	if opts.Settle == 0 {
		opts.Settle = 50 * time.Millisecond
	}
	tr := newRecordingTracer()
	w, err := New(opts, tr)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tr, dir
}

func expectCall(t *testing.T, tr *recordingTracer) call {
	t.Helper()
	select {
	case c := <-tr.calls:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no trace request")
		return call{}
	}
}

func expectNoCall(t *testing.T, tr *recordingTracer, wait time.Duration) {
	t.Helper()
	select {
	case c := <-tr.calls:
		t.Fatalf("unexpected trace request: %+v", c)
	case <-time.After(wait):
	}
}

func TestMimeFor(t *testing.T) {
	tests := []struct {
		path string
		mime string
		ok   bool
	}{
		{"a.png", "image/png", true},
		{"/x/B.PNG", "image/png", true},
		{"c.jpg", "image/jpeg", true},
		{"c.jpeg", "image/jpeg", true},
		{"d.gif", "image/gif", true},
		{"e.webp", "image/webp", true},
		{"logo.svg", "image/svg+xml", true},
		{"notes.txt", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mime, ok := MimeFor(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.mime, mime)
		})
	}
}

func TestAccept(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	hidden := filepath.Join(dir, ".b.png")
	txt := filepath.Join(dir, "c.txt")
	sub := filepath.Join(dir, "d.png")
	for _, p := range []string{img, hidden, txt} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(sub, 0755))

	w := &Watcher{}
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create image", fsnotify.Event{Name: img, Op: fsnotify.Create}, true},
		{"write image", fsnotify.Event{Name: img, Op: fsnotify.Write}, true},
		{"chmod image", fsnotify.Event{Name: img, Op: fsnotify.Chmod}, false},
		{"remove image", fsnotify.Event{Name: img, Op: fsnotify.Remove}, false},
		{"hidden image", fsnotify.Event{Name: hidden, Op: fsnotify.Create}, false},
		{"text file", fsnotify.Event{Name: txt, Op: fsnotify.Create}, false},
		{"directory", fsnotify.Event{Name: sub, Op: fsnotify.Create}, false},
		{"vanished file", fsnotify.Event{Name: filepath.Join(dir, "gone.png"), Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := w.accept(tt.ev)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestNew_RejectsMissingDir(t *testing.T) {
	_, err := New(Options{Dir: filepath.Join(t.TempDir(), "missing")}, newRecordingTracer())
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.WatchConfig{Dir: "in", Interval: 2, Burst: 1})
	assert.Equal(t, "in", opts.Dir)
	assert.Equal(t, 2*time.Second, opts.Interval)
	assert.Equal(t, 1, opts.Burst)
}

func TestWatcher_SubmitsDroppedImage(t *testing.T) {
	tr, dir := startWatcher(t, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "shape.svg"), []byte("<svg/>"), 0644))
	c := expectCall(t, tr)
	assert.Equal(t, "image/svg+xml", c.mime)
	assert.Equal(t, "<svg/>", c.data)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	expectNoCall(t, tr, 300*time.Millisecond)
}

func TestWatcher_CoalescesBurstToLatest(t *testing.T) {
	tr, dir := startWatcher(t, Options{Settle: 200 * time.Millisecond})

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
	}
	c := expectCall(t, tr)
	assert.Equal(t, "c.png", c.data)
	expectNoCall(t, tr, 400*time.Millisecond)
}

func TestWatcher_Throttles(t *testing.T) {
	tr, dir := startWatcher(t, Options{Interval: time.Hour, Burst: 1})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0644))
	assert.Equal(t, "a", expectCall(t, tr).data)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0644))
	expectNoCall(t, tr, 500*time.Millisecond)
}
