// Package watch feeds images dropped into a directory to the tracer.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/game"
)

// DefaultSettle is how long a file must stay quiet before it is read.
const DefaultSettle = 150 * time.Millisecond

// Tracer accepts trace requests. *game.Game implements it.
type Tracer interface {
	TraceImage(ctx context.Context, data []byte, mime string) <-chan game.TraceResult
}

var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// MimeFor returns the mime type for a supported image file name.
func MimeFor(path string) (string, bool) {
	m, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	return m, ok
}

// Options configures a Watcher.
type Options struct {
	Dir      string
	Interval time.Duration // minimum spacing of trace requests
	Burst    int
	Settle   time.Duration // 0 = DefaultSettle
	Logger   *slog.Logger
}

// OptionsFromConfig builds watcher options from the watch section.
func OptionsFromConfig(cfg config.WatchConfig) Options {
	return Options{
		Dir:      cfg.Dir,
		Interval: time.Duration(cfg.Interval * float64(time.Second)),
		Burst:    cfg.Burst,
	}
}

// Watcher submits the most recently changed image in a directory, throttled
// by a token bucket. Changes arriving while throttled collapse into one
// request for the latest file.
type Watcher struct {
	dir     string
	tracer  Tracer
	limiter *rate.Limiter
	settle  time.Duration
	logger  *slog.Logger
	fs      *fsnotify.Watcher
}

// New starts watching opts.Dir.
func New(opts Options, tracer Tracer) (*Watcher, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir %s: not a directory", opts.Dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(opts.Dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", opts.Dir, err)
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	burst := max(opts.Burst, 1)
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Watcher{
		dir:     opts.Dir,
		tracer:  tracer,
		limiter: rate.NewLimiter(limit, burst),
		settle:  settle,
		logger:  logger.With("component", "watch", "dir", opts.Dir),
		fs:      fw,
	}, nil
}

// Run handles file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var pending string
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if path, ok := w.accept(ev); ok {
				pending = path
				timer.Reset(w.settle)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if pending == "" {
				continue
			}
			r := w.limiter.Reserve()
			if d := r.Delay(); d > 0 {
				r.Cancel()
				w.logger.Debug("trace request throttled", "file", pending, "retry_in", d)
				timer.Reset(d)
				continue
			}
			w.submit(ctx, pending)
			pending = ""
		}
	}
}

// accept reports whether ev names a supported, visible image file that was
// created or written.
func (w *Watcher) accept(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if isHidden(ev.Name) {
		return "", false
	}
	if _, ok := MimeFor(ev.Name); !ok {
		return "", false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return ev.Name, true
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) submit(ctx context.Context, path string) {
	mime, _ := MimeFor(path)
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading image", "file", path, "error", err)
		return
	}

	ch := w.tracer.TraceImage(ctx, data, mime)
	w.logger.Info("trace submitted", "file", filepath.Base(path), "mime", mime, "bytes", len(data))

	go func() {
		select {
		case res := <-ch:
			attrs := []any{"file", filepath.Base(path), "request_id", res.RequestID, "status", res.Status.String()}
			if res.Err != nil {
				attrs = append(attrs, "error", res.Err)
			}
			w.logger.Info("trace resolved", attrs...)
		case <-ctx.Done():
		}
	}()
}
