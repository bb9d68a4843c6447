package game

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pthm-cable/tracer/systems"
	"github.com/pthm-cable/tracer/telemetry"
	"github.com/pthm-cable/tracer/trace"
)

// ErrClosed is returned for trace requests made after Close.
var ErrClosed = errors.New("game closed")

// resultBuffer is how many finished extractions may wait for the next tick.
const resultBuffer = 16

// TraceStatus is how a trace request resolved.
type TraceStatus uint8

const (
	TraceAdopted    TraceStatus = iota // path is now displayed
	TraceQueued                        // path replaces the current one after the transition window
	TraceSuperseded                    // a newer request or a stop won
	TraceFailed                        // decode failure or nothing to trace; any prior trace continues
)

func (s TraceStatus) String() string {
	switch s {
	case TraceAdopted:
		return "adopted"
	case TraceQueued:
		return "queued"
	case TraceSuperseded:
		return "superseded"
	}
	return "failed"
}

// TraceResult resolves a TraceImage call.
type TraceResult struct {
	Generation uint64
	RequestID  string
	Status     TraceStatus
	Path       *trace.Path // set when adopted or queued
	Stats      trace.Stats
	Err        error // set when failed
}

type request struct {
	gen   uint64
	id    string
	reply chan TraceResult
}

type completion struct {
	req   request
	path  *trace.Path
	stats trace.Stats
	err   error
}

// taskState tracks background extraction. The generation counter only grows;
// a completion is applied only when its generation is still the latest.
type taskState struct {
	mu     sync.Mutex
	latest uint64
	cancel context.CancelFunc
	closed bool

	done    chan struct{}
	results chan completion
	wg      sync.WaitGroup
	issued  atomic.Int64
}

func newTaskState() taskState {
	return taskState{
		done:    make(chan struct{}),
		results: make(chan completion, resultBuffer),
	}
}

// begin issues the next generation, cancelling the previous task.
func (t *taskState) begin(parent context.Context) (uint64, context.Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, nil, false
	}
	t.latest++
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.wg.Add(1)
	t.issued.Add(1)
	return t.latest, ctx, true
}

// invalidate makes every in-flight task stale.
func (t *taskState) invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *taskState) current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

func (t *taskState) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.invalidate()
	close(t.done)
	t.wg.Wait()
}

// TraceImage starts extracting a path from image bytes in the background and
// returns a channel that receives exactly one result. The result is delivered
// during a later Update: adopted or queued when the path reaches the trace
// manager, superseded when a newer request or StopTracing wins, failed when
// the image cannot be decoded or holds nothing to trace.
//
// Safe to call from any goroutine.
func (g *Game) TraceImage(ctx context.Context, data []byte, mime string) <-chan TraceResult {
	req := request{id: uuid.NewString(), reply: make(chan TraceResult, 1)}

	gen, tctx, ok := g.tasks.begin(ctx)
	if !ok {
		req.reply <- TraceResult{RequestID: req.id, Status: TraceFailed, Err: ErrClosed}
		close(req.reply)
		return req.reply
	}
	req.gen = gen

	Logger().Debug("trace requested", "request_id", req.id, "generation", gen, "mime", mime, "bytes", len(data))

	data = slices.Clone(data)
	go func() {
		defer g.tasks.wg.Done()
		path, st, err := g.extractor.Run(tctx, data, mime)
		c := completion{req: req, path: path, stats: st, err: err}
		select {
		case g.tasks.results <- c:
		case <-g.tasks.done:
			req.reply <- TraceResult{Generation: gen, RequestID: req.id, Status: TraceSuperseded, Stats: st}
			close(req.reply)
		}
	}()
	return req.reply
}

// AdoptPath offers an already extracted path directly, as if a trace request
// had just completed. In-flight requests become stale.
func (g *Game) AdoptPath(p *trace.Path) TraceResult {
	g.tasks.invalidate()
	gen := g.tasks.current()
	res := TraceResult{Generation: gen, RequestID: "replay", Stats: trace.Stats{Final: p.Len(), Length: p.Length()}}
	g.adopt(&res, p)
	g.recordTrace(res)
	return res
}

// drainResults applies every finished extraction. Runs on the tick goroutine.
func (g *Game) drainResults() {
	if n := g.tasks.issued.Swap(0); n > 0 {
		g.collector.RecordRequests(int(n))
	}
	for {
		select {
		case c := <-g.tasks.results:
			g.resolve(c)
		default:
			return
		}
	}
}

func (g *Game) resolve(c completion) {
	log := Logger().With("request_id", c.req.id, "generation", c.req.gen)
	res := TraceResult{Generation: c.req.gen, RequestID: c.req.id, Stats: c.stats}

	switch {
	case c.req.gen != g.tasks.current():
		res.Status = TraceSuperseded
		log.Debug("stale extraction discarded")
	case c.err != nil:
		res.Status = TraceFailed
		res.Err = c.err
		log.Warn("trace request failed", "error", c.err, "stats", c.stats)
	default:
		g.adopt(&res, c.path)
	}

	outcome := telemetry.OutcomeAdopted
	switch res.Status {
	case TraceSuperseded:
		outcome = telemetry.OutcomeSuperseded
	case TraceFailed:
		outcome = telemetry.OutcomeFailed
	}
	g.collector.RecordOutcome(outcome, c.stats.Elapsed)
	g.recordTrace(res)

	c.req.reply <- res
	close(c.req.reply)
}

// adopt hands p to the trace manager and fills in the result status.
func (g *Game) adopt(res *TraceResult, p *trace.Path) {
	ev := g.traces.Adopt(p, g.simTime)
	g.handleEvent(ev)
	switch ev {
	case systems.EventStarted:
		res.Status = TraceAdopted
	case systems.EventQueued:
		res.Status = TraceQueued
	default:
		res.Status = TraceFailed
		res.Err = trace.ErrNoPoints
		return
	}
	res.Path = p
	Logger().Info("trace adopted",
		"request_id", res.RequestID,
		"generation", res.Generation,
		"status", res.Status.String(),
		"points", p.Len(),
		"phase", g.traces.Phase().String(),
	)
}
