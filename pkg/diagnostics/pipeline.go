// Package diagnostics merges fast in-process lint results with slower worker
// results for one editor document.
//
// A Pipeline runs sync-phase rules on every Update and, after a quiet
// debounce period, sends the latest text to a worker Transport. Each
// dispatched request carries a fresh ID; only the response to the most
// recently dispatched request is applied, so results are last-write-wins.
package diagnostics

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/queryplus/queryplus/pkg/lint"
)

// DefaultDebounce is the quiet period before a worker dispatch.
const DefaultDebounce = 150 * time.Millisecond

// State is the pipeline lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateAsyncPending
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateAsyncPending:
		return "async-pending"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Timer is the handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Snapshot is a consistent view of the pipeline.
type Snapshot struct {
	State State
	// SQL is the text of the last Update.
	SQL string
	// Diagnostics is SyncDiagnostics followed by the AsyncDiagnostics that
	// are not duplicates.
	Diagnostics      []lint.Diagnostic
	SyncDiagnostics  []lint.Diagnostic
	AsyncDiagnostics []lint.Diagnostic
	// AsyncSQL is the text that produced AsyncDiagnostics.
	AsyncSQL         string
	IsAsyncLinting   bool
	LastLintDuration time.Duration
	// RequestID is the ID of the most recently dispatched worker request.
	RequestID string
}

// Options configure a Pipeline.
type Options struct {
	// Analyzer runs the sync-phase rules. Nil uses the default configuration.
	Analyzer *lint.Analyzer
	// Debounce is the quiet period before dispatch. Zero means DefaultDebounce.
	Debounce time.Duration
	// DataExtensions supplies the known table names sent with each request.
	DataExtensions func() []string
	// OnUpdate is called after every state change that alters diagnostics.
	// Calls are serialized. It must not call Update or Close.
	OnUpdate func(Snapshot)
	Logger   *slog.Logger
	// AfterFunc replaces time.AfterFunc, for tests.
	AfterFunc AfterFunc
}

// Pipeline is the diagnostics state machine for one document.
type Pipeline struct {
	transport Transport
	analyzer  *lint.Analyzer
	debounce  time.Duration
	afterFunc AfterFunc
	logger    *slog.Logger
	opts      Options

	notifyMu sync.Mutex

	mu               sync.Mutex
	state            State
	sql              string
	syncDiags        []lint.Diagnostic
	asyncDiags       []lint.Diagnostic
	asyncSQL         string
	isAsyncLinting   bool
	lastDuration     time.Duration
	timer            Timer
	timerGen         uint64
	latestRequestID  string
	latestRequestSQL string
	closed           bool
	done             chan struct{}
}

// NewPipeline creates a pipeline dispatching to transport and starts
// consuming its responses.
func NewPipeline(transport Transport, opts Options) *Pipeline {
	p := &Pipeline{
		transport: transport,
		analyzer:  opts.Analyzer,
		debounce:  opts.Debounce,
		afterFunc: opts.AfterFunc,
		logger:    opts.Logger,
		opts:      opts,
		done:      make(chan struct{}),
	}
	if p.analyzer == nil {
		p.analyzer = lint.NewAnalyzer(nil)
	}
	if p.debounce <= 0 {
		p.debounce = DefaultDebounce
	}
	if p.afterFunc == nil {
		p.afterFunc = realAfterFunc
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if transport != nil {
		go p.receive(transport.Responses())
	}
	return p
}

// Update records a text change. Sync rules run immediately; the worker
// dispatch is (re)scheduled after the debounce.
func (p *Pipeline) Update(sql string) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.sql = sql
	p.stopTimerLocked()

	if strings.TrimSpace(sql) == "" {
		p.syncDiags = nil
		p.asyncDiags = nil
		p.asyncSQL = ""
		p.isAsyncLinting = false
		p.latestRequestID = ""
		p.state = StateSettled
	} else {
		p.syncDiags = p.analyzer.Run(lint.PhaseSync, lint.NewInput(sql, nil))
		p.state = StateDebouncing
		p.isAsyncLinting = true
		gen := p.timerGen
		p.timer = p.afterFunc(p.debounce, func() { p.dispatch(gen) })
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// stopTimerLocked cancels a pending dispatch. Bumping the generation also
// disarms a callback that already started running.
func (p *Pipeline) stopTimerLocked() {
	p.timerGen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pipeline) dispatch(gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.timerGen {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	id := uuid.NewString()
	p.latestRequestID = id
	p.latestRequestSQL = p.sql
	p.state = StateAsyncPending
	req := Request{Type: TypeLint, SQL: p.sql, RequestID: id}
	p.mu.Unlock()

	if p.opts.DataExtensions != nil {
		req.DataExtensions = p.opts.DataExtensions()
	}
	if p.transport == nil {
		return
	}
	p.logger.Debug("dispatching worker lint", "request_id", id, "bytes", len(req.SQL))
	if err := p.transport.Post(req); err != nil {
		p.logger.Debug("worker post failed", "request_id", id, "error", err)
	}
}

func (p *Pipeline) receive(responses <-chan Response) {
	for {
		select {
		case <-p.done:
			return
		case resp, ok := <-responses:
			if !ok {
				return
			}
			p.Deliver(resp)
		}
	}
}

// Deliver applies a worker response. Responses that do not answer the most
// recently dispatched request, or arrive after Close, are dropped.
func (p *Pipeline) Deliver(resp Response) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if resp.Type != TypeLintResult || resp.RequestID == "" || resp.RequestID != p.latestRequestID {
		p.mu.Unlock()
		p.logger.Debug("dropping stale worker response", "request_id", resp.RequestID)
		return
	}

	p.asyncDiags = resp.Diagnostics
	p.asyncSQL = p.latestRequestSQL
	p.lastDuration = resp.Duration
	// A newer edit may already be debouncing; it keeps the linting flag.
	if p.timer == nil {
		p.isAsyncLinting = false
		p.state = StateSettled
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Close cancels any pending dispatch and ignores later responses. It does not
// close the transport.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopTimerLocked()
	p.isAsyncLinting = false
	close(p.done)
}

func (p *Pipeline) snapshotLocked() Snapshot {
	return Snapshot{
		State:            p.state,
		SQL:              p.sql,
		Diagnostics:      Merge(p.syncDiags, p.asyncDiags),
		SyncDiagnostics:  clone(p.syncDiags),
		AsyncDiagnostics: clone(p.asyncDiags),
		AsyncSQL:         p.asyncSQL,
		IsAsyncLinting:   p.isAsyncLinting,
		LastLintDuration: p.lastDuration,
		RequestID:        p.latestRequestID,
	}
}

func (p *Pipeline) notify(snap Snapshot) {
	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(snap)
	}
}

// Merge returns sync followed by the async diagnostics not already present,
// comparing by Diagnostic.Key. Duplicates within either list are removed too.
func Merge(sync, async []lint.Diagnostic) []lint.Diagnostic {
	seen := make(map[lint.Key]bool, len(sync)+len(async))
	out := make([]lint.Diagnostic, 0, len(sync)+len(async))
	for _, list := range [][]lint.Diagnostic{sync, async} {
		for _, d := range list {
			k := d.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, d)
		}
	}
	return out
}

func clone(diags []lint.Diagnostic) []lint.Diagnostic {
	if diags == nil {
		return nil
	}
	return append([]lint.Diagnostic(nil), diags...)
}
