package diagnostics

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/queryplus/queryplus/pkg/lint"
)

// ErrClosed is returned when posting to a closed worker or pipeline.
var ErrClosed = errors.New("diagnostics: closed")

// LocalWorker runs worker-phase lint rules on background goroutines. It is the
// in-process Transport.
type LocalWorker struct {
	analyzer  *lint.Analyzer
	logger    *slog.Logger
	requests  chan Request
	responses chan Response
	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewLocalWorker starts a worker that handles at most concurrency requests at
// once. A nil analyzer uses the default configuration.
func NewLocalWorker(analyzer *lint.Analyzer, concurrency int, logger *slog.Logger) *LocalWorker {
	if analyzer == nil {
		analyzer = lint.NewAnalyzer(nil)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if concurrency < 1 {
		concurrency = 1
	}
	w := &LocalWorker{
		analyzer:  analyzer,
		logger:    logger,
		requests:  make(chan Request, 16),
		responses: make(chan Response, 16),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go w.run(concurrency)
	return w
}

// Post queues req. It blocks while the queue is full.
func (w *LocalWorker) Post(req Request) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.requests <- req:
		return nil
	case <-w.done:
		return ErrClosed
	}
}

// Responses returns the channel of lint results. It is closed after Close.
func (w *LocalWorker) Responses() <-chan Response {
	return w.responses
}

// Close stops the worker and waits for in-flight requests to finish.
func (w *LocalWorker) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	<-w.stopped
	return nil
}

func (w *LocalWorker) run(concurrency int) {
	defer close(w.stopped)

	var g errgroup.Group
	g.SetLimit(concurrency)
	defer func() {
		_ = g.Wait()
		close(w.responses)
	}()

	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			g.Go(func() error {
				resp := w.Handle(req)
				select {
				case w.responses <- resp:
				case <-w.done:
				}
				return nil
			})
		}
	}
}

// Handle lints one request synchronously.
func (w *LocalWorker) Handle(req Request) Response {
	start := time.Now()
	in := lint.NewInput(req.SQL, req.DataExtensions)
	diags := w.analyzer.Run(lint.PhaseWorker, in)
	if diags == nil {
		diags = []lint.Diagnostic{}
	}
	elapsed := time.Since(start)
	w.logger.Debug("worker lint finished", "request_id", req.RequestID, "diagnostics", len(diags), "duration", elapsed)
	return Response{
		Type:        TypeLintResult,
		RequestID:   req.RequestID,
		Diagnostics: diags,
		Duration:    elapsed,
	}
}
