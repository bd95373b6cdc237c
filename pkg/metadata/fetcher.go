package metadata

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrSuperseded is returned by Fetcher.Fetch when a newer fetch started before
// this one finished.
var ErrSuperseded = errors.New("metadata: fetch superseded")

// Fetcher loads fields for a set of tables with "latest request wins"
// semantics. Starting a fetch cancels the previous one; identical concurrent
// loads share one provider call.
type Fetcher struct {
	provider Provider
	logger   *slog.Logger
	group    singleflight.Group

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewFetcher creates a Fetcher over provider.
func NewFetcher(provider Provider, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Fetcher{provider: provider, logger: logger}
}

// Fetch returns the fields of each named table, keyed by the lowercased name.
// A table whose load fails maps to an empty list. Fetch returns ErrSuperseded
// if another Fetch started meanwhile, and ctx.Err() if ctx was cancelled.
func (f *Fetcher) Fetch(ctx context.Context, names ...string) (map[string][]Field, error) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	if f.cancel != nil {
		f.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	out := make(map[string][]Field, len(names))
	for _, name := range names {
		fields, err := f.load(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			f.logger.Debug("field fetch failed", "table", name, "error", err)
			fields = []Field{}
		}
		out[strings.ToLower(name)] = fields
	}

	f.mu.Lock()
	latest := gen == f.gen
	f.mu.Unlock()
	if !latest {
		return nil, ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Fetcher) load(ctx context.Context, name string) ([]Field, error) {
	key := strings.ToLower(TrimQualifier(name))
	ch := f.group.DoChan(key, func() (interface{}, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the others.
		return f.provider.Fields(context.WithoutCancel(ctx), name)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Field), nil
	}
}
