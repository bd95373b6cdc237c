package diagnostics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/internal/testutil"
	"github.com/queryplus/queryplus/pkg/diagnostics"
	"github.com/queryplus/queryplus/pkg/lint"
	_ "github.com/queryplus/queryplus/pkg/lint/rules" // register rules
)

type fakeTransport struct {
	mu        sync.Mutex
	posts     []diagnostics.Request
	responses chan diagnostics.Response
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(chan diagnostics.Response, 8)}
}

func (f *fakeTransport) Post(req diagnostics.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, req)
	return nil
}

func (f *fakeTransport) Responses() <-chan diagnostics.Response {
	return f.responses
}

func (f *fakeTransport) Posts() []diagnostics.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]diagnostics.Request(nil), f.posts...)
}

func newTestPipeline(t *testing.T, transport diagnostics.Transport, opts diagnostics.Options) (*diagnostics.Pipeline, *testutil.FakeClock) {
	t.Helper()
	clock := &testutil.FakeClock{}
	opts.Logger = testutil.NewTestLogger(t)
	opts.AfterFunc = func(d time.Duration, f func()) diagnostics.Timer {
		return clock.AfterFunc(d, f)
	}
	p := diagnostics.NewPipeline(transport, opts)
	t.Cleanup(p.Close)
	return p, clock
}

func starWarning() lint.Diagnostic {
	return lint.Diagnostic{
		Message:    "Avoid SELECT *; list the fields you need",
		Severity:   lint.SeverityWarning,
		StartIndex: 7,
		EndIndex:   8,
	}
}

func TestPipeline_SyncRunsImmediately(t *testing.T) {
	transport := newFakeTransport()
	p, clock := newTestPipeline(t, transport, diagnostics.Options{})

	p.Update("SELECT * FROM [A]")

	snap := p.Snapshot()
	assert.Equal(t, diagnostics.StateDebouncing, snap.State)
	assert.True(t, snap.IsAsyncLinting)
	require.Len(t, snap.SyncDiagnostics, 1)
	assert.Equal(t, "QP006", snap.SyncDiagnostics[0].RuleID)
	assert.Equal(t, 1, clock.Pending())
	assert.Empty(t, transport.Posts(), "nothing is sent before the debounce fires")
}

func TestPipeline_DefaultDebounce(t *testing.T) {
	var got time.Duration
	opts := diagnostics.Options{
		AfterFunc: func(d time.Duration, f func()) diagnostics.Timer {
			got = d
			return time.NewTimer(time.Hour)
		},
		Logger: testutil.NewTestLogger(t),
	}
	p := diagnostics.NewPipeline(newFakeTransport(), opts)
	defer p.Close()

	p.Update("SELECT 1 FROM [A]")
	assert.Equal(t, diagnostics.DefaultDebounce, got)
}

func TestPipeline_DebounceCollapse(t *testing.T) {
	transport := newFakeTransport()
	p, clock := newTestPipeline(t, transport, diagnostics.Options{
		DataExtensions: func() []string { return []string{"A"} },
	})

	for _, sql := range []string{"S", "SE", "SEL", "SELECT", "SELECT x FROM [A]"} {
		p.Update(sql)
	}
	assert.Equal(t, 1, clock.Pending())
	assert.Equal(t, 1, clock.FireAll())

	posts := transport.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, diagnostics.TypeLint, posts[0].Type)
	assert.Equal(t, "SELECT x FROM [A]", posts[0].SQL)
	assert.Equal(t, []string{"A"}, posts[0].DataExtensions)
	assert.NotEmpty(t, posts[0].RequestID)

	snap := p.Snapshot()
	assert.Equal(t, diagnostics.StateAsyncPending, snap.State)
	assert.Equal(t, posts[0].RequestID, snap.RequestID)
	assert.True(t, snap.IsAsyncLinting)
}

func TestPipeline_StoppedCallbackDoesNotDispatch(t *testing.T) {
	transport := newFakeTransport()
	var timers []*testutil.FakeTimer
	clock := &testutil.FakeClock{}
	p := diagnostics.NewPipeline(transport, diagnostics.Options{
		Logger: testutil.NewTestLogger(t),
		AfterFunc: func(d time.Duration, f func()) diagnostics.Timer {
			ft := clock.AfterFunc(d, f)
			timers = append(timers, ft)
			return ft
		},
	})
	defer p.Close()

	p.Update("SELECT 1 FROM [A]")
	p.Update("SELECT 2 FROM [A]")
	require.Len(t, timers, 2)

	clock.FireStale(timers[0])
	assert.Empty(t, transport.Posts())

	clock.FireAll()
	posts := transport.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "SELECT 2 FROM [A]", posts[0].SQL)
}

func TestPipeline_Deduplicates(t *testing.T) {
	transport := newFakeTransport()
	p, clock := newTestPipeline(t, transport, diagnostics.Options{})

	p.Update("SELECT * FROM [A]")
	clock.FireAll()
	req := transport.Posts()[0]

	dup := starWarning()
	dup.RuleID = "WORKER"
	extra := lint.Diagnostic{Message: "other", Severity: lint.SeverityError, StartIndex: 0, EndIndex: 6}
	p.Deliver(diagnostics.Response{
		Type:        diagnostics.TypeLintResult,
		RequestID:   req.RequestID,
		Diagnostics: []lint.Diagnostic{dup, extra},
		Duration:    12 * time.Millisecond,
	})

	snap := p.Snapshot()
	assert.Equal(t, diagnostics.StateSettled, snap.State)
	assert.False(t, snap.IsAsyncLinting)
	assert.Equal(t, 12*time.Millisecond, snap.LastLintDuration)
	assert.Equal(t, "SELECT * FROM [A]", snap.AsyncSQL)
	require.Len(t, snap.Diagnostics, 2)
	assert.Equal(t, "QP006", snap.Diagnostics[0].RuleID, "sync copy wins")
	assert.Equal(t, "other", snap.Diagnostics[1].Message)
	assert.Len(t, snap.SyncDiagnostics, 1)
	assert.Len(t, snap.AsyncDiagnostics, 2)
}

func TestPipeline_DropsStaleResponses(t *testing.T) {
	transport := newFakeTransport()
	p, clock := newTestPipeline(t, transport, diagnostics.Options{})

	p.Update("SELECT a FROM [A]")
	clock.FireAll()
	p.Update("SELECT b FROM [A]")
	clock.FireAll()

	posts := transport.Posts()
	require.Len(t, posts, 2)
	require.NotEqual(t, posts[0].RequestID, posts[1].RequestID)

	stale := lint.Diagnostic{Message: "stale", Severity: lint.SeverityError, StartIndex: 0, EndIndex: 1}
	p.Deliver(diagnostics.Response{Type: diagnostics.TypeLintResult, RequestID: posts[0].RequestID, Diagnostics: []lint.Diagnostic{stale}})

	snap := p.Snapshot()
	assert.Empty(t, snap.AsyncDiagnostics)
	assert.True(t, snap.IsAsyncLinting)
	assert.Equal(t, diagnostics.StateAsyncPending, snap.State)

	p.Deliver(diagnostics.Response{Type: diagnostics.TypeLintResult, RequestID: posts[1].RequestID, Diagnostics: []lint.Diagnostic{}})
	snap = p.Snapshot()
	assert.Empty(t, snap.AsyncDiagnostics)
	assert.False(t, snap.IsAsyncLinting)
	assert.Equal(t, diagnostics.StateSettled, snap.State)

	p.Deliver(diagnostics.Response{Type: diagnostics.TypeLintResult, RequestID: "unknown", Diagnostics: []lint.Diagnostic{stale}})
	p.Deliver(diagnostics.Response{Type: "other", RequestID: posts[1].RequestID, Diagnostics: []lint.Diagnostic{stale}})
	assert.Empty(t, p.Snapshot().AsyncDiagnostics)
}

func TestPipeline_ResponseDuringNewDebounce(t *testing.T) {
	transport := newFakeTransport()
	p, clock := newTestPipeline(t, transport, diagnostics.Options{})

	p.Update("SELECT * FROM [A]")
	clock.FireAll()
	id := transport.Posts()[0].RequestID

	p.Update("SELECT * FROM [A] x")
	p.Deliver(diagnostics.Response{Type: diagnostics.TypeLintResult, RequestID: id, Diagnostics: []lint.Diagnostic{starWarning()}})

	snap := p.Snapshot()
	assert.Len(t, snap.AsyncDiagnostics, 1)
	assert.True(t, snap.IsAsyncLinting, "the newer edit is still waiting for the worker")
	assert.Equal(t, diagnostics.StateDebouncing, snap.State)
}

func TestPipeline_EmptySQL(t *testing.T) {
	transport := newFakeTransport()
	p, clock := newTestPipeline(t, transport, diagnostics.Options{})

	p.Update("SELECT * FROM [A]")
	clock.FireAll()
	p.Deliver(diagnostics.Response{Type: diagnostics.TypeLintResult, RequestID: transport.Posts()[0].RequestID, Diagnostics: []lint.Diagnostic{starWarning()}})

	p.Update("  \n\t")
	snap := p.Snapshot()
	assert.Equal(t, diagnostics.StateSettled, snap.State)
	assert.Empty(t, snap.Diagnostics)
	assert.Empty(t, snap.SyncDiagnostics)
	assert.Empty(t, snap.AsyncDiagnostics)
	assert.False(t, snap.IsAsyncLinting)
	assert.Equal(t, 0, clock.Pending())

	assert.Equal(t, 0, clock.FireAll())
	assert.Len(t, transport.Posts(), 1, "empty text is never sent")
}

func TestPipeline_CloseCancelsTimerAndIgnoresLateResponses(t *testing.T) {
	transport := newFakeTransport()
	var updates int
	p, clock := newTestPipeline(t, transport, diagnostics.Options{
		OnUpdate: func(diagnostics.Snapshot) { updates++ },
	})

	p.Update("SELECT a FROM [A]")
	clock.FireAll()
	id := transport.Posts()[0].RequestID
	p.Update("SELECT b FROM [A]")
	require.Equal(t, 2, updates)

	p.Close()
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 0, clock.FireAll())

	p.Deliver(diagnostics.Response{Type: diagnostics.TypeLintResult, RequestID: id, Diagnostics: []lint.Diagnostic{starWarning()}})
	p.Update("SELECT c FROM [A]")

	assert.Equal(t, 2, updates)
	assert.Len(t, transport.Posts(), 1)
	snap := p.Snapshot()
	assert.Empty(t, snap.AsyncDiagnostics)
	assert.False(t, snap.IsAsyncLinting)
	assert.Equal(t, "SELECT b FROM [A]", snap.SQL)
}

func TestPipeline_ReceivesFromTransport(t *testing.T) {
	transport := newFakeTransport()
	updates := make(chan diagnostics.Snapshot, 8)
	p, clock := newTestPipeline(t, transport, diagnostics.Options{
		OnUpdate: func(s diagnostics.Snapshot) { updates <- s },
	})

	p.Update("SELECT * FROM [A]")
	<-updates
	clock.FireAll()

	transport.responses <- diagnostics.Response{
		Type:        diagnostics.TypeLintResult,
		RequestID:   transport.Posts()[0].RequestID,
		Diagnostics: []lint.Diagnostic{starWarning()},
	}

	select {
	case snap := <-updates:
		assert.Equal(t, diagnostics.StateSettled, snap.State)
		assert.Len(t, snap.Diagnostics, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("response was not applied")
	}
}

func TestPipeline_WithLocalWorker(t *testing.T) {
	worker := diagnostics.NewLocalWorker(nil, 2, testutil.NewTestLogger(t))
	defer func() { _ = worker.Close() }()

	updates := make(chan diagnostics.Snapshot, 8)
	p, clock := newTestPipeline(t, worker, diagnostics.Options{
		DataExtensions: func() []string { return []string{"Orders"} },
		OnUpdate:       func(s diagnostics.Snapshot) { updates <- s },
	})

	p.Update("SELECT o.Id FROM [Missing] o")
	<-updates
	clock.FireAll()

	select {
	case snap := <-updates:
		assert.Equal(t, diagnostics.StateSettled, snap.State)
		require.Len(t, snap.AsyncDiagnostics, 1)
		assert.Equal(t, "QP101", snap.AsyncDiagnostics[0].RuleID)
	case <-time.After(5 * time.Second):
		t.Fatal("worker never answered")
	}
}

func TestMerge(t *testing.T) {
	a := lint.Diagnostic{Message: "a", Severity: lint.SeverityError, StartIndex: 0, EndIndex: 1}
	b := lint.Diagnostic{Message: "b", Severity: lint.SeverityWarning, StartIndex: 2, EndIndex: 3}
	aWarn := a
	aWarn.Severity = lint.SeverityWarning

	tests := []struct {
		name  string
		sync  []lint.Diagnostic
		async []lint.Diagnostic
		want  []lint.Diagnostic
	}{
		{name: "both empty", want: []lint.Diagnostic{}},
		{name: "identical removed", sync: []lint.Diagnostic{a}, async: []lint.Diagnostic{a}, want: []lint.Diagnostic{a}},
		{name: "severity differs", sync: []lint.Diagnostic{a}, async: []lint.Diagnostic{aWarn}, want: []lint.Diagnostic{a, aWarn}},
		{name: "sync first", sync: []lint.Diagnostic{b}, async: []lint.Diagnostic{a, b}, want: []lint.Diagnostic{b, a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, diagnostics.Merge(tt.sync, tt.async))
		})
	}
}
