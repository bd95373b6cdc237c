package commands

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/internal/cli/output"
	clitestutil "github.com/queryplus/queryplus/internal/cli/testutil"
	"github.com/queryplus/queryplus/internal/store"
	"github.com/queryplus/queryplus/pkg/metadata"
)

// lockedBuffer is written by the pipeline goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestREPL(t *testing.T) (*repl, *lockedBuffer) {
	t.Helper()

	ws := clitestutil.SetupWorkspace(t)
	ws.Config.Debounce = 5 * time.Millisecond
	snap, err := store.ReadSnapshotFile(ws.Snapshot)
	require.NoError(t, err)

	out := &lockedBuffer{}
	cmdCtx := &CommandContext{
		Cfg:      ws.Config,
		Logger:   slog.New(slog.DiscardHandler),
		Renderer: output.NewRendererWithTTY(out, out, false, output.ModeText),
		Provider: metadata.NewSnapshotProvider(snap),
	}
	s, err := newREPL(context.Background(), cmdCtx, out)
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s, out
}

func TestREPL_SyncDiagnosticsAndHint(t *testing.T) {
	s, out := newTestREPL(t)

	assert.False(t, s.handleLine("SELECT * FROM [Orders] "))
	got := out.String()
	assert.Contains(t, got, "1:8")
	assert.Contains(t, got, "QP006")
	assert.Contains(t, got, "hint:  AS o")
}

func TestREPL_WorkerDiagnostics(t *testing.T) {
	s, out := newTestREPL(t)

	s.handleLine("SELECT OrderID FROM [Missing]")
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "QP101")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestREPL_MultiLineQuery(t *testing.T) {
	s, out := newTestREPL(t)

	s.handleLine("SELECT OrderID")
	s.handleLine("  FROM [Orders]")
	assert.Equal(t, "SELECT OrderID\n  FROM [Orders]", s.query())

	s.handleLine("WHERE OrderID LIMIT 1")
	assert.Contains(t, out.String(), "3:15")
	assert.Contains(t, out.String(), "QP004")

	s.handleLine(";")
	assert.Empty(t, s.query())
}

func TestREPL_BlankLinesIgnored(t *testing.T) {
	s, _ := newTestREPL(t)
	assert.False(t, s.handleLine("   "))
	assert.Empty(t, s.query())
}

func TestREPL_DotCommands(t *testing.T) {
	s, out := newTestREPL(t)

	assert.False(t, s.handleLine(".tables"))
	assert.Contains(t, out.String(), "ENT.[Accounts]")
	assert.Contains(t, out.String(), "[Orders]")

	out.Reset()
	assert.False(t, s.handleLine(".help"))
	assert.Contains(t, out.String(), ".quit / .exit")

	s.handleLine("SELECT OrderID")
	out.Reset()
	// Lines starting with a dot continue an open query.
	s.handleLine(".5 AS x")
	assert.Equal(t, "SELECT OrderID\n.5 AS x", s.query())

	s.reset()
	out.Reset()
	assert.False(t, s.handleLine(".nope"))
	assert.Contains(t, out.String(), "Unknown command: .nope")

	assert.True(t, s.handleLine(".quit"))
	assert.True(t, s.handleLine(".EXIT"))
}

func TestREPL_ShowAndClear(t *testing.T) {
	s, out := newTestREPL(t)

	s.handleLine("SELECT OrderID")
	s.handleLine("FROM [Orders]")
	out.Reset()
	assert.False(t, s.handleLine(".show"))
	assert.Equal(t, "SELECT OrderID\nFROM [Orders]\n", out.String())

	assert.False(t, s.handleLine(".clear"))
	assert.Empty(t, s.query())
}

func TestREPLCompleter(t *testing.T) {
	s, _ := newTestREPL(t)
	c := replCompleter{s: s}

	tests := []struct {
		name       string
		buffer     string
		line       string
		wantCands  []string
		wantLength int
	}{
		{name: "bracketed table", line: "SELECT * FROM [Ord", wantCands: []string{"ers]"}, wantLength: 4},
		{name: "field", line: "SELECT o.cu FROM [Orders] o", wantCands: []string{"stomer_id"}, wantLength: 2},
		{name: "table on second line", buffer: "SELECT *", line: "FROM [Ord", wantCands: []string{"ers]"}, wantLength: 4},
		{name: "keyword", line: "SELECT * FROM [Orders] o WHE", wantCands: []string{"RE", "N"}, wantLength: 3},
		{name: "inside string", line: "SELECT 'FROM [Ord"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.reset()
			if tt.buffer != "" {
				s.handleLine(tt.buffer)
			}

			pos := len(tt.line)
			if tt.name == "field" {
				pos = len("SELECT o.cu")
			}
			cands, length := c.Do([]rune(tt.line), pos)

			var got []string
			for _, cand := range cands {
				got = append(got, string(cand))
			}
			assert.Equal(t, tt.wantCands, got)
			assert.Equal(t, tt.wantLength, length)
		})
	}
}
