package diagnostics_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/internal/testutil"
	"github.com/queryplus/queryplus/pkg/diagnostics"
	"github.com/queryplus/queryplus/pkg/lint"
)

func TestLocalWorker_Handle(t *testing.T) {
	w := diagnostics.NewLocalWorker(nil, 1, testutil.NewTestLogger(t))
	defer func() { _ = w.Close() }()

	tests := []struct {
		name    string
		req     diagnostics.Request
		wantIDs []string
	}{
		{
			name:    "clean query",
			req:     diagnostics.Request{Type: diagnostics.TypeLint, SQL: "SELECT a.Id FROM [A] a", RequestID: "r1"},
			wantIDs: nil,
		},
		{
			name:    "null compare and cte",
			req:     diagnostics.Request{Type: diagnostics.TypeLint, SQL: "WITH x AS (SELECT 1) SELECT * FROM x WHERE y = NULL", RequestID: "r2"},
			wantIDs: []string{"QP105", "QP103"},
		},
		{
			name:    "unknown table",
			req:     diagnostics.Request{Type: diagnostics.TypeLint, SQL: "SELECT 1 FROM [Nope]", RequestID: "r3", DataExtensions: []string{"ENT.[Orders]"}},
			wantIDs: []string{"QP101"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := w.Handle(tt.req)
			assert.Equal(t, diagnostics.TypeLintResult, resp.Type)
			assert.Equal(t, tt.req.RequestID, resp.RequestID)
			require.NotNil(t, resp.Diagnostics)

			var ids []string
			for _, d := range resp.Diagnostics {
				ids = append(ids, d.RuleID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestLocalWorker_PostAndReceive(t *testing.T) {
	w := diagnostics.NewLocalWorker(nil, 2, testutil.NewTestLogger(t))
	defer func() { _ = w.Close() }()

	ids := map[string]bool{"a": true, "b": true, "c": true}
	for id := range ids {
		require.NoError(t, w.Post(diagnostics.Request{Type: diagnostics.TypeLint, SQL: "SELECT 1 FROM [A]", RequestID: id}))
	}

	got := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for len(got) < len(ids) {
		select {
		case resp := <-w.Responses():
			got[resp.RequestID] = true
		case <-timeout:
			t.Fatalf("received %d of %d responses", len(got), len(ids))
		}
	}
	assert.Equal(t, ids, got)
}

func TestLocalWorker_Close(t *testing.T) {
	w := diagnostics.NewLocalWorker(nil, 1, testutil.NewTestLogger(t))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err := w.Post(diagnostics.Request{Type: diagnostics.TypeLint, SQL: "SELECT 1"})
	assert.ErrorIs(t, err, diagnostics.ErrClosed)

	_, open := <-w.Responses()
	assert.False(t, open)
}

func TestMessages_JSON(t *testing.T) {
	pos := 4
	req := diagnostics.Request{Type: diagnostics.TypeLint, SQL: "SELECT", RequestID: "id-1", CursorPosition: &pos}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"lint","sql":"SELECT","requestId":"id-1","cursorPosition":4}`, string(b))

	var resp diagnostics.Response
	require.NoError(t, json.Unmarshal([]byte(`{"type":"lint-result","requestId":"id-1","diagnostics":[{"message":"m","severity":"prereq","startIndex":1,"endIndex":2}],"duration":5}`), &resp))
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, lint.SeverityPrereq, resp.Diagnostics[0].Severity)
	assert.Equal(t, time.Duration(5), resp.Duration)
}
