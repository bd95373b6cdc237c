package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/queryplus/queryplus/internal/cli/testutil"
)

func TestCompleteCommand_JSON(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		args       []string
		position   string
		start      int
		wantLabels []string
		wantInsert string
	}{
		{
			name:       "tables",
			sql:        "SELECT * FROM ",
			position:   "table",
			start:      14,
			wantLabels: []string{"ENT.[Accounts]", "[Orders]"},
		},
		{
			name:       "filtered tables",
			sql:        "SELECT * FROM ord",
			position:   "table",
			start:      14,
			wantLabels: []string{"[Orders]"},
		},
		{
			name:       "fields of alias",
			sql:        "SELECT o. FROM [Orders] o",
			args:       []string{"--cursor", "9"},
			position:   "field",
			start:      9,
			wantLabels: []string{"customer_id - Text(50)", "OrderID - Number"},
			wantInsert: "customer_id",
		},
		{
			name:       "limit",
			sql:        "SELECT * FROM ",
			args:       []string{"-n", "1"},
			position:   "table",
			start:      14,
			wantLabels: []string{"ENT.[Accounts]"},
		},
		{
			name:       "inside string",
			sql:        "SELECT 'FROM ",
			position:   "none",
			start:      13,
			wantLabels: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := clitestutil.SetupWorkspace(t)
			out, _, err := execute(t, NewCompleteCommand(), ws.Config, tt.sql, tt.args...)
			require.NoError(t, err)

			var result completeResult
			require.NoError(t, json.Unmarshal([]byte(out), &result))
			assert.Equal(t, tt.position, result.Position)
			assert.Equal(t, tt.start, result.Start)

			labels := []string{}
			for _, sg := range result.Suggestions {
				labels = append(labels, sg.Label)
			}
			assert.Equal(t, tt.wantLabels, labels)
			if tt.wantInsert != "" {
				assert.Equal(t, tt.wantInsert, result.Suggestions[0].InsertText)
				assert.Equal(t, "[Orders]", result.Suggestions[0].Detail)
			}
		})
	}
}

func TestCompleteCommand_PrimaryKey(t *testing.T) {
	ws := clitestutil.SetupWorkspace(t)
	out, _, err := execute(t, NewCompleteCommand(), ws.Config, "SELECT o.ord FROM [Orders] o", "--cursor", "12")
	require.NoError(t, err)

	var result completeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.Suggestions)
	assert.Equal(t, "OrderID - Number", result.Suggestions[0].Label)
	assert.True(t, result.Suggestions[0].IsPrimaryKey)
}

func TestCompleteCommand_WithoutMetadata(t *testing.T) {
	ws := clitestutil.SetupWorkspace(t)
	ws.Config.MetadataFile = ""

	out, _, err := execute(t, NewCompleteCommand(), ws.Config, "SELECT * FROM ")
	require.NoError(t, err)

	var result completeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "table", result.Position)
	assert.Empty(t, result.Suggestions)
}

func TestCompleteCommand_Text(t *testing.T) {
	ws := clitestutil.SetupWorkspace(t)
	ws.Config.OutputFormat = "text"

	out, _, err := execute(t, NewCompleteCommand(), ws.Config, "SELECT * FROM ")
	require.NoError(t, err)
	assert.Contains(t, out, "Table suggestions")
	assert.Contains(t, out, "ENT.[Accounts]")
	assert.Contains(t, out, "accounts_key")

	out, _, err = execute(t, NewCompleteCommand(), ws.Config, "SELECT 'FROM ")
	require.NoError(t, err)
	assert.Contains(t, out, "No suggestions")
}
