package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeJSON},
		{"empty means auto", "", false, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
		{"explicit json on terminal", ModeJSON, true, ModeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRenderer_BufferIsNotTerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestRenderer_PlainStyles(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeText)

	r.Println(r.Styles().Error.Render("error"))
	r.Success("done")
	assert.Equal(t, "error\n✓ done\n", out.String())
}

func TestRenderer_Warn(t *testing.T) {
	errOut := &bytes.Buffer{}
	r := NewRendererWithTTY(&bytes.Buffer{}, errOut, false, ModeText)
	r.Warn("careful")
	assert.Equal(t, "! careful\n", errOut.String())
}

func TestRenderer_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"count": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got["count"])
}

func TestRenderer_Table(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeText)
	r.Table([]string{"ID", "Name"}, [][]string{{"QP001", "statement.select_only"}})

	assert.Contains(t, out.String(), "QP001")
	assert.Contains(t, out.String(), "statement.select_only")
	assert.Contains(t, out.String(), "NAME")
}
