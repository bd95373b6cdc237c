// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/internal/config"
	"github.com/queryplus/queryplus/internal/testutil"
)

// Workspace is a temporary project with a metadata snapshot.
type Workspace struct {
	Dir      string
	Snapshot string
	Config   *config.Config
}

// SetupWorkspace creates a temporary project holding the sample snapshot. The
// returned config points metadata_file at the snapshot and store_path at a
// store that does not exist yet. Output is JSON.
func SetupWorkspace(t *testing.T) *Workspace {
	t.Helper()

	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snapshot.yaml")
	if err := os.WriteFile(snapshot, []byte(testutil.SampleSnapshotYAML), 0o644); err != nil {
		t.Fatalf("failed to create snapshot.yaml: %v", err)
	}

	cfg := config.Default()
	cfg.ProjectRoot = dir
	cfg.StorePath = filepath.Join(dir, ".queryplus", "metadata.db")
	cfg.MetadataFile = snapshot
	cfg.OutputFormat = string(output.ModeJSON)

	return &Workspace{Dir: dir, Snapshot: snapshot, Config: cfg}
}

// WriteSQL writes a query file into the workspace and returns its path.
func (w *Workspace) WriteSQL(t *testing.T, name, sql string) string {
	t.Helper()
	path := filepath.Join(w.Dir, name)
	if err := os.WriteFile(path, []byte(sql), 0o644); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	return path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode without
// styling.
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
