package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/pkg/joins"
	"github.com/queryplus/queryplus/pkg/lint"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Duration("debounce", DefaultDebounce, "")
	fs.Int("workers", DefaultWorkers, "")
	fs.String("log-level", DefaultLogLevel, "")
	fs.String("store", DefaultStorePath, "")
	fs.String("metadata", "", "")
	fs.StringSlice("disable", nil, "")
	fs.StringP("output", "o", DefaultOutput, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load("", dir, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultDebounce, cfg.Debounce)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Equal(t, filepath.Join(dir, DefaultStorePath), cfg.StorePath)
	assert.Empty(t, cfg.MetadataFile)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, dir, cfg.ProjectRoot)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
debounce: 300ms
workers: 4
log_level: debug
metadata_file: snapshot.yaml
watch: true
lint:
  disabled: [QP006]
  severity:
    qp103: error
joins:
  "orders|customers":
    - "{left}.customer_id = {right}.CustomerID"
`)

	nested := filepath.Join(dir, "queries", "daily")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := load("", nested, nil)
	require.NoError(t, err)

	assert.Equal(t, 300*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Watch)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "snapshot.yaml"), cfg.MetadataFile)
	assert.Equal(t, filepath.Join(dir, DefaultStorePath), cfg.StorePath)
	assert.Equal(t, []string{"QP006"}, cfg.Lint.Disabled)

	lintCfg, err := cfg.LintSettings()
	require.NoError(t, err)
	assert.True(t, lintCfg.IsDisabled("QP006"))
	assert.Equal(t, lint.SeverityError, lintCfg.GetSeverity("QP103", lint.SeverityWarning))

	overrides := cfg.JoinOverrides()
	require.Contains(t, overrides, "orders|customers")
	got := overrides["orders|customers"](joins.Args{
		Left:  joins.Table{Name: "Orders", Alias: "o"},
		Right: joins.Table{Name: "Customers"},
	})
	assert.Equal(t, []joins.Suggestion{{Text: "o.customer_id = [Customers].CustomerID"}}, got)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\n"), 0o644))

	cfg, err := load(path, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, dir, cfg.ProjectRoot)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "workers: 4\nlog_level: warn\ndebounce: 300ms\n")

	t.Setenv("QUERYPLUS_WORKERS", "6")
	t.Setenv("QUERYPLUS_DEBOUNCE", "50ms")
	t.Setenv("QUERYPLUS_LINT__DISABLED", "QP001,QP002")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--workers", "8", "--disable", "QP006"}))

	cfg, err := load("", dir, flags)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers, "flag beats env")
	assert.Equal(t, 50*time.Millisecond, cfg.Debounce, "env beats file")
	assert.Equal(t, "warn", cfg.LogLevel, "file beats default")
	assert.Equal(t, []string{"QP006"}, cfg.Lint.Disabled, "flag beats env")
}

func TestLoad_EnvSlice(t *testing.T) {
	t.Setenv("QUERYPLUS_LINT__DISABLED", "QP001,QP002")
	cfg, err := load("", t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"QP001", "QP002"}, cfg.Lint.Disabled)
}

func TestLoad_UnchangedFlagsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "workers: 4\n")

	flags := testFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := load("", dir, flags)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoad_PathFlags(t *testing.T) {
	dir := t.TempDir()
	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--store", ":memory:", "--metadata", "snap.yaml"}))

	cfg, err := load("", dir, flags)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.StorePath)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "snap.yaml"), cfg.MetadataFile)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "bad yaml", content: "workers: [", errMsg: "error reading config file"},
		{name: "bad duration", content: "debounce: soon\n", errMsg: "unable to decode config"},
		{name: "negative debounce", content: "debounce: -1s\n", errMsg: "debounce must not be negative"},
		{name: "no workers", content: "workers: 0\n", errMsg: "workers must be at least 1"},
		{name: "log level", content: "log_level: loud\n", errMsg: "invalid log level"},
		{name: "output", content: "output: xml\n", errMsg: "invalid output format"},
		{name: "severity", content: "lint:\n  severity:\n    QP006: fatal\n", errMsg: "invalid lint configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			_, err := load("", dir, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	alt := filepath.Join(root, ConfigFileNameAlt)
	require.NoError(t, os.WriteFile(alt, []byte("workers: 2\n"), 0o644))

	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, alt, FindConfigFile(deep))
	assert.Equal(t, alt, FindConfigFile(root))

	// .yaml wins over .yml in the same directory.
	yamlPath := writeConfig(t, root, "workers: 2\n")
	assert.Equal(t, yamlPath, FindConfigFile(deep))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	l := NewLogger(slog.LevelDebug, os.Stderr)
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, GetLogger(ctx))
}

func TestGetConfig(t *testing.T) {
	assert.Equal(t, Default(), GetConfig(context.Background()))

	cfg := Default()
	cfg.Workers = 7
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, GetConfig(ctx))
}

func TestJoinOverrides_Empty(t *testing.T) {
	assert.Nil(t, Default().JoinOverrides())
}
