package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/internal/config"
)

func jsonOutputConfig() *config.Config {
	cfg := config.Default()
	cfg.OutputFormat = "json"
	return cfg
}

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   string
		wantFiles []string
	}{
		{
			name:      "init empty directory",
			wantFiles: []string{".gitignore", "queryplus.yaml"},
		},
		{
			name: "init existing config without force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "queryplus.yaml"), []byte("existing"), 0o600))
			},
			wantErr: "queryplus.yaml already exists",
		},
		{
			name: "init existing alternate config without force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "queryplus.yml"), []byte("existing"), 0o600))
			},
			wantErr: "queryplus.yml already exists",
		},
		{
			name: "init existing config with force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "queryplus.yaml"), []byte("existing"), 0o600))
			},
			args:      []string{"--force"},
			wantFiles: []string{".gitignore", "queryplus.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			out, _, err := execute(t, NewInitCommand(), jsonOutputConfig(), "", append([]string{dir}, tt.args...)...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			var result InitResult
			require.NoError(t, json.Unmarshal([]byte(out), &result))
			assert.Equal(t, "minimal", result.Template)
			assert.Equal(t, tt.wantFiles, result.Files)
			assert.Nil(t, result.Import)

			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(dir, f))
			}
			content, err := os.ReadFile(filepath.Join(dir, "queryplus.yaml"))
			require.NoError(t, err)
			assert.Contains(t, string(content), "store_path: .queryplus/metadata.db")
		})
	}
}

func TestInitCommand_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "project")

	_, _, err := execute(t, NewInitCommand(), jsonOutputConfig(), "", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "queryplus.yaml"))
}

func TestInitCommand_Example(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, NewInitCommand(), jsonOutputConfig(), "", dir, "--example")
	require.NoError(t, err)

	var result InitResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "example", result.Template)
	assert.Equal(t, []string{".gitignore", "queries/recent_buyers.sql", "queryplus.yaml", "snapshot.yaml"}, result.Files)

	require.NotNil(t, result.Import)
	assert.Equal(t, 2, result.Import.DataExtensions)
	assert.Equal(t, 2, result.Import.Folders)
	assert.FileExists(t, filepath.Join(dir, ".queryplus", "metadata.db"))

	// The generated project lints cleanly against its own metadata.
	cfg, err := config.LoadFromDir(dir)
	require.NoError(t, err)
	cfg.OutputFormat = "json"
	cfg.MetadataFile = ""
	lintOut, _, err := execute(t, NewLintCommand(), cfg, "", filepath.Join(dir, "queries", "recent_buyers.sql"))
	require.NoError(t, err, lintOut)
}

func TestInitTemplatesLoad(t *testing.T) {
	for _, name := range []string{"minimal", "example"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := copyTemplate(name, dir, false)
			require.NoError(t, err)

			cfg, err := config.LoadFromDir(dir)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "queryplus.yaml"), cfg.ConfigFile)
			assert.Equal(t, 150*time.Millisecond, cfg.Debounce)
			assert.Equal(t, 2, cfg.Workers)
			assert.Equal(t, filepath.Join(dir, ".queryplus", "metadata.db"), cfg.StorePath)
			_, err = cfg.LintSettings()
			assert.NoError(t, err)
		})
	}
}

func TestCopyTemplate_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	gitignore := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignore, []byte("bin/\n"), 0o600))

	files, err := copyTemplate("minimal", dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"queryplus.yaml"}, files)

	content, err := os.ReadFile(gitignore)
	require.NoError(t, err)
	assert.Equal(t, "bin/\n", string(content))
}

func TestRenameSpecialFiles(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "gitignore", want: ".gitignore"},
		{in: "sub/gitignore", want: "sub/.gitignore"},
		{in: "queryplus.yaml", want: "queryplus.yaml"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renameSpecialFiles(tt.in))
	}
}

func TestInitCommand_Text(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutputFormat = "text"

	out, _, err := execute(t, NewInitCommand(), cfg, "", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ queryplus.yaml")
	assert.Contains(t, out, "Query++ initialized in "+dir)
	assert.Contains(t, out, "queryplus import snapshot.yaml")
}
