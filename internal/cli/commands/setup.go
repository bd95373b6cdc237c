package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/internal/config"
	"github.com/queryplus/queryplus/internal/store"
	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/metadata"

	_ "github.com/queryplus/queryplus/pkg/lint/rules" // register lint rules
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	// Provider is nil when no metadata is available.
	Provider metadata.Provider
}

// NewCommandContext creates a CommandContext with a metadata provider.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutMetadata(cmd)

	provider, closeFn, err := openProvider(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Provider = provider
	return cmdCtx, closeFn, nil
}

// NewCommandContextWithoutMetadata creates a CommandContext without opening
// the metadata store.
func NewCommandContextWithoutMetadata(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// openProvider picks the metadata source: the store when it exists (refreshed
// from metadata_file when one is set), else the snapshot file read directly.
func openProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metadata.Provider, func(), error) {
	noop := func() {}

	if cfg.StorePath != "" && (cfg.StorePath == ":memory:" || fileExists(cfg.StorePath)) {
		st, err := store.Open(cfg.StorePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
		}
		if cfg.MetadataFile != "" {
			if _, err := st.ImportFile(ctx, cfg.MetadataFile); err != nil {
				_ = st.Close()
				return nil, nil, err
			}
		}
		return st, func() { _ = st.Close() }, nil
	}

	if cfg.MetadataFile != "" {
		snap, err := store.ReadSnapshotFile(cfg.MetadataFile)
		if err != nil {
			return nil, nil, err
		}
		return metadata.NewSnapshotProvider(snap), noop, nil
	}

	logger.Debug("no metadata available", "store_path", cfg.StorePath)
	return nil, noop, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// buildAnalyzer combines the configured lint settings with command flags.
// only, when set, disables every other rule.
func buildAnalyzer(cfg *config.Config, only []string) (*lint.Analyzer, error) {
	lintCfg, err := cfg.LintSettings()
	if err != nil {
		return nil, err
	}
	if len(only) > 0 {
		keep := make(map[string]bool, len(only))
		for _, id := range only {
			keep[strings.ToUpper(strings.TrimSpace(id))] = true
		}
		for _, rule := range lint.GetAll() {
			if !keep[rule.ID] {
				lintCfg.Disable(rule.ID)
			}
		}
	}
	return lint.NewAnalyzer(lintCfg), nil
}

// dataExtensionNames lists the known table names, or nil without metadata.
func dataExtensionNames(ctx context.Context, provider metadata.Provider) ([]string, error) {
	if provider == nil {
		return nil, nil
	}
	des, err := provider.DataExtensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load data extensions: %w", err)
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		names = append(names, de.Name)
	}
	return names, nil
}

// readSQL reads the SQL named by arg: a file path, or stdin for "-" or no
// argument.
func readSQL(cmd *cobra.Command, args []string) (name, sql string, err error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return "<stdin>", string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("file not found: %s", args[0])
		}
		return "", "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return args[0], string(data), nil
}

// resolveCursor maps a --cursor value onto sql; negative means the end.
func resolveCursor(sql string, cursor int) int {
	if cursor < 0 || cursor > len(sql) {
		return len(sql)
	}
	return cursor
}

// lineCol converts a byte offset into 1-based line and column numbers.
func lineCol(sql string, offset int) (int, int) {
	offset = max(0, min(offset, len(sql)))
	line, col := 1, 1
	for i := 0; i < offset; i++ {
		if sql[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
