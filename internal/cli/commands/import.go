package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/internal/store"
)

// ImportOptions holds options for the import command.
type ImportOptions struct {
	Watch bool
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}
	cmd := &cobra.Command{
		Use:   "import <snapshot.yaml>",
		Short: "Import a metadata snapshot into the local store",
		Long: `Import folders, data extensions and fields from a YAML snapshot.

The snapshot replaces everything in the metadata store at store_path
(default .queryplus/metadata.db). The editor server and the lint,
suggest and complete commands read metadata from this store.`,
		Example: `  # Import a snapshot
  queryplus import snapshot.yaml

  # Keep re-importing whenever the snapshot changes
  queryplus import snapshot.yaml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-import whenever the snapshot file changes")

	return cmd
}

func runImport(cmd *cobra.Command, path string, opts *ImportOptions) error {
	cmdCtx := NewCommandContextWithoutMetadata(cmd)
	if cmdCtx.Cfg.StorePath == "" {
		return fmt.Errorf("store_path is not configured")
	}

	st, err := store.Open(cmdCtx.Cfg.StorePath, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = st.Close() }()

	imp, err := st.ImportFile(cmd.Context(), path)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	renderImport(r, imp, cmdCtx.Cfg.StorePath)

	if !opts.Watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if r.EffectiveMode() != output.ModeJSON {
		r.Println(r.Styles().Muted.Render("Watching " + path + " (Ctrl+C to stop)"))
	}
	return watchImports(ctx, st, path, r)
}

func watchImports(ctx context.Context, st *store.Store, path string, r *output.Renderer) error {
	return st.WatchSnapshot(ctx, path, func(imp *store.Import, err error) {
		if err != nil {
			r.Warn(err.Error())
			return
		}
		renderImport(r, imp, st.Path())
	})
}

func renderImport(r *output.Renderer, imp *store.Import, storePath string) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(imp)
		return
	}
	r.Success(fmt.Sprintf("Imported %d data extensions and %d folders from %s into %s",
		imp.DataExtensions, imp.Folders, imp.Source, storePath))
}
