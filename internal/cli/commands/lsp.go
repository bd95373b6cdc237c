package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/config"
	"github.com/queryplus/queryplus/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC and publishes
diagnostics, completions and inline suggestions for open SQL documents.
Configuration is read from queryplus.yaml in the client's root folder
unless flags or environment variables override it.`,
		Example: `  # Start LSP server (usually called by an editor)
  queryplus lsp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd, version)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command, version string) error {
	logger := config.GetLogger(cmd.Context())
	opts := lsp.Options{Version: version}
	// A loaded config file or explicit flags pin the configuration; otherwise
	// the server resolves it from the client's root folder.
	if cfg := config.GetConfig(cmd.Context()); cfg.ConfigFile != "" || cmd.Flags().NFlag() > 0 {
		opts.Config = cfg
	}
	server := lsp.NewServerWithLogger(os.Stdin, os.Stdout, opts, logger)
	return server.Run()
}
