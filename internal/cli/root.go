// Package cli provides the command-line interface for Query++.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/commands"
	"github.com/queryplus/queryplus/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "queryplus",
		Short: "Query++ - SQL analysis for Marketing Cloud",
		Long: `Query++ analyzes Salesforce Marketing Cloud SQL queries as you write them.

It lints queries against the Marketing Cloud dialect and your data
extensions, completes table and field names, and suggests the next
piece of a JOIN. Use it from an editor through the language server,
or from the terminal.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			level, err := config.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger := config.NewLogger(level, cmd.ErrOrStderr())
			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
SQL analysis for Marketing Cloud data extensions
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./queryplus.yaml)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("store", "", "Path to the metadata store (default: .queryplus/metadata.db)")
	flags.String("metadata", "", "Metadata snapshot file (YAML)")
	flags.StringSlice("disable", nil, "Lint rule IDs to disable")
	flags.StringP("output", "o", "", "Output format (auto|text|json)")
	flags.Duration("debounce", 0, "Quiet period before worker lint rules run")
	flags.Int("workers", 0, "Number of lint workers")
	flags.Bool("watch", false, "Re-import the metadata snapshot when it changes")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewLSPCommand(Version))
	rootCmd.AddCommand(commands.NewLintCommand())
	rootCmd.AddCommand(commands.NewSuggestCommand())
	rootCmd.AddCommand(commands.NewCompleteCommand())
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewRulesCommand())
	rootCmd.AddCommand(commands.NewReplCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for Query++.

To load completions:

Bash:
  $ source <(queryplus completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ queryplus completion bash > /etc/bash_completion.d/queryplus
  # macOS:
  $ queryplus completion bash > $(brew --prefix)/etc/bash_completion.d/queryplus

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ queryplus completion zsh > "${fpath[1]}/_queryplus"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ queryplus completion fish | source

  # To load completions for each session, execute once:
  $ queryplus completion fish > ~/.config/fish/completions/queryplus.fish

PowerShell:
  PS> queryplus completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> queryplus completion powershell > queryplus.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
