package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/internal/config"
	"github.com/queryplus/queryplus/internal/store"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Force   bool
	Example bool
}

// InitResult is the JSON output of the init command.
type InitResult struct {
	Directory string        `json:"directory"`
	Template  string        `json:"template"`
	Files     []string      `json:"files"`
	Import    *store.Import `json:"import,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a Query++ configuration",
		Long: `Create a queryplus.yaml configuration in a directory.

This creates:
  - queryplus.yaml with the default settings
  - .gitignore entry for the .queryplus/ store directory

Use --example to also write a sample metadata snapshot and query, and
import the snapshot into the store so the editor has tables to suggest
straight away.`,
		Example: `  # Initialize in the current directory
  queryplus init

  # Initialize a working example
  queryplus init demo --example

  # Overwrite an existing configuration
  queryplus init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&opts.Example, "example", false, "Include a sample snapshot and query")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, opts *InitOptions) error {
	cmdCtx := NewCommandContextWithoutMetadata(cmd)
	r := cmdCtx.Renderer

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if !opts.Force {
		for _, name := range []string{config.ConfigFileName, config.ConfigFileNameAlt} {
			if fileExists(filepath.Join(dir, name)) {
				return fmt.Errorf("%s already exists. Use --force to overwrite", name)
			}
		}
	}

	template := "minimal"
	if opts.Example {
		template = "example"
	}
	files, err := copyTemplate(template, dir, opts.Force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	result := &InitResult{Directory: dir, Template: template, Files: files}

	if opts.Example {
		cfg, err := config.LoadFromDir(dir)
		if err != nil {
			return err
		}
		imp, err := importInto(cmd, cfg, cmdCtx)
		if err != nil {
			return err
		}
		result.Import = imp
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(result)
	}
	renderInit(r, result)
	return nil
}

// importInto loads cfg.MetadataFile into the store at cfg.StorePath.
func importInto(cmd *cobra.Command, cfg *config.Config, cmdCtx *CommandContext) (*store.Import, error) {
	st, err := store.Open(cfg.StorePath, cmdCtx.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = st.Close() }()
	return st.ImportFile(cmd.Context(), cfg.MetadataFile)
}

func renderInit(r *output.Renderer, result *InitResult) {
	styles := r.Styles()
	for _, f := range result.Files {
		r.Println("  " + styles.Success.Render("✓") + " " + f)
	}
	r.Println("")
	r.Success("Query++ initialized in " + result.Directory)
	if result.Import != nil {
		r.Printf("Imported %d data extensions and %d folders.\n", result.Import.DataExtensions, result.Import.Folders)
	}
	r.Println("")
	r.Println("Next steps:")
	if result.Import == nil {
		r.Println("  queryplus import snapshot.yaml   Load your data extensions")
	}
	r.Println("  queryplus lint query.sql         Check a query")
	r.Println("  queryplus repl                   Write queries interactively")
	r.Println("  queryplus doctor                 Check the setup")
}
