package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/pkg/inline"
	"github.com/queryplus/queryplus/pkg/joins"
	"github.com/queryplus/queryplus/pkg/metadata"
)

// SuggestOptions holds options for the suggest command.
type SuggestOptions struct {
	Cursor int
}

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand() *cobra.Command {
	opts := &SuggestOptions{}
	cmd := &cobra.Command{
		Use:   "suggest [file|-]",
		Short: "Show the inline suggestion at a cursor",
		Long: `Evaluate the inline suggestion rules at a cursor offset.

Prints the ghost text an editor would show: the JOIN keyword after
INNER/LEFT/RIGHT/FULL, a table alias, the ON keyword, or a join
condition built from both tables' fields. Prints nothing when no rule
applies.`,
		Example: `  # Suggest at the end of the query
  echo "SELECT * FROM [Orders] o JOIN [Customers] c ON " | queryplus suggest

  # Suggest at byte offset 22
  queryplus suggest query.sql --cursor 22`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Cursor, "cursor", -1, "Byte offset of the cursor (default: end of input)")

	return cmd
}

// suggestResult is the JSON output of the suggest command.
type suggestResult struct {
	Cursor     int                `json:"cursor"`
	Suggestion *inline.Suggestion `json:"suggestion"`
}

func runSuggest(cmd *cobra.Command, args []string, opts *SuggestOptions) error {
	_, sql, err := readSQL(cmd, args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cursor := resolveCursor(sql, opts.Cursor)
	engine := newInlineEngine(cmdCtx)
	suggestion := engine.Evaluate(cmd.Context(), inline.Request{SQL: sql, Cursor: cursor})

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(suggestResult{Cursor: cursor, Suggestion: suggestion})
	}
	if suggestion == nil {
		return nil
	}
	renderSuggestionText(r, sql, cursor, suggestion.Text)
	return nil
}

// newInlineEngine wires the join condition rule to the metadata provider
// when there is one.
func newInlineEngine(cmdCtx *CommandContext) *inline.Engine {
	opts := inline.Options{
		Joins:  joins.NewResolver(cmdCtx.Cfg.JoinOverrides()),
		Logger: cmdCtx.Logger,
	}
	if cmdCtx.Provider != nil {
		opts.Fetcher = metadata.NewFetcher(cmdCtx.Provider, cmdCtx.Logger)
	}
	return inline.NewEngine(opts)
}

// renderSuggestionText prints the line around the cursor with the ghost text
// styled in place.
func renderSuggestionText(r *output.Renderer, sql string, cursor int, text string) {
	lineStart := cursor
	for lineStart > 0 && sql[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := cursor
	for lineEnd < len(sql) && sql[lineEnd] != '\n' {
		lineEnd++
	}
	if !r.IsTTY() {
		r.Println(text)
		return
	}
	r.Println(sql[lineStart:cursor] + r.Styles().Ghost.Render(text) + sql[cursor:lineEnd])
}

// evaluateSuggestion is shared with the repl.
func evaluateSuggestion(ctx context.Context, engine *inline.Engine, sql string) *inline.Suggestion {
	return engine.Evaluate(ctx, inline.Request{SQL: sql, Cursor: len(sql)})
}
