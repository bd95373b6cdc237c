package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/pkg/autocomplete"
	"github.com/queryplus/queryplus/pkg/metadata"
)

// CompleteOptions holds options for the complete command.
type CompleteOptions struct {
	Cursor int
	Limit  int
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	opts := &CompleteOptions{}
	cmd := &cobra.Command{
		Use:   "complete [file|-]",
		Short: "List completion suggestions at a cursor",
		Long: `List the dropdown suggestions an editor would show at a cursor.

After FROM or JOIN the known data extensions are listed, shared ones
with the ENT. prefix. After "alias." the fields of that table are listed.
Anywhere else SQL keywords matching the current word are listed.`,
		Example: `  # Tables after FROM
  echo "SELECT * FROM " | queryplus complete

  # Fields of alias o
  queryplus complete query.sql --cursor 9`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Cursor, "cursor", -1, "Byte offset of the cursor (default: end of input)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of suggestions (0 for all)")

	return cmd
}

// completeResult is the JSON output of the complete command.
type completeResult struct {
	Position    string               `json:"position"`
	Start       int                  `json:"start"`
	End         int                  `json:"end"`
	Suggestions []completeSuggestion `json:"suggestions"`
}

type completeSuggestion struct {
	Label        string `json:"label"`
	InsertText   string `json:"insertText"`
	Detail       string `json:"detail,omitempty"`
	IsPrimaryKey bool   `json:"isPrimaryKey,omitempty"`
}

func runComplete(cmd *cobra.Command, args []string, opts *CompleteOptions) error {
	_, sql, err := readSQL(cmd, args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := completionSource(cmd.Context(), cmdCtx.Provider)
	if err != nil {
		return err
	}
	res, err := autocomplete.Complete(cmd.Context(), sql, resolveCursor(sql, opts.Cursor), src)
	if err != nil {
		return fmt.Errorf("failed to load fields: %w", err)
	}
	if opts.Limit > 0 && len(res.Suggestions) > opts.Limit {
		res.Suggestions = res.Suggestions[:opts.Limit]
	}

	out := completeResult{
		Position:    res.Position.String(),
		Start:       res.Start,
		End:         res.End,
		Suggestions: make([]completeSuggestion, 0, len(res.Suggestions)),
	}
	for _, sg := range res.Suggestions {
		out.Suggestions = append(out.Suggestions, completeSuggestion{
			Label:        sg.Label,
			InsertText:   sg.InsertText,
			Detail:       sg.Detail,
			IsPrimaryKey: sg.IsPrimaryKey,
		})
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	renderCompleteText(r, out)
	return nil
}

// completionSource loads the data extensions and shared folders once.
func completionSource(ctx context.Context, provider metadata.Provider) (autocomplete.Source, error) {
	if provider == nil {
		return autocomplete.Source{}, nil
	}
	des, err := provider.DataExtensions(ctx)
	if err != nil {
		return autocomplete.Source{}, fmt.Errorf("failed to load data extensions: %w", err)
	}
	folders, err := provider.Folders(ctx)
	if err != nil {
		return autocomplete.Source{}, fmt.Errorf("failed to load folders: %w", err)
	}
	return autocomplete.Source{
		DataExtensions:  des,
		SharedFolderIDs: metadata.SharedFolderIDs(folders),
		Fields:          provider.Fields,
	}, nil
}

func renderCompleteText(r *output.Renderer, res completeResult) {
	if len(res.Suggestions) == 0 {
		r.Println(r.Styles().Muted.Render("No suggestions"))
		return
	}
	rows := make([][]string, 0, len(res.Suggestions))
	for _, sg := range res.Suggestions {
		key := ""
		if sg.IsPrimaryKey {
			key = "PK"
		}
		rows = append(rows, []string{sg.Label, sg.InsertText, sg.Detail, key})
	}
	r.Printf("%s suggestions\n", strings.ToUpper(res.Position[:1])+res.Position[1:])
	r.Table([]string{"Label", "Insert", "Detail", "Key"}, rows)
}
