package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/pkg/autocomplete"
	"github.com/queryplus/queryplus/pkg/diagnostics"
	"github.com/queryplus/queryplus/pkg/inline"
	"github.com/queryplus/queryplus/pkg/lint"
)

const (
	replPrompt     = "queryplus> "
	replContPrompt = "       ...> "
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Write a query interactively with live analysis",
		Long: `Start an interactive SQL editor in the terminal.

Each line is appended to the current query. Fast lint results are shown
right away, worker results when typing pauses, and the inline suggestion
for the end of the query is shown as a hint. Tab completes tables after
FROM/JOIN and fields after "alias.". End a query with ';' to start over.`,
		Example: `  queryplus repl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
	return cmd
}

// repl holds one interactive session. It is driven line by line so the
// readline loop stays thin.
type repl struct {
	ctx      context.Context
	r        *output.Renderer
	out      io.Writer
	engine   *inline.Engine
	src      autocomplete.Source
	pipeline *diagnostics.Pipeline
	worker   *diagnostics.LocalWorker

	mu  sync.Mutex
	buf strings.Builder
}

func newREPL(ctx context.Context, cmdCtx *CommandContext, out io.Writer) (*repl, error) {
	analyzer, err := buildAnalyzer(cmdCtx.Cfg, nil)
	if err != nil {
		return nil, err
	}
	src, err := completionSource(ctx, cmdCtx.Provider)
	if err != nil {
		return nil, err
	}
	names, err := dataExtensionNames(ctx, cmdCtx.Provider)
	if err != nil {
		return nil, err
	}

	s := &repl{
		ctx:    ctx,
		r:      output.NewRendererWithTTY(out, cmdCtx.Renderer.ErrWriter(), cmdCtx.Renderer.IsTTY(), output.ModeText),
		out:    out,
		engine: newInlineEngine(cmdCtx),
		src:    src,
		worker: diagnostics.NewLocalWorker(analyzer, cmdCtx.Cfg.Workers, cmdCtx.Logger),
	}
	s.pipeline = diagnostics.NewPipeline(s.worker, diagnostics.Options{
		Analyzer:       analyzer,
		Debounce:       cmdCtx.Cfg.Debounce,
		DataExtensions: func() []string { return names },
		OnUpdate:       s.onUpdate,
		Logger:         cmdCtx.Logger,
	})
	return s, nil
}

func (s *repl) close() {
	s.pipeline.Close()
	_ = s.worker.Close()
}

// query returns the text typed so far.
func (s *repl) query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// handleLine processes one input line and reports whether the session ends.
func (s *repl) handleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if isDotCommand(trimmed) || (strings.HasPrefix(trimmed, ".") && s.query() == "") {
		return s.handleDotCommand(trimmed)
	}
	if trimmed == "" {
		return false
	}

	s.mu.Lock()
	if s.buf.Len() > 0 {
		s.buf.WriteString("\n")
	}
	s.buf.WriteString(line)
	sql := s.buf.String()
	s.mu.Unlock()

	s.pipeline.Update(sql)
	s.printDiagnostics(sql, s.pipeline.Snapshot().SyncDiagnostics)

	if strings.HasSuffix(trimmed, ";") {
		s.reset()
		return false
	}
	if sg := evaluateSuggestion(s.ctx, s.engine, sql); sg != nil {
		s.r.Println(s.r.Styles().Muted.Render("hint:") + " " + s.r.Styles().Ghost.Render(sg.Text))
	}
	return false
}

func (s *repl) reset() {
	s.mu.Lock()
	s.buf.Reset()
	s.mu.Unlock()
	s.pipeline.Update("")
}

// onUpdate prints worker results once they settle for the current text.
func (s *repl) onUpdate(snap diagnostics.Snapshot) {
	if snap.IsAsyncLinting || snap.AsyncSQL == "" || snap.AsyncSQL != snap.SQL {
		return
	}
	s.printDiagnostics(snap.SQL, snap.AsyncDiagnostics)
}

func (s *repl) printDiagnostics(sql string, diags []lint.Diagnostic) {
	styles := s.r.Styles()
	for _, d := range diags {
		line, col := lineCol(sql, d.StartIndex)
		s.r.Printf("  %s  %s  %s  %s\n",
			styles.Muted.Render(fmt.Sprintf("%d:%d", line, col)),
			severityLabel(s.r, d.Severity.String()),
			styles.Bold.Render(d.RuleID),
			d.Message,
		)
	}
}

var dotCommands = map[string]bool{
	".help": true, ".tables": true, ".show": true, ".clear": true, ".quit": true, ".exit": true,
}

// isDotCommand reports whether line is a known command. Other lines starting
// with a dot continue an open query.
func isDotCommand(line string) bool {
	parts := strings.Fields(line)
	return len(parts) > 0 && dotCommands[strings.ToLower(parts[0])]
}

func (s *repl) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.out)
	case ".tables":
		s.printTables()
	case ".show":
		s.r.Println(s.query())
	case ".clear":
		s.reset()
	default:
		s.r.Printf("Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func (s *repl) printTables() {
	res := autocomplete.BuildDataExtensionSuggestions(s.src.DataExtensions, s.src.SharedFolderIDs, "")
	if len(res) == 0 {
		s.r.Println(s.r.Styles().Muted.Render("No metadata. Run 'queryplus import <snapshot.yaml>' first."))
		return
	}
	for _, sg := range res {
		s.r.Println(sg.Label)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List known data extensions
  .show           Print the query typed so far
  .clear          Discard the current query
  .quit / .exit   Exit the REPL

Tips:
  - Lines accumulate into one query until a line ends with ';'
  - Tab completes tables after FROM/JOIN and fields after "alias."
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

// replCompleter adapts autocomplete to readline. Candidates are offered only
// when they extend what was typed on the current line.
type replCompleter struct {
	s *repl
}

// Do implements readline.AutoCompleter.
func (c replCompleter) Do(line []rune, pos int) ([][]rune, int) {
	prefix := c.s.query()
	if prefix != "" {
		prefix += "\n"
	}
	sql := prefix + string(line)
	cursor := len(prefix) + len(string(line[:pos]))

	res, err := autocomplete.Complete(c.s.ctx, sql, cursor, c.s.src)
	if err != nil || res.Start < len(prefix) {
		return nil, 0
	}
	typed := sql[res.Start:res.End]

	var out [][]rune
	for _, sg := range res.Suggestions {
		if len(sg.InsertText) < len(typed) || !strings.EqualFold(sg.InsertText[:len(typed)], typed) {
			continue
		}
		out = append(out, []rune(sg.InsertText[len(typed):]))
	}
	return out, len([]rune(typed))
}

func runREPL(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cmdCtx.Cfg.StorePath), "repl_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s, err := newREPL(cmd.Context(), cmdCtx, rl.Stdout())
	if err != nil {
		return err
	}
	defer s.close()
	rl.Config.AutoComplete = replCompleter{s: s}

	if cmdCtx.Provider == nil {
		cmdCtx.Renderer.Warn("No metadata found; table checks and completion are limited")
	}
	_, _ = fmt.Fprintln(rl.Stdout(), "Query++ REPL")
	_, _ = fmt.Fprintln(rl.Stdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(rl.Stdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if s.handleLine(line) {
			return nil
		}
		if s.query() == "" {
			rl.SetPrompt(replPrompt)
		} else {
			rl.SetPrompt(replContPrompt)
		}
	}
}
