package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/pkg/lint"
)

// errLintIssues makes the process exit non-zero when issues were reported.
var errLintIssues = errors.New("lint issues found")

// LintOptions holds options for the lint command.
type LintOptions struct {
	Severity string   // Minimum severity: error, warning, prereq
	Rules    []string // Run only specific rules
}

// NewLintCommand creates the lint command.
func NewLintCommand() *cobra.Command {
	opts := &LintOptions{}
	cmd := &cobra.Command{
		Use:   "lint [file|-]",
		Short: "Run lint rules on a SQL query",
		Long: `Analyze a Marketing Cloud SQL query for problems.

Runs both the fast editor rules and the worker rules once and reports
every diagnostic. With metadata available, table names are checked
against the known data extensions. Reads stdin when no file is given.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: JSON`,
		Example: `  # Lint a query file
  queryplus lint query.sql

  # Lint from stdin
  echo "SELECT * FROM [Orders]" | queryplus lint -

  # Only report errors
  queryplus lint query.sql --severity error

  # Run selected rules
  queryplus lint query.sql --rule QP101,QP104`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Severity, "severity", "prereq", "Minimum severity: error, warning, prereq")
	cmd.Flags().StringSliceVar(&opts.Rules, "rule", nil, "Run only specific rules")

	return cmd
}

// lintReport is the JSON output of the lint command.
type lintReport struct {
	File        string           `json:"file"`
	Diagnostics []lintDiagnostic `json:"diagnostics"`
	Summary     lintSummary      `json:"summary"`
}

type lintDiagnostic struct {
	RuleID     string `json:"ruleId"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

type lintSummary struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Prereqs  int `json:"prereqs"`
}

func runLint(cmd *cobra.Command, args []string, opts *LintOptions) error {
	threshold, err := lint.ParseSeverity(opts.Severity)
	if err != nil {
		return fmt.Errorf("invalid --severity: %w", err)
	}

	name, sql, err := readSQL(cmd, args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	analyzer, err := buildAnalyzer(cmdCtx.Cfg, opts.Rules)
	if err != nil {
		return err
	}
	names, err := dataExtensionNames(cmd.Context(), cmdCtx.Provider)
	if err != nil {
		return err
	}

	diags := filterBySeverity(analyzer.Analyze(sql, names), threshold)
	cmdCtx.Logger.Debug("lint finished", "file", name, "diagnostics", len(diags))

	report := buildLintReport(name, sql, diags)
	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(report); err != nil {
			return err
		}
	} else {
		renderLintText(r, report)
	}

	if len(diags) > 0 {
		return errLintIssues
	}
	return nil
}

// filterBySeverity keeps diagnostics at least as severe as threshold. Error
// is the most severe, prereq the least.
func filterBySeverity(diags []lint.Diagnostic, threshold lint.Severity) []lint.Diagnostic {
	var out []lint.Diagnostic
	for _, d := range diags {
		if d.Severity <= threshold {
			out = append(out, d)
		}
	}
	return out
}

func buildLintReport(name, sql string, diags []lint.Diagnostic) lintReport {
	report := lintReport{File: name, Diagnostics: []lintDiagnostic{}}
	for _, d := range diags {
		line, col := lineCol(sql, d.StartIndex)
		report.Diagnostics = append(report.Diagnostics, lintDiagnostic{
			RuleID:     d.RuleID,
			Severity:   d.Severity.String(),
			Message:    d.Message,
			Line:       line,
			Column:     col,
			StartIndex: d.StartIndex,
			EndIndex:   d.EndIndex,
		})
		report.Summary.Total++
		switch d.Severity {
		case lint.SeverityError:
			report.Summary.Errors++
		case lint.SeverityWarning:
			report.Summary.Warnings++
		case lint.SeverityPrereq:
			report.Summary.Prereqs++
		}
	}
	return report
}

func renderLintText(r *output.Renderer, report lintReport) {
	if len(report.Diagnostics) == 0 {
		r.Success("No lint issues found")
		return
	}

	styles := r.Styles()
	r.Println(styles.Path.Render(report.File))
	for _, d := range report.Diagnostics {
		r.Printf("  %s  %s  %s  %s\n",
			styles.Muted.Render(fmt.Sprintf("%-5s", fmt.Sprintf("%d:%d", d.Line, d.Column))),
			severityLabel(r, d.Severity),
			styles.Bold.Render(d.RuleID),
			d.Message,
		)
	}
	r.Println("")

	parts := []string{fmt.Sprintf("%d issues", report.Summary.Total)}
	if report.Summary.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", report.Summary.Errors))
	}
	if report.Summary.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", report.Summary.Warnings))
	}
	if report.Summary.Prereqs > 0 {
		parts = append(parts, fmt.Sprintf("%d prereqs", report.Summary.Prereqs))
	}
	r.Printf("Summary: %s\n", strings.Join(parts, ", "))
}

func severityLabel(r *output.Renderer, sev string) string {
	switch sev {
	case "error":
		return r.Styles().Error.Render("error  ")
	case "warning":
		return r.Styles().Warning.Render("warning")
	case "prereq":
		return r.Styles().Info.Render("prereq ")
	default:
		return r.Styles().Muted.Render("unknown")
	}
}
