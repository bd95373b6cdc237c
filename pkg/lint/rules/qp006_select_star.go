package rules

import (
	"strings"

	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

func init() {
	lint.Register(SelectStar)
}

// SelectStar warns about SELECT *, which breaks when fields are added to the
// source data extension.
var SelectStar = lint.RuleDef{
	ID:          "QP006",
	Name:        "convention.select_star",
	Group:       "convention",
	Description: "List fields explicitly instead of SELECT *.",
	Severity:    lint.SeverityWarning,
	Phase:       lint.PhaseSync,
	Check:       checkSelectStar,
}

func checkSelectStar(in *lint.Input) []lint.Diagnostic {
	sql := in.SQL
	var diagnostics []lint.Diagnostic
	for _, w := range sqlscan.Words(sql) {
		if !strings.EqualFold(w.Text, "SELECT") {
			continue
		}
		i := w.End
		for i < len(sql) && (sql[i] == ' ' || sql[i] == '\t' || sql[i] == '\n' || sql[i] == '\r') {
			i++
		}
		if i < len(sql) && sql[i] == '*' {
			diagnostics = append(diagnostics, lint.Diagnostic{
				Message:    "Avoid SELECT *; list the fields you need",
				Severity:   lint.SeverityWarning,
				StartIndex: i,
				EndIndex:   i + 1,
			})
		}
	}
	return diagnostics
}
