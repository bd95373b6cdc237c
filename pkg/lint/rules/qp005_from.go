package rules

import (
	"strings"

	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

func init() {
	lint.Register(MissingFrom)
}

// MissingFrom asks for a FROM clause once a SELECT has been started.
var MissingFrom = lint.RuleDef{
	ID:          "QP005",
	Name:        "prereq.from",
	Group:       "prereq",
	Description: "A SELECT needs a FROM clause naming a data extension.",
	Severity:    lint.SeverityPrereq,
	Phase:       lint.PhaseSync,
	Check:       checkMissingFrom,
}

func checkMissingFrom(in *lint.Input) []lint.Diagnostic {
	words := sqlscan.Words(in.SQL)
	var diagnostics []lint.Diagnostic
	for _, span := range sqlscan.Statements(in.SQL) {
		var sel *sqlscan.Word
		hasFrom := false
		for i := range words {
			w := words[i]
			if w.Start < span.Start || w.Start >= span.End {
				continue
			}
			switch strings.ToUpper(w.Text) {
			case "SELECT":
				if sel == nil {
					sel = &words[i]
				}
			case "FROM":
				hasFrom = true
			}
		}
		if sel != nil && !hasFrom {
			diagnostics = append(diagnostics, lint.Diagnostic{
				Message:    "Add a FROM clause to select from a data extension",
				Severity:   lint.SeverityPrereq,
				StartIndex: sel.Start,
				EndIndex:   sel.End,
			})
		}
	}
	return diagnostics
}
