package rules

import (
	"strings"

	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

func init() {
	lint.Register(SelectOnly)
}

// SelectOnly rejects statements that modify data or schema.
var SelectOnly = lint.RuleDef{
	ID:          "QP001",
	Name:        "statement.select_only",
	Group:       "statement",
	Description: "Queries must be SELECT statements; data and schema changes are not allowed.",
	Severity:    lint.SeverityError,
	Phase:       lint.PhaseSync,
	Check:       checkSelectOnly,
}

var writeVerbs = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "TRUNCATE": true, "EXEC": true, "EXECUTE": true,
}

func checkSelectOnly(in *lint.Input) []lint.Diagnostic {
	var diagnostics []lint.Diagnostic
	for _, w := range statementFirstWords(in.SQL) {
		verb := strings.ToUpper(w.Text)
		if !writeVerbs[verb] {
			continue
		}
		diagnostics = append(diagnostics, lint.Diagnostic{
			Message:    "Only SELECT statements are supported; found " + verb,
			Severity:   lint.SeverityError,
			StartIndex: w.Start,
			EndIndex:   w.End,
		})
	}
	return diagnostics
}

// statementFirstWords returns the first word of each non-empty statement.
func statementFirstWords(sql string) []sqlscan.Word {
	words := sqlscan.Words(sql)
	var out []sqlscan.Word
	k := 0
	for _, span := range sqlscan.Statements(sql) {
		for k < len(words) && words[k].Start < span.Start {
			k++
		}
		if k < len(words) && words[k].Start < span.End {
			out = append(out, words[k])
		}
	}
	return out
}
