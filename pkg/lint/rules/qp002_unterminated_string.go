package rules

import (
	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

func init() {
	lint.Register(UnterminatedString)
}

// UnterminatedString reports a quote that is never closed.
var UnterminatedString = lint.RuleDef{
	ID:          "QP002",
	Name:        "syntax.unterminated_string",
	Group:       "syntax",
	Description: "String literals must be closed with a matching quote.",
	Severity:    lint.SeverityError,
	Phase:       lint.PhaseSync,
	Check:       checkUnterminatedString,
}

func checkUnterminatedString(in *lint.Input) []lint.Diagnostic {
	st := sqlscan.Scan(in.SQL, 0, len(in.SQL))
	if !st.InString() {
		return nil
	}
	return []lint.Diagnostic{{
		Message:    "Unterminated string literal",
		Severity:   lint.SeverityError,
		StartIndex: st.QuoteStart,
		EndIndex:   len(in.SQL),
	}}
}
