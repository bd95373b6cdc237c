package rules

import (
	"github.com/queryplus/queryplus/pkg/lint"
)

func init() {
	lint.Register(CommonTableExpression)
}

// CommonTableExpression rejects WITH clauses, which the query runtime does
// not accept.
var CommonTableExpression = lint.RuleDef{
	ID:          "QP105",
	Name:        "dialect.cte",
	Group:       "dialect",
	Description: "Common table expressions (WITH) are not supported; use a subquery.",
	Severity:    lint.SeverityError,
	Phase:       lint.PhaseWorker,
	Check:       checkCommonTableExpression,
}

func checkCommonTableExpression(in *lint.Input) []lint.Diagnostic {
	var diagnostics []lint.Diagnostic
	first := true
	for _, t := range in.Tokens() {
		if t.Kind == lint.TokenPunct && t.Value == ";" {
			first = true
			continue
		}
		if first && t.Is("WITH") {
			diagnostics = append(diagnostics, lint.Diagnostic{
				Message:    "Common table expressions are not supported; use a subquery",
				Severity:   lint.SeverityError,
				StartIndex: t.Start,
				EndIndex:   t.End,
			})
		}
		first = false
	}
	return diagnostics
}
