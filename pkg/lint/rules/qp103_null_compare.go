package rules

import (
	"github.com/queryplus/queryplus/pkg/lint"
)

func init() {
	lint.Register(NullCompare)
}

// NullCompare warns about = NULL and <> NULL, which never match.
var NullCompare = lint.RuleDef{
	ID:          "QP103",
	Name:        "convention.null_compare",
	Group:       "convention",
	Description: "Use IS NULL or IS NOT NULL for NULL comparisons.",
	Severity:    lint.SeverityWarning,
	Phase:       lint.PhaseWorker,
	Check:       checkNullCompare,
}

func checkNullCompare(in *lint.Input) []lint.Diagnostic {
	tokens := in.Tokens()
	var diagnostics []lint.Diagnostic
	for i := 0; i+1 < len(tokens); i++ {
		op := tokens[i]
		if op.Kind != lint.TokenOperator || !tokens[i+1].Is("NULL") {
			continue
		}
		var msg string
		switch op.Value {
		case "=":
			msg = "Use IS NULL instead of = NULL"
		case "<>", "!=":
			msg = "Use IS NOT NULL instead of " + op.Value + " NULL"
		default:
			continue
		}
		diagnostics = append(diagnostics, lint.Diagnostic{
			Message:    msg,
			Severity:   lint.SeverityWarning,
			StartIndex: op.Start,
			EndIndex:   tokens[i+1].End,
		})
	}
	return diagnostics
}
