package rules

import (
	"github.com/queryplus/queryplus/pkg/lint"
)

func init() {
	lint.Register(MultipleStatements)
}

// MultipleStatements reports a second statement after a semicolon.
var MultipleStatements = lint.RuleDef{
	ID:          "QP102",
	Name:        "statement.multiple",
	Group:       "statement",
	Description: "A query holds exactly one statement.",
	Severity:    lint.SeverityError,
	Phase:       lint.PhaseWorker,
	Check:       checkMultipleStatements,
}

func checkMultipleStatements(in *lint.Input) []lint.Diagnostic {
	tokens := in.Tokens()
	for i, t := range tokens {
		if t.Kind != lint.TokenPunct || t.Value != ";" {
			continue
		}
		for _, next := range tokens[i+1:] {
			if next.Kind == lint.TokenPunct && next.Value == ";" {
				continue
			}
			return []lint.Diagnostic{{
				Message:    "Only one statement is allowed per query",
				Severity:   lint.SeverityError,
				StartIndex: next.Start,
				EndIndex:   tokens[len(tokens)-1].End,
			}}
		}
		return nil
	}
	return nil
}
