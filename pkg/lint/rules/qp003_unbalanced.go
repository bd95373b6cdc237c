package rules

import (
	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

func init() {
	lint.Register(Unbalanced)
}

// Unbalanced reports parentheses and brackets without a partner.
var Unbalanced = lint.RuleDef{
	ID:          "QP003",
	Name:        "syntax.unbalanced",
	Group:       "syntax",
	Description: "Parentheses and brackets must be balanced.",
	Severity:    lint.SeverityError,
	Phase:       lint.PhaseSync,
	Check:       checkUnbalanced,
}

func checkUnbalanced(in *lint.Input) []lint.Diagnostic {
	sql := in.SQL
	var diagnostics []lint.Diagnostic
	report := func(msg string, start, end int) {
		diagnostics = append(diagnostics, lint.Diagnostic{
			Message:    msg,
			Severity:   lint.SeverityError,
			StartIndex: start,
			EndIndex:   end,
		})
	}

	var open []int
	sqlscan.EachCode(sql, func(i int) bool {
		switch sql[i] {
		case '(':
			open = append(open, i)
		case ')':
			if len(open) == 0 {
				report("Unmatched ')'", i, i+1)
			} else {
				open = open[:len(open)-1]
			}
		case ']':
			report("Unmatched ']'", i, i+1)
		}
		return true
	})
	for _, i := range open {
		report("Unclosed '('", i, i+1)
	}

	if st := sqlscan.Scan(sql, 0, len(sql)); st.InBracket {
		report("Unclosed '['", st.BracketStart, len(sql))
	}
	return diagnostics
}
