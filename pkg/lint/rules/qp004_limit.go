package rules

import (
	"strings"

	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

func init() {
	lint.Register(Limit)
}

// Limit flags LIMIT, which the dialect spells SELECT TOP n.
var Limit = lint.RuleDef{
	ID:          "QP004",
	Name:        "dialect.limit",
	Group:       "dialect",
	Description: "LIMIT is not supported; use SELECT TOP n.",
	Severity:    lint.SeverityError,
	Phase:       lint.PhaseSync,
	Check:       checkLimit,
}

func checkLimit(in *lint.Input) []lint.Diagnostic {
	var diagnostics []lint.Diagnostic
	for _, w := range sqlscan.Words(in.SQL) {
		if !strings.EqualFold(w.Text, "LIMIT") {
			continue
		}
		diagnostics = append(diagnostics, lint.Diagnostic{
			Message:    "LIMIT is not supported; use SELECT TOP n",
			Severity:   lint.SeverityError,
			StartIndex: w.Start,
			EndIndex:   w.End,
		})
	}
	return diagnostics
}
