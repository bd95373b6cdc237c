package rules

import (
	"fmt"
	"strings"

	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/metadata"
)

func init() {
	lint.Register(UnknownTable)
}

// UnknownTable warns about FROM and JOIN targets that are not known data
// extensions. It only runs when the request carries the list of names.
var UnknownTable = lint.RuleDef{
	ID:          "QP101",
	Name:        "reference.unknown_table",
	Group:       "reference",
	Description: "Tables in FROM and JOIN must be existing data extensions.",
	Severity:    lint.SeverityWarning,
	Phase:       lint.PhaseWorker,
	Check:       checkUnknownTable,
}

func checkUnknownTable(in *lint.Input) []lint.Diagnostic {
	if len(in.DataExtensions) == 0 {
		return nil
	}
	known := make(map[string]bool, len(in.DataExtensions))
	for _, name := range in.DataExtensions {
		known[strings.ToLower(metadata.TrimQualifier(name))] = true
	}

	var diagnostics []lint.Diagnostic
	for _, ref := range in.References() {
		if ref.IsSubquery || known[strings.ToLower(ref.Name)] {
			continue
		}
		diagnostics = append(diagnostics, lint.Diagnostic{
			Message:    fmt.Sprintf("Data extension %q does not exist", ref.Name),
			Severity:   lint.SeverityWarning,
			StartIndex: ref.StartIndex,
			EndIndex:   ref.StartIndex + len(ref.QualifiedName),
		})
	}
	return diagnostics
}
