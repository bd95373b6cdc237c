package rules

import (
	"fmt"
	"strings"

	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/sqlcontext"
)

func init() {
	lint.Register(DuplicateAlias)
}

// DuplicateAlias reports two table references of one scope sharing an alias.
var DuplicateAlias = lint.RuleDef{
	ID:          "QP104",
	Name:        "aliasing.duplicate",
	Group:       "aliasing",
	Description: "Table aliases must be unique within a query scope.",
	Severity:    lint.SeverityError,
	Phase:       lint.PhaseWorker,
	Check:       checkDuplicateAlias,
}

func checkDuplicateAlias(in *lint.Input) []lint.Diagnostic {
	type key struct {
		scope int
		alias string
	}
	seen := map[key]sqlcontext.TableReference{}

	var diagnostics []lint.Diagnostic
	for _, ref := range in.References() {
		if ref.Alias == "" {
			continue
		}
		k := key{scope: ref.ScopeID, alias: strings.ToLower(ref.Alias)}
		first, dup := seen[k]
		if !dup {
			seen[k] = ref
			continue
		}
		owner := first.QualifiedName
		if first.IsSubquery {
			owner = "a subquery"
		}
		diagnostics = append(diagnostics, lint.Diagnostic{
			Message:    fmt.Sprintf("Alias %q is already used by %s", ref.Alias, owner),
			Severity:   lint.SeverityError,
			StartIndex: ref.EndIndex - len(ref.Alias),
			EndIndex:   ref.EndIndex,
		})
	}
	return diagnostics
}
