package inline

import (
	"context"

	"github.com/queryplus/queryplus/pkg/alias"
	"github.com/queryplus/queryplus/pkg/sqlcontext"
)

// AliasRule proposes " AS x" right after a FROM or JOIN table that has no
// alias. Before an auto-closed bracket it also types the bracket: "] AS x".
// After a dangling AS it proposes only the alias.
func AliasRule() Rule {
	return Rule{
		Name:     "alias",
		Priority: PriorityAlias,
		Matches: func(in *Input) bool {
			_, _, ok := aliasTarget(in)
			return ok
		},
		Suggest: suggestAlias,
	}
}

// aliasTarget finds the unaliased reference the cursor follows and the text to
// put before the alias.
func aliasTarget(in *Input) (sqlcontext.TableReference, string, bool) {
	if !atWordEnd(in) && !closingBracketAt(in) {
		return sqlcontext.TableReference{}, "", false
	}

	for _, ref := range in.Scope.TablesInScope {
		if ref.IsBracketed && !ref.IsSubquery && ref.Alias == "" && !ref.ExpectsAlias &&
			ref.EndIndex == in.Cursor+1 && closingBracketAt(in) {
			return ref, "] AS ", true
		}
	}

	ref, gap, ok := refBefore(in)
	if !ok || ref.IsSubquery || ref.Alias != "" {
		return sqlcontext.TableReference{}, "", false
	}
	switch {
	case ref.ExpectsAlias && gap == "":
		return ref, " ", true
	case ref.ExpectsAlias:
		return ref, "", true
	case gap == "" && !ref.IsBracketed:
		// Still typing the table name.
		return sqlcontext.TableReference{}, "", false
	}
	return ref, " AS ", true
}

func closingBracketAt(in *Input) bool {
	return in.Cursor < len(in.SQL) && in.SQL[in.Cursor] == ']'
}

func suggestAlias(_ context.Context, in *Input) *Suggestion {
	ref, prefix, ok := aliasTarget(in)
	if !ok {
		return nil
	}
	existing := make(map[string]struct{}, len(in.Scope.TablesInScope))
	for _, r := range in.Scope.TablesInScope {
		if r.Alias != "" {
			existing[r.Alias] = struct{}{}
		}
	}
	a, ok := alias.Generate(ref.Name, existing)
	if !ok {
		return nil
	}
	return &Suggestion{Text: prefix + a, Priority: PriorityAlias}
}
