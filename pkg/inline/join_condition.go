package inline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/queryplus/queryplus/pkg/joins"
	"github.com/queryplus/queryplus/pkg/metadata"
	"github.com/queryplus/queryplus/pkg/sqlcontext"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

// JoinConditionRule proposes the first join predicate right after
// "JOIN t x ON ". Fields of data extensions come from fetcher; derived tables
// use their select list. A failed or superseded fetch yields no suggestion.
func JoinConditionRule(fetcher *metadata.Fetcher, resolver *joins.Resolver, logger *slog.Logger) Rule {
	return Rule{
		Name:     "join-condition",
		Priority: PriorityJoinCondition,
		Matches: func(in *Input) bool {
			_, _, ok := joinPair(in)
			return ok
		},
		Suggest: func(ctx context.Context, in *Input) *Suggestion {
			left, right, ok := joinPair(in)
			if !ok {
				return nil
			}

			var names []string
			for _, ref := range []sqlcontext.TableReference{left, right} {
				if !ref.IsSubquery {
					names = append(names, ref.Name)
				}
			}
			var fetched map[string][]metadata.Field
			if len(names) > 0 {
				if fetcher == nil {
					return nil
				}
				var err error
				fetched, err = fetcher.Fetch(ctx, names...)
				if err != nil {
					logger.Debug("join condition fetch abandoned", "error", err)
					return nil
				}
			}

			suggestions := resolver.Suggest(joins.Args{
				Left:  joinTable(left, fetched),
				Right: joinTable(right, fetched),
			})
			if len(suggestions) == 0 {
				return nil
			}
			return &Suggestion{Text: suggestions[0].Text, Priority: PriorityJoinCondition}
		},
	}
}

// joinPair finds the JOIN reference whose ON the cursor follows, and the
// reference written before it in the same scope.
func joinPair(in *Input) (left, right sqlcontext.TableReference, ok bool) {
	if !atWordEnd(in) {
		return left, right, false
	}
	word, start := sqlscan.WordBefore(in.SQL, in.Cursor)
	if !strings.EqualFold(word, "ON") || start+len(word) == in.Cursor {
		return left, right, false
	}
	if next, _ := sqlscan.WordAfter(in.SQL, in.Cursor); next != "" && !sqlcontext.IsKeyword(next) {
		return left, right, false
	}

	found := false
	for _, ref := range in.Scope.TablesInScope {
		if ref.IsJoin && ref.EndIndex <= start && isBlank(in.SQL[ref.EndIndex:start]) {
			right, found = ref, true
			break
		}
	}
	if !found {
		return left, right, false
	}

	found = false
	for _, ref := range in.Scope.TablesInScope {
		if ref.ScopeID != right.ScopeID || ref.StartIndex >= right.StartIndex {
			continue
		}
		if !found || ref.StartIndex > left.StartIndex {
			left, found = ref, true
		}
	}
	return left, right, found
}

func joinTable(ref sqlcontext.TableReference, fetched map[string][]metadata.Field) joins.Table {
	t := joins.Table{Name: ref.Name, QualifiedName: ref.QualifiedName, Alias: ref.Alias}
	if ref.IsSubquery {
		for _, f := range ref.OutputFields {
			t.Fields = append(t.Fields, f.Name)
		}
		return t
	}
	for _, f := range fetched[strings.ToLower(ref.Name)] {
		t.Fields = append(t.Fields, f.Name)
	}
	return t
}
