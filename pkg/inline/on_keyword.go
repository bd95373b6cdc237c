package inline

import (
	"context"
	"strings"

	"github.com/queryplus/queryplus/pkg/sqlscan"
)

// OnKeywordRule proposes " ON " after an aliased JOIN table with no ON yet.
func OnKeywordRule() Rule {
	return Rule{
		Name:     "on-keyword",
		Priority: PriorityOnKeyword,
		Matches:  matchOnKeyword,
		Suggest: func(_ context.Context, _ *Input) *Suggestion {
			return &Suggestion{Text: " ON ", Priority: PriorityOnKeyword}
		},
	}
}

func matchOnKeyword(in *Input) bool {
	if !atWordEnd(in) {
		return false
	}
	ref, gap, ok := refBefore(in)
	if !ok || !ref.IsJoin || ref.Alias == "" || gap == "" {
		return false
	}
	next, _ := sqlscan.WordAfter(in.SQL, in.Cursor)
	return !strings.EqualFold(next, "ON")
}
