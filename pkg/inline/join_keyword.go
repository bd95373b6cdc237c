package inline

import (
	"context"
	"strings"

	"github.com/queryplus/queryplus/pkg/sqlscan"
)

var joinModifiers = map[string]bool{"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true}

// JoinKeywordRule completes INNER, LEFT, RIGHT and FULL with " JOIN" when the
// word follows a FROM table.
func JoinKeywordRule() Rule {
	return Rule{
		Name:     "join-keyword",
		Priority: PriorityJoinKeyword,
		Matches:  matchJoinKeyword,
		Suggest: func(_ context.Context, _ *Input) *Suggestion {
			return &Suggestion{Text: " JOIN", Priority: PriorityJoinKeyword}
		},
	}
}

func matchJoinKeyword(in *Input) bool {
	word := in.Scope.CurrentWord
	if !joinModifiers[strings.ToUpper(word)] || !atWordEnd(in) {
		return false
	}
	next, _ := sqlscan.WordAfter(in.SQL, in.Cursor)
	if strings.EqualFold(next, "JOIN") || strings.EqualFold(next, "OUTER") {
		return false
	}
	start := in.Cursor - len(word)
	for _, ref := range in.Scope.TablesInScope {
		if ref.EndIndex <= start {
			return true
		}
	}
	return false
}
