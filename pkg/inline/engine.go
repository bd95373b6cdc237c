// Package inline produces the single ghost-text suggestion shown ahead of the
// cursor while a query is typed.
//
// An Engine first checks the suppression conditions (string, comment,
// bracket, comparison operator, function call) and then asks its rules in
// priority order. The first rule that matches and returns a suggestion wins.
package inline

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/queryplus/queryplus/pkg/joins"
	"github.com/queryplus/queryplus/pkg/metadata"
	"github.com/queryplus/queryplus/pkg/sqlcontext"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

// Rule priorities.
const (
	PriorityJoinKeyword   = 100
	PriorityAlias         = 80
	PriorityOnKeyword     = 70
	PriorityJoinCondition = 60
)

// Suggestion is text to insert at the cursor.
type Suggestion struct {
	Text     string `json:"text"`
	Priority int    `json:"priority"`
}

// Request is the editor text and cursor offset.
type Request struct {
	SQL    string
	Cursor int
}

// Input is what a rule sees: the request plus the resolved cursor context.
type Input struct {
	SQL    string
	Cursor int
	Scope  sqlcontext.CursorContext
}

// Rule is one entry of the ordered rule list. Matches must be cheap; Suggest
// may block and should honor ctx.
type Rule struct {
	Name     string
	Priority int
	Matches  func(in *Input) bool
	Suggest  func(ctx context.Context, in *Input) *Suggestion
}

// Options configure an Engine.
type Options struct {
	// Fetcher loads fields for the join condition rule. Nil disables that rule
	// for data extensions; derived tables still work.
	Fetcher *metadata.Fetcher
	// Joins resolves join predicates. Nil uses a resolver without overrides.
	Joins *joins.Resolver
	// Rules replaces the default rule set.
	Rules  []Rule
	Logger *slog.Logger
}

// Engine evaluates inline suggestion rules.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
}

// NewEngine creates an engine with the default rules unless opts.Rules is set.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	rules := opts.Rules
	if rules == nil {
		resolver := opts.Joins
		if resolver == nil {
			resolver = joins.NewResolver(nil)
		}
		rules = DefaultRules(opts.Fetcher, resolver, logger)
	}
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &Engine{rules: sorted, logger: logger}
}

// DefaultRules returns the built-in rules.
func DefaultRules(fetcher *metadata.Fetcher, resolver *joins.Resolver, logger *slog.Logger) []Rule {
	return []Rule{
		JoinKeywordRule(),
		AliasRule(),
		OnKeywordRule(),
		JoinConditionRule(fetcher, resolver, logger),
	}
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate returns the suggestion for req, or nil. Callers discard the result
// if the text or cursor changed while it ran.
func (e *Engine) Evaluate(ctx context.Context, req Request) *Suggestion {
	cursor := max(0, min(req.Cursor, len(req.SQL)))
	if Suppressed(req.SQL, cursor) {
		return nil
	}

	in := &Input{
		SQL:    req.SQL,
		Cursor: cursor,
		Scope:  sqlcontext.Resolve(req.SQL, cursor),
	}
	for _, rule := range e.rules {
		if ctx.Err() != nil {
			return nil
		}
		if !rule.Matches(in) {
			continue
		}
		if s := rule.Suggest(ctx, in); s != nil {
			return s
		}
	}
	return nil
}

// Suppressed reports whether no suggestion may be shown at offset. The checks
// run in order: string, comment, bracket (unless the cursor sits before the
// auto-closed bracket of a FROM/JOIN table), comparison operator, function
// call parentheses.
func Suppressed(sql string, offset int) bool {
	switch {
	case sqlscan.IsInsideString(sql, offset):
		return true
	case sqlscan.IsInsideComment(sql, offset):
		return true
	case sqlscan.IsInsideBrackets(sql, offset) && !sqlscan.IsAtEndOfBracketedTableInFromJoin(sql, offset):
		return true
	case sqlscan.IsAfterComparisonOperator(sql, offset):
		return true
	case sqlscan.IsInsideFunctionParens(sql, offset):
		return true
	}
	return false
}

// atWordEnd is false when the cursor is in the middle of a word.
func atWordEnd(in *Input) bool {
	return in.Cursor >= len(in.SQL) || !sqlscan.IsIdentChar(in.SQL[in.Cursor])
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

// refBefore returns the in-scope reference that ends right before the cursor,
// separated from it by whitespace only, and that whitespace.
func refBefore(in *Input) (sqlcontext.TableReference, string, bool) {
	best := -1
	for i, ref := range in.Scope.TablesInScope {
		if ref.EndIndex > in.Cursor || !isBlank(in.SQL[ref.EndIndex:in.Cursor]) {
			continue
		}
		if best < 0 || ref.EndIndex > in.Scope.TablesInScope[best].EndIndex {
			best = i
		}
	}
	if best < 0 {
		return sqlcontext.TableReference{}, "", false
	}
	ref := in.Scope.TablesInScope[best]
	return ref, in.SQL[ref.EndIndex:in.Cursor], true
}
