// Package sqlcontext resolves what surrounds a cursor in partially typed SQL:
// which tables and aliases are in scope, the word being typed, and whether the
// cursor follows an alias and a dot.
//
// Everything is recomputed from the text on every call. Nothing is cached.
package sqlcontext

import (
	"strings"

	"github.com/queryplus/queryplus/pkg/sqlscan"
)

// FieldRef names a column exposed by a table reference.
type FieldRef struct {
	Name string
}

// TableReference is one FROM or JOIN table occurrence.
// StartIndex and EndIndex form the half-open byte span [start, end) of the
// reference, including its alias when one is written.
type TableReference struct {
	Name          string
	QualifiedName string
	Alias         string
	StartIndex    int
	EndIndex      int
	IsBracketed   bool
	IsSubquery    bool
	ScopeDepth    int
	OutputFields  []FieldRef

	// IsJoin is true for references introduced by JOIN.
	IsJoin bool
	// ExpectsAlias is true when the reference ends with AS and no alias yet.
	ExpectsAlias bool
	// ScopeID identifies the statement or subquery the reference belongs to.
	ScopeID int
}

// Ident returns the identifier used to qualify columns of the reference: its
// alias when present, otherwise its qualified name.
func (r TableReference) Ident() string {
	if r.Alias != "" {
		return r.Alias
	}
	if r.QualifiedName != "" {
		return r.QualifiedName
	}
	return "[" + r.Name + "]"
}

// CursorContext is the derived view of the text around a cursor offset.
type CursorContext struct {
	TablesInScope          []TableReference
	AliasBeforeDot         string
	HasTableReference      bool
	CursorInTableReference bool
	CurrentWord            string
}

// FindAlias returns the in-scope reference whose alias, or name when it has no
// alias, matches ident case-insensitively.
func (c CursorContext) FindAlias(ident string) (TableReference, bool) {
	for _, ref := range c.TablesInScope {
		if ref.Alias != "" && strings.EqualFold(ref.Alias, ident) {
			return ref, true
		}
	}
	for _, ref := range c.TablesInScope {
		if ref.Alias == "" && strings.EqualFold(ref.Name, ident) {
			return ref, true
		}
	}
	return TableReference{}, false
}

// Resolve builds the CursorContext for cursor within sql. The cursor is clamped
// to the text.
func Resolve(sql string, cursor int) CursorContext {
	cursor = max(0, min(cursor, len(sql)))
	doc := parse(sql)
	cur := doc.scopeAt(cursor)
	chain := doc.ancestors(cur)
	root := doc.scopes[cur].root

	ctx := CursorContext{
		CurrentWord:    currentWord(sql, cursor),
		AliasBeforeDot: aliasBeforeDot(sql, cursor),
	}
	for _, ref := range doc.refs {
		if doc.scopes[ref.ScopeID].root != root {
			continue
		}
		ctx.HasTableReference = true
		if ref.StartIndex < cursor && cursor < ref.EndIndex {
			ctx.CursorInTableReference = true
		}
		if chain[ref.ScopeID] {
			ctx.TablesInScope = append(ctx.TablesInScope, ref)
		}
	}
	return ctx
}

// References returns every table reference in sql. A derived table follows the
// references inside it.
func References(sql string) []TableReference {
	return parse(sql).refs
}

func currentWord(sql string, cursor int) string {
	start := cursor
	for start > 0 && sqlscan.IsIdentChar(sql[start-1]) {
		start--
	}
	return sql[start:cursor]
}

// aliasBeforeDot looks past the word being typed and any whitespace for a '.'
// preceded by a bare identifier.
func aliasBeforeDot(sql string, cursor int) string {
	pos := cursor - len(currentWord(sql, cursor))
	for pos > 0 && (sql[pos-1] == ' ' || sql[pos-1] == '\t') {
		pos--
	}
	if pos == 0 || sql[pos-1] != '.' {
		return ""
	}
	dot := pos - 1
	start := dot
	for start > 0 && sqlscan.IsIdentChar(sql[start-1]) {
		start--
	}
	ident := sql[start:dot]
	if ident == "" || (ident[0] >= '0' && ident[0] <= '9') {
		return ""
	}
	return ident
}
