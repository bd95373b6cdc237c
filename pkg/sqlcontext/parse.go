package sqlcontext

import "strings"

// keywords never count as table names or aliases.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "FULL": true, "OUTER": true, "CROSS": true, "ON": true, "AND": true,
	"OR": true, "GROUP": true, "ORDER": true, "BY": true, "HAVING": true, "UNION": true,
	"EXCEPT": true, "INTERSECT": true, "AS": true, "WITH": true, "LIMIT": true, "TOP": true,
	"APPLY": true, "PIVOT": true, "UNPIVOT": true, "NOT": true, "IN": true, "IS": true,
	"NULL": true, "LIKE": true, "BETWEEN": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true, "ALL": true, "DISTINCT": true, "INTO": true, "VALUES": true,
	"SET": true, "OPTION": true, "FOR": true, "EXISTS": true,
}

// IsKeyword reports whether word is a reserved word for table and alias
// recognition.
func IsKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}

// scope is a statement or a parenthesized subquery. A cursor is inside a
// subquery scope when open < cursor <= close, and inside a statement when
// open <= cursor <= close.
type scope struct {
	parent int
	root   int
	depth  int
	open   int
	close  int
}

type document struct {
	sql    string
	tokens []token
	scopes []scope
	refs   []TableReference

	// derived maps the token index of a '(' that opens a derived table to
	// whether it was introduced by JOIN.
	derived map[int]bool
}

type parenFrame struct {
	scope   int // -1 when the paren does not open a scope
	derived bool
	join    bool
	openTok int
}

func parse(sql string) *document {
	d := &document{sql: sql, tokens: lex(sql), derived: map[int]bool{}}
	cur := d.newScope(-1, 0)

	var stack []parenFrame
	for i := 0; i < len(d.tokens); {
		t := d.tokens[i]
		switch {
		case t.is(tokenPunct, ";"):
			for _, f := range stack {
				if f.scope >= 0 {
					d.scopes[f.scope].close = t.start
				}
			}
			stack = stack[:0]
			d.scopes[d.scopes[cur].root].close = t.start
			cur = d.newScope(-1, t.end)
			i++

		case t.is(tokenPunct, "("):
			join, derived := d.derived[i]
			f := parenFrame{scope: -1, derived: derived, join: join, openTok: i}
			if derived || d.wordAt(i+1, "SELECT") || d.wordAt(i+1, "WITH") {
				f.scope = d.newScope(cur, t.start)
				cur = f.scope
			}
			stack = append(stack, f)
			i++

		case t.is(tokenPunct, ")"):
			i++
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.scope < 0 {
				continue
			}
			d.scopes[f.scope].close = t.start
			cur = d.scopes[f.scope].parent
			if f.derived {
				ref := TableReference{
					IsSubquery:   true,
					StartIndex:   d.tokens[f.openTok].start,
					EndIndex:     t.end,
					IsJoin:       f.join,
					ScopeDepth:   d.scopes[cur].depth,
					OutputFields: d.outputFields(f.openTok, i-1),
					ScopeID:      cur,
				}
				i = d.parseAlias(&ref, i)
				d.refs = append(d.refs, ref)
				if !f.join && i < len(d.tokens) && d.tokens[i].is(tokenPunct, ",") {
					i = d.parseFromList(i+1, cur)
				}
			}

		case t.kind == tokenWord && strings.EqualFold(t.text, "FROM"):
			i = d.parseFromList(i+1, cur)

		case t.kind == tokenWord && strings.EqualFold(t.text, "JOIN"):
			i = d.parseTableRef(i+1, cur, true)

		default:
			i++
		}
	}
	return d
}

func (d *document) newScope(parent, open int) int {
	id := len(d.scopes)
	s := scope{parent: parent, root: id, open: open, close: len(d.sql)}
	if parent >= 0 {
		s.root = d.scopes[parent].root
		s.depth = d.scopes[parent].depth + 1
	}
	d.scopes = append(d.scopes, s)
	return id
}

func (d *document) wordAt(i int, word string) bool {
	return i < len(d.tokens) && d.tokens[i].kind == tokenWord && strings.EqualFold(d.tokens[i].text, word)
}

// parseFromList parses comma separated table references starting at token i.
func (d *document) parseFromList(i, scope int) int {
	for {
		next := d.parseTableRef(i, scope, false)
		if next == i || next >= len(d.tokens) || !d.tokens[next].is(tokenPunct, ",") {
			return next
		}
		i = next + 1
	}
}

// parseTableRef parses one table name with an optional alias at token i and
// returns the index of the first unconsumed token. A '(' is left for the main
// loop and marked as a derived table.
func (d *document) parseTableRef(i, scope int, join bool) int {
	if i >= len(d.tokens) {
		return i
	}
	t := d.tokens[i]
	if t.is(tokenPunct, "(") {
		d.derived[i] = join
		return i
	}
	if !isNameToken(t) {
		return i
	}

	last := t
	j := i + 1
	for j+1 < len(d.tokens) && d.tokens[j].is(tokenPunct, ".") && isNameToken(d.tokens[j+1]) {
		last = d.tokens[j+1]
		j += 2
	}

	ref := TableReference{
		Name:          unbracket(last.text),
		QualifiedName: d.sql[t.start:last.end],
		StartIndex:    t.start,
		EndIndex:      last.end,
		IsBracketed:   last.kind == tokenBracket,
		IsJoin:        join,
		ScopeDepth:    d.scopes[scope].depth,
		ScopeID:       scope,
	}
	j = d.parseAlias(&ref, j)
	d.refs = append(d.refs, ref)
	return j
}

// parseAlias consumes "AS alias", "AS" or a bare non-keyword alias at token j.
func (d *document) parseAlias(ref *TableReference, j int) int {
	if j >= len(d.tokens) {
		return j
	}
	t := d.tokens[j]
	if t.kind == tokenWord && strings.EqualFold(t.text, "AS") {
		if j+1 < len(d.tokens) && isNameToken(d.tokens[j+1]) {
			a := d.tokens[j+1]
			ref.Alias = unbracket(a.text)
			ref.EndIndex = a.end
			return j + 2
		}
		ref.ExpectsAlias = true
		ref.EndIndex = t.end
		return j + 1
	}
	if t.kind == tokenWord && !IsKeyword(t.text) {
		ref.Alias = t.text
		ref.EndIndex = t.end
		return j + 1
	}
	return j
}

func isNameToken(t token) bool {
	return t.kind == tokenBracket || (t.kind == tokenWord && !IsKeyword(t.text))
}

// outputFields lists the select-list names of the subquery between the paren
// tokens open and close.
func (d *document) outputFields(open, close int) []FieldRef {
	var fields []FieldRef
	var last *token
	flush := func() {
		if last != nil {
			fields = append(fields, FieldRef{Name: unbracket(last.text)})
		}
		last = nil
	}

	depth := 0
	inSelect := false
	for k := open + 1; k < close; k++ {
		t := d.tokens[k]
		switch {
		case t.is(tokenPunct, "("):
			depth++
		case t.is(tokenPunct, ")"):
			depth--
		case depth > 0:
		case t.kind == tokenWord && strings.EqualFold(t.text, "SELECT"):
			inSelect = true
		case !inSelect:
		case t.kind == tokenWord && strings.EqualFold(t.text, "FROM"):
			flush()
			return fields
		case t.is(tokenPunct, ","):
			flush()
		case isNameToken(t):
			tok := t
			last = &tok
		}
	}
	flush()
	return fields
}

// scopeAt returns the innermost scope containing cursor.
func (d *document) scopeAt(cursor int) int {
	root := 0
	for id, s := range d.scopes {
		if s.parent < 0 && s.open <= cursor {
			root = id
		}
	}
	best := root
	for id, s := range d.scopes {
		if s.parent < 0 || s.root != root {
			continue
		}
		if s.open < cursor && cursor <= s.close && s.depth > d.scopes[best].depth {
			best = id
		}
	}
	return best
}

func (d *document) ancestors(id int) map[int]bool {
	chain := map[int]bool{}
	for id >= 0 {
		chain[id] = true
		id = d.scopes[id].parent
	}
	return chain
}
