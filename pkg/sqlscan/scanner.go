// Package sqlscan classifies cursor offsets in raw, possibly incomplete SQL text.
//
// Every function takes the full text and a zero-based byte offset and answers a
// single lexical question about that position. The scan always starts from a safe
// boundary and walks forward, tracking quote, comment and bracket state. Text that
// ends inside an unterminated string, comment or bracket is reported as still
// inside, so callers suppress suggestions instead of guessing.
package sqlscan

import (
	"strings"
)

// State is the lexical state reached after scanning a prefix of the text.
type State struct {
	Quote        byte // 0, '\'' or '"'
	LineComment  bool
	BlockComment bool
	InBracket    bool
	BracketStart int // offset of the open '[' when InBracket
	QuoteStart   int // offset of the open quote when Quote != 0
	ParenDepth   int
}

// InString reports whether the scan ended inside a quoted literal.
func (s State) InString() bool { return s.Quote != 0 }

// InComment reports whether the scan ended inside a line or block comment.
func (s State) InComment() bool { return s.LineComment || s.BlockComment }

// Code reports whether the scan ended in plain SQL (no string, comment or bracket).
func (s State) Code() bool { return !s.InString() && !s.InComment() && !s.InBracket }

// Scan walks text from start up to (but not including) end and returns the
// lexical state at end. Offsets are clamped to the text.
func Scan(text string, start, end int) State {
	start = clamp(start, len(text))
	end = clamp(end, len(text))

	var st State
	for i := start; i < end; {
		i = st.advance(text, i, end)
	}
	return st
}

// advance consumes the byte (or two-byte delimiter) at i and returns the index
// of the next unread byte. Lookahead never reaches end.
func (st *State) advance(text string, i, end int) int {
	c := text[i]
	next := byte(0)
	if i+1 < end {
		next = text[i+1]
	}

	switch {
	case st.LineComment:
		if c == '\n' {
			st.LineComment = false
		}
	case st.BlockComment:
		if c == '*' && next == '/' {
			st.BlockComment = false
			return i + 2
		}
	case st.Quote != 0:
		if c == st.Quote {
			// A doubled quote is an escaped quote, not a terminator.
			if next == st.Quote {
				return i + 2
			}
			st.Quote = 0
		}
	case st.InBracket:
		if c == ']' {
			st.InBracket = false
		}
	default:
		switch c {
		case '-':
			if next == '-' {
				st.LineComment = true
				return i + 2
			}
		case '/':
			if next == '*' {
				st.BlockComment = true
				return i + 2
			}
		case '\'', '"':
			st.Quote = c
			st.QuoteStart = i
		case '[':
			st.InBracket = true
			st.BracketStart = i
		case '(':
			st.ParenDepth++
		case ')':
			if st.ParenDepth > 0 {
				st.ParenDepth--
			}
		}
	}
	return i + 1
}

// IsInsideString reports whether offset falls inside a single or double quoted literal.
func IsInsideString(text string, offset int) bool {
	return Scan(text, 0, offset).InString()
}

// IsInsideComment reports whether offset falls inside a -- or /* */ comment.
func IsInsideComment(text string, offset int) bool {
	return Scan(text, 0, offset).InComment()
}

// IsInsideBrackets reports whether offset falls inside a [bracketed] identifier.
func IsInsideBrackets(text string, offset int) bool {
	return Scan(text, 0, offset).InBracket
}

// IsInsideFunctionParens reports whether the innermost open parenthesis at
// offset belongs to a function call such as COUNT( or DATEADD(. Parentheses that
// open a subquery, an IN list or a derived table do not count. The scan starts
// at the beginning of the statement containing offset.
func IsInsideFunctionParens(text string, offset int) bool {
	offset = clamp(offset, len(text))
	start := StatementStart(text, offset)

	var stack []bool
	EachCode(text[start:offset], func(i int) bool {
		switch text[start+i] {
		case '(':
			stack = append(stack, isCallParen(text, start+i))
		case ')':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
		return true
	})
	return len(stack) > 0 && stack[len(stack)-1]
}

// notCallWords are keywords that may directly precede a '(' without making it a
// function call.
var notCallWords = map[string]bool{
	"FROM": true, "JOIN": true, "IN": true, "EXISTS": true, "AS": true, "ON": true,
	"AND": true, "OR": true, "NOT": true, "WHERE": true, "SELECT": true, "WITH": true,
	"UNION": true, "ALL": true, "ANY": true, "SOME": true, "THEN": true, "ELSE": true,
	"WHEN": true, "HAVING": true, "VALUES": true, "APPLY": true,
}

func isCallParen(text string, open int) bool {
	word, _ := WordBefore(text, open)
	if word == "" {
		return false
	}
	return !notCallWords[strings.ToUpper(word)]
}

// comparisonOps is ordered longest first so that "<=" wins over "=".
var comparisonOps = []string{">=", "<=", "<>", "!=", "=", "<", ">"}

// IsAfterComparisonOperator reports whether the nearest non-whitespace text
// before offset is a comparison operator in plain SQL (not in a string or comment).
func IsAfterComparisonOperator(text string, offset int) bool {
	offset = clamp(offset, len(text))
	end := skipSpaceBack(text, offset)
	for _, op := range comparisonOps {
		if end >= len(op) && text[end-len(op):end] == op {
			return Scan(text, 0, end-len(op)).Code()
		}
	}
	return false
}

// clauseEnders may follow a table reference that is the last token of its FROM
// or JOIN clause.
var clauseEnders = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "UNION": true,
	"EXCEPT": true, "INTERSECT": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "CROSS": true, "JOIN": true, "OUTER": true,
}

// IsAtEndOfBracketedTableInFromJoin reports whether offset sits directly before
// the single closing ']' of a bracketed table name that ends a FROM or JOIN
// clause. This is the position an editor leaves the cursor in after it
// auto-closes the bracket.
func IsAtEndOfBracketedTableInFromJoin(text string, offset int) bool {
	if offset < 0 || offset >= len(text) || text[offset] != ']' {
		return false
	}
	if offset+1 < len(text) && text[offset+1] == ']' {
		return false
	}
	st := Scan(text, 0, offset)
	if !st.InBracket {
		return false
	}

	open := st.BracketStart
	// Allow a schema prefix such as ENT.[Name].
	prefixEnd := open
	if prefixEnd > 0 && text[prefixEnd-1] == '.' {
		_, ws := WordBefore(text, prefixEnd-1)
		prefixEnd = ws
	}
	kw, _ := WordBefore(text, prefixEnd)
	switch strings.ToUpper(kw) {
	case "FROM", "JOIN":
	default:
		return false
	}

	rest := strings.TrimLeft(text[offset+1:], " \t\r\n")
	if rest == "" || rest[0] == ';' || rest[0] == ')' {
		return true
	}
	next, _ := WordAfter(rest, 0)
	return clauseEnders[strings.ToUpper(next)]
}

// StatementStart returns the offset just after the last ';' before offset that
// is in plain SQL, or 0.
func StatementStart(text string, offset int) int {
	start := 0
	EachCode(text[:clamp(offset, len(text))], func(i int) bool {
		if text[i] == ';' {
			start = i + 1
		}
		return true
	})
	return start
}

// EachCode calls fn with the offset of every byte of text that is plain SQL,
// outside strings, comments and brackets. Delimiters of those regions are not
// reported. fn returns false to stop the walk.
func EachCode(text string, fn func(i int) bool) {
	var st State
	for i := 0; i < len(text); {
		if st.Code() && !opensRegion(text, i) {
			if !fn(i) {
				return
			}
		}
		i = st.advance(text, i, len(text))
	}
}

func opensRegion(text string, i int) bool {
	switch text[i] {
	case '\'', '"', '[':
		return true
	case '-':
		return i+1 < len(text) && text[i+1] == '-'
	case '/':
		return i+1 < len(text) && text[i+1] == '*'
	}
	return false
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

// Word is a bare identifier or keyword found in plain SQL.
type Word struct {
	Text string
	Span
}

// Words returns every bare word of text that lies in plain SQL.
func Words(text string) []Word {
	var words []Word
	start := -1
	flush := func(end int) {
		if start >= 0 {
			words = append(words, Word{Text: text[start:end], Span: Span{Start: start, End: end}})
			start = -1
		}
	}
	last := -1
	EachCode(text, func(i int) bool {
		if IsIdentChar(text[i]) {
			if start >= 0 && last != i-1 {
				flush(last + 1)
			}
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
		last = i
		return true
	})
	if start >= 0 {
		flush(last + 1)
	}
	return words
}

// Statements splits text on ';' in plain SQL. The final statement runs to the
// end of the text. Separators are excluded from the spans.
func Statements(text string) []Span {
	var spans []Span
	start := 0
	EachCode(text, func(i int) bool {
		if text[i] == ';' {
			spans = append(spans, Span{Start: start, End: i})
			start = i + 1
		}
		return true
	})
	return append(spans, Span{Start: start, End: len(text)})
}

// IsIdentChar reports whether c can appear in a bare SQL identifier.
func IsIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// WordBefore returns the bare identifier that ends at the first non-whitespace
// byte before pos, and its start offset. The word is empty when that byte is
// not an identifier character.
func WordBefore(text string, pos int) (string, int) {
	end := skipSpaceBack(text, clamp(pos, len(text)))
	start := end
	for start > 0 && IsIdentChar(text[start-1]) {
		start--
	}
	return text[start:end], start
}

// WordAfter returns the bare identifier that starts at the first non-whitespace
// byte at or after pos, and its end offset.
func WordAfter(text string, pos int) (string, int) {
	start := clamp(pos, len(text))
	for start < len(text) && isSpace(text[start]) {
		start++
	}
	end := start
	for end < len(text) && IsIdentChar(text[end]) {
		end++
	}
	return text[start:end], end
}

func skipSpaceBack(text string, pos int) int {
	for pos > 0 && isSpace(text[pos-1]) {
		pos--
	}
	return pos
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func clamp(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}
