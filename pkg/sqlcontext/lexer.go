package sqlcontext

import "github.com/queryplus/queryplus/pkg/sqlscan"

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenBracket
	tokenString
	tokenNumber
	tokenPunct
	tokenOperator
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// lex splits sql into tokens, dropping whitespace and comments. Unterminated
// strings and brackets run to the end of the text.
func lex(sql string) []token {
	var tokens []token
	n := len(sql)
	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			j := i + 2
			for j < n && !(sql[j] == '*' && j+1 < n && sql[j+1] == '/') {
				j++
			}
			i = min(j+2, n)
		case c == '\'' || c == '"':
			j := i + 1
			for j < n {
				if sql[j] == c {
					if j+1 < n && sql[j+1] == c {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			tokens = append(tokens, token{kind: tokenString, text: sql[i:j], start: i, end: j})
			i = j
		case c == '[':
			j := i + 1
			for j < n && sql[j] != ']' {
				j++
			}
			j = min(j+1, n)
			tokens = append(tokens, token{kind: tokenBracket, text: sql[i:j], start: i, end: j})
			i = j
		case sqlscan.IsIdentChar(c):
			j := i
			for j < n && sqlscan.IsIdentChar(sql[j]) {
				j++
			}
			kind := tokenWord
			if c >= '0' && c <= '9' {
				kind = tokenNumber
			}
			tokens = append(tokens, token{kind: kind, text: sql[i:j], start: i, end: j})
			i = j
		case c == '(' || c == ')' || c == ',' || c == '.' || c == ';' || c == '*':
			tokens = append(tokens, token{kind: tokenPunct, text: sql[i : i+1], start: i, end: i + 1})
			i++
		default:
			tokens = append(tokens, token{kind: tokenOperator, text: sql[i : i+1], start: i, end: i + 1})
			i++
		}
	}
	return tokens
}

// unbracket strips the enclosing [ ] of a bracketed identifier, tolerating a
// missing close bracket.
func unbracket(s string) string {
	if len(s) > 0 && s[0] == '[' {
		s = s[1:]
		if len(s) > 0 && s[len(s)-1] == ']' {
			s = s[:len(s)-1]
		}
	}
	return s
}
