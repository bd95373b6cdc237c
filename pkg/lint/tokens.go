package lint

import (
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/queryplus/queryplus/pkg/sqlscan"
)

// TokenKind classifies a significant token.
type TokenKind int

const (
	TokenKeyword TokenKind = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenOperator
	TokenPunct
)

// Token is a significant (non-whitespace, non-comment) token with its byte span.
type Token struct {
	Kind  TokenKind
	Value string
	Start int
	End   int
}

// Is reports whether t is the keyword kw, case-insensitively.
func (t Token) Is(kw string) bool {
	return (t.Kind == TokenKeyword || t.Kind == TokenIdent) && strings.EqualFold(t.Value, kw)
}

// coreKeywords are always keywords regardless of the lexer's classification.
var coreKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "JOIN": true, "WHERE": true, "ON": true, "AS": true,
	"WITH": true, "NULL": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"OUTER": true, "CROSS": true, "GROUP": true, "ORDER": true, "BY": true, "HAVING": true,
	"UNION": true, "AND": true, "OR": true, "NOT": true, "IS": true, "IN": true, "TOP": true,
}

func sqlLexer() chroma.Lexer {
	if l := lexers.Get("tsql"); l != nil {
		return l
	}
	return lexers.Get("sql")
}

// advance moves pos past one source rune for every rune of value. The lexer
// hands back invalid UTF-8 bytes as U+FFFD, so len(value) can overshoot.
func advance(sql string, pos int, value string) int {
	for range value {
		if pos >= len(sql) {
			pos++
			continue
		}
		_, size := utf8.DecodeRuneInString(sql[pos:])
		pos += size
	}
	return pos
}

// Tokenize lexes sql with the T-SQL lexer and returns its significant tokens.
// Adjacent operator characters are joined, so "<>" and "!=" are single tokens.
func Tokenize(sql string) []Token {
	lexer := sqlLexer()
	if lexer == nil {
		return plainTokens(sql, 0, sql)
	}
	it, err := lexer.Tokenise(&chroma.TokeniseOptions{State: "root"}, sql)
	if err != nil {
		return plainTokens(sql, 0, sql)
	}

	var out []Token
	pos := 0
	for _, tok := range it.Tokens() {
		start := min(pos, len(sql))
		pos = advance(sql, pos, tok.Value)
		end := min(pos, len(sql))
		if start >= end {
			continue
		}
		switch {
		case tok.Type.InCategory(chroma.Comment):
		case tok.Type.InCategory(chroma.LiteralString):
			out = appendString(out, Token{Kind: TokenString, Value: sql[start:end], Start: start, End: end})
		case tok.Type.InCategory(chroma.LiteralNumber):
			out = append(out, Token{Kind: TokenNumber, Value: sql[start:end], Start: start, End: end})
		case tok.Type.InCategory(chroma.Keyword) && isWord(sql[start:end]):
			out = append(out, Token{Kind: TokenKeyword, Value: sql[start:end], Start: start, End: end})
		default:
			out = append(out, plainTokens(sql, start, sql[start:end])...)
		}
	}
	return joinBrackets(sql, joinOperators(out))
}

// plainTokens splits chunk, found at offset base of sql, into words and single
// characters.
func plainTokens(sql string, base int, chunk string) []Token {
	var out []Token
	for i := 0; i < len(chunk); {
		c := chunk[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case sqlscan.IsIdentChar(c):
			j := i
			for j < len(chunk) && sqlscan.IsIdentChar(chunk[j]) {
				j++
			}
			word := chunk[i:j]
			kind := TokenIdent
			switch {
			case c >= '0' && c <= '9':
				kind = TokenNumber
			case coreKeywords[strings.ToUpper(word)]:
				kind = TokenKeyword
			}
			out = append(out, Token{Kind: kind, Value: word, Start: base + i, End: base + j})
			i = j
		case c == '\'' || c == '"':
			out = append(out, Token{Kind: TokenString, Value: chunk[i : i+1], Start: base + i, End: base + i + 1})
			i++
		case strings.IndexByte("(),.;[]*", c) >= 0:
			out = append(out, Token{Kind: TokenPunct, Value: chunk[i : i+1], Start: base + i, End: base + i + 1})
			i++
		default:
			out = append(out, Token{Kind: TokenOperator, Value: chunk[i : i+1], Start: base + i, End: base + i + 1})
			i++
		}
	}
	return out
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !sqlscan.IsIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// appendString merges a string fragment into a directly preceding one.
func appendString(out []Token, t Token) []Token {
	if n := len(out); n > 0 && out[n-1].Kind == TokenString && out[n-1].End == t.Start {
		out[n-1].End = t.End
		out[n-1].Value += t.Value
		return out
	}
	return append(out, t)
}

func joinOperators(in []Token) []Token {
	out := in[:0:0]
	for _, t := range in {
		if n := len(out); n > 0 && t.Kind == TokenOperator && out[n-1].Kind == TokenOperator && out[n-1].End == t.Start {
			out[n-1].End = t.End
			out[n-1].Value += t.Value
			continue
		}
		out = append(out, t)
	}
	return out
}

// joinBrackets folds "[", name parts and "]" into one identifier token.
func joinBrackets(sql string, in []Token) []Token {
	var out []Token
	for i := 0; i < len(in); i++ {
		t := in[i]
		if t.Kind != TokenPunct || t.Value != "[" {
			out = append(out, t)
			continue
		}
		end := strings.IndexByte(sql[t.Start:], ']')
		if end < 0 {
			end = len(sql)
		} else {
			end += t.Start + 1
		}
		for i+1 < len(in) && in[i+1].Start < end {
			i++
		}
		out = append(out, Token{Kind: TokenIdent, Value: sql[t.Start:end], Start: t.Start, End: end})
	}
	return out
}
