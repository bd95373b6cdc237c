// Package alias proposes short table aliases for newly inserted FROM and JOIN
// references.
package alias

import (
	"strings"
	"unicode"
)

// Generate returns a collision-free alias for tableName. It takes the
// initials of up to three words of the name, then falls back to its first four
// characters. The result is lowercase. ok is false when both candidates are
// already in existing, so the caller must not insert anything.
func Generate(tableName string, existing map[string]struct{}) (string, bool) {
	name := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(tableName), "["), "]")

	taken := make(map[string]bool, len(existing))
	for a := range existing {
		taken[strings.ToLower(a)] = true
	}
	usable := func(a string) bool {
		return a != "" && !taken[a]
	}

	words := Words(name)
	if len(words) > 3 {
		words = words[:3]
	}
	var initials strings.Builder
	for _, w := range words {
		initials.WriteRune(unicode.ToLower([]rune(w)[0]))
	}
	if a := initials.String(); usable(a) {
		return a, true
	}

	cleaned := strings.ToLower(clean(name))
	if len(cleaned) > 4 {
		cleaned = cleaned[:4]
	}
	if usable(cleaned) {
		return cleaned, true
	}
	return "", false
}

// Words splits a table name on camel-case boundaries and on '_', '-' and
// whitespace separators.
func Words(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	var prev rune
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return words
}

// clean keeps the identifier characters of name.
func clean(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, name)
}
