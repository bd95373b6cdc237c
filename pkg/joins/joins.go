// Package joins proposes ON predicates for a pair of joined tables.
package joins

import (
	"strings"
)

// MaxFuzzySuggestions caps the predicates produced by field-name matching.
const MaxFuzzySuggestions = 3

// Table describes one side of a join.
type Table struct {
	Name          string
	QualifiedName string
	Alias         string
	Fields        []string
}

// Ident is the qualifier used in generated predicates.
func (t Table) Ident() string {
	if t.Alias != "" {
		return t.Alias
	}
	if t.QualifiedName != "" {
		return t.QualifiedName
	}
	return "[" + t.Name + "]"
}

// Args are the two tables of a join, in the order they appear in the query.
type Args struct {
	Left  Table
	Right Table
}

// Suggestion is a join predicate ready to insert after ON.
type Suggestion struct {
	Text string
}

// Override produces hand-written predicates for a table or table pair.
type Override func(args Args) []Suggestion

// PairKey is the override key for a left/right table pair.
func PairKey(left, right string) string {
	return strings.ToLower(left) + "|" + strings.ToLower(right)
}

// Resolver looks up overrides before falling back to field-name matching.
type Resolver struct {
	overrides map[string]Override
}

// NewResolver creates a resolver. Keys of overrides are either PairKey values
// or a single lowercased table name.
func NewResolver(overrides map[string]Override) *Resolver {
	normalized := make(map[string]Override, len(overrides))
	for k, fn := range overrides {
		normalized[strings.ToLower(k)] = fn
	}
	return &Resolver{overrides: normalized}
}

// Suggest returns predicates for args. The first override found wins, in the
// order pair key, right table, left table. Without an override, fields whose
// names match after lowercasing and dropping underscores are paired. The
// result is empty, never nil, when nothing matches.
func (r *Resolver) Suggest(args Args) []Suggestion {
	left := strings.ToLower(args.Left.Name)
	right := strings.ToLower(args.Right.Name)
	for _, key := range []string{PairKey(left, right), right, left} {
		if fn, ok := r.overrides[key]; ok && fn != nil {
			if out := fn(args); out != nil {
				return out
			}
			return []Suggestion{}
		}
	}
	return Match(args)
}

// Match pairs fields by normalized name, in left field order, capped at
// MaxFuzzySuggestions.
func Match(args Args) []Suggestion {
	rightByKey := make(map[string]string, len(args.Right.Fields))
	for _, f := range args.Right.Fields {
		k := normalize(f)
		if _, seen := rightByKey[k]; !seen {
			rightByKey[k] = f
		}
	}

	out := []Suggestion{}
	for _, lf := range args.Left.Fields {
		rf, ok := rightByKey[normalize(lf)]
		if !ok {
			continue
		}
		out = append(out, Suggestion{
			Text: args.Left.Ident() + "." + quoteField(lf) + " = " + args.Right.Ident() + "." + quoteField(rf),
		})
		if len(out) == MaxFuzzySuggestions {
			break
		}
	}
	return out
}

func normalize(field string) string {
	return strings.ReplaceAll(strings.ToLower(field), "_", "")
}

func quoteField(name string) string {
	if strings.ContainsAny(name, " -") {
		return "[" + name + "]"
	}
	return name
}
