// Package autocomplete builds dropdown completion entries for data extensions
// and their fields.
package autocomplete

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/queryplus/queryplus/pkg/metadata"
)

// Kind tells the editor how to render a suggestion.
type Kind int

const (
	KindDataExtension Kind = iota
	KindField
	KindKeyword
)

// Suggestion is a single completion entry.
type Suggestion struct {
	Label      string
	InsertText string
	Detail     string
	Kind       Kind
	// IsPrimaryKey is set for field suggestions of key columns.
	IsPrimaryKey bool
}

// FuzzyMatch reports whether every character of term appears, in order and
// ignoring case, in candidate. An empty term matches everything.
func FuzzyMatch(term, candidate string) bool {
	if term == "" {
		return true
	}
	return len(fuzzy.Find(strings.ToLower(term), []string{strings.ToLower(candidate)})) > 0
}

// BuildDataExtensionSuggestions filters data extensions by searchTerm and
// returns them sorted by name. Extensions in a shared folder are qualified
// with the ENT. prefix. A leading "ent." in searchTerm is ignored.
func BuildDataExtensionSuggestions(des []metadata.DataExtension, sharedFolderIDs map[string]struct{}, searchTerm string) []Suggestion {
	term := strings.TrimSpace(searchTerm)
	if len(term) >= len(metadata.SharedPrefix) && strings.EqualFold(term[:len(metadata.SharedPrefix)], metadata.SharedPrefix) {
		term = term[len(metadata.SharedPrefix):]
	}
	term = strings.TrimPrefix(term, "[")

	matched := make([]metadata.DataExtension, 0, len(des))
	for _, de := range des {
		if FuzzyMatch(term, de.Name) || FuzzyMatch(term, de.CustomerKey) {
			matched = append(matched, de)
		}
	}
	sortFold(matched, func(de metadata.DataExtension) string { return de.Name })

	out := make([]Suggestion, 0, len(matched))
	for _, de := range matched {
		label := "[" + de.Name + "]"
		if _, ok := sharedFolderIDs[de.FolderID]; ok {
			label = metadata.SharedPrefix + label
		}
		detail := de.Description
		if detail == "" {
			detail = de.CustomerKey
		}
		out = append(out, Suggestion{
			Label:      label,
			InsertText: label,
			Detail:     detail,
			Kind:       KindDataExtension,
		})
	}
	return out
}

// FieldOptions qualify field suggestions.
type FieldOptions struct {
	// Prefix is inserted before each field name with a dot, usually an alias.
	Prefix string
	// OwnerLabel names the owning table in the suggestion detail.
	OwnerLabel string
}

// BuildFieldSuggestions formats fields as "Name - Type(Length)" sorted by label.
func BuildFieldSuggestions(fields []metadata.Field, opts FieldOptions) []Suggestion {
	out := make([]Suggestion, 0, len(fields))
	for _, f := range fields {
		label := f.Name + " - " + f.Type
		if f.Length != nil {
			label += "(" + strconv.Itoa(*f.Length) + ")"
		}
		insert := f.Name
		if strings.ContainsRune(insert, ' ') {
			insert = "[" + insert + "]"
		}
		if opts.Prefix != "" {
			insert = opts.Prefix + "." + insert
		}
		out = append(out, Suggestion{
			Label:        label,
			InsertText:   insert,
			Detail:       opts.OwnerLabel,
			Kind:         KindField,
			IsPrimaryKey: f.IsPrimaryKey,
		})
	}
	sortFold(out, func(s Suggestion) string { return s.Label })
	return out
}

// Rank orders suggestions by fuzzy score of term against their labels, best
// first, dropping non-matches. Ties keep their input order.
func Rank(term string, suggestions []Suggestion) []Suggestion {
	if term == "" {
		return suggestions
	}
	labels := make([]string, len(suggestions))
	for i, s := range suggestions {
		labels[i] = strings.ToLower(s.Label)
	}
	matches := fuzzy.Find(strings.ToLower(term), labels)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})

	out := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, suggestions[m.Index])
	}
	return out
}

func sortFold[T any](items []T, key func(T) string) {
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(key(items[i]), key(items[j])) < 0
	})
}
