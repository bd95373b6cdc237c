package autocomplete

import (
	"context"
	"strings"

	"github.com/queryplus/queryplus/pkg/metadata"
	"github.com/queryplus/queryplus/pkg/sqlcontext"
	"github.com/queryplus/queryplus/pkg/sqlscan"
)

// Position classifies what the cursor is completing.
type Position int

const (
	PositionNone Position = iota
	PositionTable
	PositionField
	PositionKeyword
)

func (p Position) String() string {
	switch p {
	case PositionTable:
		return "table"
	case PositionField:
		return "field"
	case PositionKeyword:
		return "keyword"
	default:
		return "none"
	}
}

// Keywords offered when neither a table nor a field fits.
var Keywords = []string{
	"SELECT", "TOP", "DISTINCT", "FROM", "WHERE", "JOIN", "INNER JOIN", "LEFT JOIN",
	"RIGHT JOIN", "FULL OUTER JOIN", "CROSS JOIN", "ON", "AS", "AND", "OR", "NOT",
	"IN", "EXISTS", "BETWEEN", "LIKE", "IS NULL", "IS NOT NULL", "GROUP BY",
	"ORDER BY", "HAVING", "UNION", "UNION ALL", "CASE", "WHEN", "THEN", "ELSE", "END",
}

// Source supplies the metadata completions draw from.
type Source struct {
	DataExtensions  []metadata.DataExtension
	SharedFolderIDs map[string]struct{}
	// Fields loads the fields of a data extension. Nil offers no fields.
	Fields func(ctx context.Context, name string) ([]metadata.Field, error)
}

// Result is the completion at a cursor. Suggestions replace the byte range
// [Start, End) of the text.
type Result struct {
	Position    Position
	Start       int
	End         int
	Suggestions []Suggestion
}

// Complete builds suggestions for cursor within sql: data extensions after
// FROM or JOIN, fields after "alias.", keywords otherwise. A failed field load
// yields no suggestions and the error.
func Complete(ctx context.Context, sql string, cursor int, src Source) (Result, error) {
	cursor = max(0, min(cursor, len(sql)))
	if sqlscan.IsInsideString(sql, cursor) || sqlscan.IsInsideComment(sql, cursor) {
		return Result{Start: cursor, End: cursor}, nil
	}

	if start, term, ok := tableTerm(sql, cursor); ok {
		return Result{
			Position:    PositionTable,
			Start:       start,
			End:         cursor,
			Suggestions: BuildDataExtensionSuggestions(src.DataExtensions, src.SharedFolderIDs, term),
		}, nil
	}

	cc := sqlcontext.Resolve(sql, cursor)
	res := Result{Start: cursor - len(cc.CurrentWord), End: cursor}
	if cc.AliasBeforeDot != "" {
		res.Position = PositionField
		ref, ok := cc.FindAlias(cc.AliasBeforeDot)
		if !ok {
			return res, nil
		}
		fields, err := refFields(ctx, ref, src)
		if err != nil {
			return res, err
		}
		suggestions := BuildFieldSuggestions(fields, FieldOptions{OwnerLabel: ownerLabel(ref)})
		res.Suggestions = Rank(cc.CurrentWord, suggestions)
		return res, nil
	}

	res.Position = PositionKeyword
	res.Suggestions = keywordSuggestions(cc.CurrentWord)
	return res, nil
}

// ownerLabel names the table behind an alias; subqueries keep their alias.
func ownerLabel(ref sqlcontext.TableReference) string {
	switch {
	case ref.IsSubquery:
		return ref.Alias
	case ref.QualifiedName != "":
		return ref.QualifiedName
	default:
		return "[" + ref.Name + "]"
	}
}

func refFields(ctx context.Context, ref sqlcontext.TableReference, src Source) ([]metadata.Field, error) {
	if ref.IsSubquery {
		fields := make([]metadata.Field, 0, len(ref.OutputFields))
		for _, f := range ref.OutputFields {
			fields = append(fields, metadata.Field{Name: f.Name})
		}
		return fields, nil
	}
	if src.Fields == nil {
		return nil, nil
	}
	return src.Fields(ctx, ref.Name)
}

// tableTerm finds the table name being typed after FROM or JOIN. start is
// where the typed text, possibly with ENT. and brackets, begins.
func tableTerm(sql string, cursor int) (int, string, bool) {
	start := cursor
	for start > 0 {
		c := sql[start-1]
		if !sqlscan.IsIdentChar(c) && c != '[' && c != ']' && c != '.' {
			break
		}
		start--
	}
	if start == cursor && (start == 0 || !isSpace(sql[start-1])) {
		return 0, "", false
	}
	if strings.Contains(sql[start:cursor], "]") {
		return 0, "", false
	}
	word, _ := sqlscan.WordBefore(sql, start)
	switch strings.ToUpper(word) {
	case "FROM", "JOIN":
		return start, sql[start:cursor], true
	}
	return 0, "", false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func keywordSuggestions(word string) []Suggestion {
	var out []Suggestion
	upper := strings.ToUpper(word)
	for _, kw := range Keywords {
		if upper != "" && !strings.HasPrefix(kw, upper) {
			continue
		}
		out = append(out, Suggestion{Label: kw, InsertText: kw, Kind: KindKeyword})
	}
	return out
}
