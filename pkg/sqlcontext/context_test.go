package sqlcontext_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/pkg/sqlcontext"
)

func names(refs []sqlcontext.TableReference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

func TestReferences(t *testing.T) {
	sql := "SELECT * FROM [Orders] o INNER JOIN Customers AS c ON o.id = c.id LEFT JOIN ENT.[Order Lines] ol ON 1 = 1"
	refs := sqlcontext.References(sql)
	require.Len(t, refs, 3)

	assert.Equal(t, "Orders", refs[0].Name)
	assert.Equal(t, "[Orders]", refs[0].QualifiedName)
	assert.Equal(t, "o", refs[0].Alias)
	assert.True(t, refs[0].IsBracketed)
	assert.False(t, refs[0].IsJoin)
	assert.Equal(t, 14, refs[0].StartIndex)
	assert.Equal(t, 24, refs[0].EndIndex)

	assert.Equal(t, "Customers", refs[1].Name)
	assert.Equal(t, "c", refs[1].Alias)
	assert.False(t, refs[1].IsBracketed)
	assert.True(t, refs[1].IsJoin)

	assert.Equal(t, "Order Lines", refs[2].Name)
	assert.Equal(t, "ENT.[Order Lines]", refs[2].QualifiedName)
	assert.Equal(t, "ol", refs[2].Alias)

	for _, r := range refs {
		assert.LessOrEqual(t, r.StartIndex, r.EndIndex)
		assert.LessOrEqual(t, r.EndIndex, len(sql))
	}
}

func TestReferences_CommaListAndKeywords(t *testing.T) {
	refs := sqlcontext.References("SELECT * FROM A a, B WHERE a.x = 1")
	require.Len(t, refs, 2)
	assert.Equal(t, "a", refs[0].Alias)
	assert.Equal(t, "B", refs[1].Name)
	assert.Empty(t, refs[1].Alias, "WHERE is a keyword, not an alias")
}

func TestReferences_DanglingAs(t *testing.T) {
	sql := "SELECT * FROM [Orders] AS "
	refs := sqlcontext.References(sql)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].ExpectsAlias)
	assert.Empty(t, refs[0].Alias)
	assert.Equal(t, len(sql)-1, refs[0].EndIndex)
}

func TestReferences_DerivedTable(t *testing.T) {
	sql := "SELECT * FROM (SELECT Id, Email AS Mail, COUNT(*) AS n FROM [Subscribers]) s JOIN [B] b ON s.Id = b.Id"
	refs := sqlcontext.References(sql)
	require.Len(t, refs, 3)

	assert.Equal(t, "Subscribers", refs[0].Name)
	assert.Equal(t, 1, refs[0].ScopeDepth)

	derived := refs[1]
	assert.True(t, derived.IsSubquery)
	assert.Equal(t, "s", derived.Alias)
	assert.Equal(t, 0, derived.ScopeDepth)
	assert.Equal(t, []sqlcontext.FieldRef{{Name: "Id"}, {Name: "Mail"}, {Name: "n"}}, derived.OutputFields)

	assert.Equal(t, "B", refs[2].Name)
}

func TestResolve_ScopeVisibility(t *testing.T) {
	sql := "SELECT * FROM [Outer] o WHERE o.Id IN (SELECT Id FROM [Inner] i WHERE ) AND "

	inner := sqlcontext.Resolve(sql, 70)
	assert.ElementsMatch(t, []string{"Outer", "Inner"}, names(inner.TablesInScope))

	outer := sqlcontext.Resolve(sql, len(sql))
	assert.Equal(t, []string{"Outer"}, names(outer.TablesInScope))
	assert.True(t, outer.HasTableReference)
}

func TestResolve_StatementsAreSeparate(t *testing.T) {
	sql := "SELECT * FROM [A]; SELECT "
	ctx := sqlcontext.Resolve(sql, len(sql))
	assert.Empty(t, ctx.TablesInScope)
	assert.False(t, ctx.HasTableReference)

	first := sqlcontext.Resolve(sql, 17)
	assert.Equal(t, []string{"A"}, names(first.TablesInScope))
}

func TestResolve_CurrentWordAndAliasBeforeDot(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		wantWord  string
		wantAlias string
	}{
		{name: "after dot", sql: "SELECT o.", wantWord: "", wantAlias: "o"},
		{name: "typing after dot", sql: "SELECT o.Em", wantWord: "Em", wantAlias: "o"},
		{name: "no dot", sql: "SELECT Em", wantWord: "Em", wantAlias: ""},
		{name: "bracketed before dot", sql: "SELECT [o].", wantWord: "", wantAlias: ""},
		{name: "keyword", sql: "SELECT * FROM [A] INNER", wantWord: "INNER", wantAlias: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := sqlcontext.Resolve(tt.sql, len(tt.sql))
			assert.Equal(t, tt.wantWord, ctx.CurrentWord)
			assert.Equal(t, tt.wantAlias, ctx.AliasBeforeDot)
		})
	}
}

func TestResolve_CursorInTableReference(t *testing.T) {
	sql := "SELECT * FROM [Orders] WHERE "
	assert.True(t, sqlcontext.Resolve(sql, 17).CursorInTableReference)
	assert.False(t, sqlcontext.Resolve(sql, len(sql)).CursorInTableReference)
	assert.False(t, sqlcontext.Resolve(sql, 22).CursorInTableReference)
}

func TestResolve_ClampsCursor(t *testing.T) {
	assert.NotPanics(t, func() {
		sqlcontext.Resolve("SELECT * FROM [A", 500)
		sqlcontext.Resolve("", -3)
	})
}

func TestFindAlias(t *testing.T) {
	ctx := sqlcontext.Resolve("SELECT * FROM [Orders] o JOIN Customers ON ", 43)
	ref, ok := ctx.FindAlias("O")
	require.True(t, ok)
	assert.Equal(t, "Orders", ref.Name)

	ref, ok = ctx.FindAlias("customers")
	require.True(t, ok)
	assert.Equal(t, "Customers", ref.Name)
	assert.Equal(t, "Customers", ref.Ident())

	_, ok = ctx.FindAlias("x")
	assert.False(t, ok)
}
