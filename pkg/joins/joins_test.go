package joins_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/queryplus/queryplus/pkg/joins"
)

func TestSuggest_FuzzyFieldMatch(t *testing.T) {
	r := joins.NewResolver(nil)
	got := r.Suggest(joins.Args{
		Left:  joins.Table{Name: "Orders", Alias: "o", Fields: []string{"customer_id"}},
		Right: joins.Table{Name: "Customers", Alias: "c", Fields: []string{"CustomerID"}},
	})
	assert.Equal(t, []joins.Suggestion{{Text: "o.customer_id = c.CustomerID"}}, got)
}

func TestSuggest_CapsAndOrder(t *testing.T) {
	r := joins.NewResolver(nil)
	got := r.Suggest(joins.Args{
		Left:  joins.Table{Name: "A", QualifiedName: "[A]", Fields: []string{"d", "c", "b", "a"}},
		Right: joins.Table{Name: "B", QualifiedName: "ENT.[B]", Fields: []string{"A", "B", "C", "D"}},
	})
	assert.Equal(t, []joins.Suggestion{
		{Text: "[A].d = ENT.[B].D"},
		{Text: "[A].c = ENT.[B].C"},
		{Text: "[A].b = ENT.[B].B"},
	}, got)
}

func TestSuggest_NoMatch(t *testing.T) {
	r := joins.NewResolver(nil)
	got := r.Suggest(joins.Args{
		Left:  joins.Table{Name: "A", Fields: []string{"x"}},
		Right: joins.Table{Name: "B", Fields: []string{"y"}},
	})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSuggest_BracketsSpacedFields(t *testing.T) {
	got := joins.Match(joins.Args{
		Left:  joins.Table{Name: "A", Alias: "a", Fields: []string{"Subscriber Key"}},
		Right: joins.Table{Name: "B", Alias: "b", Fields: []string{"Subscriber Key"}},
	})
	assert.Equal(t, []joins.Suggestion{{Text: "a.[Subscriber Key] = b.[Subscriber Key]"}}, got)
}

func TestSuggest_OverrideOrder(t *testing.T) {
	fixed := func(text string) joins.Override {
		return func(joins.Args) []joins.Suggestion { return []joins.Suggestion{{Text: text}} }
	}
	args := joins.Args{
		Left:  joins.Table{Name: "Orders", Alias: "o", Fields: []string{"id"}},
		Right: joins.Table{Name: "Customers", Alias: "c", Fields: []string{"id"}},
	}

	tests := []struct {
		name      string
		overrides map[string]joins.Override
		want      string
	}{
		{
			name: "pair wins",
			overrides: map[string]joins.Override{
				joins.PairKey("Orders", "Customers"): fixed("pair"),
				"customers":                          fixed("right"),
				"orders":                             fixed("left"),
			},
			want: "pair",
		},
		{
			name: "right before left",
			overrides: map[string]joins.Override{
				"Customers": fixed("right"),
				"orders":    fixed("left"),
			},
			want: "right",
		},
		{
			name:      "left only",
			overrides: map[string]joins.Override{"orders": fixed("left")},
			want:      "left",
		},
		{
			name:      "fuzzy fallback",
			overrides: map[string]joins.Override{"other": fixed("other")},
			want:      "o.id = c.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := joins.NewResolver(tt.overrides).Suggest(args)
			assert.Equal(t, []joins.Suggestion{{Text: tt.want}}, got)
		})
	}
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "orders|customers", joins.PairKey("Orders", "CUSTOMERS"))
}
