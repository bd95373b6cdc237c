package alias_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/queryplus/queryplus/pkg/alias"
)

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		existing map[string]struct{}
		want     string
		wantOK   bool
	}{
		{name: "pascal case initials", table: "OrderDetails", existing: set(), want: "od", wantOK: true},
		{name: "single word", table: "Orders", existing: set(), want: "o", wantOK: true},
		{name: "initial taken", table: "Orders", existing: set("o"), want: "orde", wantOK: true},
		{name: "both taken", table: "Orders", existing: set("o", "orde"), want: "", wantOK: false},
		{name: "brackets stripped", table: "[Order Details]", existing: set(), want: "od", wantOK: true},
		{name: "underscores", table: "email_send_log_archive", existing: set(), want: "esl", wantOK: true},
		{name: "dashes", table: "web-events", existing: set(), want: "we", wantOK: true},
		{name: "case-insensitive collision", table: "Orders", existing: set("O"), want: "orde", wantOK: true},
		{name: "initials kept when they spell a keyword", table: "OrderNumber", existing: set(), want: "on", wantOK: true},
		{name: "initials as", table: "AccountSales", existing: set(), want: "as", wantOK: true},
		{name: "leading digit", table: "2Fast", existing: set(), want: "2f", wantOK: true},
		{name: "digit only name", table: "2024", existing: set(), want: "2", wantOK: true},
		{name: "empty name", table: "[]", existing: set(), want: "", wantOK: false},
		{name: "short fallback", table: "Ab", existing: set("a"), want: "ab", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := alias.Generate(tt.table, tt.existing)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_StableAndNeverExisting(t *testing.T) {
	tables := []string{"Orders", "OrderDetails", "[Customer Master]", "a_b_c_d", "X"}
	existing := set("o", "od", "cm", "abc", "x", "orde")

	for _, table := range tables {
		first, ok1 := alias.Generate(table, existing)
		second, ok2 := alias.Generate(table, existing)
		assert.Equal(t, first, second, table)
		assert.Equal(t, ok1, ok2, table)
		if ok1 {
			_, taken := existing[first]
			assert.False(t, taken, "alias %q for %q already exists", first, table)
		}
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"Order", "Details"}, alias.Words("OrderDetails"))
	assert.Equal(t, []string{"customer", "ID"}, alias.Words("customerID"))
	assert.Equal(t, []string{"HTTPLogs"}, alias.Words("HTTPLogs"))
	assert.Equal(t, []string{"a", "b"}, alias.Words(" a__b "))
}
