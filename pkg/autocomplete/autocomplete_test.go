package autocomplete_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/pkg/autocomplete"
	"github.com/queryplus/queryplus/pkg/metadata"
)

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		term      string
		candidate string
		want      bool
	}{
		{term: "", candidate: "anything", want: true},
		{term: "", candidate: "", want: true},
		{term: "sbs", candidate: "Subscribers", want: true},
		{term: "SUB", candidate: "subscribers", want: true},
		{term: "ordr", candidate: "Orders", want: true},
		{term: "sro", candidate: "Orders", want: false},
		{term: "orders", candidate: "Ord", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.term+"/"+tt.candidate, func(t *testing.T) {
			assert.Equal(t, tt.want, autocomplete.FuzzyMatch(tt.term, tt.candidate))
		})
	}
}

func TestFuzzyMatch_Reflexive(t *testing.T) {
	for _, term := range []string{"a", "Orders", "Order_Details", "ENT.[x y]", "aaa"} {
		assert.True(t, autocomplete.FuzzyMatch(term, term), term)
	}
}

func TestBuildDataExtensionSuggestions_SharedPrefix(t *testing.T) {
	des := []metadata.DataExtension{{Name: "Alpha", FolderID: "shared-1", CustomerKey: "Alpha"}}
	got := autocomplete.BuildDataExtensionSuggestions(des, map[string]struct{}{"shared-1": {}}, "")

	require.Len(t, got, 1)
	assert.Equal(t, "ENT.[Alpha]", got[0].Label)
	assert.Equal(t, "ENT.[Alpha]", got[0].InsertText)
	assert.Equal(t, autocomplete.KindDataExtension, got[0].Kind)
}

func TestBuildDataExtensionSuggestions_FilterAndSort(t *testing.T) {
	des := []metadata.DataExtension{
		{Name: "subscribers", CustomerKey: "k1", FolderID: "f"},
		{Name: "Orders", CustomerKey: "k2", FolderID: "f", Description: "All orders"},
		{Name: "Sends", CustomerKey: "order-sends", FolderID: "f"},
		{Name: "Bounces", CustomerKey: "k4", FolderID: "f"},
	}

	got := autocomplete.BuildDataExtensionSuggestions(des, nil, "ENT.ord")
	require.Len(t, got, 2)
	assert.Equal(t, "[Orders]", got[0].Label)
	assert.Equal(t, "All orders", got[0].Detail)
	assert.Equal(t, "[Sends]", got[1].Label, "matched on customer key")
	assert.Equal(t, "order-sends", got[1].Detail)

	all := autocomplete.BuildDataExtensionSuggestions(des, nil, "")
	labels := make([]string, 0, len(all))
	for _, s := range all {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"[Bounces]", "[Orders]", "[Sends]", "[subscribers]"}, labels)
}

func TestBuildFieldSuggestions(t *testing.T) {
	length := 254
	fields := []metadata.Field{
		{Name: "email Address", Type: "EmailAddress", Length: &length},
		{Name: "Id", Type: "Number", IsPrimaryKey: true},
	}

	got := autocomplete.BuildFieldSuggestions(fields, autocomplete.FieldOptions{Prefix: "s", OwnerLabel: "[Subscribers]"})
	require.Len(t, got, 2)

	assert.Equal(t, "email Address - EmailAddress(254)", got[0].Label)
	assert.Equal(t, "s.[email Address]", got[0].InsertText)
	assert.Equal(t, "[Subscribers]", got[0].Detail)

	assert.Equal(t, "Id - Number", got[1].Label)
	assert.Equal(t, "s.Id", got[1].InsertText)
	assert.True(t, got[1].IsPrimaryKey)

	bare := autocomplete.BuildFieldSuggestions(fields[1:], autocomplete.FieldOptions{})
	assert.Equal(t, "Id", bare[0].InsertText)
}

func TestRank(t *testing.T) {
	in := []autocomplete.Suggestion{{Label: "Zip"}, {Label: "Email"}, {Label: "EmailOptIn"}}
	got := autocomplete.Rank("email", in)
	assert.ElementsMatch(t, []autocomplete.Suggestion{{Label: "Email"}, {Label: "EmailOptIn"}}, got)

	assert.Equal(t, in, autocomplete.Rank("", in))
}
