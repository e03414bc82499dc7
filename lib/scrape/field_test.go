package scrape

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func itemSelection(t *testing.T, page string) Selection {
	t.Helper()
	doc, err := ParseDocument([]byte(page), "http://example.test/")
	if err != nil {
		t.Fatal(err)
	}
	item, ok := doc.SelectFirst(".quote")
	require.True(t, ok)
	return item
}

func TestFieldExtract(t *testing.T) {
	item := itemSelection(t, quotesPage)

	testCases := []struct {
		name     string
		field    Field
		expected Value
	}{
		{
			name:     "single",
			field:    Field{Name: "author", Selector: ".author", Mode: ModeSingle},
			expected: Value{Text: "Albert Einstein"},
		},
		{
			name:     "single missing uses placeholder",
			field:    Field{Name: "price", Selector: ".price", Mode: ModeSingle},
			expected: Value{Text: "No price"},
		},
		{
			name:     "multi",
			field:    Field{Name: "topics", Selector: ".tag", Mode: ModeMulti},
			expected: Value{Multi: true, List: []string{"change", "deep-thoughts"}},
		},
		{
			name:     "multi missing is empty list",
			field:    Field{Name: "links", Selector: ".nothing", Mode: ModeMulti},
			expected: Value{Multi: true, List: []string{}},
		},
		{
			name:     "attribute",
			field:    Field{Name: "tagLink", Selector: ".tag", Mode: ModeSingle, Attr: "href"},
			expected: Value{Text: "/tag/change/"},
		},
		{
			name:     "attribute missing on matched element",
			field:    Field{Name: "id", Selector: ".author", Mode: ModeSingle, Attr: "id"},
			expected: Value{Text: ""},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			got := test.field.extract(item)
			diff := cmp.Diff(test.expected, got)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestFieldSpecValidate(t *testing.T) {
	valid := FieldSpec{
		{Name: "text", Selector: ".text", Mode: ModeSingle},
		{Name: "author", Selector: ".author", Mode: ModeSingle},
	}
	require.NoError(t, valid.Validate())
	require.Equal(t, []string{"text", "author"}, valid.Names())

	require.Error(t, FieldSpec{}.Validate())
	require.Error(t, FieldSpec{{Name: "", Selector: ".x", Mode: ModeSingle}}.Validate())
	require.Error(t, FieldSpec{{Name: "page", Selector: ".x", Mode: ModeSingle}}.Validate())
	require.Error(t, FieldSpec{{Name: "tags", Selector: ".x", Mode: ModeSingle}}.Validate())
	require.Error(t, FieldSpec{{Name: "x", Selector: "p:unknown(", Mode: ModeSingle}}.Validate())
	require.Error(t, FieldSpec{{Name: "x", Selector: ".x", Mode: "both"}}.Validate())
	require.Error(t, FieldSpec{
		{Name: "x", Selector: ".x", Mode: ModeSingle},
		{Name: "x", Selector: ".y", Mode: ModeSingle},
	}.Validate())
}

func TestRecordJson(t *testing.T) {
	record := Record{
		Fields: []FieldValue{
			{Name: "text", Value: Value{Text: "a quote"}},
			{Name: "author", Value: Value{Text: "someone"}},
			{Name: "links", Value: Value{Multi: true, List: []string{"a", "b"}}},
		},
		Tags: []string{"change", "deep-thoughts"},
		Page: 2,
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.Equal(t,
		`{"text":"a quote","author":"someone","links":["a","b"],"tags":["change","deep-thoughts"],"page":2}`,
		string(data))

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	diff := cmp.Diff(record, decoded)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestRecordJsonNoTags(t *testing.T) {
	record := Record{
		Fields: []FieldValue{{Name: "text", Value: Value{Text: "a quote"}}},
		Page:   1,
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.Equal(t, `{"text":"a quote","page":1}`, string(data))

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Nil(t, decoded.Tags)
}

func TestValueString(t *testing.T) {
	require.Equal(t, "a, b", Value{Multi: true, List: []string{"a", "b"}}.String())
	require.Equal(t, "plain", Value{Text: "plain"}.String())
	require.Equal(t, "", Value{Multi: true, List: []string{}}.String())
}
