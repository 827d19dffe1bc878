package docmodel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/foundation/errors"
)

const sampleJSON = `{
  "cover": {"title": "Quarterly Report", "category": "Finance", "meta": [{"label": "Author", "value": "Ops"}]},
  "sections": [
    {"type": "content", "title": "Intro", "content": "Hello **world**"},
    {"type": "highlights", "title": "KPIs", "items": [{"icon": "chart", "title": "Revenue", "text": "up", "value": 42, "trend": "up"}]},
    {"type": "table", "title": "Numbers", "headers": ["a", "b"], "rows": [["1", 2]]},
    {"type": "chart", "title": "Trend", "chartType": "line", "data": {"labels": ["q1"], "values": [1]}},
    {"type": "image", "src": "https://example.com/x.png", "alt": "x"},
    {"type": "signature", "left": "Prepared", "right": "Approved"},
    {"type": "custom", "content": "<div>raw</div>"}
  ]
}`

func TestDecodeDispatchesOnType(t *testing.T) {
	doc, err := Decode([]byte(sampleJSON))
	require.NoError(t, err)
	require.Len(t, doc.Sections, 7)

	want := []SectionType{TypeContent, TypeHighlights, TypeTable, TypeChart, TypeImage, TypeSignature, TypeCustom}
	for i, s := range doc.Sections {
		require.Equal(t, want[i], s.Type(), "section %d", i)
	}

	hl := doc.Sections[1].(*HighlightsSection)
	require.Equal(t, Scalar("42"), hl.Items[0].Value)
	tbl := doc.Sections[2].(*TableSection)
	require.Equal(t, []Scalar{"1", "2"}, tbl.Rows[0])
	require.Equal(t, 1, doc.CountType(TypeTable))
	require.True(t, doc.HasType(TypeChart))
	require.False(t, doc.HasType("poem"))
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown tag", `{"cover":{"title":"t"},"sections":[{"type":"poem","text":"x"}]}`},
		{"missing tag", `{"cover":{"title":"t"},"sections":[{"title":"x","content":"y"}]}`},
		{"missing cover title", `{"cover":{},"sections":[]}`},
		{"content without body", `{"cover":{"title":"t"},"sections":[{"type":"content","title":"x"}]}`},
		{"ragged table", `{"cover":{"title":"t"},"sections":[{"type":"table","title":"x","headers":["a","b"],"rows":[["1"]]}]}`},
		{"empty highlights", `{"cover":{"title":"t"},"sections":[{"type":"highlights","title":"x","items":[]}]}`},
		{"bad chart type", `{"cover":{"title":"t"},"sections":[{"type":"chart","title":"x","chartType":"area","data":[1]}]}`},
		{"empty chart data", `{"cover":{"title":"t"},"sections":[{"type":"chart","title":"x","chartType":"bar","data":{}}]}`},
		{"not json", `{"cover":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			require.True(t, errors.IsKind(err, errors.KindDataValidation), "got %v", err)
		})
	}
}

func TestValidateReportsSectionIndex(t *testing.T) {
	doc := &Document{
		Cover: Cover{Title: "t"},
		Sections: []Section{
			&ContentSection{Title: "ok", Content: "ok"},
			&TableSection{Title: "bad", Headers: []string{"a"}, Rows: [][]Scalar{{"1", "2"}}},
		},
	}
	err := doc.Validate()
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	idx, _ := ce.Context().Get("section")
	require.Equal(t, 1, idx)
	field, _ := ce.Context().GetString("field")
	require.Equal(t, "rows[0]", field)
}

func TestEmptySectionsIsValid(t *testing.T) {
	doc, err := Decode([]byte(`{"cover":{"title":"Only a cover"},"sections":[]}`))
	require.NoError(t, err)
	require.Empty(t, doc.Sections)
}

func TestConstructorsValidate(t *testing.T) {
	_, err := NewContent("", "body")
	require.True(t, errors.IsKind(err, errors.KindDataValidation))

	c, err := NewContent("Title", "body")
	require.NoError(t, err)
	require.Equal(t, TypeContent, c.Type())

	_, err = NewHighlights("KPIs")
	require.Error(t, err)

	_, err = NewTable("T", []string{"a", "b"}, []Scalar{"1"})
	require.Error(t, err)

	tbl, err := NewTable("T", []string{"a", "b"}, []Scalar{"1", "2"})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)

	_, err = NewChart("C", ChartPie, json.RawMessage(`{"values":[1,2]}`))
	require.NoError(t, err)

	_, err = NewImage("", "alt")
	require.Error(t, err)
	_, err = NewSignature("l", "r")
	require.NoError(t, err)
	_, err = NewCustom("<p>x</p>", "raw")
	require.NoError(t, err)
}

func TestRoundTripKeepsTags(t *testing.T) {
	doc, err := Decode([]byte(sampleJSON))
	require.NoError(t, err)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var generic struct {
		Sections []map[string]any `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(data, &generic))
	require.Equal(t, "content", generic.Sections[0]["type"])
	require.Equal(t, "chart", generic.Sections[3]["type"])

	again, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, doc, again)
}

func TestCloneIsDeep(t *testing.T) {
	doc, err := Decode([]byte(sampleJSON))
	require.NoError(t, err)

	cp := doc.Clone()
	cp.Cover.Title = "changed"
	cp.Sections[0].(*ContentSection).Content = "changed"
	cp.Sections[2].(*TableSection).Rows[0][0] = "changed"

	require.Equal(t, "Quarterly Report", doc.Cover.Title)
	require.Equal(t, "Hello **world**", doc.Sections[0].(*ContentSection).Content)
	require.Equal(t, Scalar("1"), doc.Sections[2].(*TableSection).Rows[0][0])
}

func TestDecodeYAML(t *testing.T) {
	raw := `
cover:
  title: YAML doc
sections:
  - type: content
    title: One
    content: body
    date: 2024-05-01
  - type: chart
    title: Pie
    chartType: pie
    data:
      values: [1, 2, 3]
`
	doc, err := DecodeYAML([]byte(raw))
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	require.Equal(t, "2024-05-01", doc.Sections[0].(*ContentSection).Date)
	require.JSONEq(t, `{"values":[1,2,3]}`, string(doc.Sections[1].(*ChartSection).Data))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o600))
	doc, err := LoadFile(jsonPath)
	require.NoError(t, err)
	require.Equal(t, "Quarterly Report", doc.Title())

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	require.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
}
