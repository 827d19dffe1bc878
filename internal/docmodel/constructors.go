package docmodel

import "encoding/json"

func checked[S Section](s S) (S, error) {
	if err := s.validate(); err != nil {
		var zero S
		return zero, sectionError(-1, s.Type(), err)
	}
	return s, nil
}

// NewContent builds a validated content section.
func NewContent(title, content string) (*ContentSection, error) {
	return checked(&ContentSection{Title: title, Content: content})
}

// NewHighlights builds a validated highlights section.
func NewHighlights(title string, items ...HighlightItem) (*HighlightsSection, error) {
	return checked(&HighlightsSection{Title: title, Items: items})
}

// NewSignature builds a validated signature section.
func NewSignature(left, right string) (*SignatureSection, error) {
	return checked(&SignatureSection{Left: left, Right: right})
}

// NewChart builds a validated chart section.
func NewChart(title string, chartType ChartType, data json.RawMessage) (*ChartSection, error) {
	return checked(&ChartSection{Title: title, ChartType: chartType, Data: data})
}

// NewTable builds a validated table section.
func NewTable(title string, headers []string, rows ...[]Scalar) (*TableSection, error) {
	return checked(&TableSection{Title: title, Headers: headers, Rows: rows})
}

// NewImage builds a validated image section.
func NewImage(src, alt string) (*ImageSection, error) {
	return checked(&ImageSection{Src: src, Alt: alt})
}

// NewCustom builds a validated custom section.
func NewCustom(content, template string) (*CustomSection, error) {
	return checked(&CustomSection{Content: content, Template: template})
}
