package docmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SectionType is the wire tag of a section variant.
type SectionType string

const (
	TypeContent    SectionType = "content"
	TypeHighlights SectionType = "highlights"
	TypeSignature  SectionType = "signature"
	TypeChart      SectionType = "chart"
	TypeTable      SectionType = "table"
	TypeImage      SectionType = "image"
	TypeCustom     SectionType = "custom"
)

// SectionTypes lists every variant in declaration order.
var SectionTypes = []SectionType{TypeContent, TypeHighlights, TypeSignature, TypeChart, TypeTable, TypeImage, TypeCustom}

// Section is one block of a document. The set of implementations is closed:
// only the variants in this package satisfy it.
type Section interface {
	Type() SectionType
	SectionID() string
	validate() error
}

// ContentSection is a titled block of markdown.
type ContentSection struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Content  string   `json:"content"`
	Author   string   `json:"author,omitempty"`
	Date     string   `json:"date,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Trend of a highlight value.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Scalar accepts a JSON string or number and keeps its textual form.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value must be a string or number")
	}
	*s = Scalar(n.String())
	return nil
}

// HighlightItem is one tile of a highlights section.
type HighlightItem struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Value Scalar `json:"value,omitempty"`
	Trend Trend  `json:"trend,omitempty"`
	Color string `json:"color,omitempty"`
}

// HighlightsSection is a set of key figures.
type HighlightsSection struct {
	ID       string          `json:"id,omitempty"`
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle,omitempty"`
	Items    []HighlightItem `json:"items"`
	Layout   string          `json:"layout,omitempty"` // grid | list | cards
}

// Signer identifies who signs a document.
type Signer struct {
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
	Date  string `json:"date,omitempty"`
}

// SignatureSection closes a document.
type SignatureSection struct {
	ID        string  `json:"id,omitempty"`
	Left      string  `json:"left"`
	Right     string  `json:"right"`
	Center    string  `json:"center,omitempty"`
	Signature *Signer `json:"signature,omitempty"`
}

// ChartType selects how chart data is drawn.
type ChartType string

const (
	ChartLine     ChartType = "line"
	ChartBar      ChartType = "bar"
	ChartPie      ChartType = "pie"
	ChartDoughnut ChartType = "doughnut"
	ChartRadar    ChartType = "radar"
)

var chartTypes = []ChartType{ChartLine, ChartBar, ChartPie, ChartDoughnut, ChartRadar}

// ChartSection carries opaque chart data for the viewer.
type ChartSection struct {
	ID        string          `json:"id,omitempty"`
	Title     string          `json:"title"`
	Subtitle  string          `json:"subtitle,omitempty"`
	ChartType ChartType       `json:"chartType"`
	Data      json.RawMessage `json:"data"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// TableSection is a titled grid; every row has exactly len(Headers) cells.
type TableSection struct {
	ID       string     `json:"id,omitempty"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Headers  []string   `json:"headers"`
	Rows     [][]Scalar `json:"rows"`
}

// ImageSection embeds an image.
type ImageSection struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Src      string `json:"src"`
	Alt      string `json:"alt,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// CustomSection passes raw content through a named template.
type CustomSection struct {
	ID       string          `json:"id,omitempty"`
	Content  string          `json:"content"`
	Template string          `json:"template,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (*ContentSection) Type() SectionType    { return TypeContent }
func (*HighlightsSection) Type() SectionType { return TypeHighlights }
func (*SignatureSection) Type() SectionType  { return TypeSignature }
func (*ChartSection) Type() SectionType      { return TypeChart }
func (*TableSection) Type() SectionType      { return TypeTable }
func (*ImageSection) Type() SectionType      { return TypeImage }
func (*CustomSection) Type() SectionType     { return TypeCustom }

func (s *ContentSection) SectionID() string    { return s.ID }
func (s *HighlightsSection) SectionID() string { return s.ID }
func (s *SignatureSection) SectionID() string  { return s.ID }
func (s *ChartSection) SectionID() string      { return s.ID }
func (s *TableSection) SectionID() string      { return s.ID }
func (s *ImageSection) SectionID() string      { return s.ID }
func (s *CustomSection) SectionID() string     { return s.ID }

type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string { return e.field + ": " + e.reason }

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &fieldError{field: field, reason: "is required"}
	}
	return nil
}

func (s *ContentSection) validate() error {
	if err := required("title", s.Title); err != nil {
		return err
	}
	return required("content", s.Content)
}

func (s *HighlightsSection) validate() error {
	if err := required("title", s.Title); err != nil {
		return err
	}
	if len(s.Items) == 0 {
		return &fieldError{field: "items", reason: "needs at least one item"}
	}
	for i, it := range s.Items {
		if it.Title == "" && it.Text == "" {
			return &fieldError{field: "items[" + strconv.Itoa(i) + "]", reason: "needs a title or text"}
		}
		switch it.Trend {
		case "", TrendUp, TrendDown, TrendStable:
		default:
			return &fieldError{field: "items[" + strconv.Itoa(i) + "].trend", reason: fmt.Sprintf("unknown trend %q", it.Trend)}
		}
	}
	switch s.Layout {
	case "", "grid", "list", "cards":
	default:
		return &fieldError{field: "layout", reason: fmt.Sprintf("unknown layout %q", s.Layout)}
	}
	return nil
}

func (s *SignatureSection) validate() error {
	if err := required("left", s.Left); err != nil {
		return err
	}
	return required("right", s.Right)
}

func (s *ChartSection) validate() error {
	if err := required("title", s.Title); err != nil {
		return err
	}
	if !slices.Contains(chartTypes, s.ChartType) {
		return &fieldError{field: "chartType", reason: fmt.Sprintf("unknown chart type %q", s.ChartType)}
	}
	d := bytes.TrimSpace(s.Data)
	if len(d) == 0 || string(d) == "null" || string(d) == "{}" || string(d) == "[]" {
		return &fieldError{field: "data", reason: "is required"}
	}
	if !json.Valid(d) {
		return &fieldError{field: "data", reason: "is not valid JSON"}
	}
	return nil
}

func (s *TableSection) validate() error {
	if err := required("title", s.Title); err != nil {
		return err
	}
	if len(s.Headers) == 0 {
		return &fieldError{field: "headers", reason: "needs at least one header"}
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Headers) {
			return &fieldError{
				field:  "rows[" + strconv.Itoa(i) + "]",
				reason: fmt.Sprintf("has %d cells, want %d", len(row), len(s.Headers)),
			}
		}
	}
	return nil
}

func (s *ImageSection) validate() error {
	if err := required("src", s.Src); err != nil {
		return err
	}
	if s.Width < 0 || s.Height < 0 {
		return &fieldError{field: "dimensions", reason: "must not be negative"}
	}
	return nil
}

func (s *CustomSection) validate() error {
	return required("content", s.Content)
}
