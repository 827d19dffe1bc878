// Package builtin ships the plugins selectable by name from the command line.
package builtin

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/plugin"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

var catalog = map[string]func() plugin.Plugin{
	"numbering": func() plugin.Plugin { return NewNumbering() },
	"footer":    func() plugin.Plugin { return NewFooter("") },
}

// Names lists the built-in plugins.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// New builds a built-in plugin by name.
func New(name string) (plugin.Plugin, error) {
	ctor, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Numbering prefixes titled sections with their position ("1. Intro").
type Numbering struct {
	plugin.BasePlugin
}

// NewNumbering creates the numbering plugin.
func NewNumbering() *Numbering { return &Numbering{} }

func (*Numbering) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "numbering",
		Version:     "v1.0.0",
		Description: "Numbers section titles in document order",
		Author:      "docstream",
		Priority:    100,
	}
}

func (*Numbering) BeforeGenerate(_ context.Context, doc *docmodel.Document, _ config.RunConfig) (*docmodel.Document, error) {
	out := doc.Clone()
	n := 0
	for _, s := range out.Sections {
		var title *string
		switch v := s.(type) {
		case *docmodel.ContentSection:
			title = &v.Title
		case *docmodel.HighlightsSection:
			title = &v.Title
		case *docmodel.ChartSection:
			title = &v.Title
		case *docmodel.TableSection:
			title = &v.Title
		}
		if title == nil || *title == "" {
			continue
		}
		n++
		*title = fmt.Sprintf("%d. %s", n, *title)
	}
	return out, nil
}

// Footer appends a footer line to the assembled page.
type Footer struct {
	plugin.BasePlugin
	Text string
}

// NewFooter creates the footer plugin; empty text uses a generated-by line.
func NewFooter(text string) *Footer {
	if text == "" {
		text = "Generated with docstream"
	}
	return &Footer{Text: text}
}

func (*Footer) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "footer",
		Version:     "v1.0.0",
		Description: "Adds a footer line to the page and to streamed sections",
		Author:      "docstream",
	}
}

func (f *Footer) AfterGenerate(_ context.Context, page string, _ config.RunConfig) (string, error) {
	footer := `<footer class="ds-footer">` + html.EscapeString(f.Text) + "</footer>\n"
	if i := strings.LastIndex(page, "</body>"); i >= 0 {
		return page[:i] + footer + page[i:], nil
	}
	return page + footer, nil
}

// OnStream appends the footer to the last streamed section.
func (f *Footer) OnStream(_ context.Context, data stream.SectionData, _ string) (stream.SectionData, error) {
	if data.Index == data.Total-1 {
		data.HTML += `<footer class="ds-footer">` + html.EscapeString(f.Text) + "</footer>"
	}
	return data, nil
}
