// Package render turns document sections into HTML fragments and assembles the final page.
package render

import (
	"context"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
)

// Fragment is the rendered form of the cover or one section.
type Fragment struct {
	Index      int                  `json:"index"` // -1 for the cover
	Type       docmodel.SectionType `json:"type"`
	ID         string               `json:"id"`
	HTML       string               `json:"html"`
	Characters int                  `json:"characters"`
	Animations int                  `json:"animations"`
}

// Artifact is the finished render of a document.
type Artifact struct {
	Title     string
	HTML      string
	Document  *docmodel.Document
	Cover     Fragment
	Fragments []Fragment
	Pages     int
	Config    config.RunConfig
}

// Characters sums the visible characters of all fragments.
func (a *Artifact) Characters() int {
	n := a.Cover.Characters
	for _, f := range a.Fragments {
		n += f.Characters
	}
	return n
}

// Renderer is the rendering boundary used by the generation pipeline.
type Renderer interface {
	RenderCover(ctx context.Context, doc *docmodel.Document, cfg config.RunConfig) (Fragment, error)
	RenderSection(ctx context.Context, s docmodel.Section, index int, cfg config.RunConfig) (Fragment, error)
	Assemble(ctx context.Context, doc *docmodel.Document, cover Fragment, fragments []Fragment, cfg config.RunConfig) (*Artifact, error)
}

// PageCount returns the number of pages a document occupies: the cover plus one per section,
// capped by layout.max_pages when set.
func PageCount(sections int, layout config.LayoutConfig) int {
	pages := 1 + sections
	if layout.MaxPages > 0 && pages > layout.MaxPages {
		return layout.MaxPages
	}
	return pages
}
