package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"git.home.luguber.info/inful/docstream/internal/render"
)

// MarkdownBackend converts the rendered cover and sections to CommonMark.
type MarkdownBackend struct {
	conv *converter.Converter
}

// NewMarkdownBackend builds a converter with table support.
func NewMarkdownBackend() *MarkdownBackend {
	return &MarkdownBackend{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (m *MarkdownBackend) Encode(ctx context.Context, art *render.Artifact, _ Options) ([]byte, error) {
	parts := make([]string, 0, len(art.Fragments)+1)
	for _, f := range append([]render.Fragment{art.Cover}, art.Fragments...) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(f.HTML) == "" {
			continue
		}
		md, err := m.conv.ConvertString(f.HTML)
		if err != nil {
			return nil, fmt.Errorf("convert fragment %d: %w", f.Index, err)
		}
		parts = append(parts, strings.TrimSpace(md))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("artifact has no content")
	}
	return []byte(strings.Join(parts, "\n\n---\n\n") + "\n"), nil
}
