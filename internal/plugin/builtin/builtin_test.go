package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

func TestNumbering(t *testing.T) {
	doc := &docmodel.Document{
		Cover: docmodel.Cover{Title: "T"},
		Sections: []docmodel.Section{
			&docmodel.ContentSection{Title: "Intro", Content: "x"},
			&docmodel.SignatureSection{Left: "a", Right: "b"},
			&docmodel.TableSection{Title: "Data", Headers: []string{"h"}},
		},
	}
	out, err := NewNumbering().BeforeGenerate(context.Background(), doc, config.RunConfig{})
	require.NoError(t, err)
	require.Equal(t, "1. Intro", out.Sections[0].(*docmodel.ContentSection).Title)
	require.Equal(t, "2. Data", out.Sections[2].(*docmodel.TableSection).Title)
	require.Equal(t, "Intro", doc.Sections[0].(*docmodel.ContentSection).Title)
}

func TestFooter(t *testing.T) {
	f := NewFooter("Acme <internal>")
	page, err := f.AfterGenerate(context.Background(), "<html><body><main></main></body></html>", config.RunConfig{})
	require.NoError(t, err)
	require.Equal(t, "<html><body><main></main><footer class=\"ds-footer\">Acme &lt;internal&gt;</footer>\n</body></html>", page)

	last, err := f.OnStream(context.Background(), stream.SectionData{Index: 1, Total: 2, HTML: "<p>x</p>"}, "s")
	require.NoError(t, err)
	require.Contains(t, last.HTML, "ds-footer")
	first, err := f.OnStream(context.Background(), stream.SectionData{Index: 0, Total: 2, HTML: "<p>x</p>"}, "s")
	require.NoError(t, err)
	require.Equal(t, "<p>x</p>", first.HTML)
}

func TestCatalog(t *testing.T) {
	require.Equal(t, []string{"footer", "numbering"}, Names())
	p, err := New("numbering")
	require.NoError(t, err)
	require.Equal(t, "numbering", p.Metadata().Name)
	_, err = New("nope")
	require.Error(t, err)
}
