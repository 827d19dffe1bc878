package render

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
)

func sampleDoc() *docmodel.Document {
	return &docmodel.Document{
		Cover: docmodel.Cover{
			Category: "Report",
			Title:    "Annual <Review>",
			Meta:     []docmodel.MetaItem{{Label: "Owner", Value: "Ops"}},
		},
		Sections: []docmodel.Section{
			&docmodel.ContentSection{Title: "Intro", Content: "Hello **bold** <script>alert(1)</script>"},
			&docmodel.HighlightsSection{Title: "KPIs", Items: []docmodel.HighlightItem{
				{Icon: "$", Title: "Revenue", Text: "grew", Value: "42", Trend: docmodel.TrendUp},
			}},
			&docmodel.TableSection{Title: "Data", Headers: []string{"a", "b"}, Rows: [][]docmodel.Scalar{{"1", "<2>"}}},
			&docmodel.ChartSection{Title: "Chart", ChartType: docmodel.ChartBar, Data: json.RawMessage(`{"v":"</script>"}`)},
			&docmodel.ImageSection{ID: "hero", Src: "https://example.com/a.png", Alt: "a", Width: 100},
			&docmodel.SignatureSection{Left: "L", Right: "R", Signature: &docmodel.Signer{Name: "Kim"}},
			&docmodel.CustomSection{Content: "<b onclick=\"x()\">raw</b>"},
		},
	}
}

func renderAll(t *testing.T, r *HTMLRenderer, doc *docmodel.Document, cfg config.RunConfig) *Artifact {
	t.Helper()
	ctx := context.Background()
	cover, err := r.RenderCover(ctx, doc, cfg)
	require.NoError(t, err)
	var frags []Fragment
	for i, s := range doc.Sections {
		f, err := r.RenderSection(ctx, s, i, cfg)
		require.NoError(t, err)
		frags = append(frags, f)
	}
	art, err := r.Assemble(ctx, doc, cover, frags, cfg)
	require.NoError(t, err)
	return art
}

func TestRenderSectionsStructure(t *testing.T) {
	r := NewHTMLRenderer()
	cfg := config.Default()
	art := renderAll(t, r, sampleDoc(), cfg)

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(art.HTML))
	require.NoError(t, err)

	require.Equal(t, "Annual <Review>", dom.Find("h1.ds-title").Text())
	require.Equal(t, 7, dom.Find("section.ds-section").Length())
	require.Equal(t, "section-0", dom.Find("section.ds-content").AttrOr("id", ""))
	require.Equal(t, "hero", dom.Find("section.ds-image").AttrOr("id", ""))
	require.Equal(t, "bold", dom.Find("section.ds-content strong").Text())
	require.Equal(t, 0, dom.Find("section.ds-content script").Length(), "sanitizer should strip script")
	require.Equal(t, "<2>", dom.Find("table.ds-table tbody td").Last().Text())
	require.Equal(t, "bar", dom.Find("figure.ds-chart").AttrOr("data-chart-type", ""))
	_, hasOnclick := dom.Find(".ds-custom b").Attr("onclick")
	require.False(t, hasOnclick)
	require.Equal(t, "8", dom.Find("main.ds-document").AttrOr("data-pages", ""))
	require.Contains(t, dom.Find("style").Text(), "--ds-primary: #B8956A")

	require.Equal(t, 8, art.Pages)
	require.Len(t, art.Fragments, 7)
}

func TestChartDataCannotCloseScript(t *testing.T) {
	r := NewHTMLRenderer()
	f, err := r.RenderSection(context.Background(), &docmodel.ChartSection{
		Title: "c", ChartType: docmodel.ChartPie, Data: json.RawMessage(`{"v":"</script><b>x</b>"}`),
	}, 0, config.Default())
	require.NoError(t, err)
	require.NotContains(t, f.HTML, `"</script><b>`)
}

func TestSanitizeCanBeDisabled(t *testing.T) {
	r := NewHTMLRenderer()
	cfg := config.Default()
	off := false
	cfg.Security.SanitizeInput = &off

	f, err := r.RenderSection(context.Background(), &docmodel.CustomSection{Content: `<b onclick="x()">raw</b>`}, 0, cfg)
	require.NoError(t, err)
	require.Contains(t, f.HTML, `onclick`)
}

func TestMeasureCountsVisibleText(t *testing.T) {
	chars, anims := measure(`<section data-animate="content"><h2>Hi</h2><p>a b&amp;c</p><script>ignored()</script><style>.x{}</style></section>`)
	require.Equal(t, 6, chars) // "Hi" + "a" + "b&c"
	require.Equal(t, 1, anims)
}

func TestAnimationNoneHasNoAnimatedElements(t *testing.T) {
	r := NewHTMLRenderer()
	cfg := config.Default()
	cfg.Animation.Type = config.AnimationNone

	f, err := r.RenderSection(context.Background(), &docmodel.ContentSection{Title: "t", Content: "c"}, 0, cfg)
	require.NoError(t, err)
	require.Zero(t, f.Animations)
	require.Equal(t, 2, f.Characters)
}

func TestPageCountCapped(t *testing.T) {
	require.Equal(t, 4, PageCount(3, config.LayoutConfig{}))
	require.Equal(t, 2, PageCount(3, config.LayoutConfig{MaxPages: 2}))
	require.Equal(t, 1, PageCount(0, config.LayoutConfig{}))
}

func TestAssembleHeadAndWatermark(t *testing.T) {
	r := NewHTMLRenderer()
	cfg := config.Default()
	cfg.SEO = config.SEOConfig{Title: "SEO title", Description: "desc", Keywords: []string{"a", "b"}, CanonicalURL: "https://example.com/doc"}
	cfg.Watermark.Text = "DRAFT"
	cfg.Locale.Language = "fr"

	doc := &docmodel.Document{Cover: docmodel.Cover{Title: "Doc"}}
	art := renderAll(t, r, doc, cfg)

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(art.HTML))
	require.NoError(t, err)
	require.Equal(t, "SEO title", dom.Find("title").Text())
	require.Equal(t, "desc", dom.Find(`meta[name="description"]`).AttrOr("content", ""))
	require.Equal(t, "a, b", dom.Find(`meta[name="keywords"]`).AttrOr("content", ""))
	require.Equal(t, "https://example.com/doc", dom.Find(`link[rel="canonical"]`).AttrOr("href", ""))
	require.Equal(t, "fr", dom.Find("html").AttrOr("lang", ""))
	require.Equal(t, "DRAFT", dom.Find(".ds-watermark span").Text())
	require.Contains(t, dom.Find(".ds-watermark span").AttrOr("style", ""), "opacity: 0.10")
	require.Equal(t, 1, art.Pages)
}

func TestRenderHonoursCancellation(t *testing.T) {
	r := NewHTMLRenderer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.RenderSection(ctx, &docmodel.ContentSection{Title: "t", Content: "c"}, 0, config.Default())
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseHTMLRebuildsPages(t *testing.T) {
	r := NewHTMLRenderer()
	art := renderAll(t, r, sampleDoc(), config.Default())

	parsed, err := ParseHTML(strings.NewReader(art.HTML))
	require.NoError(t, err)
	require.Equal(t, art.Title, parsed.Title)
	require.Equal(t, art.HTML, parsed.HTML)
	require.Equal(t, art.Pages, parsed.Pages)
	require.Len(t, parsed.Fragments, len(art.Fragments))
	require.Equal(t, -1, parsed.Cover.Index)
	require.Contains(t, parsed.Cover.HTML, "Annual &lt;Review&gt;")
	require.Equal(t, art.Fragments[0].ID, parsed.Fragments[0].ID)
	require.Positive(t, parsed.Fragments[0].Characters)
	require.Nil(t, parsed.Document)
}

func TestParseHTMLWithoutPages(t *testing.T) {
	parsed, err := ParseHTML(strings.NewReader(`<html><body><h1>Notes</h1><p>plain page</p></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "Notes", parsed.Title)
	require.Empty(t, parsed.Fragments)
	require.Contains(t, parsed.Cover.HTML, "plain page")
	require.Equal(t, 1, parsed.Pages)
}
