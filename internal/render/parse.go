package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML rebuilds an artifact from a previously assembled page so it can
// be exported again. Each .ds-page becomes a fragment, the first one being
// the cover; a page without them is treated as a single cover fragment.
// The result carries no Document, so backends that need one reject it.
func ParseHTML(r io.Reader) (*Artifact, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	art := &Artifact{
		Title: strings.TrimSpace(dom.Find("title").First().Text()),
		HTML:  string(raw),
	}
	pages := dom.Find(".ds-page")
	if pages.Length() == 0 {
		pages = dom.Find("body")
	}
	var perr error
	pages.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		inner, err := sel.Html()
		if err != nil {
			perr = fmt.Errorf("page %d: %w", i, err)
			return false
		}
		chars, anims := measure(inner)
		f := Fragment{Index: i - 1, HTML: inner, Characters: chars, Animations: anims}
		if sec := sel.Find(".ds-section").First(); sec.Length() > 0 {
			f.ID, _ = sec.Attr("id")
		}
		if i == 0 {
			art.Cover = f
			return true
		}
		art.Fragments = append(art.Fragments, f)
		return true
	})
	if perr != nil {
		return nil, perr
	}
	if art.Title == "" {
		art.Title = strings.TrimSpace(dom.Find("h1").First().Text())
	}
	if v, ok := dom.Find("main.ds-document").Attr("data-pages"); ok {
		_, _ = fmt.Sscanf(v, "%d", &art.Pages)
	}
	if art.Pages == 0 {
		art.Pages = 1 + len(art.Fragments)
	}
	return art, nil
}
