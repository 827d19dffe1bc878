package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/theme"
)

const baseCSS = `
body { margin: 0; background: var(--ds-background); color: var(--ds-text); font-family: var(--ds-font-body); }
h1, h2, h3 { font-family: var(--ds-font-heading); color: var(--ds-primary); }
code, pre { font-family: var(--ds-font-code); }
.ds-page { box-sizing: border-box; page-break-after: always; }
.ds-cover { text-align: center; padding: 20vh 2rem; }
.ds-category { text-transform: uppercase; letter-spacing: .2em; color: var(--ds-secondary); }
.ds-highlights { display: grid; grid-template-columns: repeat(auto-fit, minmax(12rem, 1fr)); gap: 1rem; }
.ds-layout-list { grid-template-columns: 1fr; }
.ds-highlight { border-top: 3px solid var(--ds-item-color, var(--ds-accent)); padding: 1rem; }
.ds-table { border-collapse: collapse; width: 100%; }
.ds-table th, .ds-table td { border: 1px solid var(--ds-secondary); padding: .4rem .6rem; }
.ds-signature { display: flex; justify-content: space-between; margin-top: 4rem; }
.ds-watermark { position: fixed; inset: 0; display: flex; align-items: center; justify-content: center; pointer-events: none; }
.ds-wm-header { align-items: flex-start; }
.ds-wm-footer { align-items: flex-end; }
`

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="generator" content="docstream">
<title>{{.Title}}</title>
{{- with .SEO.Description}}
<meta name="description" content="{{.}}">{{end}}
{{- with .SEO.Author}}
<meta name="author" content="{{.}}">{{end}}
{{- with .Keywords}}
<meta name="keywords" content="{{.}}">{{end}}
{{- with .SEO.CanonicalURL}}
<link rel="canonical" href="{{.}}">{{end}}
<meta property="og:title" content="{{.Title}}">
<style>
{{.ThemeCSS}}
@page { size: {{.PageSize}}; margin: {{.Margins}}; }
{{.BaseCSS}}
</style>
</head>
<body class="ds-theme-{{.Theme}} ds-{{.Orientation}}" data-animation="{{.AnimationType}}" data-animation-speed="{{.AnimationSpeed}}" data-sequence="{{.Sequence}}">
<main class="ds-document" data-pages="{{.Pages}}">
<div class="ds-page">{{.Cover}}</div>
{{- range .Fragments}}
<div class="ds-page">{{.}}</div>
{{- end}}
</main>
{{- if .Watermark}}
<div class="ds-watermark ds-wm-{{.Watermark.Position}}" aria-hidden="true"><span style="{{.WatermarkStyle}}">{{.Watermark.Text}}</span></div>
{{- end}}
</body>
</html>
`))

type pageData struct {
	Lang, Dir      string
	Title          string
	SEO            config.SEOConfig
	Keywords       string
	ThemeCSS       template.CSS
	BaseCSS        template.CSS
	PageSize       template.CSS
	Margins        template.CSS
	Theme          string
	Orientation    string
	AnimationType  string
	AnimationSpeed int64
	Sequence       string
	Pages          int
	Cover          template.HTML
	Fragments      []template.HTML
	Watermark      *config.WatermarkConfig
	WatermarkStyle template.CSS
}

// Assemble wraps the rendered fragments into a standalone HTML page.
func (r *HTMLRenderer) Assemble(ctx context.Context, doc *docmodel.Document, cover Fragment, fragments []Fragment, cfg config.RunConfig) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	th, err := theme.Resolve(cfg.Theme.Name, cfg.Theme.Overrides)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryGeneration, "resolve theme").
			WithContext("theme", cfg.Theme.Name).
			Build()
	}

	title := doc.Cover.Title
	if cfg.SEO.Title != "" {
		title = cfg.SEO.Title
	}
	pages := PageCount(len(fragments), cfg.Layout)
	m := cfg.Layout.Margins
	pageSize := cfg.Layout.PageSize
	if cfg.Layout.Orientation == "landscape" {
		pageSize += " landscape"
	}

	data := pageData{
		Lang:           cfg.Locale.Language,
		Dir:            cfg.Locale.Direction,
		Title:          title,
		SEO:            cfg.SEO,
		Keywords:       strings.Join(cfg.SEO.Keywords, ", "),
		ThemeCSS:       template.CSS(th.CSSVariables()),
		BaseCSS:        template.CSS(baseCSS),
		PageSize:       template.CSS(pageSize),
		Margins:        template.CSS(fmt.Sprintf("%dmm %dmm %dmm %dmm", m.Top, m.Right, m.Bottom, m.Left)),
		Theme:          th.Name,
		Orientation:    cfg.Layout.Orientation,
		AnimationType:  string(cfg.Animation.Type),
		AnimationSpeed: cfg.Animation.Speed.Milliseconds(),
		Sequence:       cfg.Animation.Sequence,
		Pages:          pages,
		Cover:          template.HTML(cover.HTML), // #nosec G203 -- produced by the renderer
	}
	for _, f := range fragments {
		data.Fragments = append(data.Fragments, template.HTML(f.HTML)) // #nosec G203 -- produced by the renderer
	}
	if cfg.Watermark.Enabled() {
		wm := cfg.Watermark
		data.Watermark = &wm
		data.WatermarkStyle = template.CSS(fmt.Sprintf("opacity: %.2f; transform: rotate(%ddeg); font-size: %dpx; color: %s",
			wm.Opacity, wm.Angle, wm.FontSize, sanitizeCSSValue(wm.Color)))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, errors.WrapError(err, errors.CategoryGeneration, "assemble page").Build()
	}

	return &Artifact{
		Title:     title,
		HTML:      buf.String(),
		Document:  doc,
		Cover:     cover,
		Fragments: append([]Fragment(nil), fragments...),
		Pages:     pages,
		Config:    cfg,
	}, nil
}

// sanitizeCSSValue keeps characters that can appear in a color value.
func sanitizeCSSValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '#', r == '(', r == ')', r == ',', r == '.', r == ' ', r == '%':
			return r
		default:
			return -1
		}
	}, v)
}
