package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/foundation/errors"
)

// HTMLRenderer renders sections to HTML. Markdown goes through goldmark; user supplied HTML is
// sanitized with bluemonday when security.sanitize_input is on. It is safe for concurrent use.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTMLRenderer creates the default renderer.
func NewHTMLRenderer() *HTMLRenderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	return &HTMLRenderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
	}
}

var _ Renderer = (*HTMLRenderer)(nil)

func esc(s string) string { return html.EscapeString(s) }

func (r *HTMLRenderer) markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *HTMLRenderer) clean(s string, cfg config.RunConfig) string {
	if !cfg.Security.Sanitize() {
		return s
	}
	return r.policy.Sanitize(s)
}

func animationAttr(cfg config.RunConfig, kind string) string {
	if cfg.Animation.Type == config.AnimationNone {
		return ""
	}
	return fmt.Sprintf(` data-animate="%s"`, esc(kind))
}

// RenderCover renders the cover page.
func (r *HTMLRenderer) RenderCover(ctx context.Context, doc *docmodel.Document, cfg config.RunConfig) (Fragment, error) {
	if err := ctx.Err(); err != nil {
		return Fragment{}, err
	}
	c := doc.Cover
	var b strings.Builder
	fmt.Fprintf(&b, `<header class="ds-cover" id="cover"%s>`, animationAttr(cfg, string(cfg.Animation.Type)))
	if c.Category != "" {
		fmt.Fprintf(&b, `<p class="ds-category">%s</p>`, esc(c.Category))
	}
	fmt.Fprintf(&b, `<h1 class="ds-title">%s</h1>`, esc(c.Title))
	if c.Subtitle != "" {
		fmt.Fprintf(&b, `<p class="ds-subtitle">%s</p>`, esc(c.Subtitle))
	}
	if len(c.Meta) > 0 {
		b.WriteString(`<dl class="ds-meta">`)
		for _, m := range c.Meta {
			fmt.Fprintf(&b, `<div class="ds-meta-item"><dt>%s</dt><dd>%s</dd></div>`, esc(m.Label), esc(m.Value))
		}
		b.WriteString(`</dl>`)
	}
	if br := c.Branding; br != nil {
		b.WriteString(`<div class="ds-branding">`)
		if br.Logo != "" {
			fmt.Fprintf(&b, `<img class="ds-logo" src="%s" alt="%s">`, esc(br.Logo), esc(br.Company))
		}
		if br.Company != "" {
			fmt.Fprintf(&b, `<span class="ds-company">%s</span>`, esc(br.Company))
		}
		if br.Tagline != "" {
			fmt.Fprintf(&b, `<span class="ds-tagline">%s</span>`, esc(br.Tagline))
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</header>`)

	out := b.String()
	chars, anims := measure(out)
	return Fragment{Index: -1, ID: "cover", HTML: out, Characters: chars, Animations: anims}, nil
}

// RenderSection renders one section. The switch is exhaustive over the section variants.
func (r *HTMLRenderer) RenderSection(ctx context.Context, s docmodel.Section, index int, cfg config.RunConfig) (Fragment, error) {
	if err := ctx.Err(); err != nil {
		return Fragment{}, err
	}
	if s == nil {
		return Fragment{}, errors.GenerationError("cannot render nil section").WithContext("section", index).Build()
	}

	var (
		body string
		err  error
	)
	switch v := s.(type) {
	case *docmodel.ContentSection:
		body, err = r.content(v, cfg)
	case *docmodel.HighlightsSection:
		body = r.highlights(v, cfg)
	case *docmodel.SignatureSection:
		body = r.signature(v)
	case *docmodel.ChartSection:
		body = r.chart(v)
	case *docmodel.TableSection:
		body = r.table(v)
	case *docmodel.ImageSection:
		body = r.image(v, cfg)
	case *docmodel.CustomSection:
		body, err = r.custom(v, cfg)
	default:
		err = fmt.Errorf("unsupported section %T", s)
	}
	if err != nil {
		return Fragment{}, errors.WrapError(err, errors.CategoryGeneration, "render section").
			WithContext("section", index).
			WithContext("section_type", string(s.Type())).
			Build()
	}

	id := s.SectionID()
	if id == "" {
		id = "section-" + strconv.Itoa(index)
	}
	out := fmt.Sprintf(`<section class="ds-section ds-%s" id="%s" data-index="%d"%s>%s</section>`,
		s.Type(), esc(id), index, animationAttr(cfg, string(s.Type())), body)
	chars, anims := measure(out)
	return Fragment{Index: index, Type: s.Type(), ID: id, HTML: out, Characters: chars, Animations: anims}, nil
}

func heading(title, subtitle string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, `<h2>%s</h2>`, esc(title))
	}
	if subtitle != "" {
		fmt.Fprintf(&b, `<p class="ds-subtitle">%s</p>`, esc(subtitle))
	}
	return b.String()
}

func (r *HTMLRenderer) content(s *docmodel.ContentSection, cfg config.RunConfig) (string, error) {
	md, err := r.markdown(s.Content)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(heading(s.Title, s.Subtitle))
	if s.Author != "" || s.Date != "" {
		fmt.Fprintf(&b, `<p class="ds-byline">%s</p>`, esc(strings.TrimSpace(s.Author+" "+s.Date)))
	}
	fmt.Fprintf(&b, `<div class="ds-body">%s</div>`, r.clean(md, cfg))
	if len(s.Tags) > 0 {
		b.WriteString(`<ul class="ds-tags">`)
		for _, t := range s.Tags {
			fmt.Fprintf(&b, `<li>%s</li>`, esc(t))
		}
		b.WriteString(`</ul>`)
	}
	return b.String(), nil
}

var trendGlyph = map[docmodel.Trend]string{
	docmodel.TrendUp:     "▲",
	docmodel.TrendDown:   "▼",
	docmodel.TrendStable: "▶",
}

func (r *HTMLRenderer) highlights(s *docmodel.HighlightsSection, cfg config.RunConfig) string {
	layout := s.Layout
	if layout == "" {
		layout = "grid"
	}
	var b strings.Builder
	b.WriteString(heading(s.Title, s.Subtitle))
	fmt.Fprintf(&b, `<div class="ds-highlights ds-layout-%s">`, esc(layout))
	for _, it := range s.Items {
		style := ""
		if it.Color != "" {
			style = fmt.Sprintf(` style="--ds-item-color: %s"`, esc(it.Color))
		}
		fmt.Fprintf(&b, `<div class="ds-highlight"%s%s>`, style, animationAttr(cfg, "highlight"))
		if it.Icon != "" {
			fmt.Fprintf(&b, `<span class="ds-icon" aria-hidden="true">%s</span>`, esc(it.Icon))
		}
		if it.Value != "" {
			fmt.Fprintf(&b, `<span class="ds-value">%s`, esc(string(it.Value)))
			if g, ok := trendGlyph[it.Trend]; ok {
				fmt.Fprintf(&b, ` <span class="ds-trend ds-trend-%s">%s</span>`, it.Trend, g)
			}
			b.WriteString(`</span>`)
		}
		fmt.Fprintf(&b, `<h3>%s</h3><p>%s</p></div>`, esc(it.Title), esc(it.Text))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func (r *HTMLRenderer) signature(s *docmodel.SignatureSection) string {
	var b strings.Builder
	b.WriteString(`<div class="ds-signature">`)
	fmt.Fprintf(&b, `<div class="ds-sig-left">%s</div>`, esc(s.Left))
	if s.Center != "" {
		fmt.Fprintf(&b, `<div class="ds-sig-center">%s</div>`, esc(s.Center))
	}
	fmt.Fprintf(&b, `<div class="ds-sig-right">%s</div>`, esc(s.Right))
	b.WriteString(`</div>`)
	if sg := s.Signature; sg != nil {
		fmt.Fprintf(&b, `<div class="ds-signer"><span class="ds-signer-name">%s</span> <span class="ds-signer-title">%s</span> <time>%s</time></div>`,
			esc(sg.Name), esc(sg.Title), esc(sg.Date))
	}
	return b.String()
}

// chart emits the data as an inert JSON island; drawing is left to the viewer.
func (r *HTMLRenderer) chart(s *docmodel.ChartSection) string {
	var b strings.Builder
	b.WriteString(heading(s.Title, s.Subtitle))
	fmt.Fprintf(&b, `<figure class="ds-chart" data-chart-type="%s">`, esc(string(s.ChartType)))
	fmt.Fprintf(&b, `<script type="application/json" class="ds-chart-data">%s</script>`, scriptSafe(s.Data))
	if len(s.Options) > 0 {
		fmt.Fprintf(&b, `<script type="application/json" class="ds-chart-options">%s</script>`, scriptSafe(s.Options))
	}
	b.WriteString(`</figure>`)
	return b.String()
}

func scriptSafe(raw []byte) string {
	return strings.ReplaceAll(string(raw), "</", `<\/`)
}

func (r *HTMLRenderer) table(s *docmodel.TableSection) string {
	var b strings.Builder
	b.WriteString(heading(s.Title, s.Subtitle))
	b.WriteString(`<table class="ds-table"><thead><tr>`)
	for _, h := range s.Headers {
		fmt.Fprintf(&b, `<th>%s</th>`, esc(h))
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, row := range s.Rows {
		b.WriteString(`<tr>`)
		for _, cell := range row {
			fmt.Fprintf(&b, `<td>%s</td>`, esc(string(cell)))
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

func (r *HTMLRenderer) image(s *docmodel.ImageSection, cfg config.RunConfig) string {
	var img strings.Builder
	fmt.Fprintf(&img, `<img src="%s" alt="%s"`, esc(s.Src), esc(s.Alt))
	if s.Width > 0 {
		fmt.Fprintf(&img, ` width="%d"`, s.Width)
	}
	if s.Height > 0 {
		fmt.Fprintf(&img, ` height="%d"`, s.Height)
	}
	img.WriteString(`>`)

	var b strings.Builder
	b.WriteString(heading(s.Title, s.Subtitle))
	b.WriteString(`<figure class="ds-image">`)
	b.WriteString(r.clean(img.String(), cfg))
	if s.Caption != "" {
		fmt.Fprintf(&b, `<figcaption>%s</figcaption>`, esc(s.Caption))
	}
	b.WriteString(`</figure>`)
	return b.String()
}

func (r *HTMLRenderer) custom(s *docmodel.CustomSection, cfg config.RunConfig) (string, error) {
	body := s.Content
	if s.Template == "markdown" {
		md, err := r.markdown(s.Content)
		if err != nil {
			return "", err
		}
		body = md
	}
	tmpl := s.Template
	if tmpl == "" {
		tmpl = "raw"
	}
	return fmt.Sprintf(`<div class="ds-custom" data-template="%s">%s</div>`, esc(tmpl), r.clean(body, cfg)), nil
}
