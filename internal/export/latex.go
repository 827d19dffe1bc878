package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/render"
)

// LaTeXBackend writes a standalone article from the document model. Prose
// comes from the rendered fragments so markdown is interpreted once.
type LaTeXBackend struct{}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`#`, `\#`,
	`^`, `\textasciicircum{}`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	`%`, `\%`,
)

func tex(s string) string { return latexEscaper.Replace(s) }

func (LaTeXBackend) Encode(ctx context.Context, art *render.Artifact, opts Options) ([]byte, error) {
	doc := art.Document
	if doc == nil {
		return nil, errors.New("artifact has no document")
	}
	fragments := make(map[int]render.Fragment, len(art.Fragments))
	for _, f := range art.Fragments {
		fragments[f.Index] = f
	}

	var b strings.Builder
	classOpts := []string{paperOption(art.Config.Layout.PageSize)}
	if art.Config.Layout.Orientation == "landscape" {
		classOpts = append(classOpts, "landscape")
	}
	if opts.Quality == "draft" {
		classOpts = append(classOpts, "draft")
	}
	fmt.Fprintf(&b, "\\documentclass[%s]{article}\n", strings.Join(classOpts, ","))
	b.WriteString("\\usepackage[utf8]{inputenc}\n\\usepackage{graphicx}\n\\usepackage{hyperref}\n")
	fmt.Fprintf(&b, "\\hypersetup{pdftitle={%s},pdfauthor={%s},pdfsubject={%s},pdfkeywords={%s},pdfcreator={%s}}\n",
		tex(doc.Cover.Title), tex(opts.Metadata.Author), tex(opts.Metadata.Subject),
		tex(strings.Join(opts.Metadata.Keywords, ", ")), tex(opts.Metadata.Creator))

	title := tex(doc.Cover.Title)
	if doc.Cover.Subtitle != "" {
		title += `\\ \large ` + tex(doc.Cover.Subtitle)
	}
	fmt.Fprintf(&b, "\\title{%s}\n", title)
	author := opts.Metadata.Author
	if author == "" && doc.Cover.Branding != nil {
		author = doc.Cover.Branding.Company
	}
	fmt.Fprintf(&b, "\\author{%s}\n\\date{}\n\n\\begin{document}\n\\maketitle\n", tex(author))

	if len(doc.Cover.Meta) > 0 {
		b.WriteString("\\begin{description}\n")
		for _, m := range doc.Cover.Meta {
			fmt.Fprintf(&b, "\\item[%s] %s\n", tex(m.Label), tex(m.Value))
		}
		b.WriteString("\\end{description}\n")
	}

	for i, s := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.WriteString("\n")
		if err := writeSection(&b, s, fragments[i]); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
	}
	b.WriteString("\n\\end{document}\n")
	return []byte(b.String()), nil
}

func paperOption(size string) string {
	switch strings.ToLower(size) {
	case "a3":
		return "a3paper"
	case "a5":
		return "a5paper"
	case "letter":
		return "letterpaper"
	case "legal":
		return "legalpaper"
	default:
		return "a4paper"
	}
}

func writeSection(b *strings.Builder, s docmodel.Section, frag render.Fragment) error {
	switch v := s.(type) {
	case *docmodel.ContentSection:
		fmt.Fprintf(b, "\\section{%s}\n", tex(v.Title))
		if v.Subtitle != "" {
			fmt.Fprintf(b, "\\textit{%s}\n\n", tex(v.Subtitle))
		}
		return writeProse(b, frag.HTML, ".ds-body")
	case *docmodel.HighlightsSection:
		fmt.Fprintf(b, "\\section{%s}\n\\begin{itemize}\n", tex(v.Title))
		for _, it := range v.Items {
			line := `\textbf{` + tex(it.Title) + `}`
			if it.Value != "" {
				line += " (" + tex(string(it.Value)) + ")"
			}
			fmt.Fprintf(b, "\\item %s: %s\n", line, tex(it.Text))
		}
		b.WriteString("\\end{itemize}\n")
	case *docmodel.SignatureSection:
		b.WriteString("\\vspace{3em}\n\\noindent\\begin{tabular}{p{0.45\\textwidth}p{0.45\\textwidth}}\n")
		fmt.Fprintf(b, "\\hrulefill & \\hrulefill \\\\\n%s & %s \\\\\n\\end{tabular}\n", tex(v.Left), tex(v.Right))
		if v.Signature != nil && v.Signature.Name != "" {
			fmt.Fprintf(b, "\n%s, %s %s\n", tex(v.Signature.Name), tex(v.Signature.Title), tex(v.Signature.Date))
		}
	case *docmodel.ChartSection:
		fmt.Fprintf(b, "\\section{%s}\n\\begin{verbatim}\n%s\n\\end{verbatim}\n", tex(v.Title), string(v.Data))
	case *docmodel.TableSection:
		fmt.Fprintf(b, "\\section{%s}\n\\begin{tabular}{|%s}\n\\hline\n", tex(v.Title), strings.Repeat("l|", len(v.Headers)))
		b.WriteString(texRow(v.Headers))
		b.WriteString("\\hline\n")
		for _, row := range v.Rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = string(c)
			}
			b.WriteString(texRow(cells))
		}
		b.WriteString("\\hline\n\\end{tabular}\n")
	case *docmodel.ImageSection:
		if v.Title != "" {
			fmt.Fprintf(b, "\\section{%s}\n", tex(v.Title))
		}
		fmt.Fprintf(b, "\\begin{figure}[h]\n\\centering\n\\includegraphics[width=\\linewidth]{%s}\n", tex(v.Src))
		if v.Caption != "" {
			fmt.Fprintf(b, "\\caption{%s}\n", tex(v.Caption))
		}
		b.WriteString("\\end{figure}\n")
	case *docmodel.CustomSection:
		return writeProse(b, frag.HTML, "")
	default:
		return fmt.Errorf("unsupported section %T", s)
	}
	return nil
}

func texRow(cells []string) string {
	esc := make([]string, len(cells))
	for i, c := range cells {
		esc[i] = tex(c)
	}
	return strings.Join(esc, " & ") + " \\\\\n"
}

// writeProse converts the block elements of a rendered fragment. When scope
// is set only elements below it are considered.
func writeProse(b *strings.Builder, fragment, scope string) error {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return err
	}
	root := dom.Selection
	if scope != "" {
		if sel := dom.Find(scope); sel.Length() > 0 {
			root = sel
		}
	}
	blocks := root.Find("h1, h2, h3, h4, h5, h6, p, ul, ol, pre, blockquote")
	if blocks.Length() == 0 {
		if text := strings.TrimSpace(root.Text()); text != "" {
			b.WriteString(tex(text) + "\n")
		}
		return nil
	}
	blocks.Each(func(_ int, sel *goquery.Selection) {
		// nested blocks are emitted by their container
		if sel.ParentsFiltered("ul, ol, pre, blockquote").Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		switch goquery.NodeName(sel) {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			fmt.Fprintf(b, "\\subsection*{%s}\n", tex(text))
		case "ul", "ol":
			env := "itemize"
			if goquery.NodeName(sel) == "ol" {
				env = "enumerate"
			}
			fmt.Fprintf(b, "\\begin{%s}\n", env)
			sel.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				fmt.Fprintf(b, "\\item %s\n", tex(strings.TrimSpace(li.Text())))
			})
			fmt.Fprintf(b, "\\end{%s}\n", env)
		case "pre":
			fmt.Fprintf(b, "\\begin{verbatim}\n%s\n\\end{verbatim}\n", sel.Text())
		case "blockquote":
			fmt.Fprintf(b, "\\begin{quote}\n%s\n\\end{quote}\n", tex(text))
		default:
			if text != "" {
				b.WriteString(tex(text) + "\n\n")
			}
		}
	})
	return nil
}
