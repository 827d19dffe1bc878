package export

import (
	"context"
	"errors"
	"html"
	"strings"

	"git.home.luguber.info/inful/docstream/internal/render"
)

// HTMLBackend writes the assembled page, adding export metadata to the head.
type HTMLBackend struct{}

func (HTMLBackend) Encode(_ context.Context, art *render.Artifact, opts Options) ([]byte, error) {
	if art.HTML == "" {
		return nil, errors.New("artifact has no HTML")
	}
	var meta strings.Builder
	add := func(name, value string) {
		if value == "" || strings.Contains(art.HTML, `name="`+name+`"`) {
			return
		}
		meta.WriteString(`<meta name="` + name + `" content="` + html.EscapeString(value) + "\">\n")
	}
	add("author", opts.Metadata.Author)
	add("subject", opts.Metadata.Subject)
	add("keywords", strings.Join(opts.Metadata.Keywords, ", "))
	add("quality", opts.Quality)

	out := art.HTML
	if meta.Len() > 0 {
		if i := strings.Index(out, "</head>"); i >= 0 {
			out = out[:i] + meta.String() + out[i:]
		}
	}
	return []byte(out), nil
}
