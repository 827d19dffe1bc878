package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// measure counts the visible characters and animated elements of an HTML fragment.
// Text inside script and style elements is not visible.
func measure(fragment string) (chars, animations int) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	hidden := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return chars, animations
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if n := string(name); n == "script" || n == "style" {
				hidden++
			}
			for hasAttr {
				var key []byte
				key, _, hasAttr = z.TagAttr()
				if string(key) == "data-animate" {
					animations++
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if n := string(name); (n == "script" || n == "style") && hidden > 0 {
				hidden--
			}
		case html.TextToken:
			if hidden > 0 {
				continue
			}
			text := z.Text()
			for len(text) > 0 {
				r, size := utf8.DecodeRune(text)
				if !unicode.IsSpace(r) {
					chars++
				}
				text = text[size:]
			}
		}
	}
}
