// Package theme holds the built-in color and font tables used when rendering documents.
package theme

import (
	"fmt"
	"regexp"
	"strings"
)

// Custom is the theme name that takes all values from overrides.
const Custom = "custom"

// Colors is the palette of a theme.
type Colors struct {
	Primary    string `yaml:"primary,omitempty" json:"primary,omitempty"`
	Secondary  string `yaml:"secondary,omitempty" json:"secondary,omitempty"`
	Accent     string `yaml:"accent,omitempty" json:"accent,omitempty"`
	Background string `yaml:"background,omitempty" json:"background,omitempty"`
	Text       string `yaml:"text,omitempty" json:"text,omitempty"`
}

// Fonts is the font stack of a theme.
type Fonts struct {
	Heading string `yaml:"heading,omitempty" json:"heading,omitempty"`
	Body    string `yaml:"body,omitempty" json:"body,omitempty"`
	Code    string `yaml:"code,omitempty" json:"code,omitempty"`
}

// Theme is a resolved, complete theme.
type Theme struct {
	Name   string
	Colors Colors
	Fonts  Fonts
}

// Overrides replaces individual values of a base theme. Empty fields keep the base value.
type Overrides struct {
	Colors Colors `yaml:"colors,omitempty"`
	Fonts  Fonts  `yaml:"fonts,omitempty"`
}

const defaultCodeFont = "ui-monospace, SFMono-Regular, Menlo, monospace"

var order = []string{"golden", "corporate", "modern", "dark", "minimal", "elegant"}

// builtin is initialized once and never mutated; Lookup hands out copies.
var builtin = map[string]Theme{
	"golden": {
		Colors: Colors{Primary: "#B8956A", Secondary: "#8B7355", Accent: "#D4AF69", Background: "#FAF7F2", Text: "#2C2416"},
		Fonts:  Fonts{Heading: "Georgia, serif", Body: "Georgia, serif"},
	},
	"corporate": {
		Colors: Colors{Primary: "#2563eb", Secondary: "#1e40af", Accent: "#3b82f6", Background: "#ffffff", Text: "#1f2937"},
		Fonts:  Fonts{Heading: "Inter, sans-serif", Body: "Inter, sans-serif"},
	},
	"modern": {
		Colors: Colors{Primary: "#06b6d4", Secondary: "#0891b2", Accent: "#67e8f9", Background: "#f8fafc", Text: "#0f172a"},
		Fonts:  Fonts{Heading: "Inter, sans-serif", Body: "Inter, sans-serif"},
	},
	"dark": {
		Colors: Colors{Primary: "#818cf8", Secondary: "#6366f1", Accent: "#a5b4fc", Background: "#0f172a", Text: "#f1f5f9"},
		Fonts:  Fonts{Heading: "Inter, sans-serif", Body: "Inter, sans-serif"},
	},
	"minimal": {
		Colors: Colors{Primary: "#374151", Secondary: "#111827", Accent: "#6b7280", Background: "#ffffff", Text: "#111827"},
		Fonts:  Fonts{Heading: "Inter, sans-serif", Body: "Inter, sans-serif"},
	},
	"elegant": {
		Colors: Colors{Primary: "#7c3aed", Secondary: "#5b21b6", Accent: "#a855f7", Background: "#faf5ff", Text: "#581c87"},
		Fonts:  Fonts{Heading: "Playfair Display, serif", Body: "Inter, sans-serif"},
	},
}

var colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// Names returns the built-in theme names in display order.
func Names() []string {
	return append([]string(nil), order...)
}

// Known reports whether name is a built-in theme or "custom".
func Known(name string) bool {
	if name == Custom {
		return true
	}
	_, ok := builtin[name]
	return ok
}

// Lookup returns a copy of a built-in theme.
func Lookup(name string) (Theme, bool) {
	t, ok := builtin[name]
	if !ok {
		return Theme{}, false
	}
	t.Name = name
	if t.Fonts.Code == "" {
		t.Fonts.Code = defaultCodeFont
	}
	return t, true
}

// Resolve merges overrides onto the named theme. A custom theme starts from golden and
// requires every color to be supplied.
func Resolve(name string, o Overrides) (Theme, error) {
	base := name
	if name == Custom {
		base = "golden"
	}
	t, ok := Lookup(base)
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q (known: %s)", name, strings.Join(order, ", "))
	}
	if name == Custom {
		t.Name = Custom
		if o.Colors.Primary == "" || o.Colors.Secondary == "" || o.Colors.Accent == "" ||
			o.Colors.Background == "" || o.Colors.Text == "" {
			return Theme{}, fmt.Errorf("custom theme requires primary, secondary, accent, background and text colors")
		}
	}
	if err := o.Colors.validate(); err != nil {
		return Theme{}, err
	}
	t.Colors = mergeColors(t.Colors, o.Colors)
	t.Fonts = mergeFonts(t.Fonts, o.Fonts)
	return t, nil
}

func (c Colors) validate() error {
	for field, v := range map[string]string{
		"primary": c.Primary, "secondary": c.Secondary, "accent": c.Accent,
		"background": c.Background, "text": c.Text,
	} {
		if v != "" && !colorPattern.MatchString(v) {
			return fmt.Errorf("invalid %s color %q", field, v)
		}
	}
	return nil
}

func mergeColors(base, o Colors) Colors {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return Colors{
		Primary:    pick(base.Primary, o.Primary),
		Secondary:  pick(base.Secondary, o.Secondary),
		Accent:     pick(base.Accent, o.Accent),
		Background: pick(base.Background, o.Background),
		Text:       pick(base.Text, o.Text),
	}
}

func mergeFonts(base, o Fonts) Fonts {
	if o.Heading != "" {
		base.Heading = o.Heading
	}
	if o.Body != "" {
		base.Body = o.Body
	}
	if o.Code != "" {
		base.Code = o.Code
	}
	return base
}

// CSSVariables renders the theme as a :root custom property block.
func (t Theme) CSSVariables() string {
	var b strings.Builder
	b.WriteString(":root {\n")
	fmt.Fprintf(&b, "  --ds-primary: %s;\n", t.Colors.Primary)
	fmt.Fprintf(&b, "  --ds-secondary: %s;\n", t.Colors.Secondary)
	fmt.Fprintf(&b, "  --ds-accent: %s;\n", t.Colors.Accent)
	fmt.Fprintf(&b, "  --ds-background: %s;\n", t.Colors.Background)
	fmt.Fprintf(&b, "  --ds-text: %s;\n", t.Colors.Text)
	fmt.Fprintf(&b, "  --ds-font-heading: %s;\n", t.Fonts.Heading)
	fmt.Fprintf(&b, "  --ds-font-body: %s;\n", t.Fonts.Body)
	fmt.Fprintf(&b, "  --ds-font-code: %s;\n", t.Fonts.Code)
	b.WriteString("}\n")
	return b.String()
}
