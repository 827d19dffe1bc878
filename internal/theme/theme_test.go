package theme

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinThemes(t *testing.T) {
	names := Names()
	require.Equal(t, []string{"golden", "corporate", "modern", "dark", "minimal", "elegant"}, names)

	for _, name := range names {
		th, ok := Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, name, th.Name)
		require.NotEmpty(t, th.Colors.Primary)
		require.NotEmpty(t, th.Fonts.Code)
	}

	golden, _ := Lookup("golden")
	require.Equal(t, "#B8956A", golden.Colors.Primary)
}

func TestNamesReturnsCopy(t *testing.T) {
	names := Names()
	names[0] = "mutated"
	require.Equal(t, "golden", Names()[0])
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("neon")
	require.False(t, ok)
	require.False(t, Known("neon"))
	require.True(t, Known(Custom))
}

func TestResolveOverrides(t *testing.T) {
	th, err := Resolve("dark", Overrides{Colors: Colors{Accent: "#fff"}, Fonts: Fonts{Body: "Lora"}})
	require.NoError(t, err)
	require.Equal(t, "#fff", th.Colors.Accent)
	require.Equal(t, "#818cf8", th.Colors.Primary)
	require.Equal(t, "Lora", th.Fonts.Body)

	// the table itself is untouched
	dark, _ := Lookup("dark")
	require.Equal(t, "#a5b4fc", dark.Colors.Accent)
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve("neon", Overrides{})
	require.Error(t, err)

	_, err = Resolve("golden", Overrides{Colors: Colors{Primary: "blue"}})
	require.ErrorContains(t, err, "invalid primary color")

	_, err = Resolve(Custom, Overrides{Colors: Colors{Primary: "#000"}})
	require.ErrorContains(t, err, "custom theme requires")

	th, err := Resolve(Custom, Overrides{Colors: Colors{
		Primary: "#000", Secondary: "#111", Accent: "#222", Background: "#333", Text: "#444",
	}})
	require.NoError(t, err)
	require.Equal(t, Custom, th.Name)
	require.Equal(t, "#333", th.Colors.Background)
}

func TestCSSVariables(t *testing.T) {
	th, _ := Lookup("modern")
	css := th.CSSVariables()
	require.True(t, strings.HasPrefix(css, ":root {"))
	require.Contains(t, css, "--ds-primary: #06b6d4;")
}

func TestThemeFileRoundTrip(t *testing.T) {
	dark, _ := Lookup("dark")
	data, err := Marshal(dark)
	require.NoError(t, err)

	f, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, "dark", f.Name)

	th, err := f.Theme()
	require.NoError(t, err)
	require.Equal(t, dark, th)
}

func TestThemeFileRejectsIncompleteOrInvalid(t *testing.T) {
	_, err := Unmarshal([]byte(`{"name":"half","colors":{"primary":"#112233"}}`))
	require.ErrorContains(t, err, "requires primary")

	_, err = Unmarshal([]byte(`{"name":"bad","colors":{"primary":"red","secondary":"#000","accent":"#000","background":"#fff","text":"#000"}}`))
	require.ErrorContains(t, err, "invalid primary color")

	_, err = Unmarshal([]byte(`{"colors":{}}`))
	require.ErrorContains(t, err, "no name")

	_, err = Unmarshal([]byte(`{"name":"x","palette":{}}`))
	require.Error(t, err)
}
