package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docstream/internal/config"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/theme"
)

// ThemeCmd groups theme subcommands.
type ThemeCmd struct {
	List   ThemeListCmd   `cmd:"" help:"List built-in themes with color swatches"`
	Export ThemeExportCmd `cmd:"" help:"Write a built-in theme as a JSON theme file"`
	Import ThemeImportCmd `cmd:"" help:"Validate a JSON theme file and print the configuration that applies it"`
}

// ThemeListCmd implements 'theme list'.
type ThemeListCmd struct{}

func (ThemeListCmd) Run(_ *Global, _ *CLI) error {
	for _, name := range theme.Names() {
		t, ok := theme.Lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintln(os.Stdout, renderTheme(t))
	}
	return nil
}

// ThemeExportCmd implements 'theme export'.
type ThemeExportCmd struct {
	Name   string `arg:"" help:"Built-in theme name"`
	Output string `short:"o" help:"File to write (default: stdout)" type:"path"`
}

func (c *ThemeExportCmd) Run(_ *Global, _ *CLI) error {
	t, ok := theme.Lookup(c.Name)
	if !ok {
		return derrors.ConfigValidationError(fmt.Sprintf("unknown theme %q", c.Name)).
			WithContext("known", strings.Join(theme.Names(), ", ")).
			Build()
	}
	data, err := theme.Marshal(t)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if c.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return fmt.Errorf("write theme file: %w", err)
	}
	fmt.Printf("Wrote theme %s to %s\n", t.Name, c.Output)
	return nil
}

// ThemeImportCmd implements 'theme import'.
type ThemeImportCmd struct {
	File string `arg:"" help:"JSON theme file" type:"existingfile"`
}

func (c *ThemeImportCmd) Run(_ *Global, _ *CLI) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read theme file: %w", err)
	}
	f, err := theme.Unmarshal(data)
	if err != nil {
		return derrors.ConfigValidationError("invalid theme file").
			WithCause(err).
			WithContext("file", c.File).
			Build()
	}
	t, err := f.Theme()
	if err != nil {
		return err
	}
	snippet, err := yaml.Marshal(struct {
		Theme config.ThemeConfig `yaml:"theme"`
	}{config.ThemeConfig{Name: theme.Custom, Overrides: f.Overrides()}})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, renderTheme(t))
	fmt.Fprintln(os.Stdout)
	fmt.Fprint(os.Stdout, string(snippet))
	return nil
}

func swatch(hex string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("    ")
}

func renderTheme(t theme.Theme) string {
	c := t.Colors
	swatches := lipgloss.JoinHorizontal(lipgloss.Top,
		swatch(c.Primary), swatch(c.Secondary), swatch(c.Accent), swatch(c.Background), swatch(c.Text))
	name := headingStyle.Width(12).Render(t.Name)
	font, _, _ := strings.Cut(t.Fonts.Heading, ",")
	return lipgloss.JoinHorizontal(lipgloss.Top, name, swatches, labelStyle.Render("  "+font))
}
