package theme

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// File is the portable JSON form of a theme, shared between installations
// with 'theme export' and 'theme import'.
type File struct {
	Name   string `json:"name"`
	Colors Colors `json:"colors"`
	Fonts  Fonts  `json:"fonts"`
}

// Marshal encodes t as an indented theme file.
func Marshal(t Theme) ([]byte, error) {
	return json.MarshalIndent(File{Name: t.Name, Colors: t.Colors, Fonts: t.Fonts}, "", "  ")
}

// Unmarshal decodes and validates a theme file. Every color is required
// because an imported theme is applied as "custom".
func Unmarshal(data []byte) (File, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode theme file: %w", err)
	}
	if f.Name == "" {
		return File{}, errors.New("theme file has no name")
	}
	if _, err := Resolve(Custom, f.Overrides()); err != nil {
		return File{}, fmt.Errorf("theme %q: %w", f.Name, err)
	}
	return f, nil
}

// Overrides returns the file as overrides for the custom theme.
func (f File) Overrides() Overrides {
	return Overrides{Colors: f.Colors, Fonts: f.Fonts}
}

// Theme resolves the file to a complete theme carrying the file's name.
func (f File) Theme() (Theme, error) {
	t, err := Resolve(Custom, f.Overrides())
	if err != nil {
		return Theme{}, err
	}
	t.Name = f.Name
	return t, nil
}
