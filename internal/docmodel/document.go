// Package docmodel defines the document that docstream renders: a cover page and an
// ordered list of sections drawn from a closed set of variants.
package docmodel

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/docstream/internal/foundation/errors"
)

// MetaItem is a labelled value on the cover page.
type MetaItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Icon  string `json:"icon,omitempty"`
}

// Branding decorates the cover page.
type Branding struct {
	Logo    string `json:"logo,omitempty"`
	Company string `json:"company,omitempty"`
	Tagline string `json:"tagline,omitempty"`
}

// Cover is the first page of a document.
type Cover struct {
	Category string     `json:"category,omitempty"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Meta     []MetaItem `json:"meta,omitempty"`
	Branding *Branding  `json:"branding,omitempty"`
}

// Metadata describes the document itself.
type Metadata struct {
	Version   string    `json:"version,omitempty"`
	Created   time.Time `json:"created,omitzero"`
	Modified  time.Time `json:"modified,omitzero"`
	Generator string    `json:"generator,omitempty"`
}

// Document is the input of a generation run.
type Document struct {
	Cover    Cover
	Sections []Section
	Metadata *Metadata
}

// Validate checks the cover and every section. Failures are DataValidationError with the
// offending section index in the "section" context key.
func (d *Document) Validate() error {
	if d == nil {
		return errors.DataValidationError("document is nil").Build()
	}
	if err := required("cover.title", d.Cover.Title); err != nil {
		return errors.DataValidationError(err.Error()).WithContext("field", "cover.title").Build()
	}
	for i, m := range d.Cover.Meta {
		if m.Label == "" {
			return errors.DataValidationError(fmt.Sprintf("cover.meta[%d]: label is required", i)).
				WithContext("field", "cover.meta").
				Build()
		}
	}
	for i, s := range d.Sections {
		if s == nil {
			return errors.DataValidationError(fmt.Sprintf("section %d is empty", i)).
				WithContext("section", i).
				Build()
		}
		if err := s.validate(); err != nil {
			return sectionError(i, s.Type(), err)
		}
	}
	return nil
}

func sectionError(index int, typ SectionType, err error) error {
	msg := fmt.Sprintf("%s section: %v", typ, err)
	if index >= 0 {
		msg = fmt.Sprintf("section %d (%s): %v", index, typ, err)
	}
	b := errors.DataValidationError(msg).WithContext("section_type", string(typ))
	if index >= 0 {
		b = b.WithContext("section", index)
	}
	if fe, ok := err.(*fieldError); ok {
		b = b.WithContext("field", fe.field)
	}
	return b.Build()
}

// Title returns the cover title.
func (d *Document) Title() string { return d.Cover.Title }

// CountType returns how many sections have the given type.
func (d *Document) CountType(t SectionType) int {
	n := 0
	for _, s := range d.Sections {
		if s != nil && s.Type() == t {
			n++
		}
	}
	return n
}

// HasType reports whether any section has the given type.
func (d *Document) HasType(t SectionType) bool {
	return d.CountType(t) > 0
}

// Clone returns a deep copy. The copy shares nothing with d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	data, err := d.MarshalJSON()
	if err != nil {
		panic(fmt.Sprintf("docmodel: clone marshal: %v", err))
	}
	out := &Document{}
	if err := out.UnmarshalJSON(data); err != nil {
		panic(fmt.Sprintf("docmodel: clone unmarshal: %v", err))
	}
	return out
}
