package docmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docstream/internal/foundation/errors"
)

type wireDocument struct {
	Cover    Cover             `json:"cover"`
	Sections []json.RawMessage `json:"sections"`
	Metadata *Metadata         `json:"metadata,omitempty"`
}

// MarshalJSON encodes the document with a "type" tag on every section.
func (d *Document) MarshalJSON() ([]byte, error) {
	w := wireDocument{Cover: d.Cover, Metadata: d.Metadata, Sections: make([]json.RawMessage, 0, len(d.Sections))}
	for i, s := range d.Sections {
		raw, err := MarshalSection(s)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		w.Sections = append(w.Sections, raw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a document, dispatching every section on its "type" tag.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	sections := make([]Section, 0, len(w.Sections))
	for i, raw := range w.Sections {
		s, err := UnmarshalSection(raw)
		if err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
		sections = append(sections, s)
	}
	d.Cover = w.Cover
	d.Sections = sections
	d.Metadata = w.Metadata
	return nil
}

// MarshalSection encodes a single section with its "type" tag.
func MarshalSection(s Section) (json.RawMessage, error) {
	type tag struct {
		Type SectionType `json:"type"`
	}
	switch v := s.(type) {
	case *ContentSection:
		return json.Marshal(struct {
			tag
			*ContentSection
		}{tag{TypeContent}, v})
	case *HighlightsSection:
		return json.Marshal(struct {
			tag
			*HighlightsSection
		}{tag{TypeHighlights}, v})
	case *SignatureSection:
		return json.Marshal(struct {
			tag
			*SignatureSection
		}{tag{TypeSignature}, v})
	case *ChartSection:
		return json.Marshal(struct {
			tag
			*ChartSection
		}{tag{TypeChart}, v})
	case *TableSection:
		return json.Marshal(struct {
			tag
			*TableSection
		}{tag{TypeTable}, v})
	case *ImageSection:
		return json.Marshal(struct {
			tag
			*ImageSection
		}{tag{TypeImage}, v})
	case *CustomSection:
		return json.Marshal(struct {
			tag
			*CustomSection
		}{tag{TypeCustom}, v})
	case nil:
		return nil, fmt.Errorf("nil section")
	default:
		return nil, fmt.Errorf("unsupported section %T", s)
	}
}

// UnmarshalSection decodes one tagged section. Unknown tags are rejected.
func UnmarshalSection(raw json.RawMessage) (Section, error) {
	var head struct {
		Type SectionType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	var s Section
	switch head.Type {
	case TypeContent:
		s = &ContentSection{}
	case TypeHighlights:
		s = &HighlightsSection{}
	case TypeSignature:
		s = &SignatureSection{}
	case TypeChart:
		s = &ChartSection{}
	case TypeTable:
		s = &TableSection{}
	case TypeImage:
		s = &ImageSection{}
	case TypeCustom:
		s = &CustomSection{}
	case "":
		return nil, fmt.Errorf("missing section type")
	default:
		return nil, fmt.Errorf("unknown section type %q", head.Type)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	switch v := s.(type) {
	case *ChartSection:
		v.Data = compact(v.Data)
		v.Options = compact(v.Options)
	case *CustomSection:
		v.Data = compact(v.Data)
	}
	return s, nil
}

// compact strips insignificant whitespace so equal payloads compare and hash equal.
func compact(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// Decode parses and validates a JSON document.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "malformed document").
			WithKind(errors.KindDataValidation).
			Fatal().
			Build()
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeYAML parses and validates a YAML document by converting it to JSON first.
func DecodeYAML(data []byte) (*Document, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "malformed YAML document").
			WithKind(errors.KindDataValidation).
			Fatal().
			Build()
	}
	js, err := json.Marshal(normalizeYAML(generic))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "YAML document is not representable as JSON").
			WithKind(errors.KindDataValidation).
			Fatal().
			Build()
	}
	return Decode(js)
}

// normalizeYAML turns map[any]any nodes (non-string keys) into map[string]any.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

// LoadFile reads a document from a .json, .yaml or .yml file.
func LoadFile(path string) (*Document, error) {
	// #nosec G304 -- path is supplied by the operator on the command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read document").
			WithContext("path", path).
			Build()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return Decode(bytes.TrimSpace(data))
	}
}

// Canonical returns the stable JSON encoding used for hashing.
func (d *Document) Canonical() ([]byte, error) {
	return d.MarshalJSON()
}
