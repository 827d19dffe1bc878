// Package plugin extends generation, export and streaming with ordered
// transformation chains. A plugin declares metadata and implements any of the
// capability interfaces; the registry folds each payload through every
// plugin that implements the matching capability.
package plugin

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/render"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

// Plugin is the minimum a plugin implements.
type Plugin interface {
	Metadata() Metadata
}

// Lifecycle is implemented by plugins that hold resources.
type Lifecycle interface {
	// Init is called once on registration.
	Init() error
	// Cleanup is called on unregistration and registry shutdown.
	Cleanup() error
}

// GenerateTransformer rewrites the document before sections are rendered.
type GenerateTransformer interface {
	BeforeGenerate(ctx context.Context, doc *docmodel.Document, cfg config.RunConfig) (*docmodel.Document, error)
}

// HTMLTransformer rewrites the assembled page.
type HTMLTransformer interface {
	AfterGenerate(ctx context.Context, html string, cfg config.RunConfig) (string, error)
}

// ExportTransformer adjusts the artifact before a format is encoded and the
// encoded bytes afterwards.
type ExportTransformer interface {
	BeforeExport(ctx context.Context, format string, art *render.Artifact) (*render.Artifact, error)
	AfterExport(ctx context.Context, format string, data []byte) ([]byte, error)
}

// StreamTransformer rewrites section payloads before they are published.
type StreamTransformer interface {
	OnStream(ctx context.Context, data stream.SectionData, streamID string) (stream.SectionData, error)
}

// Metadata describes a plugin's identity and ordering.
type Metadata struct {
	// Name is the unique plugin identifier.
	Name string

	// Version is informational (e.g. "v1.0.0").
	Version string

	Description string
	Author      string

	// Priority orders the chain: higher runs first, ties keep registration order.
	Priority int
}

// String returns a human-readable representation of the plugin metadata.
func (m Metadata) String() string {
	if m.Version == "" {
		return m.Name
	}
	return fmt.Sprintf("%s@%s", m.Name, m.Version)
}

// Validate checks if the plugin metadata is valid.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	return nil
}

// Capabilities lists the capability interfaces p implements.
func Capabilities(p Plugin) []string {
	var caps []string
	if _, ok := p.(GenerateTransformer); ok {
		caps = append(caps, "before-generate")
	}
	if _, ok := p.(HTMLTransformer); ok {
		caps = append(caps, "after-generate")
	}
	if _, ok := p.(ExportTransformer); ok {
		caps = append(caps, "export")
	}
	if _, ok := p.(StreamTransformer); ok {
		caps = append(caps, "stream")
	}
	return caps
}

// BasePlugin provides no-op lifecycle methods for embedding.
type BasePlugin struct{}

// Init is a no-op default implementation.
func (BasePlugin) Init() error { return nil }

// Cleanup is a no-op default implementation.
func (BasePlugin) Cleanup() error { return nil }
