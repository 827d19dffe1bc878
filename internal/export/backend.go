package export

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/render"
)

// Options are the per-format settings handed to a backend.
type Options struct {
	Format   string
	Quality  string
	Metadata config.ExportMetadata
}

// Backend encodes an artifact into the bytes of one format.
type Backend interface {
	Encode(ctx context.Context, art *render.Artifact, opts Options) ([]byte, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, art *render.Artifact, opts Options) ([]byte, error)

func (f BackendFunc) Encode(ctx context.Context, art *render.Artifact, opts Options) ([]byte, error) {
	return f(ctx, art, opts)
}

// Registry maps format names to backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// DefaultRegistry registers the built-in html, markdown and latex backends
// plus one command backend per entry of commands.
func DefaultRegistry(commands map[string]string) *Registry {
	r := NewRegistry()
	r.Register(FormatHTML, HTMLBackend{})
	r.Register(FormatMarkdown, NewMarkdownBackend())
	r.Register(FormatLaTeX, LaTeXBackend{})
	for format, cmd := range commands {
		r.Register(format, CommandBackend{Command: cmd})
	}
	return r
}

// Register installs b for format, replacing any previous backend.
func (r *Registry) Register(format string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[Normalize(format)] = b
}

// Lookup returns the backend for format.
func (r *Registry) Lookup(format string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[Normalize(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return b, nil
}

// Formats lists the registered format names in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for f := range r.backends {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
