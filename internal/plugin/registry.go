package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/render"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

// Operation names used in PluginError phases.
const (
	OpBeforeGenerate = "before-generate"
	OpAfterGenerate  = "after-generate"
	OpBeforeExport   = "before-export"
	OpAfterExport    = "after-export"
	OpStream         = "stream"
)

type entry struct {
	plugin Plugin
	meta   Metadata
	seq    int
}

// Registry holds plugins in chain order. A nil *Registry is an empty chain.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	seq     int
	logger  *slog.Logger
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// Register adds a plugin and runs its Init.
// Returns an error if a plugin with the same name already exists.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}
	meta := p.Metadata()
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid plugin metadata: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.ContainsFunc(r.entries, func(e entry) bool { return e.meta.Name == meta.Name }) {
		return fmt.Errorf("plugin %s already registered", meta.Name)
	}
	if lc, ok := p.(Lifecycle); ok {
		if err := lc.Init(); err != nil {
			return wrap(meta.Name, "init", err)
		}
	}
	r.seq++
	r.entries = append(r.entries, entry{plugin: p, meta: meta, seq: r.seq})
	slices.SortStableFunc(r.entries, func(a, b entry) int {
		if a.meta.Priority != b.meta.Priority {
			return b.meta.Priority - a.meta.Priority
		}
		return a.seq - b.seq
	})
	r.logger.Debug("Plugin registered", logfields.Plugin(meta.String()), slog.Int("priority", meta.Priority))
	return nil
}

// Unregister removes a plugin and runs its Cleanup.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	i := slices.IndexFunc(r.entries, func(e entry) bool { return e.meta.Name == name })
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("plugin %s not found", name)
	}
	e := r.entries[i]
	r.entries = slices.Delete(r.entries, i, i+1)
	r.mu.Unlock()

	if lc, ok := e.plugin.(Lifecycle); ok {
		if err := lc.Cleanup(); err != nil {
			return wrap(name, "cleanup", err)
		}
	}
	return nil
}

// Close unregisters every plugin, joining cleanup failures.
func (r *Registry) Close() error {
	var errs []error
	for _, p := range r.List() {
		if err := r.Unregister(p.Metadata().Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.meta.Name == name {
			return e.plugin, nil
		}
	}
	return nil, fmt.Errorf("plugin %s not found", name)
}

// Has checks if a plugin with the given name exists.
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// List returns the plugins in chain order.
func (r *Registry) List() []Plugin {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.plugin
	}
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	return len(r.List())
}

// BeforeGenerate folds doc through every GenerateTransformer.
func (r *Registry) BeforeGenerate(ctx context.Context, doc *docmodel.Document, cfg config.RunConfig) (*docmodel.Document, error) {
	for _, p := range r.List() {
		t, ok := p.(GenerateTransformer)
		if !ok {
			continue
		}
		next, err := call(p, OpBeforeGenerate, func() (*docmodel.Document, error) { return t.BeforeGenerate(ctx, doc, cfg) })
		if err != nil {
			return doc, err
		}
		if next == nil {
			return doc, wrap(p.Metadata().Name, OpBeforeGenerate, errors.New("returned no document"))
		}
		if err := next.Validate(); err != nil {
			return doc, wrap(p.Metadata().Name, OpBeforeGenerate, err)
		}
		doc = next
	}
	return doc, nil
}

// AfterGenerate folds the assembled page through every HTMLTransformer.
func (r *Registry) AfterGenerate(ctx context.Context, html string, cfg config.RunConfig) (string, error) {
	for _, p := range r.List() {
		t, ok := p.(HTMLTransformer)
		if !ok {
			continue
		}
		next, err := call(p, OpAfterGenerate, func() (string, error) { return t.AfterGenerate(ctx, html, cfg) })
		if err != nil {
			return html, err
		}
		html = next
	}
	return html, nil
}

// BeforeExport folds the artifact through every ExportTransformer.
func (r *Registry) BeforeExport(ctx context.Context, format string, art *render.Artifact) (*render.Artifact, error) {
	for _, p := range r.List() {
		t, ok := p.(ExportTransformer)
		if !ok {
			continue
		}
		next, err := call(p, OpBeforeExport, func() (*render.Artifact, error) { return t.BeforeExport(ctx, format, art) })
		if err != nil {
			return art, err
		}
		if next == nil {
			return art, wrap(p.Metadata().Name, OpBeforeExport, errors.New("returned no artifact"))
		}
		art = next
	}
	return art, nil
}

// AfterExport folds encoded bytes through every ExportTransformer.
func (r *Registry) AfterExport(ctx context.Context, format string, data []byte) ([]byte, error) {
	for _, p := range r.List() {
		t, ok := p.(ExportTransformer)
		if !ok {
			continue
		}
		next, err := call(p, OpAfterExport, func() ([]byte, error) { return t.AfterExport(ctx, format, data) })
		if err != nil {
			return data, err
		}
		data = next
	}
	return data, nil
}

// OnStream folds a section payload through every StreamTransformer.
func (r *Registry) OnStream(ctx context.Context, data stream.SectionData, streamID string) (stream.SectionData, error) {
	for _, p := range r.List() {
		t, ok := p.(StreamTransformer)
		if !ok {
			continue
		}
		next, err := call(p, OpStream, func() (stream.SectionData, error) { return t.OnStream(ctx, data, streamID) })
		if err != nil {
			return data, err
		}
		data = next
	}
	return data, nil
}

// call runs one transformation, converting errors and panics to PluginError.
func call[T any](p Plugin, op string, fn func() (T, error)) (out T, err error) {
	name := p.Metadata().Name
	defer func() {
		if rec := recover(); rec != nil {
			err = wrap(name, op, fmt.Errorf("panic: %v", rec))
		}
	}()
	out, err = fn()
	if err != nil {
		return out, wrap(name, op, err)
	}
	return out, nil
}

func wrap(name, op string, err error) error {
	return derrors.PluginError(fmt.Sprintf("plugin %s failed during %s", name, op)).
		WithCause(err).
		WithContext("plugin", name).
		WithPhase("plugin:" + op).
		Build()
}
