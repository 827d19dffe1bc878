// Package watch regenerates a document whenever its data file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docstream/internal/logfields"
)

// DefaultDebounce collapses editor save bursts into one trigger.
const DefaultDebounce = 500 * time.Millisecond

// Trigger is called once per debounced change.
type Trigger func(ctx context.Context, path string)

// Watcher monitors one file and calls its trigger after writes settle.
type Watcher struct {
	path     string
	trigger  Trigger
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	changes chan struct{}
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher for path. Nothing is observed until Start.
func New(path string, trigger Trigger, opts ...Option) (*Watcher, error) {
	if trigger == nil {
		return nil, fmt.Errorf("watch: trigger is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		path:     abs,
		trigger:  trigger,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		watcher:  fw,
		changes:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Start watches the file's directory, which survives editors that replace
// the file on save.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	w.logger.Info("Watching data file", logfields.Path(w.path))

	w.wg.Add(2)
	go w.watchLoop(ctx)
	go w.triggerLoop(ctx)
	return nil
}

// Stop ends both loops and releases the OS watcher. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				w.logger.Debug("Data file change detected", logfields.Path(ev.Name), logfields.Event(ev.Op.String()))
				w.notify()
			case ev.Has(fsnotify.Remove):
				w.logger.Warn("Data file removed", logfields.Path(ev.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// triggerLoop fires the trigger once no change arrived for the debounce
// period. Triggers never overlap.
func (w *Watcher) triggerLoop(ctx context.Context) {
	defer w.wg.Done()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-w.changes:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.trigger(ctx, w.path)
		}
	}
}
