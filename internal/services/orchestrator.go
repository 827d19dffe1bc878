package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
)

// Orchestrator manages the lifecycle of services with dependency resolution.
type Orchestrator struct {
	mu         sync.Mutex
	services   map[string]Service
	status     map[string]Status
	startedAt  map[string]time.Time
	stoppedAt  map[string]time.Time
	lastErrors map[string]error
	logger     *slog.Logger

	startTimeout time.Duration
	stopTimeout  time.Duration
}

// NewOrchestrator creates an orchestrator; a nil logger means slog.Default().
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		services:     make(map[string]Service),
		status:       make(map[string]Status),
		startedAt:    make(map[string]time.Time),
		stoppedAt:    make(map[string]time.Time),
		lastErrors:   make(map[string]error),
		logger:       logger,
		startTimeout: 30 * time.Second,
		stopTimeout:  10 * time.Second,
	}
}

// WithTimeouts bounds each Start and Stop call.
func (o *Orchestrator) WithTimeouts(start, stop time.Duration) *Orchestrator {
	o.startTimeout = start
	o.stopTimeout = stop
	return o
}

// Register adds a service. Names must be unique and non-empty.
func (o *Orchestrator) Register(s Service) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := s.Name()
	if name == "" {
		return derrors.ValidationError("service name cannot be empty").Build()
	}
	if _, exists := o.services[name]; exists {
		return derrors.ValidationError(fmt.Sprintf("service %s already registered", name)).Build()
	}
	o.services[name] = s
	o.status[name] = StatusNotStarted
	o.logger.Debug("Service registered", logfields.Service(name), slog.Any("dependencies", s.Dependencies()))
	return nil
}

// StartAll starts every service after its dependencies. When one fails the
// services already running are stopped again.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, err := o.startOrder()
	if err != nil {
		return derrors.InternalError("failed to calculate service start order").WithCause(err).Build()
	}
	o.logger.Info("Starting services", logfields.Count(len(order)), slog.Any("order", order))

	for i, name := range order {
		if err := o.start(ctx, name); err != nil {
			o.stopInOrder(ctx, reversed(order[:i]))
			return err
		}
	}
	return nil
}

// StopAll stops running services in reverse start order and reports every
// failure.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, err := o.startOrder()
	if err != nil {
		return derrors.InternalError("failed to calculate service stop order").WithCause(err).Build()
	}
	if err := o.stopInOrder(ctx, reversed(order)); err != nil {
		return derrors.InternalError("some services failed to stop gracefully").WithCause(err).Build()
	}
	return nil
}

// Info returns the state of one service.
func (o *Orchestrator) Info(name string) (Info, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.infoLocked(name)
}

// All returns the state of every service sorted by name.
func (o *Orchestrator) All() []Info {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.services))
	for name := range o.services {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]Info, 0, len(names))
	for _, name := range names {
		info, _ := o.infoLocked(name)
		out = append(out, info)
	}
	return out
}

func (o *Orchestrator) infoLocked(name string) (Info, bool) {
	s, ok := o.services[name]
	if !ok {
		return Info{}, false
	}
	info := Info{
		Name:         name,
		Status:       o.status[name],
		Dependencies: s.Dependencies(),
		StartedAt:    o.startedAt[name],
		StoppedAt:    o.stoppedAt[name],
	}
	if err := o.lastErrors[name]; err != nil {
		info.LastError = err.Error()
	}
	return info, true
}

// startOrder is a topological sort; ties resolve by name so the order is
// stable across runs.
func (o *Orchestrator) startOrder() ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	var order []string

	var visit func(string) error
	visit = func(name string) error {
		if visiting[name] {
			return fmt.Errorf("circular dependency detected involving service: %s", name)
		}
		if visited[name] {
			return nil
		}
		s, ok := o.services[name]
		if !ok {
			return fmt.Errorf("service not found: %s", name)
		}
		visiting[name] = true
		for _, dep := range s.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[name] = false
		visited[name] = true
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(o.services))
	for name := range o.services {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (o *Orchestrator) start(ctx context.Context, name string) error {
	o.status[name] = StatusStarting
	startCtx, cancel := context.WithTimeout(ctx, o.startTimeout)
	defer cancel()

	began := time.Now()
	if err := o.services[name].Start(startCtx); err != nil {
		o.status[name] = StatusFailed
		o.lastErrors[name] = err
		return derrors.InternalError(fmt.Sprintf("failed to start service %s", name)).WithCause(err).Build()
	}
	o.status[name] = StatusRunning
	o.startedAt[name] = began
	o.lastErrors[name] = nil
	o.logger.Info("Service started", logfields.Service(name), logfields.Since(began))
	return nil
}

func (o *Orchestrator) stopInOrder(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if err := o.stop(ctx, name); err != nil {
			o.logger.Error("Error stopping service", logfields.Service(name), logfields.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) stop(ctx context.Context, name string) error {
	if o.status[name] != StatusRunning {
		return nil
	}
	o.status[name] = StatusStopping
	stopCtx, cancel := context.WithTimeout(ctx, o.stopTimeout)
	defer cancel()

	began := time.Now()
	if err := o.services[name].Stop(stopCtx); err != nil {
		o.status[name] = StatusFailed
		o.lastErrors[name] = err
		return err
	}
	o.status[name] = StatusStopped
	o.stoppedAt[name] = began
	o.logger.Info("Service stopped", logfields.Service(name), logfields.Since(began))
	return nil
}

func reversed(names []string) []string {
	out := slices.Clone(names)
	slices.Reverse(out)
	return out
}
