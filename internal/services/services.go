// Package services starts and stops the long-running parts of "docstream
// serve" in dependency order.
package services

import (
	"context"
	"time"
)

// Service is a component with a managed lifecycle.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Dependencies names services that must be running first.
	Dependencies() []string
}

// Status is the lifecycle state of a registered service.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusStarting   Status = "starting"
	StatusRunning    Status = "running"
	StatusStopping   Status = "stopping"
	StatusStopped    Status = "stopped"
	StatusFailed     Status = "failed"
)

// Info describes a registered service.
type Info struct {
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	Dependencies []string  `json:"dependencies,omitempty"`
	StartedAt    time.Time `json:"startedAt,omitzero"`
	StoppedAt    time.Time `json:"stoppedAt,omitzero"`
	LastError    string    `json:"lastError,omitempty"`
}

// Func adapts plain functions to Service. Nil functions are no-ops.
type Func struct {
	ServiceName string
	DependsOn   []string
	OnStart     func(ctx context.Context) error
	OnStop      func(ctx context.Context) error
}

func (f Func) Name() string           { return f.ServiceName }
func (f Func) Dependencies() []string { return f.DependsOn }

func (f Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}
