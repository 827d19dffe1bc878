package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// trace records lifecycle calls across services.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls = append(tr.calls, s)
}

func (tr *trace) service(name string, deps ...string) Func {
	return Func{
		ServiceName: name,
		DependsOn:   deps,
		OnStart:     func(context.Context) error { tr.add("start:" + name); return nil },
		OnStop:      func(context.Context) error { tr.add("stop:" + name); return nil },
	}
}

func TestStartAllRespectsDependencies(t *testing.T) {
	tr := &trace{}
	o := NewOrchestrator(nil)
	require.NoError(t, o.Register(tr.service("watch", "http")))
	require.NoError(t, o.Register(tr.service("http", "runtime")))
	require.NoError(t, o.Register(tr.service("runtime")))
	require.NoError(t, o.Register(tr.service("schedule", "http")))

	require.NoError(t, o.StartAll(t.Context()))
	require.Equal(t, []string{"start:runtime", "start:http", "start:schedule", "start:watch"}, tr.calls)

	info, ok := o.Info("http")
	require.True(t, ok)
	require.Equal(t, StatusRunning, info.Status)
	require.False(t, info.StartedAt.IsZero())

	tr.calls = nil
	require.NoError(t, o.StopAll(t.Context()))
	require.Equal(t, []string{"stop:watch", "stop:schedule", "stop:http", "stop:runtime"}, tr.calls)
	for _, info := range o.All() {
		require.Equal(t, StatusStopped, info.Status, info.Name)
	}
}

func TestRegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	o := NewOrchestrator(nil)
	require.NoError(t, o.Register(Func{ServiceName: "http"}))
	require.Error(t, o.Register(Func{ServiceName: "http"}))
	require.Error(t, o.Register(Func{}))
}

func TestStartFailureStopsStartedServices(t *testing.T) {
	tr := &trace{}
	o := NewOrchestrator(nil)
	require.NoError(t, o.Register(tr.service("runtime")))
	require.NoError(t, o.Register(tr.service("http", "runtime")))
	require.NoError(t, o.Register(Func{
		ServiceName: "watch",
		DependsOn:   []string{"http"},
		OnStart:     func(context.Context) error { return errors.New("no inotify") },
	}))

	err := o.StartAll(t.Context())
	require.ErrorContains(t, err, "watch")
	require.Equal(t, []string{"start:runtime", "start:http", "stop:http", "stop:runtime"}, tr.calls)

	info, _ := o.Info("watch")
	require.Equal(t, StatusFailed, info.Status)
	require.Equal(t, "no inotify", info.LastError)
}

func TestCircularAndMissingDependencies(t *testing.T) {
	o := NewOrchestrator(nil)
	require.NoError(t, o.Register(Func{ServiceName: "a", DependsOn: []string{"b"}}))
	require.NoError(t, o.Register(Func{ServiceName: "b", DependsOn: []string{"a"}}))
	require.Error(t, o.StartAll(t.Context()))

	o = NewOrchestrator(nil)
	require.NoError(t, o.Register(Func{ServiceName: "a", DependsOn: []string{"ghost"}}))
	require.Error(t, o.StartAll(t.Context()))
}

func TestStopAllReportsFailures(t *testing.T) {
	o := NewOrchestrator(nil)
	require.NoError(t, o.Register(Func{
		ServiceName: "http",
		OnStop:      func(context.Context) error { return errors.New("stuck") },
	}))
	require.NoError(t, o.StartAll(t.Context()))
	require.ErrorContains(t, o.StopAll(t.Context()), "stuck")
}
