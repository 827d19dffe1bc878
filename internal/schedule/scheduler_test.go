package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEveryRunsTask(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)

	var runs atomic.Int32
	id, err := s.Every("regenerate", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, 1, s.Jobs())

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestStopCancelsTaskContext(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)

	started := make(chan struct{}, 1)
	var canceled atomic.Bool
	_, err = s.Every("slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	})
	require.NoError(t, err)

	s.Start()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}
	require.NoError(t, s.Stop())
	require.Eventually(t, canceled.Load, time.Second, 10*time.Millisecond)
}

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	_, err = s.Every("never", 0, func(context.Context) error { return nil })
	require.Error(t, err)
}
