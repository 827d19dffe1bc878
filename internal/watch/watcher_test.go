package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresTrigger(t *testing.T) {
	_, err := New("doc.json", nil)
	require.Error(t, err)
}

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	var calls atomic.Int32
	var got atomic.Value
	w, err := New(path, func(_ context.Context, p string) {
		got.Store(p)
		calls.Add(1)
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(func() { _ = w.Stop() })

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o600))
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, calls.Load())

	for range 3 {
		require.NoError(t, os.WriteFile(path, []byte(`{"cover":{}}`), 0o600))
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, w.Path(), got.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	w, err := New(path, func(context.Context, string) {})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	require.NoError(t, w.Stop())
	require.NotPanics(t, func() { _ = w.Stop() })
}
