package normalization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mode string

func TestNormalize(t *testing.T) {
	n := New[mode]("websocket", "sse").Alias("ws", "websocket")

	tests := []struct {
		in   mode
		want mode
		ok   bool
	}{
		{"websocket", "websocket", true},
		{"  WebSocket ", "websocket", true},
		{"WS", "websocket", true},
		{"SSE", "sse", true},
		{"carrier-pigeon", "carrier-pigeon", false},
	}
	for _, tt := range tests {
		got, ok := n.Normalize(tt.in)
		require.Equal(t, tt.want, got, "input %q", tt.in)
		require.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestApplyLeavesEmpty(t *testing.T) {
	n := New[mode]("sse")
	v := mode("")
	n.Apply(&v)
	require.Empty(t, v)

	v = "Sse"
	n.Apply(&v)
	require.Equal(t, mode("sse"), v)
}

func TestKeysSorted(t *testing.T) {
	n := New[mode]("sse", "nats").Alias("ws", "websocket")
	require.Equal(t, []string{"nats", "sse", "ws"}, n.Keys())
}
