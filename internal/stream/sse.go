package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sync"
)

// SSETransport writes messages as Server-Sent Events on a held-open response.
type SSETransport struct {
	mu      sync.Mutex
	w       *bufio.Writer
	flusher http.Flusher
	closed  bool
	done    chan struct{}
}

// NewSSETransport prepares w for event streaming and writes the connected preamble.
func NewSSETransport(w http.ResponseWriter) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	t := &SSETransport{w: bufio.NewWriter(w), flusher: flusher, done: make(chan struct{})}
	if _, err := t.w.WriteString(": connected\n\n"); err != nil {
		return nil, err
	}
	if err := t.w.Flush(); err != nil {
		return nil, err
	}
	flusher.Flush()
	return t, nil
}

func (t *SSETransport) AcksOnDelivery() bool { return true }

// Done is closed when the hub releases the viewer; the handler returns then.
func (t *SSETransport) Done() <-chan struct{} { return t.done }

func (t *SSETransport) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := JSONCodec{}.Encode(m)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	if _, err := fmt.Fprintf(t.w, "id: %s\nevent: %s\ndata: %s\n\n", m.ID, m.Event, data); err != nil {
		return err
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Close waits for an in-flight Send, so nothing touches the response afterwards.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}
