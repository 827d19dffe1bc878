package stream

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait = 10 * time.Second
	maxInboundFrame  = 4096
)

// WebSocketTransport delivers messages over a gorilla connection, as text
// frames for JSON and binary frames for msgpack. Heartbeats are followed by a
// ping so browsers answer without application code.
type WebSocketTransport struct {
	conn      *websocket.Conn
	codec     Codec
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWebSocketTransport wraps an upgraded connection.
func NewWebSocketTransport(conn *websocket.Conn, codec Codec) *WebSocketTransport {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &WebSocketTransport{conn: conn, codec: codec, writeWait: defaultWriteWait, done: make(chan struct{})}
}

// Done is closed after Close.
func (t *WebSocketTransport) Done() <-chan struct{} { return t.done }

func (t *WebSocketTransport) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(t.writeWait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

func (t *WebSocketTransport) Send(ctx context.Context, m Message) error {
	data, err := t.codec.Encode(m)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	deadline := t.deadline(ctx)
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	frame := websocket.TextMessage
	if t.codec.Binary() {
		frame = websocket.BinaryMessage
	}
	if err := t.conn.WriteMessage(frame, data); err != nil {
		return err
	}
	if m.Event == EventHeartbeat {
		return t.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}
	return nil
}

// ReadLoop consumes inbound frames until the connection fails. Pongs and any
// inbound frame are reported through ack.
func (t *WebSocketTransport) ReadLoop(ack func()) error {
	t.conn.SetReadLimit(maxInboundFrame)
	t.conn.SetPongHandler(func(string) error {
		ack()
		return nil
	})
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			return err
		}
		ack()
	}
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return t.conn.Close()
}
