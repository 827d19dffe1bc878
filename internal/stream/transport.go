package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport closed")

// Transport delivers messages to one viewer. Send is only ever called from
// the client's writer goroutine, so implementations need not serialize it.
type Transport interface {
	Send(ctx context.Context, m Message) error
	Close() error
}

// DeliveryAcker is implemented by transports where a successful Send proves
// the viewer is alive. The hub counts such deliveries as heartbeat acks.
type DeliveryAcker interface {
	AcksOnDelivery() bool
}

func acksOnDelivery(t Transport) bool {
	a, ok := t.(DeliveryAcker)
	return ok && a.AcksOnDelivery()
}

// ChannelTransport hands messages to an in-process consumer.
type ChannelTransport struct {
	ch     chan Message
	done   chan struct{}
	closed sync.Once
}

// NewChannelTransport creates a transport with the given channel buffer.
func NewChannelTransport(buffer int) *ChannelTransport {
	return &ChannelTransport{ch: make(chan Message, buffer), done: make(chan struct{})}
}

// Messages is the consumer side. It is never closed; watch Done instead.
func (t *ChannelTransport) Messages() <-chan Message { return t.ch }

// Done is closed once the hub (or the consumer) closes the transport.
func (t *ChannelTransport) Done() <-chan struct{} { return t.done }

func (t *ChannelTransport) AcksOnDelivery() bool { return true }

func (t *ChannelTransport) Send(ctx context.Context, m Message) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}
	select {
	case t.ch <- m:
		return nil
	case <-t.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *ChannelTransport) Close() error {
	t.closed.Do(func() { close(t.done) })
	return nil
}
