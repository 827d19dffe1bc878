package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used by the mirror.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSTransport mirrors a stream onto NATS subjects as "<prefix>.<streamId>",
// so consumers outside the process can follow a run. Heartbeats stay local.
type NATSTransport struct {
	pub    Publisher
	prefix string
	codec  Codec
}

// DialNATS connects to a NATS server with a client name for this process.
func DialNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name("docstream"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSTransport publishes through pub. A nil codec means JSON.
func NewNATSTransport(pub Publisher, prefix string, codec Codec) *NATSTransport {
	if codec == nil {
		codec = JSONCodec{}
	}
	if prefix == "" {
		prefix = "docstream"
	}
	return &NATSTransport{pub: pub, prefix: prefix, codec: codec}
}

func (t *NATSTransport) AcksOnDelivery() bool { return true }

// Subject returns the subject a stream id is mirrored on.
func (t *NATSTransport) Subject(streamID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, streamID)
	return t.prefix + "." + token
}

func (t *NATSTransport) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Event == EventHeartbeat || m.StreamID == "" {
		return nil
	}
	data, err := t.codec.Encode(m)
	if err != nil {
		return err
	}
	return t.pub.Publish(t.Subject(m.StreamID), data)
}

// Close drains the underlying connection when the mirror owns one.
func (t *NATSTransport) Close() error {
	if conn, ok := t.pub.(*nats.Conn); ok {
		return conn.Drain()
	}
	return nil
}
