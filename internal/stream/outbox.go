package stream

import "sync"

// outbox is a bounded per-client FIFO. When full it evicts the oldest
// non-critical message; critical messages are always admitted.
type outbox struct {
	mu     sync.Mutex
	items  []Message
	limit  int
	sealed bool
	notify chan struct{}
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit, notify: make(chan struct{}, 1)}
}

// push enqueues m and returns the message evicted to make room, if any.
// It returns false when the outbox no longer accepts messages.
func (o *outbox) push(m Message) (dropped *Message, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed {
		return nil, false
	}
	if len(o.items) >= o.limit {
		victim := -1
		for i := range o.items {
			if !o.items[i].Critical() {
				victim = i
				break
			}
		}
		switch {
		case victim >= 0:
			d := o.items[victim]
			dropped = &d
			o.items = append(o.items[:victim], o.items[victim+1:]...)
		case !m.Critical():
			// everything buffered is critical; the incoming message is the oldest droppable one
			return &m, true
		}
	}
	o.items = append(o.items, m)
	o.signal()
	return dropped, true
}

func (o *outbox) signal() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// pop blocks until a message is available, the outbox is sealed and
// drained, or done is closed.
func (o *outbox) pop(done <-chan struct{}) (Message, bool) {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			m := o.items[0]
			o.items[0] = Message{}
			o.items = o.items[1:]
			if len(o.items) == 0 {
				o.items = nil
			}
			o.mu.Unlock()
			return m, true
		}
		sealed := o.sealed
		o.mu.Unlock()
		if sealed {
			return Message{}, false
		}
		select {
		case <-o.notify:
		case <-done:
			return Message{}, false
		}
	}
}

// seal stops accepting messages; buffered ones are still delivered.
func (o *outbox) seal() {
	o.mu.Lock()
	o.sealed = true
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
