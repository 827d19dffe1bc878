package stream

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docstream/internal/config"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/metrics"
)

const defaultSendTimeout = 10 * time.Second

// Options tunes a Hub. Zero values fall back to the streaming defaults.
type Options struct {
	BufferSize        int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxClients        int
	SendTimeout       time.Duration
	Logger            *slog.Logger
	Recorder          metrics.Recorder
	// OnWarning receives dropped-message and disconnect notices.
	OnWarning func(warning, context string)

	now func() time.Time
}

// OptionsFromConfig maps the streaming section of a run config onto hub options.
func OptionsFromConfig(cfg config.StreamingConfig) Options {
	return Options{
		BufferSize:        cfg.BufferSize,
		HeartbeatInterval: cfg.Heartbeat,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		MaxClients:        cfg.MaxClients,
	}
}

// Hub fans stream messages out to subscribed viewers. Each stream id is an
// ordered channel: every client sees the messages published to it in publish
// order, from the moment it subscribed. There is no replay and no session
// resumption; a reconnecting viewer is a new subscription.
type Hub struct {
	opts   Options
	logger *slog.Logger
	rec    metrics.Recorder
	now    func() time.Time

	mu      sync.RWMutex
	clients map[string]*client
	streams map[string]*streamState
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type streamState struct {
	mu     sync.Mutex
	subs   map[string]*client
	closed bool
}

type client struct {
	info      ClientInfo
	transport Transport
	box       *outbox
	acks      bool
	lastSeen  atomic.Int64
	done      chan struct{}
	stopOnce  sync.Once

	// guarded by Hub.mu
	streams map[string]struct{}
	sealed  bool
}

func (c *client) touch(t time.Time) { c.lastSeen.Store(t.UnixNano()) }

func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close()
	})
}

type droppedNotice struct {
	clientID string
	msg      Message
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	StreamID string
	ClientID string
	hub      *Hub
}

// Unsubscribe removes this stream from the client. A client left with no
// subscriptions is closed once its buffered messages are delivered.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.unsubscribe(s.StreamID, s.ClientID)
}

// NewHub starts a hub and, when a heartbeat interval is set, its heartbeat loop.
func NewHub(opts Options) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = config.DefaultBufferSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		opts:    opts,
		logger:  logger,
		rec:     metrics.OrNoop(opts.Recorder),
		now:     opts.now,
		clients: make(map[string]*client),
		streams: make(map[string]*streamState),
		ctx:     ctx,
		cancel:  cancel,
	}
	if opts.HeartbeatInterval > 0 {
		h.wg.Add(1)
		go h.heartbeatLoop(opts.HeartbeatInterval)
	}
	return h
}

// Subscribe attaches a client to streamID. The first subscription for a
// client id registers the client and starts its writer; later ones must use
// the same transport.
func (h *Hub) Subscribe(streamID string, info ClientInfo, t Transport) (*Subscription, error) {
	if streamID == "" {
		return nil, derrors.StreamError("stream id is required").WithPhase("subscribe").Build()
	}
	if t == nil {
		return nil, derrors.StreamError("transport is required").WithPhase("subscribe").Build()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, derrors.StreamError("hub is shut down").WithPhase("subscribe").Build()
	}
	if info.ID == "" {
		info.ID = uuid.NewString()
	}

	c, existing := h.clients[info.ID]
	switch {
	case existing && c.transport != t:
		h.mu.Unlock()
		return nil, derrors.StreamError("client is attached to another transport").
			WithContext(derrors.ContextClientID, info.ID).Build()
	case existing && c.sealed:
		h.mu.Unlock()
		return nil, derrors.StreamError("client is closing").
			WithContext(derrors.ContextClientID, info.ID).Build()
	case !existing:
		if h.opts.MaxClients > 0 && len(h.clients) >= h.opts.MaxClients {
			h.mu.Unlock()
			h.rec.IncDisconnect(metrics.DisconnectRejected)
			h.logger.Warn("Viewer rejected, hub at capacity",
				logfields.ClientID(info.ID), logfields.StreamID(streamID), logfields.Count(h.opts.MaxClients))
			return nil, derrors.CapacityExceededError("maximum concurrent clients reached").
				WithContext("max_clients", h.opts.MaxClients).
				WithContext(derrors.ContextStreamID, streamID).Build()
		}
		if info.ConnectedAt.IsZero() {
			info.ConnectedAt = h.now()
		}
		c = &client{
			info:      info,
			transport: t,
			box:       newOutbox(h.opts.BufferSize),
			acks:      acksOnDelivery(t),
			done:      make(chan struct{}),
			streams:   make(map[string]struct{}),
		}
		c.touch(h.now())
		h.clients[info.ID] = c
		h.wg.Add(1)
		go h.writeLoop(c)
	}

	st := h.streams[streamID]
	if st == nil {
		st = &streamState{subs: make(map[string]*client)}
		h.streams[streamID] = st
	}
	st.mu.Lock()
	st.subs[c.info.ID] = c
	st.mu.Unlock()
	c.streams[streamID] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	if !existing {
		h.rec.SetStreamClients(total)
		h.logger.Info("Viewer connected",
			logfields.ClientID(info.ID), logfields.StreamID(streamID),
			logfields.Transport(info.Transport), logfields.RemoteAddr(info.Address))
	}
	return &Subscription{StreamID: streamID, ClientID: c.info.ID, hub: h}, nil
}

func (h *Hub) unsubscribe(streamID, clientID string) {
	h.mu.Lock()
	c := h.clients[clientID]
	if c == nil {
		h.mu.Unlock()
		return
	}
	if st := h.streams[streamID]; st != nil {
		st.mu.Lock()
		delete(st.subs, clientID)
		empty := len(st.subs) == 0
		st.mu.Unlock()
		if empty {
			delete(h.streams, streamID)
		}
	}
	delete(c.streams, streamID)
	if len(c.streams) == 0 && !c.sealed {
		c.sealed = true
		c.box.seal()
	}
	h.mu.Unlock()
}

func (h *Hub) stamp(m Message, streamID string) Message {
	if m.ID == "" {
		m.ID = uuid.Must(uuid.NewV7()).String()
	}
	if m.Timestamp == 0 {
		m.Timestamp = h.now().UnixMilli()
	}
	m.StreamID = streamID
	return m
}

// Publish enqueues m for every client subscribed to streamID at call time.
// It never blocks on a slow client: a full client buffer evicts its oldest
// non-critical message instead.
func (h *Hub) Publish(streamID string, m Message) error {
	h.mu.RLock()
	closed := h.closed
	st := h.streams[streamID]
	h.mu.RUnlock()
	if closed {
		return derrors.StreamError("hub is shut down").WithContext(derrors.ContextStreamID, streamID).Build()
	}
	if st == nil {
		return nil
	}
	m = h.stamp(m, streamID)
	drops := st.deliver(m)
	h.rec.IncStreamMessage(string(m.Event))
	h.reportDrops(streamID, drops)
	return nil
}

func (st *streamState) deliver(m Message) []droppedNotice {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil
	}
	var drops []droppedNotice
	for id, c := range st.subs {
		if d, ok := c.box.push(m); ok && d != nil {
			drops = append(drops, droppedNotice{clientID: id, msg: *d})
		}
	}
	return drops
}

// CloseStream delivers a terminal complete or error message to every
// subscriber of streamID and then removes the stream. Messages already
// queued for a client are delivered before it is released.
func (h *Hub) CloseStream(streamID string, terminal Message) error {
	if !terminal.Event.Terminal() {
		return derrors.StreamError("stream must be closed with a complete or error message").
			WithContext(derrors.ContextStreamID, streamID).
			WithContext("event", string(terminal.Event)).Build()
	}
	terminal = h.stamp(terminal, streamID)

	h.mu.Lock()
	st := h.streams[streamID]
	if st == nil {
		h.mu.Unlock()
		return nil
	}
	delete(h.streams, streamID)

	var drops []droppedNotice
	st.mu.Lock()
	recipients := st.subs
	for id, c := range recipients {
		if d, ok := c.box.push(terminal); ok && d != nil {
			drops = append(drops, droppedNotice{clientID: id, msg: *d})
		}
	}
	st.subs = make(map[string]*client)
	st.closed = true
	st.mu.Unlock()

	for _, c := range recipients {
		delete(c.streams, streamID)
		if len(c.streams) == 0 && !c.sealed {
			c.sealed = true
			c.box.seal()
		}
	}
	h.mu.Unlock()

	h.rec.IncStreamMessage(string(terminal.Event))
	h.reportDrops(streamID, drops)
	h.logger.Info("Stream closed",
		logfields.StreamID(streamID), logfields.Event(string(terminal.Event)), logfields.Count(len(recipients)))
	return nil
}

func (h *Hub) reportDrops(streamID string, drops []droppedNotice) {
	for _, d := range drops {
		h.rec.IncDroppedMessage()
		h.logger.Warn("Dropped message for slow viewer",
			logfields.StreamID(streamID), logfields.ClientID(d.clientID),
			logfields.Event(string(d.msg.Event)), slog.String("message_id", d.msg.ID))
		h.warn("dropped "+string(d.msg.Event)+" message "+d.msg.ID, "client:"+d.clientID)
	}
}

func (h *Hub) warn(warning, context string) {
	if h.opts.OnWarning != nil {
		h.opts.OnWarning(warning, context)
	}
}

func (h *Hub) sendContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, h.opts.SendTimeout)
}

func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	for {
		m, ok := c.box.pop(c.done)
		if !ok {
			break
		}
		ctx, cancel := h.sendContext()
		err := c.transport.Send(ctx, m)
		cancel()
		if err != nil {
			h.drop(c, metrics.DisconnectDelivery, err)
			return
		}
		if c.acks {
			c.touch(h.now())
		}
	}
	h.drop(c, metrics.DisconnectClosed, nil)
}

// drop unregisters c and closes its transport. Only the first call for a
// registered client is reported.
func (h *Hub) drop(c *client, reason metrics.DisconnectReason, cause error) {
	h.mu.Lock()
	if cur, ok := h.clients[c.info.ID]; !ok || cur != c {
		h.mu.Unlock()
		c.stop()
		return
	}
	delete(h.clients, c.info.ID)
	for id := range c.streams {
		st := h.streams[id]
		if st == nil {
			continue
		}
		st.mu.Lock()
		delete(st.subs, c.info.ID)
		empty := len(st.subs) == 0
		st.mu.Unlock()
		if empty {
			delete(h.streams, id)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	c.stop()
	h.rec.IncDisconnect(reason)
	h.rec.SetStreamClients(total)

	if cause == nil {
		h.logger.Info("Viewer disconnected", logfields.ClientID(c.info.ID), slog.String("reason", string(reason)))
		return
	}
	err := derrors.WrapError(cause, derrors.CategoryStream, "viewer disconnected").
		WithKind(derrors.KindStream).
		Warning().
		WithContext(derrors.ContextClientID, c.info.ID).
		WithContext("reason", string(reason)).Build()
	h.logger.Warn("Viewer dropped", logfields.ClientID(c.info.ID), slog.String("reason", string(reason)), logfields.Error(err))
	h.warn(err.Error(), "client:"+c.info.ID)
}

// Disconnect removes a client immediately, discarding anything still buffered.
func (h *Hub) Disconnect(clientID string) {
	h.mu.RLock()
	c := h.clients[clientID]
	h.mu.RUnlock()
	if c != nil {
		h.drop(c, metrics.DisconnectClosed, nil)
	}
}

// Ack records a heartbeat acknowledgment from the client.
func (h *Hub) Ack(clientID string) bool {
	h.mu.RLock()
	c := h.clients[clientID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	c.touch(h.now())
	return true
}

func (h *Hub) heartbeatLoop(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

// beat disconnects silent clients, then queues a heartbeat for the rest.
func (h *Hub) beat() {
	h.checkLiveness(h.now())
	for _, c := range h.snapshot() {
		if d, ok := c.box.push(h.stamp(Message{Event: EventHeartbeat}, "")); ok && d != nil {
			h.reportDrops("", []droppedNotice{{clientID: c.info.ID, msg: *d}})
		}
	}
}

func (h *Hub) checkLiveness(now time.Time) {
	if h.opts.HeartbeatTimeout <= 0 {
		return
	}
	for _, c := range h.snapshot() {
		last := time.Unix(0, c.lastSeen.Load())
		if now.Sub(last) > h.opts.HeartbeatTimeout {
			h.drop(c, metrics.DisconnectHeartbeat, derrors.StreamError("heartbeat timeout").
				WithContext("silent_for", now.Sub(last).String()).Build())
		}
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Clients lists connected viewers ordered by connection time.
func (h *Hub) Clients() []ClientInfo {
	h.mu.RLock()
	out := make([]ClientInfo, 0, len(h.clients))
	for _, c := range h.clients {
		info := c.info
		info.Subscriptions = make([]string, 0, len(c.streams))
		for id := range c.streams {
			info.Subscriptions = append(info.Subscriptions, id)
		}
		slices.Sort(info.Subscriptions)
		out = append(out, info)
	}
	h.mu.RUnlock()
	slices.SortFunc(out, func(a, b ClientInfo) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Subscribers counts the clients currently subscribed to streamID.
func (h *Hub) Subscribers(streamID string) int {
	h.mu.RLock()
	st := h.streams[streamID]
	h.mu.RUnlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subs)
}

// Shutdown closes every client and waits for writers to exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	victims := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		victims = append(victims, c)
	}
	h.clients = make(map[string]*client)
	h.streams = make(map[string]*streamState)
	h.mu.Unlock()

	h.cancel()
	for _, c := range victims {
		c.stop()
	}
	h.rec.SetStreamClients(0)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
