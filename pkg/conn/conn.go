// Package conn maintains a logical connection over an unreliable physical
// socket. It owns the connection lifecycle: creating sockets through a
// factory, deciding whether a closure triggers a retry or a permanent
// disconnect, bounding retry attempts, and classifying inbound payloads
// before fanning them out to registered listeners.
//
// A Connection survives any number of physical socket replacements. Each
// replacement is one connection attempt; listeners observe the lifecycle
// through connected / disconnected / permanently-disconnected events rather
// than through returned errors.
package conn

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sockline/sockline/pkg/events"
	"github.com/sockline/sockline/pkg/logging"
	"github.com/sockline/sockline/pkg/socket"
)

// Stats is a snapshot of per-connection counters.
type Stats struct {
	ConnectAttempts  int64
	Retries          int64
	MessagesReceived int64
	TransportErrors  int64
}

// Connection is a logical connection to addr, generic over the decoded
// shape of inbound JSON messages. Construct with New; configuration is
// fixed at construction.
type Connection[T any] struct {
	addr         string
	maxRetries   int
	retryOnClose bool
	retryDelay   time.Duration
	factory      socket.Factory
	logger       logging.Logger

	// mu guards the socket slot, retry counter and epoch. Events are never
	// emitted while holding it, so listeners may re-enter Connect or
	// Disconnect freely.
	mu      sync.Mutex
	sock    socket.Socket
	retries int

	// epoch advances on every Connect, Disconnect and scheduled retry.
	// Socket callbacks and retry timers carry the epoch they were created
	// under and no-op once it has moved on, so a superseded socket or a
	// stale timer cannot emit into a newer connection attempt.
	epoch uint64

	lifecycle *events.Emitter[Event, func()]
	messages  *events.Emitter[Event, func(T)]
	payloads  *events.Emitter[Event, func(socket.Payload)]
	binaries  *events.Emitter[Event, func([]byte)]

	statsMu sync.Mutex
	stats   Stats
}

// New creates a Connection to addr. It does not connect; call Connect.
func New[T any](addr string, opts ...Option) *Connection[T] {
	cfg := config{
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     logging.NewLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.factory == nil {
		cfg.factory = socket.NewDialer(socket.WithDialerLogger(cfg.logger)).Factory()
	}

	c := &Connection[T]{
		addr:         addr,
		maxRetries:   cfg.maxRetries,
		retryOnClose: cfg.retryOnClose,
		retryDelay:   cfg.retryDelay,
		factory:      cfg.factory,
		logger:       cfg.logger.WithFields(logging.String("addr", addr)),
	}

	onPanic := func(r any) {
		c.logger.Error("listener panic recovered", logging.Any("panic", r))
	}
	c.lifecycle = events.NewEmitter[Event, func()](onPanic)
	c.messages = events.NewEmitter[Event, func(T)](onPanic)
	c.payloads = events.NewEmitter[Event, func(socket.Payload)](onPanic)
	c.binaries = events.NewEmitter[Event, func([]byte)](onPanic)

	return c
}

// Connect starts a new connection attempt. Any held socket is superseded:
// detached, closed best-effort, and announced with a disconnected event.
// Calling Connect after a permanent disconnect leaves the terminal state
// and begins a fresh retry cycle.
func (c *Connection[T]) Connect() {
	c.mu.Lock()
	c.epoch++
	ep := c.epoch
	old := c.sock
	c.sock = nil
	c.mu.Unlock()

	if old != nil {
		old.Detach()
		_ = old.Close()
		c.emitLifecycle(EventDisconnected)
	}

	c.countConnectAttempt()
	c.logger.Debug("connecting", logging.Uint64("epoch", ep))

	c.mu.Lock()
	if ep != c.epoch {
		// A listener of the superseding disconnected event re-entered
		// Connect or Disconnect; that call owns the connection now.
		c.mu.Unlock()
		return
	}

	// The factory is called with mu held: its handlers fire from other
	// goroutines (never synchronously from construction), so the first
	// event a new socket produces serializes behind the slot store below.
	c.sock = c.factory(c.addr, socket.Handlers{
		OnOpen:    func() { c.handleOpen(ep) },
		OnClose:   func(code int) { c.handleClose(ep, code) },
		OnError:   func(err error) { c.handleError(ep, err) },
		OnMessage: func(p socket.Payload) { c.handleMessage(ep, p) },
	})
	c.mu.Unlock()
}

// Disconnect permanently tears the connection down. The held socket is
// detached before it is closed, so its own close callback cannot trigger a
// retry. Does nothing visible when no socket is held, but still invalidates
// any pending scheduled retry.
func (c *Connection[T]) Disconnect() {
	c.mu.Lock()
	c.epoch++
	s := c.sock
	c.sock = nil
	c.mu.Unlock()

	if s == nil {
		return
	}

	s.Detach()
	_ = s.Close()

	c.logger.Info("disconnected by request")
	c.emitLifecycle(EventDisconnected)
	c.emitLifecycle(EventPermanentlyDisconnected)
}

// Send JSON-encodes v and writes it as a text payload. With no socket held
// it silently drops the value. An encoding failure is returned to the
// caller; a transport failure is not, the retry machinery deals with it.
func (c *Connection[T]) Send(v any) error {
	c.mu.Lock()
	s := c.sock
	c.mu.Unlock()

	if s == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode outbound message")
	}

	if err := s.Send(socket.Text(data)); err != nil {
		c.logger.Warn("send failed", logging.Error(err))
	}
	return nil
}

// SendRaw writes p unmodified, text or binary, with the same held-socket
// guard as Send and no serialization step.
func (c *Connection[T]) SendRaw(p socket.Payload) {
	c.mu.Lock()
	s := c.sock
	c.mu.Unlock()

	if s == nil {
		return
	}

	if err := s.Send(p); err != nil {
		c.logger.Warn("raw send failed", logging.Error(err))
	}
}

// ReadyState reports the held socket's wire state code, or StateConnecting
// (0) when no socket is held.
func (c *Connection[T]) ReadyState() socket.ReadyState {
	c.mu.Lock()
	s := c.sock
	c.mu.Unlock()

	if s == nil {
		return socket.StateConnecting
	}
	return s.ReadyState()
}

// Stats returns a snapshot of the connection's counters.
func (c *Connection[T]) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// On registers a listener for one of the lifecycle kinds: EventConnected,
// EventDisconnected or EventPermanentlyDisconnected. Message kinds have
// their own typed registration methods.
func (c *Connection[T]) On(kind Event, fn func()) events.ListenerID {
	switch kind {
	case EventConnected, EventDisconnected, EventPermanentlyDisconnected:
		return c.lifecycle.On(kind, fn)
	default:
		return 0
	}
}

// OnMessage registers a listener for decoded inbound messages.
func (c *Connection[T]) OnMessage(fn func(T)) events.ListenerID {
	return c.messages.On(EventMessage, fn)
}

// OnRawMessage registers a listener that sees every inbound payload.
func (c *Connection[T]) OnRawMessage(fn func(socket.Payload)) events.ListenerID {
	return c.payloads.On(EventRawMessage, fn)
}

// OnInvalidMessage registers a listener for payloads that do not decode.
func (c *Connection[T]) OnInvalidMessage(fn func(socket.Payload)) events.ListenerID {
	return c.payloads.On(EventInvalidMessage, fn)
}

// OnBinaryMessage registers a listener for binary payloads.
func (c *Connection[T]) OnBinaryMessage(fn func([]byte)) events.ListenerID {
	return c.binaries.On(EventBinaryMessage, fn)
}

// Off removes a previously registered listener. Removing an unknown id is
// a no-op.
func (c *Connection[T]) Off(kind Event, id events.ListenerID) {
	switch kind {
	case EventConnected, EventDisconnected, EventPermanentlyDisconnected:
		c.lifecycle.Off(kind, id)
	case EventMessage:
		c.messages.Off(kind, id)
	case EventRawMessage, EventInvalidMessage:
		c.payloads.Off(kind, id)
	case EventBinaryMessage:
		c.binaries.Off(kind, id)
	}
}

func (c *Connection[T]) handleOpen(ep uint64) {
	c.mu.Lock()
	if ep != c.epoch {
		c.mu.Unlock()
		return
	}
	c.retries = 0
	c.mu.Unlock()

	c.logger.Info("connected")
	c.emitLifecycle(EventConnected)
}

func (c *Connection[T]) handleClose(ep uint64, code int) {
	c.mu.Lock()
	if ep != c.epoch {
		c.mu.Unlock()
		return
	}

	// A normal closure is the peer saying "reconnect", not a rejection.
	// Anything else retries only when retry-on-close is configured and the
	// socket slot was not already emptied by the error path.
	if code == socket.NormalClosureCode || (c.retryOnClose && c.sock != nil) {
		c.scheduleRetryLocked()
		c.mu.Unlock()

		c.logger.Debug("socket closed, retry scheduled", logging.Int("code", code))
		c.emitLifecycle(EventDisconnected)
		return
	}

	c.sock = nil
	c.mu.Unlock()

	c.logger.Info("socket closed", logging.Int("code", code))
	c.emitLifecycle(EventDisconnected)
	c.emitLifecycle(EventPermanentlyDisconnected)
}

func (c *Connection[T]) handleError(ep uint64, err error) {
	c.statsMu.Lock()
	c.stats.TransportErrors++
	c.statsMu.Unlock()

	c.mu.Lock()
	if ep != c.epoch {
		c.mu.Unlock()
		return
	}
	c.scheduleRetryLocked()
	c.mu.Unlock()

	c.logger.Warn("socket error, retry scheduled", logging.Error(err))
	c.emitLifecycle(EventDisconnected)
}

// scheduleRetryLocked discards the held socket, advances the epoch so that
// anything still referencing the old one goes quiet, and arms the retry
// timer. Callers emit the disconnected event after releasing mu.
func (c *Connection[T]) scheduleRetryLocked() {
	if s := c.sock; s != nil {
		s.Detach()
		_ = s.Close()
		c.sock = nil
	}

	c.epoch++
	ep := c.epoch
	time.AfterFunc(c.retryDelay, func() { c.retryAttempt(ep) })
}

func (c *Connection[T]) retryAttempt(ep uint64) {
	c.mu.Lock()
	if ep != c.epoch {
		// A Connect, Disconnect or newer failure superseded this timer.
		c.mu.Unlock()
		return
	}
	c.retries++
	attempt := c.retries
	exhausted := c.maxRetries != 0 && attempt > c.maxRetries
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Retries++
	c.statsMu.Unlock()

	if exhausted {
		c.logger.Warn("retries exhausted", logging.Int("max_retries", c.maxRetries))
		c.emitLifecycle(EventDisconnected)
		c.emitLifecycle(EventPermanentlyDisconnected)
		return
	}

	c.logger.Debug("reconnecting", logging.Int("attempt", attempt))
	c.Connect()
}

// handleMessage classifies one inbound payload and fires the matching
// events in a fixed order: raw always comes first; a text payload decoding
// to non-null JSON fires message and stops; a binary payload fires binary;
// everything that is not a decoded message ends as invalid. Binary payloads
// therefore fire raw, binary and invalid for the same payload.
func (c *Connection[T]) handleMessage(ep uint64, p socket.Payload) {
	c.mu.Lock()
	live := ep == c.epoch
	c.mu.Unlock()
	if !live {
		return
	}

	c.statsMu.Lock()
	c.stats.MessagesReceived++
	c.statsMu.Unlock()

	c.payloads.Emit(EventRawMessage, func(fn func(socket.Payload)) { fn(p) })

	if !p.Binary {
		if v, ok := decodePayload[T](p.Data); ok {
			c.messages.Emit(EventMessage, func(fn func(T)) { fn(v) })
			return
		}
	} else {
		c.binaries.Emit(EventBinaryMessage, func(fn func([]byte)) { fn(p.Data) })
	}

	c.payloads.Emit(EventInvalidMessage, func(fn func(socket.Payload)) { fn(p) })
}

func (c *Connection[T]) emitLifecycle(kind Event) {
	c.lifecycle.Emit(kind, func(fn func()) { fn() })
}

func (c *Connection[T]) countConnectAttempt() {
	c.statsMu.Lock()
	c.stats.ConnectAttempts++
	c.statsMu.Unlock()
}
