package socket

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/sockline/sockline/pkg/logging"
	"github.com/sockline/sockline/pkg/ratelimit"
)

// ErrNotOpen is returned by Send when the channel is not in the open state.
var ErrNotOpen = errors.New("socket not open")

// Dialer builds WebSocket-backed sockets. A single Dialer is safe to share
// across connections; its limiter paces dial attempts globally.
type Dialer struct {
	handshakeTimeout  time.Duration
	handshakeAttempts uint
	handshakeDelay    time.Duration
	pingInterval      time.Duration
	limiter           ratelimit.Limiter
	logger            logging.Logger
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithHandshakeTimeout bounds a single WebSocket handshake.
func WithHandshakeTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) { dl.handshakeTimeout = d }
}

// WithHandshakeAttempts sets how many times one dial retries the handshake
// before reporting failure through OnError. These retries are internal to a
// single connection attempt; lifecycle retries are counted by the
// connection layer.
func WithHandshakeAttempts(n uint) DialerOption {
	return func(dl *Dialer) { dl.handshakeAttempts = n }
}

// WithHandshakeDelay sets the base delay between handshake retries.
func WithHandshakeDelay(d time.Duration) DialerOption {
	return func(dl *Dialer) { dl.handshakeDelay = d }
}

// WithPingInterval enables a keep-alive ping ticker on established sockets.
// Zero disables it.
func WithPingInterval(d time.Duration) DialerOption {
	return func(dl *Dialer) { dl.pingInterval = d }
}

// WithLimiter paces dial attempts across all sockets built by this Dialer.
func WithLimiter(l ratelimit.Limiter) DialerOption {
	return func(dl *Dialer) { dl.limiter = l }
}

// WithDialerLogger sets the logger for dial and pump diagnostics.
func WithDialerLogger(l logging.Logger) DialerOption {
	return func(dl *Dialer) { dl.logger = l }
}

// NewDialer creates a Dialer with sane defaults: 10s handshake timeout, two
// handshake attempts per dial, dials paced at 10 per second, no keep-alive.
func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		handshakeTimeout:  10 * time.Second,
		handshakeAttempts: 2,
		handshakeDelay:    250 * time.Millisecond,
		limiter:           ratelimit.NewTokenBucketLimiter(ratelimit.PerSecond(10)),
		logger:            logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Factory returns a socket Factory backed by this Dialer.
func (d *Dialer) Factory() Factory {
	return func(addr string, h Handlers) Socket {
		return d.open(addr, h)
	}
}

func (d *Dialer) open(addr string, h Handlers) *wsSocket {
	s := &wsSocket{
		addr:         addr,
		handlers:     h,
		state:        StateConnecting,
		pingInterval: d.pingInterval,
		done:         make(chan struct{}),
		logger:       d.logger.WithFields(logging.String("addr", addr)),
	}

	dialer := &websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	go s.dial(dialer, d.limiter, d.handshakeAttempts, d.handshakeDelay)

	return s
}

// wsSocket is a gorilla/websocket-backed Socket.
type wsSocket struct {
	addr         string
	pingInterval time.Duration
	logger       logging.Logger

	mu       sync.Mutex
	handlers Handlers
	conn     *websocket.Conn
	state    ReadyState

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsSocket) dial(dialer *websocket.Dialer, limiter ratelimit.Limiter, attempts uint, delay time.Duration) {
	ctx := context.Background()

	var conn *websocket.Conn
	err := retry.Do(
		func() error {
			select {
			case <-s.done:
				return retry.Unrecoverable(errors.New("socket closed while dialing"))
			default:
			}
			if err := limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			c, _, err := dialer.Dial(s.addr, nil)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.logger.Debug("dial failed", logging.Error(err))
		s.mu.Lock()
		s.state = StateClosed
		onError := s.handlers.OnError
		s.mu.Unlock()
		if onError != nil {
			onError(errors.Wrap(err, "dial"))
		}
		return
	}

	s.mu.Lock()
	select {
	case <-s.done:
		// Closed while the handshake was in flight. The connection has no
		// owner anymore; drop it on the floor.
		s.mu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	s.conn = conn
	s.state = StateOpen
	onOpen := s.handlers.OnOpen
	s.mu.Unlock()

	s.logger.Debug("socket open")
	if onOpen != nil {
		onOpen()
	}

	if s.pingInterval > 0 {
		go s.keepAlive(conn)
	}
	s.readPump(conn)
}

func (s *wsSocket) readPump(conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.state = StateClosed
			onClose := s.handlers.OnClose
			onError := s.handlers.OnError
			s.mu.Unlock()

			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				s.logger.Debug("socket closed by peer", logging.Int("code", ce.Code))
				if onClose != nil {
					onClose(ce.Code)
				}
			} else {
				s.logger.Debug("read failed", logging.Error(err))
				if onError != nil {
					onError(err)
				}
			}
			return
		}

		s.mu.Lock()
		onMessage := s.handlers.OnMessage
		s.mu.Unlock()
		if onMessage != nil {
			onMessage(Payload{Data: data, Binary: mt == websocket.BinaryMessage})
		}
	}
}

func (s *wsSocket) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsSocket) Send(p Payload) error {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()

	if !open || conn == nil {
		return ErrNotOpen
	}

	mt := websocket.TextMessage
	if p.Binary {
		mt = websocket.BinaryMessage
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return errors.Wrap(conn.WriteMessage(mt, p.Data), "write")
}

func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		s.state = StateClosing
		s.mu.Unlock()

		close(s.done)

		if conn != nil {
			s.writeMu.Lock()
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			s.writeMu.Unlock()
			err = conn.Close()
		}

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
	})
	return err
}

func (s *wsSocket) Detach() {
	s.mu.Lock()
	s.handlers = Handlers{}
	s.mu.Unlock()
}

func (s *wsSocket) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
