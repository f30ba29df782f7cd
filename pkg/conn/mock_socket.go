package conn

import (
	"sync"

	"github.com/sockline/sockline/pkg/socket"
)

// MockSocket is a scripted socket for exercising the state machine without
// a network. Tests drive it through Open, PeerClose, Fail and Deliver.
type MockSocket struct {
	mu       sync.Mutex
	handlers socket.Handlers
	state    socket.ReadyState
	sent     []socket.Payload
	detached bool
	closed   bool

	sendErr error
}

// Open simulates the handshake completing.
func (m *MockSocket) Open() {
	m.mu.Lock()
	m.state = socket.StateOpen
	fn := m.handlers.OnOpen
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// PeerClose simulates the peer closing the channel with a close code.
func (m *MockSocket) PeerClose(code int) {
	m.mu.Lock()
	m.state = socket.StateClosed
	fn := m.handlers.OnClose
	m.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

// Fail simulates a transport fault with no close code.
func (m *MockSocket) Fail(err error) {
	m.mu.Lock()
	m.state = socket.StateClosed
	fn := m.handlers.OnError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Deliver simulates an inbound payload.
func (m *MockSocket) Deliver(p socket.Payload) {
	m.mu.Lock()
	fn := m.handlers.OnMessage
	m.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// Sent returns a copy of every payload written through the socket.
func (m *MockSocket) Sent() []socket.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]socket.Payload, len(m.sent))
	copy(out, m.sent)
	return out
}

// Detached reports whether the owner detached the handlers.
func (m *MockSocket) Detached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detached
}

// Closed reports whether the owner closed the socket.
func (m *MockSocket) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetSendError makes subsequent Send calls fail with err.
func (m *MockSocket) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

func (m *MockSocket) Send(p socket.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, p)
	return nil
}

func (m *MockSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.state = socket.StateClosed
	return nil
}

func (m *MockSocket) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached = true
	m.handlers = socket.Handlers{}
}

func (m *MockSocket) ReadyState() socket.ReadyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// MockFactory produces MockSockets and records every one it created.
type MockFactory struct {
	mu      sync.Mutex
	created []*MockSocket

	// AutoOpen fires OnOpen asynchronously after each socket is created,
	// simulating a fast handshake.
	AutoOpen bool

	// FailAll fires OnError asynchronously after each socket is created,
	// simulating an unreachable endpoint.
	FailAll bool

	// FailErr is the error used by FailAll.
	FailErr error
}

// Factory returns a socket.Factory producing MockSockets.
func (f *MockFactory) Factory() socket.Factory {
	return func(addr string, h socket.Handlers) socket.Socket {
		s := &MockSocket{handlers: h, state: socket.StateConnecting}

		f.mu.Lock()
		f.created = append(f.created, s)
		autoOpen, failAll, failErr := f.AutoOpen, f.FailAll, f.FailErr
		f.mu.Unlock()

		// Fired from a fresh goroutine so the handshake completes after the
		// state machine has taken ownership of the socket, as a real dial
		// would.
		if failAll {
			go s.Fail(failErr)
		} else if autoOpen {
			go s.Open()
		}
		return s
	}
}

// Created reports how many sockets the factory has built.
func (f *MockFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// Last returns the most recently created socket, or nil.
func (f *MockFactory) Last() *MockSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// Socket returns the i-th created socket.
func (f *MockFactory) Socket(i int) *MockSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[i]
}
