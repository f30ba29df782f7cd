package socket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MockServer is an in-process WebSocket server for exercising sockets and
// connections in tests. By default it echoes text frames back to the sender.
type MockServer struct {
	server *httptest.Server
	url    string

	mu            sync.Mutex
	connections   map[*websocket.Conn]bool
	totalAccepted int
	onConnect     func(*websocket.Conn)
	received      []Payload

	rejectUpgrades bool
	echo           bool
}

// NewMockServer starts a mock server. Call Close when done.
func NewMockServer() *MockServer {
	m := &MockServer{
		connections: make(map[*websocket.Conn]bool),
		echo:        true,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	m.url = "ws" + strings.TrimPrefix(m.server.URL, "http")
	return m
}

// URL returns the ws:// address of the server.
func (m *MockServer) URL() string { return m.url }

// Close shuts the server down.
func (m *MockServer) Close() { m.server.Close() }

// SetRejectUpgrades makes the server answer upgrade requests with 403.
func (m *MockServer) SetRejectUpgrades(reject bool) {
	m.mu.Lock()
	m.rejectUpgrades = reject
	m.mu.Unlock()
}

// SetEcho controls whether text frames are echoed back. Defaults to on.
func (m *MockServer) SetEcho(echo bool) {
	m.mu.Lock()
	m.echo = echo
	m.mu.Unlock()
}

// OnConnect registers a callback invoked whenever a client connects.
func (m *MockServer) OnConnect(fn func(*websocket.Conn)) {
	m.mu.Lock()
	m.onConnect = fn
	m.mu.Unlock()
}

// ConnectionCount reports currently live connections.
func (m *MockServer) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// TotalAccepted reports how many connections the server ever accepted.
func (m *MockServer) TotalAccepted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalAccepted
}

// Received returns a copy of every payload the server has read.
func (m *MockServer) Received() []Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payload, len(m.received))
	copy(out, m.received)
	return out
}

// Broadcast sends a text frame to every connected client.
func (m *MockServer) Broadcast(data []byte) {
	m.writeAll(websocket.TextMessage, data)
}

// BroadcastBinary sends a binary frame to every connected client.
func (m *MockServer) BroadcastBinary(data []byte) {
	m.writeAll(websocket.BinaryMessage, data)
}

func (m *MockServer) writeAll(mt int, data []byte) {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.connections))
	for c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteMessage(mt, data)
	}
}

// CloseClients sends a close frame with the given code to every client and
// then drops the underlying connections.
func (m *MockServer) CloseClients(code int) {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.connections))
	for c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second),
		)
		_ = c.Close()
	}
}

// DropClients severs every connection without a close handshake, simulating
// a network fault.
func (m *MockServer) DropClients() {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.connections))
	for c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.UnderlyingConn().Close()
	}
}

func (m *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	reject := m.rejectUpgrades
	m.mu.Unlock()
	if reject {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connections[conn] = true
	m.totalAccepted++
	onConnect := m.onConnect
	m.mu.Unlock()

	if onConnect != nil {
		onConnect(conn)
	}

	defer func() {
		m.mu.Lock()
		delete(m.connections, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		m.mu.Lock()
		m.received = append(m.received, Payload{Data: data, Binary: mt == websocket.BinaryMessage})
		echo := m.echo
		m.mu.Unlock()

		if echo && mt == websocket.TextMessage {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
