// Package socket abstracts the physical full-duplex message channel that a
// logical connection is maintained over. A Socket is created through a
// Factory, begins connecting asynchronously, and reports everything that
// happens to it (open, close with code, error, inbound payloads) through the
// Handlers it was created with. Dial failures arrive via OnError rather than
// as a constructor error, which lets the connection layer count failed
// attempts the same way it counts mid-flight drops.
//
// Sockets are single-owner: the connection layer replaces its socket
// wholesale on every reconnect and detaches the superseded one so a stale
// instance cannot emit into the new connection epoch.
package socket

// ReadyState mirrors the wire protocol's ready-state codes.
type ReadyState int

const (
	// StateConnecting is also reported by the connection layer when no
	// socket is held at all.
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the lowercase name of the state.
func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// NormalClosureCode is the close code that signals a graceful shutdown. The
// connection layer treats it as retry-eligible rather than terminal.
const NormalClosureCode = 1000

// Payload is a single inbound or outbound message, either text or binary.
type Payload struct {
	Data   []byte
	Binary bool
}

// Text builds a text payload.
func Text(data []byte) Payload {
	return Payload{Data: data}
}

// TextString builds a text payload from a string.
func TextString(s string) Payload {
	return Payload{Data: []byte(s)}
}

// Binary builds a binary payload.
func Binary(data []byte) Payload {
	return Payload{Data: data, Binary: true}
}

// Handlers are the callbacks a Socket reports through. Any of them may be
// nil. They are invoked from the socket's own goroutines.
type Handlers struct {
	// OnOpen fires once when the channel is established.
	OnOpen func()

	// OnClose fires when the peer closes the channel, carrying the close
	// code from the wire.
	OnClose func(code int)

	// OnError fires for dial failures and for read failures that carry no
	// close code. A socket fires OnClose or OnError for a given failure,
	// never both.
	OnError func(err error)

	// OnMessage fires for every inbound payload.
	OnMessage func(p Payload)
}

// Socket is a live physical channel.
type Socket interface {
	// Send writes one payload to the wire. It fails if the channel is not
	// open.
	Send(p Payload) error

	// Close tears the channel down, attempting a graceful close frame
	// first. Closing an already-closed socket is a no-op.
	Close() error

	// Detach neutralizes all handlers so the socket can no longer emit.
	// Used before superseding or deliberately closing a socket, so the
	// teardown itself cannot be mistaken for a transport failure.
	Detach()

	// ReadyState reports the channel's current wire state code.
	ReadyState() ReadyState
}

// Factory constructs a Socket for the given address with the given handlers
// attached, and starts connecting it in the background. A factory must never
// invoke a handler synchronously from the construction call itself: the first
// event, including an immediate dial failure, arrives from another goroutine
// after the factory has returned.
type Factory func(addr string, h Handlers) Socket
