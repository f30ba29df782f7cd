package conn

// Event identifies a lifecycle or message event observable on a Connection.
type Event string

const (
	// EventConnected fires when the physical socket opens.
	EventConnected Event = "connected"

	// EventDisconnected fires when the socket closes or errors, before any
	// retry or permanent transition.
	EventDisconnected Event = "disconnected"

	// EventPermanentlyDisconnected fires on a non-retryable peer close,
	// on retry exhaustion, and on an explicit Disconnect. It always
	// follows EventDisconnected.
	EventPermanentlyDisconnected Event = "permanently_disconnected"

	// EventMessage fires when an inbound text payload decodes to a
	// non-null JSON value.
	EventMessage Event = "message"

	// EventRawMessage fires for every inbound payload, unconditionally.
	EventRawMessage Event = "raw_message"

	// EventInvalidMessage fires for decode failures, null decode results,
	// and binary payloads.
	EventInvalidMessage Event = "invalid_message"

	// EventBinaryMessage fires for binary payloads.
	EventBinaryMessage Event = "binary_message"
)
