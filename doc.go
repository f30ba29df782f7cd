// Package sockline maintains a resilient logical connection over an
// unreliable WebSocket, reconnecting automatically after drops and routing
// inbound payloads to typed listeners.
//
// The library separates three concerns:
//
//   - pkg/conn owns the connection lifecycle: it creates physical sockets
//     through a factory, decides whether a closure triggers a retry or a
//     permanent disconnect, bounds retry attempts, and classifies inbound
//     payloads (decoded JSON, raw, binary, invalid) before fanning them out
//     to listeners.
//
//   - pkg/socket abstracts the physical channel and provides the
//     WebSocket-backed dialer, with handshake retries, dial pacing and an
//     optional keep-alive ping.
//
//   - pkg/events is the synchronous, panic-isolating emitter both layers
//     fan out through.
//
// # Lifecycle
//
// A connection moves between connection attempts; each attempt is one
// physical socket. Listeners observe the lifecycle through three events:
// connected fires when a socket opens, disconnected fires when one closes
// or errors, and permanently-disconnected fires when the connection gives
// up (retry exhaustion, a non-retryable close, or an explicit Disconnect).
// A close carrying the normal-closure code (1000) is treated as the server
// asking for a reconnect, so it retries; other close codes are terminal
// unless retry-on-close is configured.
//
// # Usage
//
//	c := conn.New[MyMessage]("wss://example.com/stream",
//	    conn.WithMaxRetries(0),          // retry forever
//	    conn.WithRetryOnClose(),
//	    conn.WithRetryDelay(time.Second),
//	)
//
//	c.On(conn.EventConnected, func() { log.Println("up") })
//	c.OnMessage(func(m MyMessage) { process(m) })
//	c.OnBinaryMessage(func(data []byte) { processRaw(data) })
//
//	c.Connect()
//	defer c.Disconnect()
//
//	if err := c.Send(MyMessage{...}); err != nil {
//	    // only encoding failures surface here; transport failures are
//	    // handled by the retry machinery and reported through events
//	}
//
// Every inbound payload fires a raw-message event. A text payload that
// decodes to a non-null JSON value additionally fires a message event;
// anything else (malformed JSON, a null document, or any binary payload)
// fires an invalid-message event, and binary payloads also fire a
// binary-message event first.
package sockline
