package conn

import (
	"time"

	"github.com/sockline/sockline/pkg/logging"
	"github.com/sockline/sockline/pkg/socket"
)

const (
	// DefaultMaxRetries bounds automatic reconnect attempts unless
	// overridden. Zero means unlimited.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the pause before each reconnect attempt.
	DefaultRetryDelay = 500 * time.Millisecond
)

type config struct {
	maxRetries   int
	retryOnClose bool
	retryDelay   time.Duration
	factory      socket.Factory
	logger       logging.Logger
}

// Option configures a Connection at construction time. Configuration is
// immutable afterwards.
type Option func(*config)

// WithMaxRetries bounds consecutive automatic reconnect attempts. Zero
// removes the bound entirely.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithRetryOnClose makes any peer-initiated close retry-eligible, not just
// a normal closure.
func WithRetryOnClose() Option {
	return func(c *config) { c.retryOnClose = true }
}

// WithRetryDelay sets the pause before each reconnect attempt.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) { c.retryDelay = d }
}

// WithFactory substitutes the socket factory. The default dials WebSockets.
func WithFactory(f socket.Factory) Option {
	return func(c *config) { c.factory = f }
}

// WithLogger sets the logger for lifecycle diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(c *config) { c.logger = l }
}
