package feed

import (
	"net/http"
	"time"
)

const (
	// DefaultURL is the local development market feed endpoint.
	DefaultURL = "ws://localhost:8000/ws/ticks"

	// DefaultReconnectDelay is the fixed wait between connection attempts.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultMaxReconnectAttempts bounds reconnects over the client's lifetime.
	// The counter resets whenever a connection opens.
	DefaultMaxReconnectAttempts = 10

	// DefaultHandshakeTimeout is the dialer's own opening-handshake timeout.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultMaxMessageSize caps a single inbound frame. Feed frames are a
	// few hundred bytes.
	DefaultMaxMessageSize = 64 * 1024

	// UnlimitedReconnects disables the reconnect bound.
	UnlimitedReconnects = -1
)

// Options configures the feed client.
type Options struct {
	// URL is the WebSocket feed endpoint.
	URL string

	// Headers are additional HTTP headers sent with the handshake.
	Headers http.Header

	// ReconnectDelay is the constant delay before each reconnect.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts is the number of reconnects allowed before the
	// client gives up. 0 disables reconnecting, UnlimitedReconnects (or
	// any negative value) removes the bound.
	MaxReconnectAttempts int

	// MaxMessageSize is the read limit per frame in bytes. A larger frame
	// fails the connection, which then reconnects. 0 or less means no limit.
	MaxMessageSize int64

	// HandshakeTimeout bounds the WebSocket opening handshake.
	HandshakeTimeout time.Duration

	// OnStateChange is called after every state transition, once the
	// connection health for that state has been written to the sink.
	OnStateChange func(State)
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		URL:                  DefaultURL,
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		MaxMessageSize:       DefaultMaxMessageSize,
	}
}

// Option is a functional option for configuring the client.
type Option func(*Options)

func WithURL(url string) Option {
	return func(o *Options) {
		o.URL = url
	}
}

func WithHeaders(h http.Header) Option {
	return func(o *Options) {
		o.Headers = h
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(o *Options) {
		o.ReconnectDelay = d
	}
}

func WithMaxReconnectAttempts(n int) Option {
	return func(o *Options) {
		o.MaxReconnectAttempts = n
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.HandshakeTimeout = d
	}
}

func WithMaxMessageSize(n int64) Option {
	return func(o *Options) {
		o.MaxMessageSize = n
	}
}

// WithStateListener registers a callback for state transitions.
func WithStateListener(fn func(State)) Option {
	return func(o *Options) {
		o.OnStateChange = fn
	}
}
