package client

import (
	"context"
	"fmt"
	"time"

	"github.com/DJMcK/nes/pkg/nes"
	"github.com/DJMcK/nes/pkg/nes/o11y"
	"go.uber.org/zap"
)

// TokenProvider is a function that returns the credential for the
// authentication handshake. It receives a context and should return the
// token value or an error if the credential cannot be obtained.
type TokenProvider func(ctx context.Context) (string, error)

// Default reconnection behavior: enabled, with linearly growing waits of
// one second per attempt, capped at five seconds.
const (
	DefaultReconnectDelay    = 1 * time.Second
	DefaultMaxReconnectDelay = 5 * time.Second
)

// ClientBuilder provides a fluent interface for building nes clients.
type ClientBuilder struct {
	url               string
	logger            *zap.Logger
	dialTimeout       time.Duration
	listener          nes.Listener
	monitor           nes.Monitor         // Optional monitor for lifecycle events
	headers           map[string][]string // Custom HTTP headers for WebSocket handshake
	tokenProvider     TokenProvider       // Credential provider for the auth handshake
	reconnect         bool
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	writeChannelSize  int
	metricsProvider   o11y.MetricsProvider
	tracingProvider   o11y.TracingProvider
}

// NewClient creates a new nes client builder.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		dialTimeout:       30 * time.Second,
		logger:            zap.NewNop(),
		writeChannelSize:  100, // Default buffer size
		reconnect:         true,
		reconnectDelay:    DefaultReconnectDelay,
		maxReconnectDelay: DefaultMaxReconnectDelay,
	}
}

// WithURL sets the WebSocket URL to connect to.
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

// WithLogger sets the logger for the client.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing the WebSocket connection.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithListener sets the listener that receives connect notifications,
// broadcasts, and errors from the client.
func (b *ClientBuilder) WithListener(listener nes.Listener) *ClientBuilder {
	b.listener = listener
	return b
}

// WithMonitor sets an optional monitor that will receive client lifecycle
// events: connect, disconnect, and reconnect.
func (b *ClientBuilder) WithMonitor(monitor nes.Monitor) *ClientBuilder {
	b.monitor = monitor
	return b
}

// WithToken sets a static credential for the authentication handshake.
// The handshake is performed after the transport opens and replayed on
// every reconnect.
func (b *ClientBuilder) WithToken(token string) *ClientBuilder {
	b.tokenProvider = func(ctx context.Context) (string, error) {
		return token, nil
	}
	return b
}

// WithTokenProvider sets a credential provider function. It is called
// once per Connect; the value it returns is replayed on every reconnect
// within that connect cycle.
func (b *ClientBuilder) WithTokenProvider(provider TokenProvider) *ClientBuilder {
	b.tokenProvider = provider
	return b
}

// WithReconnect enables or disables automatic reconnection. Default is
// enabled.
func (b *ClientBuilder) WithReconnect(enabled bool) *ClientBuilder {
	b.reconnect = enabled
	return b
}

// WithReconnectDelay sets the per-attempt backoff increment.
func (b *ClientBuilder) WithReconnectDelay(delay time.Duration) *ClientBuilder {
	if delay > 0 {
		b.reconnectDelay = delay
	}
	return b
}

// WithMaxReconnectDelay sets the ceiling for the backoff wait.
func (b *ClientBuilder) WithMaxReconnectDelay(delay time.Duration) *ClientBuilder {
	if delay > 0 {
		b.maxReconnectDelay = delay
	}
	return b
}

// WithHeaders sets custom HTTP headers for the WebSocket handshake.
// Note: This will override any existing headers with the same keys. Use
// multiple calls to add headers incrementally.
func (b *ClientBuilder) WithHeaders(headers map[string][]string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	for key, values := range headers {
		b.headers[key] = values
	}
	return b
}

// WithHeader sets a single HTTP header for the WebSocket handshake.
func (b *ClientBuilder) WithHeader(key, value string) *ClientBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	b.headers[key] = []string{value}
	return b
}

// WithWriteChannelSize sets the buffer size for the internal write channel.
// A larger buffer allows more messages to be queued for writing. Default is 100.
func (b *ClientBuilder) WithWriteChannelSize(size int) *ClientBuilder {
	if size > 0 {
		b.writeChannelSize = size
	}
	return b
}

// WithMetricsProvider enables client metrics through the given provider.
func (b *ClientBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracingProvider enables a span around each request round trip.
func (b *ClientBuilder) WithTracingProvider(provider o11y.TracingProvider) *ClientBuilder {
	b.tracingProvider = provider
	return b
}

// Build creates and returns a new nes client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	client := &Client{
		url:              b.url,
		logger:           b.logger,
		dialTimeout:      b.dialTimeout,
		listener:         b.listener,
		monitor:          b.monitor,
		headers:          b.headers,
		tokenProvider:    b.tokenProvider,
		writeChannelSize: b.writeChannelSize,
		metrics:          NewClientMetrics(b.metricsProvider),
		tracer:           b.tracingProvider,
		correlator:       newCorrelator(),
		reconnect:        newReconnectPolicy(b.reconnect, b.reconnectDelay, b.maxReconnectDelay),
	}

	return client, nil
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}

	// Listener is optional - we provide a no-op default
	if b.listener == nil {
		b.listener = &nes.BaseListener{}
	}

	// Logger is optional - we provide a default nop logger
	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	// DialTimeout is optional - we provide a sensible default
	if b.dialTimeout <= 0 {
		b.dialTimeout = 30 * time.Second
	}

	// WriteChannelSize is optional - we provide a sensible default
	if b.writeChannelSize <= 0 {
		b.writeChannelSize = 100
	}

	if b.reconnectDelay <= 0 {
		b.reconnectDelay = DefaultReconnectDelay
	}

	if b.maxReconnectDelay < b.reconnectDelay {
		b.maxReconnectDelay = b.reconnectDelay
	}

	return nil
}
