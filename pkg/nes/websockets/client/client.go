package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DJMcK/nes/pkg/nes"
	"github.com/DJMcK/nes/pkg/nes/o11y"
	"github.com/DJMcK/nes/pkg/nes/websockets"
)

// Client implements the nes.Client interface over a WebSocket connection.
// It owns the single active transport, correlates requests to responses
// by id, dispatches broadcasts, and reconnects with linearly growing,
// capped backoff after unexpected closures.
type Client struct {
	// Configuration
	url              string
	logger           *zap.Logger
	dialTimeout      time.Duration
	listener         nes.Listener
	monitor          nes.Monitor
	headers          map[string][]string
	tokenProvider    TokenProvider
	writeChannelSize int
	codec            websockets.Codec
	metrics          *ClientMetrics
	tracer           o11y.TracingProvider

	// Connection state. The transport handle is exclusively owned and
	// replaced wholesale on every connect cycle, never mutated in place.
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	started  int32
	stopping int32

	// Message correlation and reconnection
	correlator *correlator
	reconnect  *reconnectPolicy

	// Internal channels, replaced along with the transport handle
	writeChannel chan []byte
	done         chan struct{}
}

var _ nes.Client = (*Client)(nil)

// Connect establishes the WebSocket connection, starts message
// processing, and performs the authentication handshake when a credential
// is configured. Connect-time failures are returned to the caller, never
// routed through the error hook.
//
// The connection's lifetime is tied to ctx: cancelling it closes the
// transport, which flushes every pending request with a disconnection
// failure and, when reconnection is enabled, starts the backoff cycle.
// Reconnect attempts use a detached context, so a new transport opened
// by the cycle is not bound to the original ctx.
func (c *Client) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return fmt.Errorf("client is already started")
	}

	var token string
	if c.tokenProvider != nil {
		var err error
		token, err = c.tokenProvider(ctx)
		if err != nil {
			atomic.StoreInt32(&c.started, 0)
			return fmt.Errorf("failed to get credential: %w", err)
		}
	}

	// A fresh Connect re-arms the policy: the accumulated backoff wait
	// resets to zero and the credential to replay is stored.
	c.reconnect.arm(token)

	if err := c.dial(ctx, token); err != nil {
		atomic.StoreInt32(&c.started, 0)
		return err
	}

	return nil
}

// dial opens a new transport, wires its loops, fires the connect
// notification, and performs the auth handshake when a credential is
// present. It is shared by Connect and the reconnect cycle.
func (c *Client) dial(ctx context.Context, token string) error {
	if _, err := url.Parse(c.url); err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	connCtx, cancel := context.WithCancel(ctx)

	dialCtx, dialCancel := context.WithTimeout(connCtx, c.dialTimeout)
	defer dialCancel()

	dialOptions := &websocket.DialOptions{}
	if c.headers != nil {
		dialOptions.HTTPHeader = make(map[string][]string)
		for key, values := range c.headers {
			dialOptions.HTTPHeader[key] = values
		}
	}

	conn, _, err := websocket.Dial(dialCtx, c.url, dialOptions)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	done := make(chan struct{})
	writeChannel := make(chan []byte, c.writeChannelSize)

	c.mu.Lock()
	c.conn = conn
	c.ctx = connCtx
	c.cancel = cancel
	c.done = done
	c.writeChannel = writeChannel
	c.mu.Unlock()

	c.logger.Info("WebSocket client connected", zap.String("url", c.url))
	c.metrics.RecordConnect(ctx)

	go c.readLoop(connCtx, conn, done)
	go c.writeLoop(connCtx, conn, writeChannel)

	// Connect notification fires exactly once per attempt, before the
	// auth handshake.
	if err := c.listener.OnConnect(ctx); err != nil {
		c.logger.Warn("Listener connect hook error", zap.Error(err))
	}
	if c.monitor != nil {
		c.monitor.OnConnect(ctx, c)
	}

	if token != "" {
		if err := c.Authenticate(ctx, token); err != nil {
			// Hold the stopping flag so the loops' own close
			// notifications do not start a second teardown.
			atomic.StoreInt32(&c.stopping, 1)
			c.teardown(websocket.StatusPolicyViolation, "authentication failed")
			atomic.StoreInt32(&c.stopping, 0)
			return err
		}
	}

	return nil
}

// Disconnect deactivates the reconnection policy and closes the
// connection. It is idempotent and safe to call with no active transport.
func (c *Client) Disconnect() error {
	// Deactivate reconnection first so a backoff wait already in
	// progress cannot open a new transport.
	c.reconnect.disable()

	if !atomic.CompareAndSwapInt32(&c.stopping, 0, 1) {
		return nil // Already stopping
	}

	c.logger.Info("Disconnecting WebSocket client")

	c.teardown(websocket.StatusNormalClosure, "client disconnect")

	atomic.StoreInt32(&c.started, 0)
	atomic.StoreInt32(&c.stopping, 0)

	c.metrics.RecordDisconnect(context.Background())
	if c.monitor != nil {
		c.monitor.OnDisconnect(context.Background(), c, nil)
	}

	return nil
}

// teardown is the unified close-handling path, shared by graceful and
// abrupt closures. It clears the transport handle, waits for the loops to
// exit, and flushes every pending request with a disconnection failure.
func (c *Client) teardown(status websocket.StatusCode, reason string) {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	cancel := c.cancel
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if conn != nil {
		conn.Close(status, reason)

		// Wait for the read loop to finish before declaring the
		// connection gone.
		if done != nil {
			<-done
		}
	}

	if n := c.correlator.flush(nes.ErrDisconnected); n > 0 {
		c.logger.Debug("Flushed pending requests", zap.Int("count", n))
	}
	c.metrics.RecordPending(context.Background(), 0)
}

// notifyDisconnectError handles an error-based closure: it tears the
// connection down, surfaces the failure through the general error hook
// and the monitor, and hands off to the reconnect cycle when the policy
// is active. The stopping flag makes it a no-op during a teardown that
// is already in progress, graceful or not.
func (c *Client) notifyDisconnectError(err error) {
	if atomic.CompareAndSwapInt32(&c.stopping, 0, 1) {
		// Run in a separate goroutine to avoid deadlock: this is called
		// from readLoop/writeLoop, which must exit before teardown can
		// complete.
		go func() {
			c.teardown(websocket.StatusInternalError, "connection error")

			atomic.StoreInt32(&c.started, 0)
			atomic.StoreInt32(&c.stopping, 0)

			// Transport runtime failures surface through the general
			// error hook; they never resolve a pending request on
			// their own.
			c.reportError(context.Background(), err)

			c.metrics.RecordDisconnect(context.Background())
			if c.monitor != nil {
				c.monitor.OnDisconnect(context.Background(), c, err)
			}

			if c.reconnect.isActive() {
				c.reconnectLoop()
			}
		}()
	}
}

// reconnectLoop runs backoff cycles until an attempt succeeds or the
// policy is deactivated. Policy liveness is checked when each attempt
// fires, not only when it is scheduled, so Disconnect during a backoff
// wait prevents the attempt from opening a new transport.
func (c *Client) reconnectLoop() {
	for {
		delay := c.reconnect.nextDelay()
		c.logger.Info("Scheduling reconnect attempt",
			zap.Duration("delay", delay),
			zap.Int("attempt", c.reconnect.attemptCount()),
		)

		time.Sleep(delay)

		if !c.reconnect.isActive() {
			return
		}
		if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
			// The application connected again on its own.
			return
		}

		c.metrics.RecordReconnectAttempt(context.Background())

		if err := c.dial(context.Background(), c.reconnect.credential()); err != nil {
			atomic.StoreInt32(&c.started, 0)
			c.reportError(context.Background(), fmt.Errorf("reconnect failed: %w", err))
			continue
		}

		c.logger.Info("Reconnected", zap.Int("attempt", c.reconnect.attemptCount()))
		if c.monitor != nil {
			c.monitor.OnReconnect(context.Background(), c, c.reconnect.attemptCount())
		}
		return
	}
}

// nes.Client interface implementation

// Request sends an HTTP-like request over the socket and waits for the
// correlated response. An empty method is normalized to GET. Responses
// with status codes in [400, 599] return both the response and a
// *nes.StatusError carrying the payload's message field.
func (c *Client) Request(ctx context.Context, req nes.Request) (*nes.Response, error) {
	method := req.Method
	if method == "" {
		method = "GET"
	}

	var span o11y.Span
	if c.tracer != nil {
		ctx, span = c.tracer.StartSpan(ctx, "nes.request")
		span.SetAttributes(
			o11y.Label{Key: "method", Value: method},
			o11y.Label{Key: "path", Value: req.Path},
		)
	}

	resp, err := c.doRequest(ctx, method, req)

	if span != nil {
		if err != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
		} else {
			span.SetStatus(o11y.SpanStatusOK, "")
		}
		span.End()
	}

	return resp, err
}

func (c *Client) doRequest(ctx context.Context, method string, req nes.Request) (*nes.Response, error) {
	start := time.Now()

	reply, err := c.roundTrip(ctx, &websockets.Message{
		Kind:    websockets.MessageKindRequest,
		Method:  method,
		Path:    req.Path,
		Headers: req.Headers,
		Payload: req.Payload,
	})
	c.metrics.RecordRequest(ctx, method, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if reply.Kind != websockets.MessageKindResponse {
		// A reply correlated to this id but of an unexpected kind:
		// report the anomaly and complete the caller with a protocol
		// error.
		err := fmt.Errorf("%w: unexpected reply kind %q for request id %d", nes.ErrProtocol, reply.Kind, reply.Id)
		c.reportError(ctx, err)
		return nil, err
	}

	resp := &nes.Response{
		StatusCode: reply.StatusCode,
		Headers:    reply.Headers,
		Payload:    reply.Payload,
	}

	if reply.StatusCode >= 400 && reply.StatusCode <= 599 {
		return resp, &nes.StatusError{
			StatusCode: reply.StatusCode,
			Message:    payloadMessage(reply.Payload),
		}
	}

	return resp, nil
}

// Get is shorthand for a GET request to path.
func (c *Client) Get(ctx context.Context, path string) (*nes.Response, error) {
	return c.Request(ctx, nes.Request{Method: "GET", Path: path})
}

// Authenticate performs the auth handshake: a single correlated exchange
// of auth-kind messages carrying the credential. It succeeds when the
// reply has no error indicator and fails with the indicator's text
// otherwise.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	reply, err := c.roundTrip(ctx, &websockets.Message{
		Kind:  websockets.MessageKindAuth,
		Token: token,
	})
	if err != nil {
		return err
	}

	if reply.Kind != websockets.MessageKindAuth {
		err := fmt.Errorf("%w: unexpected reply kind %q for auth id %d", nes.ErrProtocol, reply.Kind, reply.Id)
		c.reportError(ctx, err)
		return err
	}

	if reply.Error != "" {
		return fmt.Errorf("authentication failed: %s", reply.Error)
	}

	return nil
}

// roundTrip assigns the next correlation id, serializes the message,
// registers the pending completion, sends, and waits. The completion is
// registered only after successful serialization, and registration is
// rolled back when the send cannot be queued.
func (c *Client) roundTrip(ctx context.Context, msg *websockets.Message) (*websockets.Message, error) {
	c.mu.RLock()
	conn := c.conn
	connCtx := c.ctx
	writeChannel := c.writeChannel
	c.mu.RUnlock()

	if atomic.LoadInt32(&c.started) == 0 || conn == nil {
		return nil, nes.ErrNotConnected
	}

	msg.Id = c.correlator.next()

	data, err := c.codec.Encode(msg)
	if err != nil {
		// Serialization failed: nothing was registered, nothing sent.
		return nil, err
	}

	if connCtx.Err() != nil {
		return nil, nes.ErrDisconnected
	}

	ch := c.correlator.register(msg.Id)
	c.metrics.RecordPending(ctx, c.correlator.pendingCount())

	select {
	case writeChannel <- data:
	case <-ctx.Done():
		c.correlator.remove(msg.Id)
		return nil, ctx.Err()
	case <-connCtx.Done():
		c.correlator.remove(msg.Id)
		return nil, nes.ErrDisconnected
	}

	// Wait for the correlated reply. The connection-context case covers
	// an entry registered after teardown's flush already ran; without it
	// such an entry would stay pending forever.
	select {
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		return result.reply, nil
	case <-ctx.Done():
		c.correlator.remove(msg.Id)
		c.metrics.RecordPending(ctx, c.correlator.pendingCount())
		return nil, ctx.Err()
	case <-connCtx.Done():
		if _, exists := c.correlator.remove(msg.Id); !exists {
			// The entry was already resolved or flushed; the
			// completion is sitting in the buffered channel.
			select {
			case result := <-ch:
				if result.err != nil {
					return nil, result.err
				}
				return result.reply, nil
			default:
			}
		}
		c.metrics.RecordPending(ctx, c.correlator.pendingCount())
		return nil, nes.ErrDisconnected
	}
}

// readLoop processes incoming messages from the WebSocket. It owns the
// close notification: every exit path reports the closure, and the
// stopping flag makes the report a no-op when a teardown is already in
// progress.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			c.notifyDisconnectError(ctx.Err())
			return
		default:
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Failed to read from WebSocket", zap.Error(err))
			}
			// Every transport closure goes through the unified
			// close-handling path, including connection-context
			// cancellation, so the pending table is always flushed.
			c.notifyDisconnectError(err)
			return
		}

		c.handleMessage(ctx, data)
	}
}

// writeLoop processes outgoing messages to the WebSocket
func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, writeChannel chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-writeChannel:
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				// Cancellation is handled by readLoop, which notifies
				// on every exit path.
				if ctx.Err() == nil {
					c.logger.Error("Failed to write to WebSocket", zap.Error(err))
					c.notifyDisconnectError(err)
				}
				return
			}
		}
	}
}

// handleMessage routes one inbound frame: responses and auth replies go
// through the correlator, broadcasts go straight to the listener.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	msg, err := c.codec.Decode(data)
	if err != nil {
		// No id is known for a frame that failed to decode, so the
		// failure goes to the general error hook.
		c.reportError(ctx, err)
		return
	}

	switch msg.Kind {
	case websockets.MessageKindResponse, websockets.MessageKindAuth:
		if msg.Id == 0 {
			c.reportError(ctx, fmt.Errorf("%w: %q message without a correlation id", nes.ErrProtocol, msg.Kind))
			return
		}
		if !c.correlator.resolve(msg) {
			c.reportError(ctx, fmt.Errorf("%w: response for unknown request id %d", nes.ErrProtocol, msg.Id))
			return
		}
		c.metrics.RecordPending(ctx, c.correlator.pendingCount())
	case websockets.MessageKindBroadcast:
		c.metrics.RecordBroadcast(ctx)
		if err := c.listener.OnBroadcast(ctx, msg.Payload); err != nil {
			c.logger.Warn("Listener broadcast error", zap.Error(err))
		}
	default:
		c.reportError(ctx, fmt.Errorf("%w: unknown message kind %q", nes.ErrProtocol, msg.Kind))
	}
}

// reportError delivers a non-fatal failure to the general error hook.
// Runtime transport failures and protocol anomalies go through here; they
// never resolve a specific pending request on their own.
func (c *Client) reportError(ctx context.Context, err error) {
	c.logger.Error("Client error", zap.Error(err))
	c.metrics.RecordError(ctx)
	c.listener.OnError(ctx, err)
}

// payloadMessage extracts the message field from a response payload, used
// as the failure text for application-level errors.
func payloadMessage(payload any) string {
	if m, ok := payload.(map[string]any); ok {
		if s, ok := m["message"].(string); ok {
			return s
		}
	}
	return ""
}
