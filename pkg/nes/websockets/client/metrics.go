package client

import (
	"context"
	"time"

	"github.com/DJMcK/nes/pkg/nes/o11y"
)

// ClientMetrics defines the standard metrics collected by the client.
// This struct holds references to all the metric instruments used for
// monitoring connection and request behavior.
type ClientMetrics struct {
	// Connection metrics
	connectsTotal    o11y.Counter // Total number of connections established
	disconnectsTotal o11y.Counter // Total number of connection closures (graceful or not)
	reconnectsTotal  o11y.Counter // Total number of reconnection attempts

	// Request metrics
	requestsTotal   o11y.Counter   // Total requests sent, by method
	requestErrors   o11y.Counter   // Requests that completed with an error
	requestDuration o11y.Histogram // Request round-trip duration
	pendingRequests o11y.Gauge     // Current size of the pending-request table

	// Message metrics
	broadcastsTotal o11y.Counter // Broadcasts delivered to the listener
	errorsTotal     o11y.Counter // Errors reported through the error hook
}

// NewClientMetrics creates a new ClientMetrics instance using the provided
// MetricsProvider. If the provider is nil, returns nil (no metrics will be
// collected).
func NewClientMetrics(provider o11y.MetricsProvider) *ClientMetrics {
	if provider == nil {
		return nil
	}

	return &ClientMetrics{
		connectsTotal:    provider.Counter("nes_client_connects_total"),
		disconnectsTotal: provider.Counter("nes_client_disconnects_total"),
		reconnectsTotal:  provider.Counter("nes_client_reconnect_attempts_total"),

		requestsTotal:   provider.Counter("nes_client_requests_total"),
		requestErrors:   provider.Counter("nes_client_request_errors_total"),
		requestDuration: provider.Histogram("nes_client_request_duration_seconds"),
		pendingRequests: provider.Gauge("nes_client_pending_requests"),

		broadcastsTotal: provider.Counter("nes_client_broadcasts_total"),
		errorsTotal:     provider.Counter("nes_client_errors_total"),
	}
}

// RecordConnect records an established connection.
func (m *ClientMetrics) RecordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectsTotal.Add(ctx, 1)
}

// RecordDisconnect records a connection closure.
func (m *ClientMetrics) RecordDisconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.disconnectsTotal.Add(ctx, 1)
}

// RecordReconnectAttempt records one fired backoff attempt.
func (m *ClientMetrics) RecordReconnectAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconnectsTotal.Add(ctx, 1)
}

// RecordRequest records a completed request round trip.
func (m *ClientMetrics) RecordRequest(ctx context.Context, method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	label := o11y.Label{Key: "method", Value: method}
	m.requestsTotal.Add(ctx, 1, label)
	m.requestDuration.Record(ctx, duration.Seconds(), label)
	if err != nil {
		m.requestErrors.Add(ctx, 1, label)
	}
}

// RecordPending updates the pending-request table size.
func (m *ClientMetrics) RecordPending(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.pendingRequests.Set(ctx, float64(count))
}

// RecordBroadcast records a broadcast delivered to the listener.
func (m *ClientMetrics) RecordBroadcast(ctx context.Context) {
	if m == nil {
		return
	}
	m.broadcastsTotal.Add(ctx, 1)
}

// RecordError records an error reported through the error hook.
func (m *ClientMetrics) RecordError(ctx context.Context) {
	if m == nil {
		return
	}
	m.errorsTotal.Add(ctx, 1)
}
