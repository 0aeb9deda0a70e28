package nes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations attempted while no
	// transport is open. Requests are never queued for later delivery.
	ErrNotConnected = errors.New("client is not connected")

	// ErrDisconnected completes every request still pending when the
	// connection closes. This is the only way an in-flight request
	// finishes after a disconnect; the request itself is not retried.
	ErrDisconnected = errors.New("connection closed")

	// ErrProtocol marks a structurally valid but contextually unexpected
	// message, such as an unknown kind or a reply for an id that is not
	// pending. Anomalies are reported, never fatal to the connection.
	ErrProtocol = errors.New("protocol anomaly")
)

// StatusError is the application-level failure synthesized for responses
// whose status code falls in [400, 599]. Message carries the server's
// payload message field when one is present.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}
