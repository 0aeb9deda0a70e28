package nes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusError(t *testing.T) {
	t.Run("uses the payload message when present", func(t *testing.T) {
		err := &StatusError{StatusCode: 404, Message: "channel not found"}
		assert.Equal(t, "channel not found", err.Error())
	})

	t.Run("falls back to the status code", func(t *testing.T) {
		err := &StatusError{StatusCode: 503}
		assert.Equal(t, "request failed with status 503", err.Error())
	})

	t.Run("unwraps through errors.As", func(t *testing.T) {
		wrapped := fmt.Errorf("request: %w", &StatusError{StatusCode: 400, Message: "bad input"})

		var statusErr *StatusError
		require.True(t, errors.As(wrapped, &statusErr))
		assert.Equal(t, 400, statusErr.StatusCode)
	})
}

func TestSentinels(t *testing.T) {
	assert.True(t, errors.Is(fmt.Errorf("send: %w", ErrNotConnected), ErrNotConnected))
	assert.True(t, errors.Is(fmt.Errorf("wait: %w", ErrDisconnected), ErrDisconnected))
	assert.True(t, errors.Is(fmt.Errorf("%w: odd frame", ErrProtocol), ErrProtocol))
	assert.False(t, errors.Is(ErrDisconnected, ErrNotConnected))
}
