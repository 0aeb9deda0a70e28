package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethodAndPath(t *testing.T) {
	t.Run("bare path defaults to GET", func(t *testing.T) {
		req := parseMethodAndPath("/chat/channels")
		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, "/chat/channels", req.Path)
	})

	t.Run("explicit method and path", func(t *testing.T) {
		req := parseMethodAndPath("POST /chat/send")
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "/chat/send", req.Path)
	})

	t.Run("method is uppercased", func(t *testing.T) {
		req := parseMethodAndPath("delete /chat/messages/9")
		assert.Equal(t, "DELETE", req.Method)
		assert.Equal(t, "/chat/messages/9", req.Path)
	})

	t.Run("extra whitespace around the path is trimmed", func(t *testing.T) {
		req := parseMethodAndPath("PUT   /settings")
		assert.Equal(t, "PUT", req.Method)
		assert.Equal(t, "/settings", req.Path)
	})
}
