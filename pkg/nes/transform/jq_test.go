package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJqTransform(t *testing.T) {
	t.Run("extracts a field from a map payload", func(t *testing.T) {
		transform, err := JqTransform(".text", nil)
		require.NoError(t, err)

		result, ok := transform(map[string]any{"channel": "general", "text": "hello"})
		require.True(t, ok)
		assert.Equal(t, "hello", result)
	})

	t.Run("select can drop messages", func(t *testing.T) {
		transform, err := JqTransform(`select(.level == "alert")`, nil)
		require.NoError(t, err)

		result, ok := transform(map[string]any{"level": "alert", "text": "fire"})
		require.True(t, ok)
		assert.NotNil(t, result)

		_, ok = transform(map[string]any{"level": "info", "text": "calm"})
		assert.False(t, ok)
	})

	t.Run("multiple results are collected into an array", func(t *testing.T) {
		transform, err := JqTransform(".items[]", nil)
		require.NoError(t, err)

		result, ok := transform(map[string]any{"items": []any{"a", "b", "c"}})
		require.True(t, ok)
		assert.Equal(t, []any{"a", "b", "c"}, result)
	})

	t.Run("JSON string payloads are parsed before the query", func(t *testing.T) {
		transform, err := JqTransform(".name", nil)
		require.NoError(t, err)

		result, ok := transform(`{"name": "nes"}`)
		require.True(t, ok)
		assert.Equal(t, "nes", result)
	})

	t.Run("non-JSON strings stay plain strings", func(t *testing.T) {
		transform, err := JqTransform(".", nil)
		require.NoError(t, err)

		result, ok := transform("just text")
		require.True(t, ok)
		assert.Equal(t, "just text", result)
	})

	t.Run("struct payloads are converted to primitive maps", func(t *testing.T) {
		type event struct {
			Channel string `json:"channel"`
			Text    string `json:"text"`
		}

		transform, err := JqTransform(".channel", nil)
		require.NoError(t, err)

		result, ok := transform(event{Channel: "random", Text: "hi"})
		require.True(t, ok)
		assert.Equal(t, "random", result)

		result, ok = transform(&event{Channel: "ptr", Text: "hi"})
		require.True(t, ok)
		assert.Equal(t, "ptr", result)
	})

	t.Run("invalid query fails at construction", func(t *testing.T) {
		_, err := JqTransform(".[unclosed", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse JQ query")
	})

	t.Run("runtime errors pass the original payload through", func(t *testing.T) {
		transform, err := JqTransform(".foo", zap.NewNop())
		require.NoError(t, err)

		// Indexing a number is a runtime error in jq
		result, ok := transform(42)
		require.True(t, ok)
		assert.Equal(t, 42, result)
	})
}

func TestChain(t *testing.T) {
	double := func(message any) (any, bool) {
		if n, ok := message.(int); ok {
			return n * 2, true
		}
		return message, true
	}
	dropOdd := func(message any) (any, bool) {
		if n, ok := message.(int); ok && n%2 == 1 {
			return nil, false
		}
		return message, true
	}

	t.Run("applies transforms left to right", func(t *testing.T) {
		chain := Chain(double, double)
		result, ok := chain(3)
		require.True(t, ok)
		assert.Equal(t, 12, result)
	})

	t.Run("a drop short-circuits the chain", func(t *testing.T) {
		called := false
		witness := func(message any) (any, bool) {
			called = true
			return message, true
		}

		chain := Chain(dropOdd, witness)
		_, ok := chain(5)
		assert.False(t, ok)
		assert.False(t, called)
	})

	t.Run("empty chain is the identity", func(t *testing.T) {
		chain := Chain()
		result, ok := chain("unchanged")
		require.True(t, ok)
		assert.Equal(t, "unchanged", result)
	})
}
