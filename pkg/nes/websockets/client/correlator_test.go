package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DJMcK/nes/pkg/nes"
	"github.com/DJMcK/nes/pkg/nes/websockets"
)

func TestCorrelatorIDs(t *testing.T) {
	t.Run("ids start above zero and only increase", func(t *testing.T) {
		c := newCorrelator()

		first := c.next()
		assert.Equal(t, int64(1), first)

		prev := first
		for i := 0; i < 100; i++ {
			id := c.next()
			assert.Greater(t, id, prev)
			prev = id
		}
	})

	t.Run("concurrently pending ids never collide", func(t *testing.T) {
		c := newCorrelator()

		seen := make(map[int64]bool)
		for i := 0; i < 50; i++ {
			id := c.next()
			require.False(t, seen[id])
			seen[id] = true
			c.register(id)
		}
		assert.Equal(t, 50, c.pendingCount())
	})
}

func TestCorrelatorResolve(t *testing.T) {
	t.Run("each pending id receives exactly its own reply", func(t *testing.T) {
		c := newCorrelator()

		id1 := c.next()
		ch1 := c.register(id1)
		id2 := c.next()
		ch2 := c.register(id2)

		// Deliver out of order
		require.True(t, c.resolve(&websockets.Message{Kind: websockets.MessageKindResponse, Id: id2, StatusCode: 201}))
		require.True(t, c.resolve(&websockets.Message{Kind: websockets.MessageKindResponse, Id: id1, StatusCode: 200}))

		result1 := <-ch1
		require.NoError(t, result1.err)
		assert.Equal(t, id1, result1.reply.Id)
		assert.Equal(t, 200, result1.reply.StatusCode)

		result2 := <-ch2
		require.NoError(t, result2.err)
		assert.Equal(t, id2, result2.reply.Id)
		assert.Equal(t, 201, result2.reply.StatusCode)

		assert.Equal(t, 0, c.pendingCount())
	})

	t.Run("resolving an unknown id reports false", func(t *testing.T) {
		c := newCorrelator()

		assert.False(t, c.resolve(&websockets.Message{Kind: websockets.MessageKindResponse, Id: 42}))
	})

	t.Run("an id resolves at most once", func(t *testing.T) {
		c := newCorrelator()

		id := c.next()
		c.register(id)

		assert.True(t, c.resolve(&websockets.Message{Id: id}))
		assert.False(t, c.resolve(&websockets.Message{Id: id}))
	})
}

func TestCorrelatorFlush(t *testing.T) {
	t.Run("flush completes every pending entry and empties the table", func(t *testing.T) {
		c := newCorrelator()

		channels := make([]chan completion, 0, 5)
		for i := 0; i < 5; i++ {
			id := c.next()
			channels = append(channels, c.register(id))
		}
		require.Equal(t, 5, c.pendingCount())

		n := c.flush(nes.ErrDisconnected)
		assert.Equal(t, 5, n)
		assert.Equal(t, 0, c.pendingCount())

		for _, ch := range channels {
			result := <-ch
			assert.ErrorIs(t, result.err, nes.ErrDisconnected)
			assert.Nil(t, result.reply)
		}
	})

	t.Run("flush on an empty table is a no-op", func(t *testing.T) {
		c := newCorrelator()
		assert.Equal(t, 0, c.flush(nes.ErrDisconnected))
	})

	t.Run("ids are not reused after a flush", func(t *testing.T) {
		c := newCorrelator()

		id := c.next()
		c.register(id)
		c.flush(nes.ErrDisconnected)

		assert.Greater(t, c.next(), id)
	})
}

func TestCorrelatorRemove(t *testing.T) {
	c := newCorrelator()

	id := c.next()
	ch := c.register(id)

	got, exists := c.remove(id)
	assert.True(t, exists)
	assert.Equal(t, ch, got)

	_, exists = c.remove(id)
	assert.False(t, exists)
}
