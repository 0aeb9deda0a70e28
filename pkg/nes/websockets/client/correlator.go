package client

import (
	"sync"
	"sync/atomic"

	"github.com/DJMcK/nes/pkg/nes/websockets"
)

// completion is the single-use result delivered for a pending id: either
// the inbound message correlated to it or the failure that resolved it.
type completion struct {
	reply *websockets.Message
	err   error
}

// correlator assigns monotonically increasing correlation ids and tracks
// one pending completion channel per id. The counter lives for the whole
// client and id 0 is reserved as "unassigned", so no two concurrently
// pending requests can collide, even across reconnects.
type correlator struct {
	nextID int64

	mu      sync.Mutex
	pending map[int64]chan completion
}

func newCorrelator() *correlator {
	return &correlator{
		pending: make(map[int64]chan completion),
	}
}

// next returns a fresh correlation id.
func (c *correlator) next() int64 {
	return atomic.AddInt64(&c.nextID, 1)
}

// register installs a pending completion channel for id. The channel is
// buffered so resolution never blocks the read loop.
func (c *correlator) register(id int64) chan completion {
	ch := make(chan completion, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

// remove deletes a pending entry, returning its channel if it existed.
func (c *correlator) remove(id int64) (chan completion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}
	return ch, exists
}

// resolve completes the pending entry matching the inbound message's id.
// It reports false when no entry is pending under that id, which the
// caller surfaces as a protocol anomaly.
func (c *correlator) resolve(msg *websockets.Message) bool {
	ch, exists := c.remove(msg.Id)
	if !exists {
		return false
	}

	select {
	case ch <- completion{reply: msg}:
	default:
	}
	return true
}

// flush removes every pending entry and completes it with err, returning
// the number of entries flushed. This is the only guaranteed delivery for
// requests in flight when the connection closes.
func (c *correlator) flush(err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.pending)
	for id, ch := range c.pending {
		delete(c.pending, id)
		select {
		case ch <- completion{err: err}:
		default:
		}
	}
	return n
}

func (c *correlator) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
