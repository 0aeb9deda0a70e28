// Package subutils provides listener utilities for the nes client.
package subutils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/DJMcK/nes/pkg/nes"
)

// Error definitions for AsyncQueueingListener
var (
	ErrQueueFull      = errors.New("listener queue is full")
	ErrListenerClosed = errors.New("listener is closed")
)

type eventKind int

const (
	eventConnect eventKind = iota
	eventBroadcast
	eventError
)

type asyncEvent struct {
	kind    eventKind
	ctx     context.Context
	message any
	err     error
}

// AsyncQueueingListener wraps another listener and processes events
// asynchronously through a buffered channel queue. This lets the client's
// read loop return immediately instead of stalling behind a slow
// broadcast consumer.
type AsyncQueueingListener struct {
	wrapped   nes.Listener
	queue     chan asyncEvent
	done      chan struct{}
	wg        sync.WaitGroup
	closed    int32
	closeOnce sync.Once
}

// NewAsyncQueueingListener creates a new AsyncQueueingListener that
// processes events through a buffered channel of the specified size.
//
// All Listener interface methods return immediately after queuing the
// event. Call Start() to begin processing and Close() to shut the
// background goroutine down; Close drains whatever is still queued.
func NewAsyncQueueingListener(wrapped nes.Listener, queueSize int) *AsyncQueueingListener {
	if queueSize <= 0 {
		queueSize = 100 // Default queue size
	}

	return &AsyncQueueingListener{
		wrapped: wrapped,
		queue:   make(chan asyncEvent, queueSize),
		done:    make(chan struct{}),
	}
}

// Start begins processing events in a background goroutine.
// Returns the same AsyncQueueingListener instance for method chaining.
func (a *AsyncQueueingListener) Start() *AsyncQueueingListener {
	a.wg.Add(1)
	go a.processQueue()
	return a
}

// Close shuts down the background goroutine after draining any events
// still in the queue. Safe to call multiple times.
func (a *AsyncQueueingListener) Close() {
	a.closeOnce.Do(func() {
		atomic.StoreInt32(&a.closed, 1)
		close(a.done)
		a.wg.Wait()
	})
}

// IsClosed reports whether Close has been called.
func (a *AsyncQueueingListener) IsClosed() bool {
	return atomic.LoadInt32(&a.closed) != 0
}

// processQueue runs in a background goroutine and processes events from the queue
func (a *AsyncQueueingListener) processQueue() {
	defer a.wg.Done()

	for {
		select {
		case ev := <-a.queue:
			a.processEvent(ev)
		case <-a.done:
			// Shutdown signal received, drain remaining events
			a.drainQueue()
			return
		}
	}
}

// drainQueue processes any remaining events in the queue during shutdown
func (a *AsyncQueueingListener) drainQueue() {
	for {
		select {
		case ev := <-a.queue:
			a.processEvent(ev)
		default:
			// No more events to drain
			return
		}
	}
}

func (a *AsyncQueueingListener) processEvent(ev asyncEvent) {
	switch ev.kind {
	case eventConnect:
		a.wrapped.OnConnect(ev.ctx)
	case eventBroadcast:
		a.wrapped.OnBroadcast(ev.ctx, ev.message)
	case eventError:
		a.wrapped.OnError(ev.ctx, ev.err)
	}
}

// OnConnect queues a connect notification and returns immediately
func (a *AsyncQueueingListener) OnConnect(ctx context.Context) error {
	return a.enqueue(asyncEvent{kind: eventConnect, ctx: ctx})
}

// OnBroadcast queues a broadcast and returns immediately
func (a *AsyncQueueingListener) OnBroadcast(ctx context.Context, message any) error {
	return a.enqueue(asyncEvent{kind: eventBroadcast, ctx: ctx, message: message})
}

// OnError queues an error report and returns immediately
func (a *AsyncQueueingListener) OnError(ctx context.Context, err error) {
	a.enqueue(asyncEvent{kind: eventError, ctx: ctx, err: err})
}

func (a *AsyncQueueingListener) enqueue(ev asyncEvent) error {
	if a.IsClosed() {
		return ErrListenerClosed
	}

	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}
