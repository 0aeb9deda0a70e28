package client

import (
	"sync"
	"time"
)

// reconnectPolicy is the stateful backoff scheduler used after an
// unexpected close. The accumulated wait grows by delay before each
// attempt and the actual wait is clamped at maxDelay, giving linearly
// increasing retry spacing that saturates at a ceiling. The accumulated
// wait resets only when a fresh Connect re-arms the policy.
type reconnectPolicy struct {
	mu       sync.Mutex
	enabled  bool          // configured at build time
	active   bool          // true between Connect and Disconnect
	delay    time.Duration // per-attempt increment
	maxDelay time.Duration // ceiling for the actual wait
	wait     time.Duration // accumulated wait within the current failure streak
	attempts int
	token    string // credential replayed on every retry
}

func newReconnectPolicy(enabled bool, delay, maxDelay time.Duration) *reconnectPolicy {
	return &reconnectPolicy{
		enabled:  enabled,
		delay:    delay,
		maxDelay: maxDelay,
	}
}

// arm activates the policy for a new connect cycle, resetting the
// accumulated wait and storing the credential to replay.
func (p *reconnectPolicy) arm(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = p.enabled
	p.wait = 0
	p.attempts = 0
	p.token = token
}

// disable deactivates the policy. A backoff wait already in progress
// checks liveness again when it fires, so no new transport is opened
// after this returns.
func (p *reconnectPolicy) disable() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = false
}

func (p *reconnectPolicy) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

// nextDelay advances the backoff cycle and returns the wait that must
// elapse before the next attempt.
func (p *reconnectPolicy) nextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.wait += p.delay
	p.attempts++
	if p.wait > p.maxDelay {
		return p.maxDelay
	}
	return p.wait
}

func (p *reconnectPolicy) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.attempts
}

func (p *reconnectPolicy) credential() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.token
}
