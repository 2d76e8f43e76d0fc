package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/go-github/v62/github"
)

const (
	// defaultRateLimitThreshold is the remaining-call count at or below which
	// outgoing requests are suspended until the quota resets.
	defaultRateLimitThreshold = 10

	// maxRateLimitWait caps a single suspension to guard against clock skew
	// in the reset timestamp.
	maxRateLimitWait = 3600 * time.Second
)

// RateLimitMonitor tracks the primary rate limit signals GitHub attaches to
// every response and suspends callers when the quota is nearly exhausted.
// It never fails: with no signal observed yet it simply lets requests through.
type RateLimitMonitor struct {
	mu        sync.Mutex
	threshold int
	remaining int
	reset     time.Time
	known     bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimitMonitor creates a monitor with the given remaining-call
// threshold. A non-positive threshold selects the default.
func NewRateLimitMonitor(threshold int) *RateLimitMonitor {
	if threshold <= 0 {
		threshold = defaultRateLimitThreshold
	}
	return &RateLimitMonitor{
		threshold: threshold,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Update records the most recent quota signals, overwriting prior values.
// A zero-valued rate (headers absent from the response) is ignored.
func (m *RateLimitMonitor) Update(rate github.Rate) {
	if rate.Limit == 0 && rate.Reset.IsZero() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = rate.Remaining
	m.reset = rate.Reset.Time
	m.known = true
}

// WaitIfNeeded suspends the caller until the quota resets when the last
// observed remaining count is at or below the threshold. The suspension is
// max(0, reset-now)+1s, capped at maxRateLimitWait.
func (m *RateLimitMonitor) WaitIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	wait := time.Duration(0)
	if m.known && m.remaining <= m.threshold && !m.reset.IsZero() {
		wait = m.reset.Sub(m.now())
		if wait < 0 {
			wait = 0
		}
		wait += time.Second
		if wait > maxRateLimitWait {
			wait = maxRateLimitWait
		}
	}
	m.mu.Unlock()

	if wait == 0 {
		return nil
	}
	return m.sleep(ctx, wait)
}

// sleepContext sleeps for d or returns early when ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
