// Package ratelimit provides the fixed-window issuance limiter used to gate
// OTP issuance (per subject) and reset requests (per client IP).
package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// WindowLimiter caps events per key within a fixed window. A counter is only
// meaningful until its window boundary; crossing the boundary resets it
// lazily on the next access, so a burst straddling the boundary can admit
// close to twice the cap in the worst case. That is the accepted policy, not
// a sliding window.
//
// State is in-process only. A multi-instance deployment needs the same Allow
// contract backed by a shared atomic-increment-with-expiry primitive.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	period  time.Duration
	now     func() time.Time
}

// NewWindowLimiter creates a limiter admitting max events per period per key.
func NewWindowLimiter(max int, period time.Duration) *WindowLimiter {
	l := &WindowLimiter{
		windows: make(map[string]*window),
		max:     max,
		period:  period,
		now:     time.Now,
	}
	go l.cleanup()
	return l
}

// Allow records one event for key if the window still has room. When denied,
// retryAfter estimates how long until the window resets.
func (l *WindowLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return true, 0
	}
	if w.count >= l.max {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// cleanup drops expired windows every 5 minutes so idle keys don't leak.
// Correctness never depends on it — Allow resets stale windows on read.
func (l *WindowLimiter) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		now := l.now()
		l.mu.Lock()
		for key, w := range l.windows {
			if now.After(w.resetAt) {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}
