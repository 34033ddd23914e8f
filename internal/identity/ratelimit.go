// Implements per-email token buckets for login attempts.

package identity

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle, full bucket is kept.
const staleAfter = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// loginLimiter allows perMin attempts per minute for each key, with a burst of
// perMin.
type loginLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      rate.Limit
	burst     int
	lastSweep time.Time
}

func newLoginLimiter(perMin int) *loginLimiter {
	return &loginLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(float64(perMin) / time.Minute.Seconds()),
		burst:   perMin,
	}
}

// allow consumes one token for key. When denied, it returns how long to wait.
func (l *loginLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	if now.Sub(l.lastSweep) > staleAfter {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// sweep removes idle buckets that refilled. l.mu must be held.
func (l *loginLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleAfter && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}
