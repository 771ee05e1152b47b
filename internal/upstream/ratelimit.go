package upstream

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fieldops/portal-sync/internal/metrics"

	"golang.org/x/time/rate"
)

// RateLimiter gates outgoing requests against the upstream quota
type RateLimiter interface {
	// Wait blocks until a request may be sent or ctx is done
	Wait(ctx context.Context) error
	// Update records the quota reported by a response
	Update(h http.Header)
}

// RateLimitSnapshot is the last quota the upstream system reported
type RateLimitSnapshot struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Known     bool
}

// HeaderRateLimiter tracks X-RateLimit-{Limit,Remaining,Reset}. When the
// remaining quota is zero and the reset lies ahead, Wait sleeps until reset.
// An optional token bucket paces requests independently of the headers.
type HeaderRateLimiter struct {
	mu      sync.Mutex
	snap    RateLimitSnapshot
	pacer   *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.MetricsRegistry
}

var _ RateLimiter = (*HeaderRateLimiter)(nil)

// NewHeaderRateLimiter creates a limiter. requestsPerSecond <= 0 disables pacing.
func NewHeaderRateLimiter(requestsPerSecond float64, m *metrics.MetricsRegistry) *HeaderRateLimiter {
	l := &HeaderRateLimiter{
		now:     time.Now,
		sleep:   sleepContext,
		metrics: m,
	}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		l.pacer = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return l
}

// WithClock replaces the time source and sleeper, for tests
func (l *HeaderRateLimiter) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *HeaderRateLimiter {
	l.now = now
	l.sleep = sleep
	return l
}

func (l *HeaderRateLimiter) Wait(ctx context.Context) error {
	if l.pacer != nil {
		if err := l.pacer.Wait(ctx); err != nil {
			return err
		}
	}

	l.mu.Lock()
	var wait time.Duration
	if l.snap.Known && l.snap.Remaining <= 0 {
		wait = l.snap.Reset.Sub(l.now())
	}
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	l.metrics.ObserveRateLimitWait()
	return l.sleep(ctx, wait)
}

func (l *HeaderRateLimiter) Update(h http.Header) {
	limit, hasLimit := headerInt(h, "X-RateLimit-Limit")
	remaining, hasRemaining := headerInt(h, "X-RateLimit-Remaining")
	reset, hasReset := headerInt(h, "X-RateLimit-Reset")
	if !hasLimit && !hasRemaining && !hasReset {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if hasLimit {
		l.snap.Limit = int(limit)
	}
	if hasRemaining {
		l.snap.Remaining = int(remaining)
		l.metrics.ObserveRateLimit(int(remaining))
	}
	if hasReset {
		l.snap.Reset = resetTime(l.now(), reset)
	}
	l.snap.Known = hasRemaining || l.snap.Known
}

// Snapshot returns a copy of the tracked quota
func (l *HeaderRateLimiter) Snapshot() RateLimitSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// resetTime accepts either an epoch timestamp or seconds from now
func resetTime(now time.Time, v int64) time.Time {
	if v > 1_000_000_000 {
		return time.Unix(v, 0)
	}
	return now.Add(time.Duration(v) * time.Second)
}

func headerInt(h http.Header, key string) (int64, bool) {
	raw := h.Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int64(v), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
