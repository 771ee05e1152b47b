package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"fieldops/portal-sync/internal/logging"

	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*visitor
	limit     rate.Limit
	burst     int
	whitelist map[string]bool
	idleTTL   time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows perSecond requests per IP with the given burst.
// Whitelisted IPs are never limited.
func NewIPRateLimiter(perSecond float64, burst int, whitelist ...string) *IPRateLimiter {
	wl := map[string]bool{"127.0.0.1": true}
	for _, ip := range whitelist {
		wl[ip] = true
	}
	return &IPRateLimiter{
		limiters:  make(map[string]*visitor),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		whitelist: wl,
		idleTTL:   10 * time.Minute,
	}
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if v, exists := l.limiters[ip]; exists {
		v.lastSeen = now
		return v.limiter
	}

	// drop idle visitors so the map does not grow without bound
	for key, v := range l.limiters {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.limiters, key)
		}
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters[ip] = &visitor{limiter: limiter, lastSeen: now}
	return limiter
}

// Middleware rejects requests over the per-IP rate with 429
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if l.whitelist[ip] {
			next.ServeHTTP(w, r)
			return
		}

		if !l.getLimiter(ip).Allow() {
			logging.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
