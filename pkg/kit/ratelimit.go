package kit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter allows each client IP limit requests per window, refilling
// evenly across the window.
type IPRateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*limiterEntry
	rate  rate.Limit
	burst int
	ttl   time.Duration

	retryAfter string
	lastSweep  time.Time
	now        func() time.Time
}

// NewIPRateLimiter builds a limiter for limit requests per window. A limit
// <= 0 disables limiting.
func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{
		ips:   make(map[string]*limiterEntry),
		burst: limit,
		ttl:   window,
		now:   time.Now,
	}
	if limit > 0 {
		every := window / time.Duration(limit)
		l.rate = rate.Every(every)
		l.retryAfter = strconv.Itoa(max(1, int(math.Ceil(every.Seconds()))))
	}
	return l
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.burst <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", l.retryAfter)
			WriteError(w, r, http.StatusTooManyRequests, "too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allow takes one token from ip's bucket and reports whether one was there.
func (l *IPRateLimiter) Allow(ip string) bool {
	if l.burst <= 0 {
		return true
	}
	now := l.now()
	return l.limiter(ip, now).AllowN(now, 1)
}

func (l *IPRateLimiter) limiter(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		l.sweep(now)
	}

	e, ok := l.ips[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.ips[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// sweep drops clients idle for longer than a window; their buckets are full.
func (l *IPRateLimiter) sweep(now time.Time) {
	for ip, e := range l.ips {
		if now.Sub(e.lastSeen) > l.ttl {
			delete(l.ips, ip)
		}
	}
	l.lastSweep = now
}

func clientIP(r *http.Request) string {
	if ip := firstForwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}

	return r.RemoteAddr
}

func firstForwardedFor(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
