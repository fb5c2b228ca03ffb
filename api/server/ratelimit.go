package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const rateLimitWindow = 60 * time.Second

// rateLimiter is a per-client sliding window over the last minute.
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	requests  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{limit: perMinute, requests: make(map[string][]time.Time), now: time.Now}
}

// Allow records a request from client and reports whether it is within the limit.
func (rl *rateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rateLimitWindow {
		rl.sweepLocked(now)
	}
	times := rl.requests[client]
	recent := times[:0]
	for _, t := range times {
		if now.Sub(t) < rateLimitWindow {
			recent = append(recent, t)
		}
	}
	if len(recent) >= rl.limit {
		rl.requests[client] = recent
		return false
	}
	rl.requests[client] = append(recent, now)
	return true
}

// sweepLocked forgets clients with no request inside the window.
func (rl *rateLimiter) sweepLocked(now time.Time) {
	for client, times := range rl.requests {
		if len(times) == 0 || now.Sub(times[len(times)-1]) >= rateLimitWindow {
			delete(rl.requests, client)
		}
	}
	rl.lastSweep = now
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitWrites rejects POSTs over the per-client budget with 429. Reads are
// never limited.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			host := clientHost(r)
			if !s.limiter.Allow(host) {
				s.logger.Printf("[RATE LIMIT] Blocked %s %s from %s", r.Method, r.URL.Path, host)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
