package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
)

// window counts requests of one address in the current fixed window.
type window struct {
	start time.Time
	count int
}

// rateLimiter is a fixed-window counter per remote address.
type rateLimiter struct {
	mu      sync.Mutex
	size    time.Duration
	max     int
	now     func() time.Time
	windows map[string]*window
	swept   time.Time
}

func newRateLimiter(size time.Duration, limit int, now func() time.Time) *rateLimiter {
	if size <= 0 {
		size = time.Minute
	}
	if limit <= 0 {
		limit = 100
	}
	return &rateLimiter{size: size, max: limit, now: now, windows: make(map[string]*window)}
}

// Allow records a request from addr. When the window is exhausted it returns
// false and the time until the window resets.
func (l *rateLimiter) Allow(addr string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweepLocked(now)

	w := l.windows[addr]
	if w == nil || now.Sub(w.start) >= l.size {
		w = &window{start: now}
		l.windows[addr] = w
	}
	if w.count >= l.max {
		return false, w.start.Add(l.size).Sub(now)
	}
	w.count++
	return true, 0
}

// sweepLocked forgets expired windows at most once per window length.
func (l *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.swept) < l.size {
		return
	}
	l.swept = now
	for addr, w := range l.windows {
		if now.Sub(w.start) >= l.size {
			delete(l.windows, addr)
		}
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit answers 429 once an address exceeds its window.
func rateLimit(l *rateLimiter, adapter *derrors.HTTPErrorAdapter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.Allow(remoteHost(r))
			if !ok {
				secs := int(retry.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				err := derrors.CapacityExceededError("rate limit exceeded").
					WithContext("remote_addr", remoteHost(r)).Build()
				payload := adapter.FormatErrorResponse(err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(payload)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
