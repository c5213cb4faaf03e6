package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimit tunes login attempt limiting.
type RateLimit struct {
	MaxAttempts int           // attempts allowed per window
	Window      time.Duration // sliding window length
	BlockAfter  int           // consecutive failures before blocking
	BlockTime   time.Duration // base block duration, doubles per repeat
}

// DefaultRateLimit returns the default login rate limiting configuration.
func DefaultRateLimit() RateLimit {
	return RateLimit{
		MaxAttempts: 5,
		Window:      time.Minute,
		BlockAfter:  10,
		BlockTime:   5 * time.Minute,
	}
}

// maxBlockTime caps the exponential backoff on repeated failure blocks.
const maxBlockTime = 24 * time.Hour

// rateLimiter is a sliding window limiter keyed by client IP, with failure
// blocking and exponential backoff.
type rateLimiter struct {
	mu     sync.Mutex
	config RateLimit

	attempts map[string][]time.Time // attempt timestamps per IP
	failures map[string]int         // consecutive failed logins per IP
	blocked  map[string]time.Time   // block expiry per IP
}

func newRateLimiter(config RateLimit) *rateLimiter {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.BlockAfter <= 0 {
		config.BlockAfter = 10
	}
	if config.BlockTime <= 0 {
		config.BlockTime = 5 * time.Minute
	}

	return &rateLimiter{
		config:   config,
		attempts: make(map[string][]time.Time),
		failures: make(map[string]int),
		blocked:  make(map[string]time.Time),
	}
}

// check records an attempt for ip and reports whether it is allowed.
// retryAfter is how long the client should wait when rejected.
func (rl *rateLimiter) check(ip string) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	if expiry, isBlocked := rl.blocked[ip]; isBlocked {
		if now.Before(expiry) {
			return false, expiry.Sub(now)
		}
		delete(rl.blocked, ip)
	}

	// Drop attempts that fell out of the window.
	windowStart := now.Add(-rl.config.Window)
	kept := rl.attempts[ip][:0]
	for _, ts := range rl.attempts[ip] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	rl.attempts[ip] = kept

	if len(kept) >= rl.config.MaxAttempts {
		retry := kept[0].Add(rl.config.Window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return false, retry
	}

	rl.attempts[ip] = append(rl.attempts[ip], now)
	return true, 0
}

// recordSuccess resets failure tracking for ip after a successful login.
func (rl *rateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.failures, ip)
	delete(rl.blocked, ip)
}

// recordFailure counts a failed login. Once failures reach BlockAfter the
// IP is blocked, with the duration doubling on each subsequent block.
func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.failures[ip]++
	count := rl.failures[ip]
	if count < rl.config.BlockAfter {
		return
	}

	blocks := (count - rl.config.BlockAfter) / rl.config.BlockAfter
	duration := rl.config.BlockTime * time.Duration(1<<blocks)
	if duration > maxBlockTime || duration <= 0 {
		duration = maxBlockTime
	}
	rl.blocked[ip] = time.Now().Add(duration)
}

// cleanup drops stale window entries, expired blocks, and failure counts
// for IPs that have gone quiet. Called periodically from the server.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.config.Window)

	for ip, timestamps := range rl.attempts {
		kept := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(windowStart) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(rl.attempts, ip)
		} else {
			rl.attempts[ip] = kept
		}
	}

	for ip, expiry := range rl.blocked {
		if now.After(expiry) {
			delete(rl.blocked, ip)
		}
	}

	for ip := range rl.failures {
		_, isBlocked := rl.blocked[ip]
		_, hasAttempts := rl.attempts[ip]
		if !isBlocked && !hasAttempts {
			delete(rl.failures, ip)
		}
	}
}

// clientIP extracts the client IP from the request, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// May contain "client, proxy1, proxy2"; the first entry is the client.
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
