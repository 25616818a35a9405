package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thruflo/camloop/internal/logging"
)

// RateLimitConfig bounds failed authentication attempts per client IP.
type RateLimitConfig struct {
	MaxFailures int           // Failed attempts allowed per window (default: 5)
	Window      time.Duration // Sliding window (default: 1 minute)
	BlockAfter  int           // Block after this many consecutive failures (default: 10)
	BlockTime   time.Duration // Base block duration, doubles each block (default: 5 minutes)
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxFailures: 5,
		Window:      time.Minute,
		BlockAfter:  10,
		BlockTime:   5 * time.Minute,
	}
}

// maxBlock caps the exponential block duration.
const maxBlock = 24 * time.Hour

// rateLimiter is a sliding window limiter over failed attempts with an
// exponentially growing block for repeat offenders. Successful requests are
// never counted: the assistant calls several times per second during a loop.
type rateLimiter struct {
	mu     sync.Mutex
	config RateLimitConfig
	now    func() time.Time
	log    *logging.Logger

	failedAt map[string][]time.Time // failure timestamps inside the window
	failures map[string]int         // consecutive failures
	blocked  map[string]time.Time   // block expiry
}

func newRateLimiter(config RateLimitConfig, now func() time.Time, logger *logging.Logger) *rateLimiter {
	def := DefaultRateLimitConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.BlockAfter <= 0 {
		config.BlockAfter = def.BlockAfter
	}
	if config.BlockTime <= 0 {
		config.BlockTime = def.BlockTime
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &rateLimiter{
		config:   config,
		now:      now,
		log:      logger,
		failedAt: make(map[string][]time.Time),
		failures: make(map[string]int),
		blocked:  make(map[string]time.Time),
	}
}

// checkResult is the outcome of a rate limit check.
type checkResult struct {
	Allowed    bool
	RetryAfter time.Duration
	IsBlocked  bool   // True if blocked due to too many consecutive failures
	Reason     string // Human-readable reason for rejection
}

// check reports whether ip may attempt to authenticate. It records nothing.
func (rl *rateLimiter) check(ip string) checkResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if expiry, ok := rl.blocked[ip]; ok {
		if now.Before(expiry) {
			return checkResult{
				RetryAfter: expiry.Sub(now),
				IsBlocked:  true,
				Reason:     "too many failed attempts",
			}
		}
		delete(rl.blocked, ip)
	}

	recent := rl.prune(ip, now)
	if len(recent) >= rl.config.MaxFailures {
		retryAfter := recent[0].Add(rl.config.Window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return checkResult{
			RetryAfter: retryAfter,
			Reason:     "rate limit exceeded",
		}
	}

	return checkResult{Allowed: true}
}

// recordSuccess clears the failure history of ip.
func (rl *rateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.failures, ip)
	delete(rl.failedAt, ip)
	delete(rl.blocked, ip)
}

// recordFailure counts a failed attempt. Every BlockAfter consecutive
// failures block ip for BlockTime * 2^(blocks so far), capped at maxBlock.
func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.failedAt[ip] = append(rl.prune(ip, now), now)
	rl.failures[ip]++
	count := rl.failures[ip]

	if count < rl.config.BlockAfter {
		return
	}

	blocks := (count - rl.config.BlockAfter) / rl.config.BlockAfter
	duration := maxBlock
	if blocks < 16 {
		duration = rl.config.BlockTime * time.Duration(1<<blocks)
		if duration > maxBlock {
			duration = maxBlock
		}
	}

	rl.blocked[ip] = now.Add(duration)
	rl.log.Warn("client blocked after failed authentications", "ip", ip, "failures", count, "duration", duration)
}

// prune drops failures of ip that fell out of the window and returns the
// rest. Callers hold mu.
func (rl *rateLimiter) prune(ip string, now time.Time) []time.Time {
	timestamps, ok := rl.failedAt[ip]
	if !ok {
		return nil
	}
	windowStart := now.Add(-rl.config.Window)
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	if len(valid) == 0 {
		delete(rl.failedAt, ip)
		return nil
	}
	rl.failedAt[ip] = valid
	return valid
}

// cleanup removes expired entries. Consecutive failure counts are kept while
// the IP is blocked or still has failures in the window.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip := range rl.failedAt {
		rl.prune(ip, now)
	}
	for ip, expiry := range rl.blocked {
		if now.After(expiry) {
			delete(rl.blocked, ip)
		}
	}
	for ip := range rl.failures {
		_, isBlocked := rl.blocked[ip]
		_, hasRecent := rl.failedAt[ip]
		if !isBlocked && !hasRecent {
			delete(rl.failures, ip)
		}
	}
}

// extractIP returns the client IP, preferring the first X-Forwarded-For
// entry and X-Real-IP for deployments behind a reverse proxy.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
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
