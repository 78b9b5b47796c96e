package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Cooldown allows one action per key per window. Manual dispatch triggers
// are keyed by category so a burst of clicks starts a single run.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow records an attempt for key. When denied it reports how long until
// the key is free again.
func (c *Cooldown) Allow(key string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.last[key]; ok {
		if wait := at.Add(c.window).Sub(now); wait > 0 {
			return false, wait
		}
	}
	c.last[key] = now
	return true, 0
}

// Cleanup removes keys whose window has passed.
func (c *Cooldown) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, at := range c.last {
		if !now.Before(at.Add(c.window)) {
			delete(c.last, key)
		}
	}
}

// Throttle rejects requests whose key is cooling down with 429 and a
// Retry-After header.
func Throttle(c *Cooldown, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := c.Allow(keyFunc(r))
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
