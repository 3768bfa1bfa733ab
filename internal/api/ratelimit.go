package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a per-IP token bucket limiter.
type RateLimiter struct {
	buckets   sync.Map // map[string]*bucket
	perHour   int
	key       func(*http.Request) string
	now       func() time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter allows perHour requests per client and drops idle buckets in
// the background. key picks the client of a request; nil keys on the peer
// address. Call Stop on shutdown.
func NewRateLimiter(perHour int, cleanupInterval time.Duration, key func(*http.Request) string) *RateLimiter {
	if key == nil {
		key = peerAddr
	}
	rl := &RateLimiter{perHour: perHour, key: key, now: time.Now, stop: make(chan struct{})}
	go rl.cleanup(cleanupInterval)
	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.closeOnce.Do(func() { close(rl.stop) })
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(rl.key(r)) {
			retryAfter := 3600 / rl.perHour
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter+1))
			jsonError(w, http.StatusTooManyRequests, "Too many requests from this IP, please try again in an hour")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()
	val, _ := rl.buckets.LoadOrStore(key, &bucket{tokens: float64(rl.perHour), lastRefill: now})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := float64(rl.perHour)
	b.tokens += now.Sub(b.lastRefill).Hours() * capacity
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := rl.now()
			rl.buckets.Range(func(key, value any) bool {
				b := value.(*bucket)
				b.mu.Lock()
				idle := now.Sub(b.lastRefill)
				b.mu.Unlock()
				if idle > time.Hour {
					rl.buckets.Delete(key)
				}
				return true
			})
		}
	}
}
