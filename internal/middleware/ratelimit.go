package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ollama-relay/internal/metrics"
)

// RateLimitMessage is the body sent with every 429 for the given window,
// e.g. "Too many requests from this IP, please try again after 15 minutes."
func RateLimitMessage(window time.Duration) string {
	return "Too many requests from this IP, please try again after " + windowText(window) + "."
}

func windowText(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return plural(int(d/time.Minute), "minute")
	}
	return plural(int(math.Ceil(d.Seconds())), "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Store counts hits per client in fixed windows. Increment returns the hit
// count within the key's current window and when that window ends.
type Store interface {
	Increment(ctx context.Context, key string) (hits int, resetAt time.Time, err error)
}

type RateLimiter struct {
	store     Store
	limit     int
	message   string
	logger    *slog.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// NewRateLimiter admits up to limit requests per client per store window.
// window should match the store's window; it only shapes the 429 text.
// collector may be nil.
func NewRateLimiter(store Store, limit int, window time.Duration, logger *slog.Logger, collector *metrics.Collector) *RateLimiter {
	return &RateLimiter{
		store:     store,
		limit:     limit,
		message:   RateLimitMessage(window),
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		hits, resetAt, err := rl.store.Increment(r.Context(), ip)
		if err != nil {
			// Store outages must not take the relay down with them.
			rl.logger.Warn("rate limit store unavailable, admitting request",
				"client", ip,
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		resetSeconds := int(math.Ceil(resetAt.Sub(rl.now()).Seconds()))
		if resetSeconds < 0 {
			resetSeconds = 0
		}
		remaining := rl.limit - hits
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if hits > rl.limit {
			if rl.collector != nil {
				rl.collector.RateLimited()
			}
			rl.logger.Info("rate limit exceeded", "client", ip, "hits", hits)

			w.Header().Set("Retry-After", strconv.Itoa(resetSeconds))
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(rl.message))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. Behind a trusted proxy chi's
// RealIP has already rewritten it from the forwarded headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps fixed-window counters in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	length  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryStore(length time.Duration) *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]*window),
		length:  length,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	// Cleanup goroutine
	go func() {
		ticker := time.NewTicker(length)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.evictExpired()
			case <-s.stop:
				return
			}
		}
	}()

	return s
}

func (s *MemoryStore) Increment(_ context.Context, key string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, exists := s.windows[key]
	if !exists || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(s.length)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt, nil
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
