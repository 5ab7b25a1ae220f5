package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// EndpointRateLimit overrides the default limit for one route.
type EndpointRateLimit struct {
	Requests int
	Window   time.Duration
}

// CounterStore counts hits in fixed windows. The first hit of a key opens
// its window.
type CounterStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

type RateLimiterConfig struct {
	Max    int
	Window time.Duration
	// KeyGenerator returns the terminal the request is counted against.
	KeyGenerator func(c *fiber.Ctx) string
	// PerEndpoint limits are keyed by route pattern and counted separately.
	PerEndpoint map[string]EndpointRateLimit
	// Store defaults to an in-process store. Use RedisCounterStore when
	// several replicas serve the same kiosks.
	Store  CounterStore
	Logger *slog.Logger
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Max:          600,
		Window:       time.Minute,
		KeyGenerator: terminalKey,
		PerEndpoint:  ScanRateLimits(),
	}
}

func terminalKey(c *fiber.Ctx) string {
	terminalID, ok := c.Locals(LocalTerminalID).(uuid.UUID)
	if !ok {
		return ""
	}
	return terminalID.String()
}

// ScanRateLimits bounds how fast a single kiosk may submit scans, so a
// camera stuck in a capture loop cannot flood the extractor.
func ScanRateLimits() map[string]EndpointRateLimit {
	return map[string]EndpointRateLimit{
		"/v1/checkins/face":     {Requests: 30, Window: time.Minute},
		"/v1/checkins/token":    {Requests: 60, Window: time.Minute},
		"/v1/admin/identify":    {Requests: 30, Window: time.Minute},
		"/v1/admin/enrollments": {Requests: 30, Window: time.Minute},
	}
}

type RateLimiter struct {
	config RateLimiterConfig
	local  *MemoryCounterStore
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Max <= 0 {
		config.Max = 600
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = terminalKey
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	rl := &RateLimiter{config: config}
	if config.Store == nil {
		rl.local = NewMemoryCounterStore(5 * time.Minute)
		rl.config.Store = rl.local
	}
	return rl
}

// Stop releases the in-process store. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	if rl.local != nil {
		rl.local.Stop()
	}
}

func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rl.config.KeyGenerator(c)
		if key == "" {
			// unauthenticated requests fail at auth
			return c.Next()
		}

		limit, window := rl.config.Max, rl.config.Window
		if ep, ok := rl.config.PerEndpoint[c.Path()]; ok {
			limit, window = ep.Requests, ep.Window
			key += "|" + c.Path()
		}

		count, resetAt, err := rl.config.Store.Hit(c.UserContext(), key, window)
		if err != nil {
			// fail open
			rl.config.Logger.Warn("rate limit store unavailable",
				slog.String("key", key),
				slog.Any("error", err),
			)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(limit-count, 0)))
		c.Set("X-RateLimit-Reset", resetAt.UTC().Format(time.RFC3339))

		if count > limit {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(int(time.Until(resetAt).Seconds()), 1)))
			return domain.ErrRateLimitExceeded
		}
		return c.Next()
	}
}

type counterWindow struct {
	count   int
	resetAt time.Time
	length  time.Duration
}

// MemoryCounterStore keeps windows in a map and sweeps stale ones
// periodically.
type MemoryCounterStore struct {
	mu       sync.Mutex
	windows  map[string]*counterWindow
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCounterStore(sweepEvery time.Duration) *MemoryCounterStore {
	s := &MemoryCounterStore{
		windows: make(map[string]*counterWindow),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.sweep(sweepEvery)
	return s
}

func (s *MemoryCounterStore) Hit(_ context.Context, key string, length time.Duration) (int, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &counterWindow{resetAt: now.Add(length), length: length}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

func (s *MemoryCounterStore) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *MemoryCounterStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for key, w := range s.windows {
				if now.Sub(w.resetAt) > w.length {
					delete(s.windows, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
