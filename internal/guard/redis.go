package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeaseTTL = 30 * time.Second
	// leaseMargin covers the persistence calls, which have no timeout of
	// their own.
	leaseMargin = 20 * time.Second
	keyPrefix   = "ponto:terminal:busy:"
)

// LeaseTTL returns a lease long enough to outlive every bounded stage of a
// check-in plus leaseMargin, and never shorter than DefaultLeaseTTL.
func LeaseTTL(stageTimeouts ...time.Duration) time.Duration {
	ttl := leaseMargin
	for _, d := range stageTimeouts {
		if d > 0 {
			ttl += d
		}
	}
	return max(ttl, DefaultLeaseTTL)
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares the busy flag between API replicas. The lease expires after
// ttl so a crashed replica cannot wedge a terminal.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "terminal_guard"),
	}
}

func (r *Redis) TryAcquire(ctx context.Context, terminalID uuid.UUID) (ReleaseFunc, bool, error) {
	key := keyPrefix + terminalID.String()
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire terminal lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be gone.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
				r.logger.Warn("failed to release terminal lease",
					slog.String("terminal_id", terminalID.String()),
					slog.Any("error", err),
				)
			}
		})
	}, true, nil
}

var _ TerminalGuard = (*Redis)(nil)
