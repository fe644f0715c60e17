package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CircuitBreaker keeps per-dependency breaker state in Redis so every
// worker process backs off together.
type CircuitBreaker struct {
	redis       *redis.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(redisClient *redis.Client, baseBackoff, maxBackoff time.Duration) *CircuitBreaker {
	if baseBackoff <= 0 {
		baseBackoff = 5 * time.Second
	}
	if maxBackoff < baseBackoff {
		maxBackoff = baseBackoff
	}
	return &CircuitBreaker{
		redis:       redisClient,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		now:         time.Now,
	}
}

func breakerKey(dep string) string { return fmt.Sprintf("booklet:cb:%s", dep) }

// Open opens the breaker for dep. Each consecutive failure doubles the
// cooldown up to maxBackoff.
func (cb *CircuitBreaker) Open(ctx context.Context, dep string) {
	key := breakerKey(dep)

	failuresStr, _ := cb.redis.HGet(ctx, key, "failures").Result()
	failures, _ := strconv.Atoi(failuresStr)
	failures++

	backoff := cb.baseBackoff
	for i := 1; i < failures; i++ {
		backoff *= 2
		if backoff > cb.maxBackoff {
			backoff = cb.maxBackoff
			break
		}
	}

	now := cb.now()
	retryAt := now.Add(backoff)
	cb.redis.HSet(ctx, key, map[string]interface{}{
		"state":     "open",
		"retry_at":  retryAt.Unix(),
		"failures":  failures,
		"opened_at": now.Unix(),
	})
	cb.redis.Expire(ctx, key, 10*time.Minute)

	log.Warn().
		Str("dependency", dep).
		Dur("cooldown", backoff).
		Int("failures", failures).
		Time("retry_at", retryAt).
		Msg("circuit breaker OPENED")
}

// IsOpen reports whether dep is still cooling down. Once the cooldown has
// passed the breaker goes half-open and lets work through.
func (cb *CircuitBreaker) IsOpen(ctx context.Context, dep string) bool {
	key := breakerKey(dep)

	state, err := cb.redis.HGet(ctx, key, "state").Result()
	if err != nil || state != "open" {
		return false
	}

	retryAtStr, _ := cb.redis.HGet(ctx, key, "retry_at").Result()
	retryAt, _ := strconv.ParseInt(retryAtStr, 10, 64)
	if cb.now().Unix() >= retryAt {
		cb.redis.HSet(ctx, key, "state", "half_open")
		log.Info().Str("dependency", dep).Msg("circuit breaker moved to HALF-OPEN")
		return false
	}
	return true
}

// Close resets the breaker after a success.
func (cb *CircuitBreaker) Close(ctx context.Context, dep string) {
	key := breakerKey(dep)
	state, _ := cb.redis.HGet(ctx, key, "state").Result()
	if state == "" || state == "closed" {
		return
	}
	cb.redis.Del(ctx, key)
	log.Info().Str("dependency", dep).Msg("circuit breaker CLOSED (reset)")
}
