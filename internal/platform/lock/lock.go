// Package lock serializes booking writes per doctor and date. Every
// booking decision is a read-then-write over the doctor's day, so the
// service wraps it in WithScheduleLock; two concurrent bookings for the
// same doctor and date never interleave between the conflict check and
// the insert.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medbook/medbook/internal/engine"
)

// ErrNotAcquired is returned when the schedule lock is already held.
var ErrNotAcquired = errors.New("schedule lock not acquired")

// Locker guards the booking critical section for one doctor-day.
type Locker interface {
	WithScheduleLock(ctx context.Context, doctorID uuid.UUID, date engine.Date, fn func(ctx context.Context) error) error
}

// releaseTimeout bounds the unlock round trip when the caller's context
// is already gone.
const releaseTimeout = 5 * time.Second

// redisClient is the slice of *redis.Client the locker uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

type redisLocker struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisLocker creates a locker backed by a per doctor-day Redis key.
// The TTL bounds both the lock lifetime and the critical section.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func scheduleKey(doctorID uuid.UUID, date engine.Date) string {
	return fmt.Sprintf("lock:schedule:%s:%s", doctorID, date)
}

func (l *redisLocker) WithScheduleLock(ctx context.Context, doctorID uuid.UUID, date engine.Date, fn func(ctx context.Context) error) error {
	key := scheduleKey(doctorID, date)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire schedule lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		// The caller's context may already be cancelled here (request
		// abort, section timeout); releasing with it would leave the key
		// held until TTL.
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// unlockScript deletes the lock key only when it still holds our token,
// so an expired lock taken over by another booking is never released
// from here.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}
