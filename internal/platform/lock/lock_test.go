package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medbook/medbook/internal/engine"
)

var testDate = engine.Date{Year: 2025, Month: time.June, Day: 2}

func TestLocalLocker_HeldKeyFails(t *testing.T) {
	locker := NewLocalLocker()
	doctorID := uuid.New()

	err := locker.WithScheduleLock(context.Background(), doctorID, testDate, func(ctx context.Context) error {
		// Re-acquiring the same doctor-day inside the critical section
		// must fail, not deadlock.
		inner := locker.WithScheduleLock(ctx, doctorID, testDate, func(context.Context) error {
			t.Error("inner critical section must not run")
			return nil
		})
		if !errors.Is(inner, ErrNotAcquired) {
			t.Errorf("expected ErrNotAcquired, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocalLocker_ReleasedAfterSection(t *testing.T) {
	locker := NewLocalLocker()
	doctorID := uuid.New()

	for i := 0; i < 2; i++ {
		err := locker.WithScheduleLock(context.Background(), doctorID, testDate, func(context.Context) error {
			return nil
		})
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
	}
}

func TestLocalLocker_ReleasedAfterError(t *testing.T) {
	locker := NewLocalLocker()
	doctorID := uuid.New()
	boom := errors.New("boom")

	err := locker.WithScheduleLock(context.Background(), doctorID, testDate, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the section error to propagate, got %v", err)
	}

	// The failed section must still release the key.
	err = locker.WithScheduleLock(context.Background(), doctorID, testDate, func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("expected the lock to be free again, got %v", err)
	}
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	doctorID := uuid.New()

	err := locker.WithScheduleLock(context.Background(), doctorID, testDate, func(ctx context.Context) error {
		// A different date for the same doctor is a different lock.
		if err := locker.WithScheduleLock(ctx, doctorID, testDate.AddDays(1), func(context.Context) error {
			return nil
		}); err != nil {
			t.Errorf("different date: unexpected error: %v", err)
		}
		// A different doctor on the same date is a different lock.
		if err := locker.WithScheduleLock(ctx, uuid.New(), testDate, func(context.Context) error {
			return nil
		}); err != nil {
			t.Errorf("different doctor: unexpected error: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// fakeRedis satisfies redisClient without a server and records the
// context state seen by the unlock script.
type fakeRedis struct {
	setnxOK       bool
	released      bool
	releaseCtxErr error
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(f.setnxOK, nil)
}

func (f *fakeRedis) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	f.released = true
	f.releaseCtxErr = ctx.Err()
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, "", keys, args...)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeRedis) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (f *fakeRedis) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedisLocker_HeldKeyFails(t *testing.T) {
	locker := &redisLocker{client: &fakeRedis{setnxOK: false}, ttl: time.Minute}

	err := locker.WithScheduleLock(context.Background(), uuid.New(), testDate, func(context.Context) error {
		t.Error("critical section must not run")
		return nil
	})
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

func TestRedisLocker_ReleasesAfterCallerCancel(t *testing.T) {
	fake := &fakeRedis{setnxOK: true}
	locker := &redisLocker{client: fake, ttl: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	err := locker.WithScheduleLock(ctx, uuid.New(), testDate, func(context.Context) error {
		// The request is aborted mid-section; the key must still be
		// released rather than lingering until TTL.
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.released {
		t.Fatal("expected the lock to be released")
	}
	if fake.releaseCtxErr != nil {
		t.Fatalf("release ran with a dead context: %v", fake.releaseCtxErr)
	}
}

func TestScheduleKey(t *testing.T) {
	doctorID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	key := scheduleKey(doctorID, testDate)
	want := "lock:schedule:6ba7b810-9dad-11d1-80b4-00c04fd430c8:2025-06-02"
	if key != want {
		t.Errorf("expected %q, got %q", want, key)
	}
}
