package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

// localLocker is an in-process Locker for single-instance deployments
// running without Redis. Same try-once semantics: a held key fails with
// ErrNotAcquired rather than blocking.
type localLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates a process-local locker.
func NewLocalLocker() Locker {
	return &localLocker{held: make(map[string]bool)}
}

func (l *localLocker) WithScheduleLock(ctx context.Context, doctorID uuid.UUID, date engine.Date, fn func(ctx context.Context) error) error {
	key := scheduleKey(doctorID, date)

	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return ErrNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
