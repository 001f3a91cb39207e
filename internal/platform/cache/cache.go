// Package cache keeps recently computed day schedules in memory. Slot
// grids are pure functions of the doctor's day, so they stay valid until
// a booking, block or roster change touches that day; writers call
// InvalidateDay and readers treat cached schedules as read-only.
package cache

import (
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/engine"
)

type scheduleKey struct {
	doctorID    uuid.UUID
	clinicID    uuid.UUID
	date        engine.Date
	slotMinutes int
}

// ScheduleCache is an LRU over computed day schedules.
type ScheduleCache struct {
	cache  *lru.Cache[scheduleKey, *engine.DaySchedule]
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewScheduleCache creates a cache holding up to size schedules.
func NewScheduleCache(size int, logger zerolog.Logger) (*ScheduleCache, error) {
	cache, err := lru.New[scheduleKey, *engine.DaySchedule](size)
	if err != nil {
		return nil, err
	}
	return &ScheduleCache{cache: cache, logger: logger}, nil
}

// Get returns the cached schedule for the exact doctor, clinic, date and
// slot duration, or false on a miss.
func (c *ScheduleCache) Get(doctorID, clinicID uuid.UUID, date engine.Date, slotMinutes int) (*engine.DaySchedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sched, ok := c.cache.Get(scheduleKey{doctorID, clinicID, date, slotMinutes})
	if !ok {
		return nil, false
	}
	return sched, true
}

// Store caches a computed schedule.
func (c *ScheduleCache) Store(doctorID, clinicID uuid.UUID, date engine.Date, slotMinutes int, sched *engine.DaySchedule) {
	if sched == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(scheduleKey{doctorID, clinicID, date, slotMinutes}, sched)
}

// InvalidateDay drops every cached schedule for the doctor on the date,
// across all clinics and slot durations. Returns how many entries were
// removed.
func (c *ScheduleCache) InvalidateDay(doctorID uuid.UUID, date engine.Date) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.cache.Keys() {
		if key.doctorID == doctorID && key.date == date {
			c.cache.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug().
			Str("doctor_id", doctorID.String()).
			Str("date", date.String()).
			Int("removed", removed).
			Msg("schedule cache invalidated")
	}
	return removed
}

// Purge empties the cache.
func (c *ScheduleCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Len reports how many schedules are cached.
func (c *ScheduleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}
