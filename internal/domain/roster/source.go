package roster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medbook/medbook/internal/engine"
)

// HoursSource adapts the roster repositories into the scheduling
// engine's WorkingHoursSource. An absent weekday row maps to a nil
// profile so the resolver treats the day as non-working.
type HoursSource struct {
	hours   WorkingHoursRepository
	holiday HolidayRepository
	blocked BlockedSlotRepository
}

func NewHoursSource(hours WorkingHoursRepository, holiday HolidayRepository, blocked BlockedSlotRepository) *HoursSource {
	return &HoursSource{hours: hours, holiday: holiday, blocked: blocked}
}

func (s *HoursSource) IsHoliday(ctx context.Context, clinicID uuid.UUID, date engine.Date) (bool, error) {
	holidays, err := s.holiday.FindCovering(ctx, clinicID, date)
	if err != nil {
		return false, err
	}
	return len(holidays) > 0, nil
}

func (s *HoursSource) DoctorDayProfile(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*engine.DayProfile, error) {
	return s.dayProfile(ctx, OwnerDoctor, doctorID, weekday)
}

func (s *HoursSource) ClinicDayProfile(ctx context.Context, clinicID uuid.UUID, weekday time.Weekday) (*engine.DayProfile, error) {
	return s.dayProfile(ctx, OwnerClinic, clinicID, weekday)
}

func (s *HoursSource) dayProfile(ctx context.Context, kind OwnerKind, ownerID uuid.UUID, weekday time.Weekday) (*engine.DayProfile, error) {
	w, err := s.hours.GetDay(ctx, kind, ownerID, int(weekday))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w.DayProfile(), nil
}

// BlockedIntervals returns the doctor's blocked time on the given date
// as engine intervals.
func (s *HoursSource) BlockedIntervals(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]engine.TimeInterval, error) {
	slots, err := s.blocked.FindCovering(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	intervals := make([]engine.TimeInterval, 0, len(slots))
	for _, b := range slots {
		if iv, ok := b.IntervalOn(date); ok {
			intervals = append(intervals, iv)
		}
	}
	return intervals, nil
}
