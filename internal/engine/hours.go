package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DayProfile is one weekday row of a working-hours profile, for either a
// doctor or a clinic.
type DayProfile struct {
	Working    bool
	Opening    TimeOfDay
	Closing    TimeOfDay
	BreakStart *TimeOfDay
	BreakEnd   *TimeOfDay
}

// BreakWindow is a mid-day pause inside the effective working window.
type BreakWindow struct {
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

// EffectiveHours is the bookable window for a (doctor, clinic, date)
// triple after holiday exclusion and schedule intersection.
type EffectiveHours struct {
	Opening TimeOfDay    `json:"opening"`
	Closing TimeOfDay    `json:"closing"`
	Break   *BreakWindow `json:"break,omitempty"`
}

// WorkingHoursSource supplies the raw schedule data the resolver works
// over. A nil profile means no entry exists for that weekday.
type WorkingHoursSource interface {
	IsHoliday(ctx context.Context, clinicID uuid.UUID, date Date) (bool, error)
	DoctorDayProfile(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*DayProfile, error)
	ClinicDayProfile(ctx context.Context, clinicID uuid.UUID, weekday time.Weekday) (*DayProfile, error)
}

// HoursResolver computes effective working hours from a WorkingHoursSource.
type HoursResolver struct {
	src WorkingHoursSource
}

// NewHoursResolver creates a resolver over the given source.
func NewHoursResolver(src WorkingHoursSource) *HoursResolver {
	return &HoursResolver{src: src}
}

// Resolve returns the effective bookable window for the doctor at the
// clinic on the given date, or nil when the day admits no bookings:
// the date is a holiday, either party has no working profile for the
// weekday, or the intersected window is empty. The break window comes
// from the doctor's profile only; clinic breaks are not intersected.
func (r *HoursResolver) Resolve(ctx context.Context, doctorID, clinicID uuid.UUID, date Date) (*EffectiveHours, error) {
	holiday, err := r.src.IsHoliday(ctx, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("check holiday for %s: %w", date, err)
	}
	if holiday {
		return nil, nil
	}

	doctor, err := r.src.DoctorDayProfile(ctx, doctorID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load doctor hours: %w", err)
	}
	if doctor == nil || !doctor.Working {
		return nil, nil
	}

	clinic, err := r.src.ClinicDayProfile(ctx, clinicID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load clinic hours: %w", err)
	}
	if clinic == nil || !clinic.Working {
		return nil, nil
	}

	opening := max(doctor.Opening, clinic.Opening)
	closing := min(doctor.Closing, clinic.Closing)
	if opening >= closing {
		return nil, nil
	}

	eff := &EffectiveHours{Opening: opening, Closing: closing}
	if doctor.BreakStart != nil && doctor.BreakEnd != nil && *doctor.BreakStart < *doctor.BreakEnd {
		eff.Break = &BreakWindow{Start: *doctor.BreakStart, End: *doctor.BreakEnd}
	}
	return eff, nil
}

// breakInterval converts a break window into an interval on the given date.
func breakInterval(date Date, b BreakWindow) TimeInterval {
	return TimeInterval{Date: date, Start: b.Start, Minutes: int(b.End - b.Start)}
}
