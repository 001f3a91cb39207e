// Package roster manages the people and places appointments are booked
// against: clinics, doctors, their weekly working-hours profiles,
// holidays and ad hoc blocked time. It also adapts that data into the
// scheduling engine's WorkingHoursSource.
package roster

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

// Clinic maps to the clinics table.
type Clinic struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OrganizationID *uuid.UUID `db:"organization_id" json:"organization_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	Address        *string    `db:"address" json:"address,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Specialty *string   `db:"specialty" json:"specialty,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OwnerKind says whose working-hours profile a row belongs to.
type OwnerKind string

const (
	OwnerDoctor OwnerKind = "doctor"
	OwnerClinic OwnerKind = "clinic"
)

// Valid reports whether k is a known owner kind.
func (k OwnerKind) Valid() bool {
	return k == OwnerDoctor || k == OwnerClinic
}

// WorkingHours is one weekday row of a doctor's or clinic's weekly
// profile. Times bind from JSON as "HH:MM" strings.
type WorkingHours struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	OwnerKind  OwnerKind         `db:"owner_kind" json:"owner_kind"`
	OwnerID    uuid.UUID         `db:"owner_id" json:"owner_id"`
	Weekday    int               `db:"weekday" json:"weekday"` // 0=Sunday .. 6=Saturday
	IsWorking  bool              `db:"is_working" json:"is_working"`
	Opening    engine.TimeOfDay  `db:"opening_minutes" json:"opening_time"`
	Closing    engine.TimeOfDay  `db:"closing_minutes" json:"closing_time"`
	BreakStart *engine.TimeOfDay `db:"break_start_minutes" json:"break_start,omitempty"`
	BreakEnd   *engine.TimeOfDay `db:"break_end_minutes" json:"break_end,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// DayProfile converts the row into the engine's weekday profile.
func (w *WorkingHours) DayProfile() *engine.DayProfile {
	p := &engine.DayProfile{
		Working: w.IsWorking,
		Opening: w.Opening,
		Closing: w.Closing,
	}
	if w.BreakStart != nil && w.BreakEnd != nil {
		bs := *w.BreakStart
		be := *w.BreakEnd
		p.BreakStart = &bs
		p.BreakEnd = &be
	}
	return p
}

// HolidayScope says how widely a holiday applies.
type HolidayScope string

const (
	ScopeClinic       HolidayScope = "clinic"
	ScopeOrganization HolidayScope = "organization"
)

// Holiday voids every bookable day in its date range. Clinic-scoped
// holidays carry the clinic id; organization-scoped ones apply to all
// clinics.
type Holiday struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	Scope     HolidayScope `db:"scope" json:"scope"`
	ClinicID  *uuid.UUID   `db:"clinic_id" json:"clinic_id,omitempty"`
	Name      string       `db:"name" json:"name"`
	StartDate engine.Date  `db:"start_date" json:"start_date"`
	EndDate   engine.Date  `db:"end_date" json:"end_date"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// Covers reports whether the holiday includes the given date.
func (h *Holiday) Covers(date engine.Date) bool {
	return !date.Before(h.StartDate) && !date.After(h.EndDate)
}

// BlockedSlot is ad hoc doctor unavailability: the same daily time range
// blocked across a date range (leave, training, maintenance).
type BlockedSlot struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	DoctorID  uuid.UUID        `db:"doctor_id" json:"doctor_id"`
	StartDate engine.Date      `db:"start_date" json:"start_date"`
	EndDate   engine.Date      `db:"end_date" json:"end_date"`
	StartTime engine.TimeOfDay `db:"start_minutes" json:"start_time"`
	EndTime   engine.TimeOfDay `db:"end_minutes" json:"end_time"`
	Reason    *string          `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// IntervalOn returns the blocked time interval for the given date, or
// false when the date falls outside the slot's date range.
func (b *BlockedSlot) IntervalOn(date engine.Date) (engine.TimeInterval, bool) {
	if date.Before(b.StartDate) || date.After(b.EndDate) {
		return engine.TimeInterval{}, false
	}
	return engine.TimeInterval{
		Date:    date,
		Start:   b.StartTime,
		Minutes: int(b.EndTime - b.StartTime),
	}, true
}
