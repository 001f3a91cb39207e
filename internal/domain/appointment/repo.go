// Package appointment orchestrates the booking flow: it assembles the
// persisted state the scheduling engine needs, serializes doctor-day
// writes behind the schedule lock, and persists the engine's decisions
// together with their status and reschedule history.
package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

// ErrNotFound is returned when a referenced entity does not exist or is
// inactive. Repository adapters translate their driver's no-rows
// sentinel into it.
var ErrNotFound = errors.New("not found")

type Repository interface {
	// Create inserts the appointment and its initial history entries.
	// Callers run it inside a transaction.
	Create(ctx context.Context, a *engine.Appointment) error
	// GetByID loads the appointment with its full status and reschedule
	// history.
	GetByID(ctx context.Context, id uuid.UUID) (*engine.Appointment, error)
	// UpdateSlot persists a date/time move.
	UpdateSlot(ctx context.Context, a *engine.Appointment) error
	// UpdateStatus persists the status and the lifecycle fields a
	// transition touched.
	UpdateStatus(ctx context.Context, a *engine.Appointment) error
	AppendHistory(ctx context.Context, appointmentID uuid.UUID, entry engine.StatusHistoryEntry) error
	AppendReschedule(ctx context.Context, appointmentID uuid.UUID, entry engine.RescheduleEntry) error

	// DoctorBookings and PatientBookings return every appointment on the
	// given day, including cancelled and no-show ones; the conflict
	// detector decides which of them still occupy their slot.
	DoctorBookings(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]engine.ExistingBooking, error)
	PatientBookings(ctx context.Context, patientID uuid.UUID, date engine.Date) ([]engine.ExistingBooking, error)
	// SessionBookings returns the patient's bookings against the
	// service's sessions, for the per-session rules.
	SessionBookings(ctx context.Context, patientID, serviceID uuid.UUID) ([]engine.SessionBookingState, error)
	// BookedIntervals returns the slot-occupying appointments for the
	// availability grid.
	BookedIntervals(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]engine.BookedInterval, error)

	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*engine.Appointment, int, error)
}

// PatientInfo is the slice of the patient record booking needs.
type PatientInfo struct {
	ID       uuid.UUID
	FullName string
	Email    *string
	Phone    *string
	Active   bool
}

// DoctorInfo is the slice of the doctor record booking needs.
type DoctorInfo struct {
	ID       uuid.UUID
	FullName string
	Active   bool
}

// ClinicInfo is the slice of the clinic record booking needs.
type ClinicInfo struct {
	ID     uuid.UUID
	Name   string
	Active bool
}

// Directory resolves the people and places an appointment references.
// Implementations return ErrNotFound for missing ids.
type Directory interface {
	Patient(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
	Doctor(ctx context.Context, id uuid.UUID) (*DoctorInfo, error)
	Clinic(ctx context.Context, id uuid.UUID) (*ClinicInfo, error)
}

// Catalog loads services in the engine's shape. ok is false when the
// service does not exist or is inactive.
type Catalog interface {
	EngineService(ctx context.Context, id uuid.UUID) (engine.Service, bool, error)
}

// BlockedSource supplies the doctor's blocked intervals for a day.
type BlockedSource interface {
	BlockedIntervals(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]engine.TimeInterval, error)
}

// Tx runs fn atomically. The production wiring passes db.WithTx bound to
// the pool; tests pass a passthrough.
type Tx func(ctx context.Context, fn func(ctx context.Context) error) error
