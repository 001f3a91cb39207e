// Package events publishes appointment lifecycle events. Downstream
// consumers (reminder senders, cache invalidators, reporting) bind by
// routing key; the booking flow itself never depends on a consumer
// being present.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

// Type is the event routing key.
type Type string

const (
	TypeScheduled   Type = "appointment.scheduled"
	TypeConfirmed   Type = "appointment.confirmed"
	TypeStarted     Type = "appointment.started"
	TypeCompleted   Type = "appointment.completed"
	TypeCancelled   Type = "appointment.cancelled"
	TypeNoShow      Type = "appointment.no_show"
	TypeRescheduled Type = "appointment.rescheduled"
)

// Event is the wire payload for one appointment state change.
type Event struct {
	Type          Type             `json:"type"`
	AppointmentID uuid.UUID        `json:"appointment_id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	DoctorID      uuid.UUID        `json:"doctor_id"`
	ClinicID      uuid.UUID        `json:"clinic_id"`
	Date          engine.Date      `json:"date"`
	StartTime     engine.TimeOfDay `json:"start_time"`
	Status        engine.Status    `json:"status"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// FromAppointment builds the event payload for an appointment's current
// state.
func FromAppointment(t Type, a *engine.Appointment, at time.Time) Event {
	return Event{
		Type:          t,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		ClinicID:      a.ClinicID,
		Date:          a.Date,
		StartTime:     a.Start,
		Status:        a.Status,
		OccurredAt:    at,
	}
}

// Publisher emits appointment events. Publish is called after the
// database commit; a publish failure must not roll the booking back.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher discards events. Used when the broker is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Recorder captures events for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
