package engine

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is the canonical appointment record. The engine creates
// drafts and mutates snapshots handed to it by the caller; persistence,
// ids and timestamps beyond the lifecycle fields are the caller's.
type Appointment struct {
	ID                 uuid.UUID            `json:"id"`
	PatientID          uuid.UUID            `json:"patient_id"`
	DoctorID           uuid.UUID            `json:"doctor_id"`
	ClinicID           uuid.UUID            `json:"clinic_id"`
	ServiceID          uuid.UUID            `json:"service_id"`
	SessionID          *uuid.UUID           `json:"session_id,omitempty"`
	Date               Date                 `json:"date"`
	Start              TimeOfDay            `json:"start_time"`
	Minutes            int                  `json:"duration_minutes"`
	Status             Status               `json:"status"`
	CancellationReason *string              `json:"cancellation_reason,omitempty"`
	CompletionNotes    *string              `json:"completion_notes,omitempty"`
	ActualStart        *time.Time           `json:"actual_start_time,omitempty"`
	ActualEnd          *time.Time           `json:"actual_end_time,omitempty"`
	StartedBy          *uuid.UUID           `json:"started_by,omitempty"`
	CompletedBy        *uuid.UUID           `json:"completed_by,omitempty"`
	CancelledBy        *uuid.UUID           `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time           `json:"cancelled_at,omitempty"`
	History            []StatusHistoryEntry `json:"status_history,omitempty"`
	Reschedules        []RescheduleEntry    `json:"reschedule_history,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// Interval returns the time the appointment occupies.
func (a *Appointment) Interval() TimeInterval {
	return TimeInterval{Date: a.Date, Start: a.Start, Minutes: a.Minutes}
}

// End returns the appointment's scheduled end time.
func (a *Appointment) End() TimeOfDay {
	return a.Interval().End()
}

// StatusHistoryEntry records one status change. Entries are append-only
// and never mutated or removed.
type StatusHistoryEntry struct {
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy uuid.UUID `json:"changed_by"`
	Reason    *string   `json:"reason,omitempty"`
}

// RescheduleEntry records one date/time move. Entries are append-only;
// the previous slot is preserved here rather than overwritten.
type RescheduleEntry struct {
	PreviousDate  Date      `json:"previous_date"`
	PreviousStart TimeOfDay `json:"previous_time"`
	NewDate       Date      `json:"new_date"`
	NewStart      TimeOfDay `json:"new_time"`
	Reason        *string   `json:"reason,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
	ChangedBy     uuid.UUID `json:"changed_by"`
}

func (a *Appointment) appendHistory(status Status, in TransitionInput, reason string) {
	entry := StatusHistoryEntry{Status: status, ChangedAt: in.At, ChangedBy: in.ActorID}
	if reason != "" {
		r := reason
		entry.Reason = &r
	}
	a.History = append(a.History, entry)
}
