package engine

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// MinConcludeNotesLen is the minimum length, in characters, of the doctor
// notes required by Conclude.
const MinConcludeNotesLen = 10

// statusTransitions is the full lifecycle graph. Terminal states have no
// row; adding a status means editing this table, nothing else.
var statusTransitions = map[Status]map[Status]bool{
	StatusScheduled:  {StatusConfirmed: true, StatusCancelled: true, StatusNoShow: true},
	StatusConfirmed:  {StatusInProgress: true, StatusCancelled: true, StatusNoShow: true},
	StatusInProgress: {StatusCompleted: true},
}

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// CanTransition reports whether the lifecycle graph has an edge from one
// status to the other. It checks graph membership only; the guarded
// transition functions enforce the per-transition data requirements.
func CanTransition(from, to Status) bool {
	return statusTransitions[from][to]
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// OccupiesSlot reports whether an appointment in this status still holds
// its time slot. Cancelled and no-show appointments do not.
func (s Status) OccupiesSlot() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// TransitionInput carries the actor, clock reading and free-text fields a
// transition records. The engine never reads the wall clock itself.
type TransitionInput struct {
	ActorID uuid.UUID
	At      time.Time
	Reason  string
	Notes   string
}

// Confirm moves a scheduled appointment to confirmed.
func Confirm(a *Appointment, in TransitionInput) error {
	if !CanTransition(a.Status, StatusConfirmed) {
		return newInvalidTransition(a.Status, StatusConfirmed)
	}
	a.Status = StatusConfirmed
	a.appendHistory(StatusConfirmed, in, "")
	return nil
}

// Start moves an appointment to in_progress, recording the actual start
// time and who started it.
func Start(a *Appointment, in TransitionInput) error {
	if !CanTransition(a.Status, StatusInProgress) {
		return newInvalidTransition(a.Status, StatusInProgress)
	}
	at := in.At
	actor := in.ActorID
	a.ActualStart = &at
	a.StartedBy = &actor
	a.Status = StatusInProgress
	a.appendHistory(StatusInProgress, in, "")
	return nil
}

// Complete moves an in-progress appointment to completed. Completion
// notes must be non-blank; the actual end time and completing actor are
// recorded.
func Complete(a *Appointment, in TransitionInput) error {
	if !CanTransition(a.Status, StatusCompleted) {
		return newInvalidTransition(a.Status, StatusCompleted)
	}
	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		return newMissingCompletionNotes(0)
	}
	return finishAppointment(a, in, notes)
}

// Conclude is the doctor-facing completion variant: it requires
// substantive notes of at least MinConcludeNotesLen characters.
func Conclude(a *Appointment, in TransitionInput) error {
	if !CanTransition(a.Status, StatusCompleted) {
		return newInvalidTransition(a.Status, StatusCompleted)
	}
	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) < MinConcludeNotesLen {
		return newMissingCompletionNotes(MinConcludeNotesLen)
	}
	return finishAppointment(a, in, notes)
}

func finishAppointment(a *Appointment, in TransitionInput, notes string) error {
	at := in.At
	actor := in.ActorID
	a.CompletionNotes = &notes
	a.ActualEnd = &at
	a.CompletedBy = &actor
	a.Status = StatusCompleted
	a.appendHistory(StatusCompleted, in, "")
	return nil
}

// Cancel moves an appointment to cancelled. A non-blank reason is
// required and recorded along with when and by whom.
func Cancel(a *Appointment, in TransitionInput) error {
	if !CanTransition(a.Status, StatusCancelled) {
		return newInvalidTransition(a.Status, StatusCancelled)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return newMissingCancellationReason()
	}
	at := in.At
	actor := in.ActorID
	a.CancellationReason = &reason
	a.CancelledAt = &at
	a.CancelledBy = &actor
	a.Status = StatusCancelled
	a.appendHistory(StatusCancelled, in, reason)
	return nil
}

// MarkNoShow moves an appointment to no_show.
func MarkNoShow(a *Appointment, in TransitionInput) error {
	if !CanTransition(a.Status, StatusNoShow) {
		return newInvalidTransition(a.Status, StatusNoShow)
	}
	a.Status = StatusNoShow
	a.appendHistory(StatusNoShow, in, strings.TrimSpace(in.Reason))
	return nil
}
