package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies a scheduling failure. Kinds are stable identifiers:
// callers branch on them and message catalogs key off them, so renaming
// one is a breaking change.
type Kind string

const (
	KindOutsideWorkingHours       Kind = "outside_working_hours"
	KindHolidayOrNonWorkingDay    Kind = "holiday_or_non_working_day"
	KindBreakOverlap              Kind = "break_overlap"
	KindTimeSlotBlocked           Kind = "time_slot_blocked"
	KindDoctorConflict            Kind = "doctor_conflict"
	KindPatientConflict           Kind = "patient_conflict"
	KindSessionRequired           Kind = "session_id_required"
	KindSessionNotFound           Kind = "session_not_found"
	KindDuplicateSessionBooking   Kind = "duplicate_session_booking"
	KindCompletedSessionRebooking Kind = "completed_session_rebooking"
	KindInvalidSessionStructure   Kind = "invalid_session_structure"
	KindInvalidStatusTransition   Kind = "invalid_status_transition"
	KindMissingCancellationReason Kind = "missing_cancellation_reason"
	KindMissingCompletionNotes    Kind = "missing_completion_notes"
)

// ErrorData carries the structured facts behind a failure, enough for a
// caller to render a precise message in any language. Only the fields
// relevant to the kind are set.
type ErrorData struct {
	Date            *Date         `json:"date,omitempty"`
	Opening         *TimeOfDay    `json:"opening,omitempty"`
	Closing         *TimeOfDay    `json:"closing,omitempty"`
	Break           *BreakWindow  `json:"break,omitempty"`
	Blocked         *TimeInterval `json:"blocked,omitempty"`
	Conflicts       []Conflict    `json:"conflicts,omitempty"`
	ServiceID       *uuid.UUID    `json:"service_id,omitempty"`
	SessionID       *uuid.UUID    `json:"session_id,omitempty"`
	SessionCount    *int          `json:"session_count,omitempty"`
	SessionOrder    *int          `json:"session_order,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	DuplicateOrders []int         `json:"duplicate_orders,omitempty"`
	FromStatus      Status        `json:"from_status,omitempty"`
	ToStatus        Status        `json:"to_status,omitempty"`
	MinNotesLength  *int          `json:"min_notes_length,omitempty"`
}

// Error is a structured scheduling failure. The engine never retries:
// every Error is semantic, and the first violated rule in a validation
// pass is the one returned.
type Error struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Data    ErrorData `json:"data"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf returns the engine error kind behind err, or "" when err is not
// an engine error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func newHolidayOrNonWorkingDay(date Date) *Error {
	d := date
	return &Error{
		Kind:    KindHolidayOrNonWorkingDay,
		Message: fmt.Sprintf("no working hours on %s", date),
		Data:    ErrorData{Date: &d},
	}
}

func newOutsideWorkingHours(date Date, eff *EffectiveHours) *Error {
	d := date
	opening := eff.Opening
	closing := eff.Closing
	return &Error{
		Kind:    KindOutsideWorkingHours,
		Message: fmt.Sprintf("proposed time is outside working hours %s-%s", opening, closing),
		Data:    ErrorData{Date: &d, Opening: &opening, Closing: &closing},
	}
}

func newBreakOverlap(date Date, b BreakWindow) *Error {
	d := date
	bw := b
	return &Error{
		Kind:    KindBreakOverlap,
		Message: fmt.Sprintf("proposed time overlaps the break %s-%s", b.Start, b.End),
		Data:    ErrorData{Date: &d, Break: &bw},
	}
}

func newTimeSlotBlocked(blocked TimeInterval) *Error {
	hit := blocked
	return &Error{
		Kind:    KindTimeSlotBlocked,
		Message: fmt.Sprintf("time slot is blocked from %s to %s", blocked.Start, blocked.End()),
		Data:    ErrorData{Blocked: &hit},
	}
}

// newConflictError wraps the detector output, keeping only the first
// kind reported: doctor conflicts outrank patient conflicts because the
// detector lists them first.
func newConflictError(conflicts []Conflict) *Error {
	first := conflicts[0].Kind
	same := make([]Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if c.Kind == first {
			same = append(same, c)
		}
	}
	kind := KindDoctorConflict
	if first == ConflictPatientBusy {
		kind = KindPatientConflict
	}
	return &Error{
		Kind:    kind,
		Message: same[0].Message,
		Data:    ErrorData{Conflicts: same},
	}
}

// NewRaceConflict reports a booking that lost the per-(doctor, date)
// serialization race. It is indistinguishable by kind from a conflict
// found during the normal check, so callers handle both the same way.
func NewRaceConflict(doctorID uuid.UUID, date Date) *Error {
	d := date
	return &Error{
		Kind:    KindDoctorConflict,
		Message: "another booking for this doctor and date is being processed",
		Data:    ErrorData{Date: &d},
	}
}

func newSessionRequired(serviceID uuid.UUID) *Error {
	id := serviceID
	return &Error{
		Kind:    KindSessionRequired,
		Message: "service has sessions; a session id is required",
		Data:    ErrorData{ServiceID: &id},
	}
}

func newSessionNotFound(sessionID uuid.UUID) *Error {
	id := sessionID
	return &Error{
		Kind:    KindSessionNotFound,
		Message: fmt.Sprintf("session %s does not belong to the service", sessionID),
		Data:    ErrorData{SessionID: &id},
	}
}

func newDuplicateSessionBooking(sessionID uuid.UUID) *Error {
	id := sessionID
	return &Error{
		Kind:    KindDuplicateSessionBooking,
		Message: "patient already has an active booking for this session",
		Data:    ErrorData{SessionID: &id},
	}
}

func newCompletedSessionRebooking(sessionID uuid.UUID) *Error {
	id := sessionID
	return &Error{
		Kind:    KindCompletedSessionRebooking,
		Message: "session is already completed for this patient and cannot be rebooked",
		Data:    ErrorData{SessionID: &id},
	}
}

func newTooManySessions(count int) *Error {
	n := count
	return &Error{
		Kind:    KindInvalidSessionStructure,
		Message: fmt.Sprintf("service has %d sessions; the maximum is %d", count, MaxSessionsPerService),
		Data:    ErrorData{SessionCount: &n},
	}
}

func newBlankSessionName(order int) *Error {
	o := order
	return &Error{
		Kind:    KindInvalidSessionStructure,
		Message: "session name cannot be blank",
		Data:    ErrorData{SessionOrder: &o},
	}
}

func newInvalidSessionOrder(order int) *Error {
	o := order
	return &Error{
		Kind:    KindInvalidSessionStructure,
		Message: fmt.Sprintf("session order must be a positive integer, got %d", order),
		Data:    ErrorData{SessionOrder: &o},
	}
}

func newInvalidSessionDuration(order, minutes int) *Error {
	o := order
	m := minutes
	return &Error{
		Kind: KindInvalidSessionStructure,
		Message: fmt.Sprintf("session duration must be between %d and %d minutes, got %d",
			MinSessionMinutes, MaxSessionMinutes, minutes),
		Data: ErrorData{SessionOrder: &o, DurationMinutes: &m},
	}
}

func newDuplicateSessionOrders(orders []int) *Error {
	return &Error{
		Kind:    KindInvalidSessionStructure,
		Message: fmt.Sprintf("session order values are not unique: %v", orders),
		Data:    ErrorData{DuplicateOrders: orders},
	}
}

func newInvalidTransition(from, to Status) *Error {
	return &Error{
		Kind:    KindInvalidStatusTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Data:    ErrorData{FromStatus: from, ToStatus: to},
	}
}

func newRescheduleTerminal(status Status) *Error {
	return &Error{
		Kind:    KindInvalidStatusTransition,
		Message: fmt.Sprintf("cannot reschedule a %s appointment", status),
		Data:    ErrorData{FromStatus: status},
	}
}

func newMissingCancellationReason() *Error {
	return &Error{
		Kind:    KindMissingCancellationReason,
		Message: "a cancellation reason is required",
	}
}

func newMissingCompletionNotes(minLen int) *Error {
	e := &Error{
		Kind:    KindMissingCompletionNotes,
		Message: "completion notes are required",
	}
	if minLen > 0 {
		n := minLen
		e.Message = fmt.Sprintf("completion notes of at least %d characters are required", minLen)
		e.Data.MinNotesLength = &n
	}
	return e
}
