// Package engine is the appointment scheduling core: working-hours
// resolution, slot availability, conflict detection, session booking
// rules and the status lifecycle. Every operation is a pure function
// over caller-supplied inputs; the engine performs no I/O, reads no
// clock and holds no state beyond the injected WorkingHoursSource, so
// concurrent calls over the same snapshot are safe without locking.
// Serializing the surrounding read-then-write sequence is the caller's
// job (see platform/lock).
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine ties the scheduling components together behind one entry point.
type Engine struct {
	hours        *HoursResolver
	availability *AvailabilityComputer
}

// New creates an engine over the given working-hours source.
func New(src WorkingHoursSource) *Engine {
	hours := NewHoursResolver(src)
	return &Engine{
		hours:        hours,
		availability: NewAvailabilityComputer(hours),
	}
}

// ResolveHours exposes the working-hours resolver (nil means the day has
// no bookable window).
func (e *Engine) ResolveHours(ctx context.Context, doctorID, clinicID uuid.UUID, date Date) (*EffectiveHours, error) {
	return e.hours.Resolve(ctx, doctorID, clinicID, date)
}

// ComputeDay exposes the availability computer.
func (e *Engine) ComputeDay(ctx context.Context, doctorID, clinicID uuid.UUID, date Date, slotMinutes int, bookings []BookedInterval, blocked []TimeInterval) (*DaySchedule, error) {
	return e.availability.ComputeDay(ctx, doctorID, clinicID, date, slotMinutes, bookings, blocked)
}

// BookingProposal is a candidate appointment. The caller has already
// verified that the referenced patient, doctor, clinic and service exist
// and are active; the service record arrives fully loaded with its
// sessions.
type BookingProposal struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ClinicID  uuid.UUID
	Service   Service
	SessionID uuid.UUID // uuid.Nil when the service has no sessions
	Date      Date
	Start     TimeOfDay
	ActorID   uuid.UUID
	At        time.Time
}

// BookingSnapshot is the slice of persisted state a booking decision
// needs, assembled by the caller inside whatever serialization it uses
// to close the check-then-act race.
type BookingSnapshot struct {
	DoctorBookings  []ExistingBooking
	PatientBookings []ExistingBooking
	Blocked         []TimeInterval
	SessionBookings []SessionBookingState
}

// ProposeBooking validates a candidate appointment and returns either an
// accepted draft with status scheduled and one initial history entry, or
// the first structured failure. Checks run in a fixed order so the most
// actionable failure surfaces first: working hours (holiday, window,
// break), blocked intervals, calendar conflicts (doctor before patient),
// then session rules. The caller persists the draft.
func (e *Engine) ProposeBooking(ctx context.Context, p BookingProposal, snap BookingSnapshot) (*Appointment, error) {
	minutes := p.Service.DurationFor(p.SessionID)

	iv := TimeInterval{Date: p.Date, Start: p.Start, Minutes: minutes}
	if err := e.checkWindow(ctx, p.DoctorID, p.ClinicID, iv, snap.Blocked); err != nil {
		return nil, err
	}

	proposed := ProposedBooking{
		DoctorID:  p.DoctorID,
		PatientID: p.PatientID,
		Date:      p.Date,
		Start:     p.Start,
		Minutes:   minutes,
	}
	if conflicts := FindConflicts(proposed, snap.DoctorBookings, snap.PatientBookings, uuid.Nil); len(conflicts) > 0 {
		return nil, newConflictError(conflicts)
	}

	if err := ValidateSessionBooking(p.Service, p.SessionID, snap.SessionBookings); err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID: p.PatientID,
		DoctorID:  p.DoctorID,
		ClinicID:  p.ClinicID,
		ServiceID: p.Service.ID,
		Date:      p.Date,
		Start:     p.Start,
		Minutes:   minutes,
		Status:    StatusScheduled,
		History: []StatusHistoryEntry{
			{Status: StatusScheduled, ChangedAt: p.At, ChangedBy: p.ActorID},
		},
	}
	if p.SessionID != uuid.Nil {
		sessionID := p.SessionID
		appt.SessionID = &sessionID
	}
	return appt, nil
}

// RescheduleRequest moves an appointment to a new date and start time,
// keeping its duration.
type RescheduleRequest struct {
	NewDate  Date
	NewStart TimeOfDay
	Reason   string
	ActorID  uuid.UUID
	At       time.Time
}

// Reschedule re-validates the new slot exactly like a fresh booking
// (working hours, blocked intervals, conflicts excluding the appointment
// itself) and, on success, moves the appointment and appends a
// RescheduleEntry preserving the previous slot. The status and its
// history are untouched. Terminal appointments cannot be rescheduled.
func (e *Engine) Reschedule(ctx context.Context, a *Appointment, req RescheduleRequest, snap BookingSnapshot) error {
	if a.Status.Terminal() {
		return newRescheduleTerminal(a.Status)
	}

	iv := TimeInterval{Date: req.NewDate, Start: req.NewStart, Minutes: a.Minutes}
	if err := e.checkWindow(ctx, a.DoctorID, a.ClinicID, iv, snap.Blocked); err != nil {
		return err
	}

	proposed := ProposedBooking{
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      req.NewDate,
		Start:     req.NewStart,
		Minutes:   a.Minutes,
	}
	if conflicts := FindConflicts(proposed, snap.DoctorBookings, snap.PatientBookings, a.ID); len(conflicts) > 0 {
		return newConflictError(conflicts)
	}

	entry := RescheduleEntry{
		PreviousDate:  a.Date,
		PreviousStart: a.Start,
		NewDate:       req.NewDate,
		NewStart:      req.NewStart,
		ChangedAt:     req.At,
		ChangedBy:     req.ActorID,
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		entry.Reason = &reason
	}
	a.Reschedules = append(a.Reschedules, entry)
	a.Date = req.NewDate
	a.Start = req.NewStart
	return nil
}

// checkWindow runs the working-hours stage shared by booking and
// reschedule: holiday/non-working day, effective window bounds, break
// overlap, then blocked intervals.
func (e *Engine) checkWindow(ctx context.Context, doctorID, clinicID uuid.UUID, iv TimeInterval, blocked []TimeInterval) error {
	eff, err := e.hours.Resolve(ctx, doctorID, clinicID, iv.Date)
	if err != nil {
		return err
	}
	if eff == nil {
		return newHolidayOrNonWorkingDay(iv.Date)
	}
	if iv.Start < eff.Opening || iv.End() > eff.Closing {
		return newOutsideWorkingHours(iv.Date, eff)
	}
	if eff.Break != nil && iv.Overlaps(breakInterval(iv.Date, *eff.Break)) {
		return newBreakOverlap(iv.Date, *eff.Break)
	}
	if hit, ok := overlapsAny(iv, blocked); ok {
		return newTimeSlotBlocked(hit)
	}
	return nil
}
