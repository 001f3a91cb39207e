package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// ConflictKind identifies whose calendar a conflict sits on.
type ConflictKind string

const (
	ConflictDoctorBusy  ConflictKind = "doctor_busy"
	ConflictPatientBusy ConflictKind = "patient_busy"
)

// ExistingBooking is the slice of a persisted appointment the conflict
// detector needs.
type ExistingBooking struct {
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Interval      TimeInterval `json:"interval"`
	Status        Status       `json:"status"`
}

// ProposedBooking is the candidate interval being checked.
type ProposedBooking struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Date      Date      `json:"date"`
	Start     TimeOfDay `json:"start_time"`
	Minutes   int       `json:"duration_minutes"`
}

// Interval returns the proposed time interval.
func (p ProposedBooking) Interval() TimeInterval {
	return TimeInterval{Date: p.Date, Start: p.Start, Minutes: p.Minutes}
}

// Conflict is one existing appointment that overlaps a proposed one.
type Conflict struct {
	Kind          ConflictKind `json:"kind"`
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Interval      TimeInterval `json:"interval"`
	Message       string       `json:"message"`
}

// FindConflicts returns every existing booking that overlaps the proposed
// interval on the doctor's or the patient's calendar. Cancelled and
// no-show bookings never conflict. excludeID (uuid.Nil for none) skips
// the appointment being rescheduled so it cannot conflict with itself.
// Doctor conflicts are listed before patient conflicts. The detector
// performs no writes; callers reject the booking when the result is
// non-empty.
func FindConflicts(proposed ProposedBooking, doctorBookings, patientBookings []ExistingBooking, excludeID uuid.UUID) []Conflict {
	iv := proposed.Interval()
	conflicts := make([]Conflict, 0)

	for _, b := range doctorBookings {
		if !collides(iv, b, excludeID) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Kind:          ConflictDoctorBusy,
			AppointmentID: b.AppointmentID,
			Interval:      b.Interval,
			Message:       fmt.Sprintf("doctor already has an appointment from %s to %s", b.Interval.Start, b.Interval.End()),
		})
	}

	for _, b := range patientBookings {
		if !collides(iv, b, excludeID) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Kind:          ConflictPatientBusy,
			AppointmentID: b.AppointmentID,
			Interval:      b.Interval,
			Message:       fmt.Sprintf("patient already has an appointment from %s to %s", b.Interval.Start, b.Interval.End()),
		})
	}

	return conflicts
}

func collides(iv TimeInterval, b ExistingBooking, excludeID uuid.UUID) bool {
	if excludeID != uuid.Nil && b.AppointmentID == excludeID {
		return false
	}
	if !b.Status.OccupiesSlot() {
		return false
	}
	return iv.Overlaps(b.Interval)
}
