package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// BookedInterval is the slice of an existing appointment the availability
// computation needs: its id and the time it occupies.
type BookedInterval struct {
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Interval      TimeInterval `json:"interval"`
}

// SlotReason explains why a slot is unavailable.
type SlotReason string

const (
	SlotReasonBreak   SlotReason = "break"
	SlotReasonBlocked SlotReason = "blocked"
	SlotReasonBooked  SlotReason = "booked"
)

// Slot is one fixed-duration candidate booking window in a day schedule.
type Slot struct {
	Start         TimeOfDay  `json:"start_time"`
	End           TimeOfDay  `json:"end_time"`
	Available     bool       `json:"available"`
	Reason        SlotReason `json:"reason,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

// DaySchedule is the slot grid for one doctor, clinic and date.
type DaySchedule struct {
	Date           Date   `json:"date"`
	SlotMinutes    int    `json:"slot_minutes"`
	Slots          []Slot `json:"slots"`
	TotalSlots     int    `json:"total_slots"`
	AvailableSlots int    `json:"available_slots"`
	BookedSlots    int    `json:"booked_slots"`
}

// AvailabilityComputer enumerates candidate time slots for a day.
type AvailabilityComputer struct {
	hours *HoursResolver
}

// NewAvailabilityComputer creates a computer over the given resolver.
func NewAvailabilityComputer(hours *HoursResolver) *AvailabilityComputer {
	return &AvailabilityComputer{hours: hours}
}

// ComputeDay builds the slot grid for the given day. Slots run from the
// effective opening in fixed steps of slotMinutes; a trailing slot whose
// end would pass the closing time is dropped, never clipped. A slot's
// unavailability reason is reported with priority break > blocked >
// booked, and a slot is available only when none of the three apply.
// A day with no bookable window yields an empty schedule, not an error.
func (c *AvailabilityComputer) ComputeDay(ctx context.Context, doctorID, clinicID uuid.UUID, date Date, slotMinutes int, bookings []BookedInterval, blocked []TimeInterval) (*DaySchedule, error) {
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %d", slotMinutes)
	}

	sched := &DaySchedule{Date: date, SlotMinutes: slotMinutes, Slots: make([]Slot, 0)}

	eff, err := c.hours.Resolve(ctx, doctorID, clinicID, date)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return sched, nil
	}

	step := TimeOfDay(slotMinutes)
	for start := eff.Opening; start+step <= eff.Closing; start += step {
		iv := TimeInterval{Date: date, Start: start, Minutes: slotMinutes}
		slot := Slot{Start: start, End: iv.End()}

		switch {
		case eff.Break != nil && iv.Overlaps(breakInterval(date, *eff.Break)):
			slot.Reason = SlotReasonBreak
		case isBlocked(iv, blocked):
			slot.Reason = SlotReasonBlocked
		default:
			if id, ok := firstBookingOverlap(iv, bookings); ok {
				slot.Reason = SlotReasonBooked
				if id != uuid.Nil {
					bookedID := id
					slot.AppointmentID = &bookedID
				}
			}
		}

		slot.Available = slot.Reason == ""
		if slot.Available {
			sched.AvailableSlots++
		}
		if slot.Reason == SlotReasonBooked {
			sched.BookedSlots++
		}
		sched.Slots = append(sched.Slots, slot)
	}

	sched.TotalSlots = len(sched.Slots)
	return sched, nil
}

func isBlocked(iv TimeInterval, blocked []TimeInterval) bool {
	_, ok := overlapsAny(iv, blocked)
	return ok
}

func firstBookingOverlap(iv TimeInterval, bookings []BookedInterval) (uuid.UUID, bool) {
	for _, b := range bookings {
		if iv.Overlaps(b.Interval) {
			return b.AppointmentID, true
		}
	}
	return uuid.Nil, false
}
