package engine

import (
	"strings"

	"github.com/google/uuid"
)

// Limits on session structure.
const (
	MaxSessionsPerService = 50
	MinSessionMinutes     = 5
	MaxSessionMinutes     = 480
)

// Session is one ordered step of a multi-session service.
type Session struct {
	ID      uuid.UUID `json:"id"`
	Order   int       `json:"order"`
	Name    *string   `json:"name,omitempty"`
	Minutes *int      `json:"duration_minutes,omitempty"`
}

// Service is a bookable service with an optional ordered session plan.
type Service struct {
	ID       uuid.UUID `json:"id"`
	Minutes  int       `json:"duration_minutes"`
	Sessions []Session `json:"sessions,omitempty"`
}

// SessionByID returns the session with the given id, or nil.
func (s Service) SessionByID(id uuid.UUID) *Session {
	for i := range s.Sessions {
		if s.Sessions[i].ID == id {
			return &s.Sessions[i]
		}
	}
	return nil
}

// DurationFor resolves the booking duration: the session's own duration
// when the session exists and defines one, the service default otherwise.
func (s Service) DurationFor(sessionID uuid.UUID) int {
	if sessionID != uuid.Nil {
		if sess := s.SessionByID(sessionID); sess != nil && sess.Minutes != nil {
			return *sess.Minutes
		}
	}
	return s.Minutes
}

// ValidateSessionStructure checks the structural rules for a service's
// session plan. Checks run in a fixed order for deterministic reporting:
// session count first, then per-session rules in slice order (blank name,
// non-positive order, duration bounds), then order uniqueness. The
// uniqueness failure reports every duplicated order value, not just the
// first.
func ValidateSessionStructure(sessions []Session) error {
	if len(sessions) > MaxSessionsPerService {
		return newTooManySessions(len(sessions))
	}

	for _, sess := range sessions {
		if sess.Name != nil && strings.TrimSpace(*sess.Name) == "" {
			return newBlankSessionName(sess.Order)
		}
		if sess.Order < 1 {
			return newInvalidSessionOrder(sess.Order)
		}
		if sess.Minutes != nil && (*sess.Minutes < MinSessionMinutes || *sess.Minutes > MaxSessionMinutes) {
			return newInvalidSessionDuration(sess.Order, *sess.Minutes)
		}
	}

	counts := make(map[int]int, len(sessions))
	for _, sess := range sessions {
		counts[sess.Order]++
	}
	var duplicates []int
	reported := make(map[int]bool)
	for _, sess := range sessions {
		if counts[sess.Order] > 1 && !reported[sess.Order] {
			duplicates = append(duplicates, sess.Order)
			reported[sess.Order] = true
		}
	}
	if len(duplicates) > 0 {
		return newDuplicateSessionOrders(duplicates)
	}

	return nil
}

// SessionBookingState is a prior booking of the same (patient, service)
// pair, used to enforce per-booking session rules.
type SessionBookingState struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    Status    `json:"status"`
}

// ValidateSessionBooking enforces the per-booking session rules: a
// session id is required whenever the service defines sessions, the id
// must exist on the service, the session must not already have an active
// booking for the patient, and a completed session cannot be rebooked.
// Cancelled and no-show bookings free the session.
func ValidateSessionBooking(svc Service, sessionID uuid.UUID, prior []SessionBookingState) error {
	if sessionID == uuid.Nil {
		if len(svc.Sessions) > 0 {
			return newSessionRequired(svc.ID)
		}
		return nil
	}

	if svc.SessionByID(sessionID) == nil {
		return newSessionNotFound(sessionID)
	}

	var active, completed bool
	for _, p := range prior {
		if p.SessionID != sessionID {
			continue
		}
		switch p.Status {
		case StatusScheduled, StatusConfirmed, StatusInProgress:
			active = true
		case StatusCompleted:
			completed = true
		}
	}
	if active {
		return newDuplicateSessionBooking(sessionID)
	}
	if completed {
		return newCompletedSessionRebooking(sessionID)
	}

	return nil
}
