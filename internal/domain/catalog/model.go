// Package catalog manages the bookable services a clinic offers,
// including multi-session services whose ordered session plan drives
// per-session booking rules.
package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

// Service maps to the services table.
type Service struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ClinicID        *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	PriceCents      *int64    `db:"price_cents" json:"price_cents,omitempty"`
	Active          bool      `db:"active" json:"active"`
	Sessions        []Session `db:"-" json:"sessions,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Session maps to the service_sessions table: one ordered step of a
// multi-session service.
type Session struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ServiceID       uuid.UUID `db:"service_id" json:"service_id"`
	Position        int       `db:"position" json:"position"`
	Name            *string   `db:"name" json:"name,omitempty"`
	DurationMinutes *int      `db:"duration_minutes" json:"duration_minutes,omitempty"`
}

// ToEngine converts the catalog service into the scheduling engine's
// service shape.
func (s *Service) ToEngine() engine.Service {
	es := engine.Service{
		ID:      s.ID,
		Minutes: s.DurationMinutes,
	}
	for _, sess := range s.Sessions {
		es.Sessions = append(es.Sessions, engine.Session{
			ID:      sess.ID,
			Order:   sess.Position,
			Name:    sess.Name,
			Minutes: sess.DurationMinutes,
		})
	}
	return es
}

// EngineSessions maps the session rows into engine sessions for
// structural validation.
func EngineSessions(sessions []Session) []engine.Session {
	out := make([]engine.Session, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, engine.Session{
			ID:      sess.ID,
			Order:   sess.Position,
			Name:    sess.Name,
			Minutes: sess.DurationMinutes,
		})
	}
	return out
}
