package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

// Manager exposes catalog operations on top of the repository.
type Manager struct {
	repo ServiceRepository
}

func NewManager(repo ServiceRepository) *Manager {
	return &Manager{repo: repo}
}

func (m *Manager) CreateService(ctx context.Context, s *Service) error {
	if err := m.validate(s); err != nil {
		return err
	}
	return m.repo.Create(ctx, s)
}

func (m *Manager) UpdateService(ctx context.Context, s *Service) error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("service id is required")
	}
	if err := m.validate(s); err != nil {
		return err
	}
	return m.repo.Update(ctx, s)
}

func (m *Manager) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *Manager) DeleteService(ctx context.Context, id uuid.UUID) error {
	return m.repo.Delete(ctx, id)
}

func (m *Manager) ListServices(ctx context.Context, activeOnly bool, limit, offset int) ([]*Service, int, error) {
	return m.repo.List(ctx, activeOnly, limit, offset)
}

// EngineService loads the service in the engine's shape. The second
// return is false when the service does not exist or is inactive; an
// error means the lookup itself failed.
func (m *Manager) EngineService(ctx context.Context, id uuid.UUID) (engine.Service, bool, error) {
	s, err := m.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return engine.Service{}, false, nil
	}
	if err != nil {
		return engine.Service{}, false, err
	}
	if !s.Active {
		return engine.Service{}, false, nil
	}
	return s.ToEngine(), true, nil
}

func (m *Manager) validate(s *Service) error {
	if s.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("service duration must be positive, got %d", s.DurationMinutes)
	}
	for _, sess := range s.Sessions {
		if sess.DurationMinutes != nil && *sess.DurationMinutes <= 0 {
			return fmt.Errorf("session %d duration must be positive, got %d", sess.Position, *sess.DurationMinutes)
		}
	}
	if err := engine.ValidateSessionStructure(EngineSessions(s.Sessions)); err != nil {
		return err
	}
	return nil
}
