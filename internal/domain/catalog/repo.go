package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a service does not exist.
var ErrNotFound = errors.New("not found")

type ServiceRepository interface {
	// Create inserts the service and its session rows atomically.
	Create(ctx context.Context, s *Service) error
	// GetByID loads the service with its sessions ordered by position.
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
	// Update rewrites the service row and replaces its session plan.
	Update(ctx context.Context, s *Service) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Service, int, error)
}
