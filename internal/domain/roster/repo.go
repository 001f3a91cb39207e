package roster

import (
	"context"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/engine"
)

type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	Update(ctx context.Context, c *Clinic) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Clinic, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error)
}

type WorkingHoursRepository interface {
	Upsert(ctx context.Context, w *WorkingHours) error
	GetDay(ctx context.Context, kind OwnerKind, ownerID uuid.UUID, weekday int) (*WorkingHours, error)
	ListByOwner(ctx context.Context, kind OwnerKind, ownerID uuid.UUID) ([]*WorkingHours, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type HolidayRepository interface {
	Create(ctx context.Context, h *Holiday) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, clinicID *uuid.UUID, limit, offset int) ([]*Holiday, int, error)
	// FindCovering returns holidays whose date range includes the date and
	// whose scope reaches the clinic (its own plus organization-wide).
	FindCovering(ctx context.Context, clinicID uuid.UUID, date engine.Date) ([]*Holiday, error)
}

type BlockedSlotRepository interface {
	Create(ctx context.Context, b *BlockedSlot) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*BlockedSlot, int, error)
	// FindCovering returns blocked slots whose date range includes the date.
	FindCovering(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]*BlockedSlot, error)
}
