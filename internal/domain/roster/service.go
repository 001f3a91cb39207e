package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	clinics ClinicRepository
	doctors DoctorRepository
	hours   WorkingHoursRepository
	holiday HolidayRepository
	blocked BlockedSlotRepository
}

func NewService(clinics ClinicRepository, doctors DoctorRepository, hours WorkingHoursRepository, holiday HolidayRepository, blocked BlockedSlotRepository) *Service {
	return &Service{clinics: clinics, doctors: doctors, hours: hours, holiday: holiday, blocked: blocked}
}

// -- Clinic --

func (s *Service) CreateClinic(ctx context.Context, c *Clinic) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.clinics.Create(ctx, c)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.clinics.GetByID(ctx, id)
}

func (s *Service) UpdateClinic(ctx context.Context, c *Clinic) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.clinics.Update(ctx, c)
}

func (s *Service) DeleteClinic(ctx context.Context, id uuid.UUID) error {
	return s.clinics.Delete(ctx, id)
}

func (s *Service) ListClinics(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.clinics.List(ctx, limit, offset)
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if d.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) SearchDoctors(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.Search(ctx, params, limit, offset)
}

// -- Working hours --

// SetWorkingHours validates and upserts one weekday row of a profile. A
// non-working day skips the time checks: its stored times are ignored by
// the resolver.
func (s *Service) SetWorkingHours(ctx context.Context, w *WorkingHours) error {
	if !w.OwnerKind.Valid() {
		return fmt.Errorf("owner_kind must be %q or %q, got %q", OwnerDoctor, OwnerClinic, w.OwnerKind)
	}
	if w.OwnerID == uuid.Nil {
		return fmt.Errorf("owner_id is required")
	}
	if w.Weekday < 0 || w.Weekday > 6 {
		return fmt.Errorf("weekday must be between 0 and 6, got %d", w.Weekday)
	}
	if w.IsWorking {
		if w.Opening >= w.Closing {
			return fmt.Errorf("opening time %s must be before closing time %s", w.Opening, w.Closing)
		}
		if (w.BreakStart == nil) != (w.BreakEnd == nil) {
			return fmt.Errorf("break start and break end must be set together")
		}
		if w.BreakStart != nil {
			if *w.BreakStart >= *w.BreakEnd {
				return fmt.Errorf("break start %s must be before break end %s", *w.BreakStart, *w.BreakEnd)
			}
			if *w.BreakStart < w.Opening || *w.BreakEnd > w.Closing {
				return fmt.Errorf("break %s-%s must fall inside working hours %s-%s",
					*w.BreakStart, *w.BreakEnd, w.Opening, w.Closing)
			}
		}
	}
	return s.hours.Upsert(ctx, w)
}

func (s *Service) WorkingHoursFor(ctx context.Context, kind OwnerKind, ownerID uuid.UUID) ([]*WorkingHours, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("owner_kind must be %q or %q, got %q", OwnerDoctor, OwnerClinic, kind)
	}
	return s.hours.ListByOwner(ctx, kind, ownerID)
}

func (s *Service) DeleteWorkingHours(ctx context.Context, id uuid.UUID) error {
	return s.hours.Delete(ctx, id)
}

// -- Holidays --

func (s *Service) CreateHoliday(ctx context.Context, h *Holiday) error {
	if h.Scope != ScopeClinic && h.Scope != ScopeOrganization {
		return fmt.Errorf("scope must be %q or %q, got %q", ScopeClinic, ScopeOrganization, h.Scope)
	}
	if h.Scope == ScopeClinic && h.ClinicID == nil {
		return fmt.Errorf("clinic_id is required for clinic-scoped holidays")
	}
	if h.Scope == ScopeOrganization && h.ClinicID != nil {
		return fmt.Errorf("clinic_id must be empty for organization-scoped holidays")
	}
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if h.StartDate.IsZero() || h.EndDate.IsZero() {
		return fmt.Errorf("start_date and end_date are required")
	}
	if h.EndDate.Before(h.StartDate) {
		return fmt.Errorf("end_date %s is before start_date %s", h.EndDate, h.StartDate)
	}
	return s.holiday.Create(ctx, h)
}

func (s *Service) DeleteHoliday(ctx context.Context, id uuid.UUID) error {
	return s.holiday.Delete(ctx, id)
}

func (s *Service) ListHolidays(ctx context.Context, clinicID *uuid.UUID, limit, offset int) ([]*Holiday, int, error) {
	return s.holiday.List(ctx, clinicID, limit, offset)
}

// -- Blocked slots --

func (s *Service) CreateBlockedSlot(ctx context.Context, b *BlockedSlot) error {
	if b.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return fmt.Errorf("start_date and end_date are required")
	}
	if b.EndDate.Before(b.StartDate) {
		return fmt.Errorf("end_date %s is before start_date %s", b.EndDate, b.StartDate)
	}
	if b.StartTime >= b.EndTime {
		return fmt.Errorf("start_time %s must be before end_time %s", b.StartTime, b.EndTime)
	}
	return s.blocked.Create(ctx, b)
}

func (s *Service) DeleteBlockedSlot(ctx context.Context, id uuid.UUID) error {
	return s.blocked.Delete(ctx, id)
}

func (s *Service) ListBlockedSlots(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*BlockedSlot, int, error) {
	return s.blocked.ListByDoctor(ctx, doctorID, limit, offset)
}
