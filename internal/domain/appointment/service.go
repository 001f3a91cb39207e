package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/engine"
	"github.com/medbook/medbook/internal/platform/cache"
	"github.com/medbook/medbook/internal/platform/events"
	"github.com/medbook/medbook/internal/platform/lock"
	"github.com/medbook/medbook/internal/platform/notification"
)

// Deps wires the booking service. Repo, Directory, Catalog, Blocked,
// Engine and Locker are required; the rest default to no-ops.
type Deps struct {
	Repo      Repository
	Directory Directory
	Catalog   Catalog
	Blocked   BlockedSource
	Engine    *engine.Engine
	Locker    lock.Locker
	Tx        Tx
	Publisher events.Publisher
	Notifier  *notification.NotificationManager
	Cache     *cache.ScheduleCache
	Logger    zerolog.Logger

	// Metrics counts completed booking operations by name.
	Metrics func(operation string)

	// SlotMinutes is the grid step used when an availability request
	// does not name one.
	SlotMinutes int

	// Now is the clock; the engine never reads the wall clock itself.
	Now func() time.Time
}

type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	if deps.Tx == nil {
		deps.Tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = func(string) {}
	}
	if deps.SlotMinutes <= 0 {
		deps.SlotMinutes = 30
	}
	return &Service{deps: deps}
}

// BookRequest is an incoming booking, already parsed but not yet
// validated against any persisted state.
type BookRequest struct {
	PatientID uuid.UUID        `json:"patient_id"`
	DoctorID  uuid.UUID        `json:"doctor_id"`
	ClinicID  uuid.UUID        `json:"clinic_id"`
	ServiceID uuid.UUID        `json:"service_id"`
	SessionID uuid.UUID        `json:"session_id,omitempty"`
	Date      engine.Date      `json:"date"`
	Start     engine.TimeOfDay `json:"start_time"`
	ActorID   uuid.UUID        `json:"-"`
}

// Book runs the full booking flow: entity lookups, the doctor-day
// schedule lock, a state snapshot, the engine's decision, and a single
// transaction persisting the accepted draft. Events, notifications and
// cache invalidation happen only after the commit.
func (s *Service) Book(ctx context.Context, req BookRequest) (*engine.Appointment, error) {
	pat, doc, clinic, svc, err := s.lookups(ctx, req)
	if err != nil {
		return nil, err
	}

	var appt *engine.Appointment
	err = s.deps.Locker.WithScheduleLock(ctx, req.DoctorID, req.Date, func(ctx context.Context) error {
		snap, err := s.snapshot(ctx, req.DoctorID, req.PatientID, req.ServiceID, req.Date)
		if err != nil {
			return err
		}
		proposal := engine.BookingProposal{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			ClinicID:  req.ClinicID,
			Service:   svc,
			SessionID: req.SessionID,
			Date:      req.Date,
			Start:     req.Start,
			ActorID:   req.ActorID,
			At:        s.deps.Now(),
		}
		appt, err = s.deps.Engine.ProposeBooking(ctx, proposal, snap)
		if err != nil {
			return err
		}
		return s.deps.Tx(ctx, func(ctx context.Context) error {
			return s.deps.Repo.Create(ctx, appt)
		})
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, engine.NewRaceConflict(req.DoctorID, req.Date)
	}
	if err != nil {
		return nil, err
	}

	s.deps.Metrics("book")
	s.publish(ctx, events.TypeScheduled, appt)
	s.notify(ctx, pat, "booking-confirmation", map[string]string{
		"patient_name": pat.FullName,
		"doctor_name":  doc.FullName,
		"clinic_name":  clinic.Name,
		"date":         appt.Date.String(),
		"time":         appt.Start.String(),
	})
	s.invalidate(appt.DoctorID, appt.Date)
	return appt, nil
}

func (s *Service) lookups(ctx context.Context, req BookRequest) (*PatientInfo, *DoctorInfo, *ClinicInfo, engine.Service, error) {
	pat, err := s.deps.Directory.Patient(ctx, req.PatientID)
	if err != nil {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("patient %s: %w", req.PatientID, err)
	}
	if !pat.Active {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("patient %s is inactive: %w", req.PatientID, ErrNotFound)
	}
	doc, err := s.deps.Directory.Doctor(ctx, req.DoctorID)
	if err != nil {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("doctor %s: %w", req.DoctorID, err)
	}
	if !doc.Active {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("doctor %s is inactive: %w", req.DoctorID, ErrNotFound)
	}
	clinic, err := s.deps.Directory.Clinic(ctx, req.ClinicID)
	if err != nil {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("clinic %s: %w", req.ClinicID, err)
	}
	if !clinic.Active {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("clinic %s is inactive: %w", req.ClinicID, ErrNotFound)
	}
	svc, ok, err := s.deps.Catalog.EngineService(ctx, req.ServiceID)
	if err != nil {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("service %s: %w", req.ServiceID, err)
	}
	if !ok {
		return nil, nil, nil, engine.Service{}, fmt.Errorf("service %s is unavailable: %w", req.ServiceID, ErrNotFound)
	}
	return pat, doc, clinic, svc, nil
}

// snapshot gathers the persisted state one booking decision needs. It
// runs inside the schedule lock so the engine's read-then-write sequence
// is serialized per doctor-day.
func (s *Service) snapshot(ctx context.Context, doctorID, patientID, serviceID uuid.UUID, date engine.Date) (engine.BookingSnapshot, error) {
	var snap engine.BookingSnapshot
	var err error

	if snap.DoctorBookings, err = s.deps.Repo.DoctorBookings(ctx, doctorID, date); err != nil {
		return snap, err
	}
	if snap.PatientBookings, err = s.deps.Repo.PatientBookings(ctx, patientID, date); err != nil {
		return snap, err
	}
	if snap.Blocked, err = s.deps.Blocked.BlockedIntervals(ctx, doctorID, date); err != nil {
		return snap, err
	}
	if snap.SessionBookings, err = s.deps.Repo.SessionBookings(ctx, patientID, serviceID); err != nil {
		return snap, err
	}
	return snap, nil
}

// Availability returns the day's slot grid, served from the LRU cache
// when a previous computation is still valid.
func (s *Service) Availability(ctx context.Context, doctorID, clinicID uuid.UUID, date engine.Date, slotMinutes int) (*engine.DaySchedule, error) {
	if slotMinutes <= 0 {
		slotMinutes = s.deps.SlotMinutes
	}
	if s.deps.Cache != nil {
		if sched, ok := s.deps.Cache.Get(doctorID, clinicID, date, slotMinutes); ok {
			return sched, nil
		}
	}

	booked, err := s.deps.Repo.BookedIntervals(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	blocked, err := s.deps.Blocked.BlockedIntervals(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	sched, err := s.deps.Engine.ComputeDay(ctx, doctorID, clinicID, date, slotMinutes, booked, blocked)
	if err != nil {
		return nil, err
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Store(doctorID, clinicID, date, slotMinutes, sched)
	}
	return sched, nil
}

// ConflictProbe is a dry-run conflict check; nothing is written.
type ConflictProbe struct {
	DoctorID  uuid.UUID        `json:"doctor_id"`
	PatientID uuid.UUID        `json:"patient_id"`
	Date      engine.Date      `json:"date"`
	Start     engine.TimeOfDay `json:"start_time"`
	Minutes   int              `json:"duration_minutes"`
}

func (s *Service) CheckConflicts(ctx context.Context, probe ConflictProbe) ([]engine.Conflict, error) {
	if probe.Minutes <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", probe.Minutes)
	}
	doctorBookings, err := s.deps.Repo.DoctorBookings(ctx, probe.DoctorID, probe.Date)
	if err != nil {
		return nil, err
	}
	patientBookings, err := s.deps.Repo.PatientBookings(ctx, probe.PatientID, probe.Date)
	if err != nil {
		return nil, err
	}
	proposed := engine.ProposedBooking{
		DoctorID:  probe.DoctorID,
		PatientID: probe.PatientID,
		Date:      probe.Date,
		Start:     probe.Start,
		Minutes:   probe.Minutes,
	}
	return engine.FindConflicts(proposed, doctorBookings, patientBookings, uuid.Nil), nil
}

// -- Status transitions --

func (s *Service) Confirm(ctx context.Context, id, actorID uuid.UUID) (*engine.Appointment, error) {
	in := engine.TransitionInput{ActorID: actorID, At: s.deps.Now()}
	return s.transition(ctx, id, in, events.TypeConfirmed, engine.Confirm)
}

func (s *Service) Start(ctx context.Context, id, actorID uuid.UUID) (*engine.Appointment, error) {
	in := engine.TransitionInput{ActorID: actorID, At: s.deps.Now()}
	return s.transition(ctx, id, in, events.TypeStarted, engine.Start)
}

func (s *Service) Complete(ctx context.Context, id, actorID uuid.UUID, notes string) (*engine.Appointment, error) {
	in := engine.TransitionInput{ActorID: actorID, At: s.deps.Now(), Notes: notes}
	return s.transition(ctx, id, in, events.TypeCompleted, engine.Complete)
}

func (s *Service) Conclude(ctx context.Context, id, actorID uuid.UUID, notes string) (*engine.Appointment, error) {
	in := engine.TransitionInput{ActorID: actorID, At: s.deps.Now(), Notes: notes}
	return s.transition(ctx, id, in, events.TypeCompleted, engine.Conclude)
}

func (s *Service) MarkNoShow(ctx context.Context, id, actorID uuid.UUID, reason string) (*engine.Appointment, error) {
	in := engine.TransitionInput{ActorID: actorID, At: s.deps.Now(), Reason: reason}
	appt, err := s.transition(ctx, id, in, events.TypeNoShow, engine.MarkNoShow)
	if err != nil {
		return nil, err
	}
	s.invalidate(appt.DoctorID, appt.Date)
	return appt, nil
}

// Cancel frees the slot: beyond the transition itself it notifies the
// patient and invalidates the day's availability.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*engine.Appointment, error) {
	in := engine.TransitionInput{ActorID: actorID, At: s.deps.Now(), Reason: reason}
	appt, err := s.transition(ctx, id, in, events.TypeCancelled, engine.Cancel)
	if err != nil {
		return nil, err
	}

	if pat, perr := s.deps.Directory.Patient(ctx, appt.PatientID); perr == nil {
		doctorName := ""
		if doc, derr := s.deps.Directory.Doctor(ctx, appt.DoctorID); derr == nil {
			doctorName = doc.FullName
		}
		s.notify(ctx, pat, "booking-cancellation", map[string]string{
			"patient_name": pat.FullName,
			"doctor_name":  doctorName,
			"date":         appt.Date.String(),
			"time":         appt.Start.String(),
			"reason":       reason,
		})
	}
	s.invalidate(appt.DoctorID, appt.Date)
	return appt, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, in engine.TransitionInput, evt events.Type,
	apply func(*engine.Appointment, engine.TransitionInput) error) (*engine.Appointment, error) {

	appt, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(appt, in); err != nil {
		return nil, err
	}
	entry := appt.History[len(appt.History)-1]
	err = s.deps.Tx(ctx, func(ctx context.Context) error {
		if err := s.deps.Repo.UpdateStatus(ctx, appt); err != nil {
			return err
		}
		return s.deps.Repo.AppendHistory(ctx, appt.ID, entry)
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics(string(appt.Status))
	s.publish(ctx, evt, appt)
	return appt, nil
}

// RescheduleParams moves an appointment to a new slot.
type RescheduleParams struct {
	NewDate  engine.Date      `json:"new_date"`
	NewStart engine.TimeOfDay `json:"new_time"`
	Reason   string           `json:"reason,omitempty"`
	ActorID  uuid.UUID        `json:"-"`
}

// Reschedule re-validates the new slot under the new day's schedule
// lock, excluding the appointment itself from conflict detection, and
// persists the move with its reschedule history row.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, params RescheduleParams) (*engine.Appointment, error) {
	appt, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldDate := appt.Date

	err = s.deps.Locker.WithScheduleLock(ctx, appt.DoctorID, params.NewDate, func(ctx context.Context) error {
		snap, err := s.snapshot(ctx, appt.DoctorID, appt.PatientID, appt.ServiceID, params.NewDate)
		if err != nil {
			return err
		}
		req := engine.RescheduleRequest{
			NewDate:  params.NewDate,
			NewStart: params.NewStart,
			Reason:   params.Reason,
			ActorID:  params.ActorID,
			At:       s.deps.Now(),
		}
		if err := s.deps.Engine.Reschedule(ctx, appt, req, snap); err != nil {
			return err
		}
		entry := appt.Reschedules[len(appt.Reschedules)-1]
		return s.deps.Tx(ctx, func(ctx context.Context) error {
			if err := s.deps.Repo.UpdateSlot(ctx, appt); err != nil {
				return err
			}
			return s.deps.Repo.AppendReschedule(ctx, appt.ID, entry)
		})
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, engine.NewRaceConflict(appt.DoctorID, params.NewDate)
	}
	if err != nil {
		return nil, err
	}

	s.deps.Metrics("reschedule")
	s.publish(ctx, events.TypeRescheduled, appt)
	if pat, perr := s.deps.Directory.Patient(ctx, appt.PatientID); perr == nil {
		doctorName := ""
		if doc, derr := s.deps.Directory.Doctor(ctx, appt.DoctorID); derr == nil {
			doctorName = doc.FullName
		}
		s.notify(ctx, pat, "booking-reschedule", map[string]string{
			"patient_name": pat.FullName,
			"doctor_name":  doctorName,
			"old_date":     oldDate.String(),
			"old_time":     appt.Reschedules[len(appt.Reschedules)-1].PreviousStart.String(),
			"new_date":     appt.Date.String(),
			"new_time":     appt.Start.String(),
		})
	}
	s.invalidate(appt.DoctorID, oldDate)
	s.invalidate(appt.DoctorID, appt.Date)
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*engine.Appointment, error) {
	return s.deps.Repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*engine.Appointment, int, error) {
	return s.deps.Repo.Search(ctx, params, limit, offset)
}

// -- After-commit side effects --

func (s *Service) publish(ctx context.Context, t events.Type, a *engine.Appointment) {
	evt := events.FromAppointment(t, a, s.deps.Now())
	if err := s.deps.Publisher.Publish(ctx, evt); err != nil {
		s.deps.Logger.Error().Err(err).
			Str("event", string(t)).
			Str("appointment_id", a.ID.String()).
			Msg("event publish failed")
	}
}

func (s *Service) notify(ctx context.Context, pat *PatientInfo, templateID string, data map[string]string) {
	if s.deps.Notifier == nil || pat.Email == nil {
		return
	}
	if _, err := s.deps.Notifier.SendFromTemplate(ctx, templateID, data, *pat.Email); err != nil {
		s.deps.Logger.Error().Err(err).
			Str("template", templateID).
			Str("patient_id", pat.ID.String()).
			Msg("notification failed")
	}
}

func (s *Service) invalidate(doctorID uuid.UUID, date engine.Date) {
	if s.deps.Cache != nil {
		s.deps.Cache.InvalidateDay(doctorID, date)
	}
}
