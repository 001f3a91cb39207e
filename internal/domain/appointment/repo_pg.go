package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/engine"
	"github.com/medbook/medbook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, patient_id, doctor_id, clinic_id, service_id, session_id, date, start_minutes,
	duration_minutes, status, cancellation_reason, completion_notes, actual_start, actual_end,
	started_by, completed_by, cancelled_by, cancelled_at, created_at, updated_at`

func (r *repoPG) scanAppointment(row pgx.Row) (*engine.Appointment, error) {
	var (
		a     engine.Appointment
		date  time.Time
		start int
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ClinicID, &a.ServiceID, &a.SessionID,
		&date, &start, &a.Minutes, &a.Status, &a.CancellationReason, &a.CompletionNotes,
		&a.ActualStart, &a.ActualEnd, &a.StartedBy, &a.CompletedBy, &a.CancelledBy, &a.CancelledAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Date = engine.DateOf(date)
	a.Start = engine.TimeOfDay(start)
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *engine.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, clinic_id, service_id, session_id,
			date, start_minutes, duration_minutes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ClinicID, a.ServiceID, a.SessionID,
		a.Date.Time(), int(a.Start), a.Minutes, a.Status).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return err
	}
	for _, h := range a.History {
		if err := r.AppendHistory(ctx, a.ID, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*engine.Appointment, error) {
	a, err := r.scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadHistory(ctx, a); err != nil {
		return nil, err
	}
	if err := r.loadReschedules(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) loadHistory(ctx context.Context, a *engine.Appointment) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, changed_at, changed_by, reason
		FROM appointment_status_history WHERE appointment_id = $1 ORDER BY changed_at, id`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var h engine.StatusHistoryEntry
		if err := rows.Scan(&h.Status, &h.ChangedAt, &h.ChangedBy, &h.Reason); err != nil {
			return err
		}
		a.History = append(a.History, h)
	}
	return rows.Err()
}

func (r *repoPG) loadReschedules(ctx context.Context, a *engine.Appointment) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT previous_date, previous_minutes, new_date, new_minutes, reason, changed_at, changed_by
		FROM appointment_reschedules WHERE appointment_id = $1 ORDER BY changed_at, id`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e                  engine.RescheduleEntry
			prevDate, newDate  time.Time
			prevStart, newMins int
		)
		if err := rows.Scan(&prevDate, &prevStart, &newDate, &newMins, &e.Reason, &e.ChangedAt, &e.ChangedBy); err != nil {
			return err
		}
		e.PreviousDate = engine.DateOf(prevDate)
		e.PreviousStart = engine.TimeOfDay(prevStart)
		e.NewDate = engine.DateOf(newDate)
		e.NewStart = engine.TimeOfDay(newMins)
		a.Reschedules = append(a.Reschedules, e)
	}
	return rows.Err()
}

func (r *repoPG) UpdateSlot(ctx context.Context, a *engine.Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET date=$2, start_minutes=$3, updated_at=NOW() WHERE id = $1`,
		a.ID, a.Date.Time(), int(a.Start))
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, a *engine.Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status=$2, cancellation_reason=$3, completion_notes=$4,
			actual_start=$5, actual_end=$6, started_by=$7, completed_by=$8,
			cancelled_by=$9, cancelled_at=$10, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.CancellationReason, a.CompletionNotes,
		a.ActualStart, a.ActualEnd, a.StartedBy, a.CompletedBy,
		a.CancelledBy, a.CancelledAt)
	return err
}

func (r *repoPG) AppendHistory(ctx context.Context, appointmentID uuid.UUID, entry engine.StatusHistoryEntry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_status_history (id, appointment_id, status, changed_at, changed_by, reason)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.New(), appointmentID, entry.Status, entry.ChangedAt, entry.ChangedBy, entry.Reason)
	return err
}

func (r *repoPG) AppendReschedule(ctx context.Context, appointmentID uuid.UUID, entry engine.RescheduleEntry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_reschedules (id, appointment_id, previous_date, previous_minutes,
			new_date, new_minutes, reason, changed_at, changed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		uuid.New(), appointmentID, entry.PreviousDate.Time(), int(entry.PreviousStart),
		entry.NewDate.Time(), int(entry.NewStart), entry.Reason, entry.ChangedAt, entry.ChangedBy)
	return err
}

func (r *repoPG) DoctorBookings(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]engine.ExistingBooking, error) {
	return r.bookings(ctx, `doctor_id`, doctorID, date)
}

func (r *repoPG) PatientBookings(ctx context.Context, patientID uuid.UUID, date engine.Date) ([]engine.ExistingBooking, error) {
	return r.bookings(ctx, `patient_id`, patientID, date)
}

func (r *repoPG) bookings(ctx context.Context, column string, ownerID uuid.UUID, date engine.Date) ([]engine.ExistingBooking, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, start_minutes, duration_minutes, status
		FROM appointments WHERE `+column+` = $1 AND date = $2 ORDER BY start_minutes`,
		ownerID, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.ExistingBooking
	for rows.Next() {
		var (
			b              engine.ExistingBooking
			start, minutes int
		)
		if err := rows.Scan(&b.AppointmentID, &start, &minutes, &b.Status); err != nil {
			return nil, err
		}
		b.Interval = engine.TimeInterval{Date: date, Start: engine.TimeOfDay(start), Minutes: minutes}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repoPG) SessionBookings(ctx context.Context, patientID, serviceID uuid.UUID) ([]engine.SessionBookingState, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT session_id, status FROM appointments
		WHERE patient_id = $1 AND service_id = $2 AND session_id IS NOT NULL`,
		patientID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.SessionBookingState
	for rows.Next() {
		var s engine.SessionBookingState
		if err := rows.Scan(&s.SessionID, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) BookedIntervals(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]engine.BookedInterval, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, start_minutes, duration_minutes
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status NOT IN ('cancelled','no_show')
		ORDER BY start_minutes`,
		doctorID, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.BookedInterval
	for rows.Next() {
		var (
			b              engine.BookedInterval
			start, minutes int
		)
		if err := rows.Scan(&b.AppointmentID, &start, &minutes); err != nil {
			return nil, err
		}
		b.Interval = engine.TimeInterval{Date: date, Start: engine.TimeOfDay(start), Minutes: minutes}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*engine.Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointments WHERE 1=1`
	var args []interface{}
	idx := 1

	addFilter := func(clause string, value interface{}) {
		query += fmt.Sprintf(clause, idx)
		countQuery += fmt.Sprintf(clause, idx)
		args = append(args, value)
		idx++
	}

	for _, col := range []string{"doctor_id", "patient_id", "clinic_id", "service_id", "status"} {
		if p, ok := params[col]; ok {
			addFilter(` AND `+col+` = $%d`, p)
		}
	}
	if p, ok := params["date"]; ok {
		addFilter(` AND date = $%d`, p)
	}
	if p, ok := params["from"]; ok {
		addFilter(` AND date >= $%d`, p)
	}
	if p, ok := params["to"]; ok {
		addFilter(` AND date <= $%d`, p)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY date, start_minutes LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*engine.Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
