package roster

import (
	"context"
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

// =========== Clinic Repository ===========

type clinicRepoPG struct{ pool *pgxpool.Pool }

func NewClinicRepoPG(pool *pgxpool.Pool) ClinicRepository { return &clinicRepoPG{pool: pool} }

func (r *clinicRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const clinicCols = `id, organization_id, name, address, phone, active, created_at, updated_at`

func (r *clinicRepoPG) scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Address, &c.Phone,
		&c.Active, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinics (id, organization_id, name, address, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.OrganizationID, c.Name, c.Address, c.Phone, c.Active)
	return err
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return r.scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinics WHERE id = $1`, id))
}

func (r *clinicRepoPG) Update(ctx context.Context, c *Clinic) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinics SET organization_id=$2, name=$3, address=$4, phone=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.OrganizationID, c.Name, c.Address, c.Phone, c.Active)
	return err
}

func (r *clinicRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinics WHERE id = $1`, id)
	return err
}

func (r *clinicRepoPG) List(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinics`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+clinicCols+` FROM clinics ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Clinic
	for rows.Next() {
		c, err := r.scanClinic(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doctorCols = `id, full_name, specialty, email, phone, active, created_at, updated_at`

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FullName, &d.Specialty, &d.Email, &d.Phone,
		&d.Active, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (id, full_name, specialty, email, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.FullName, d.Specialty, d.Email, d.Phone, d.Active)
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctors SET full_name=$2, specialty=$3, email=$4, phone=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.FullName, d.Specialty, d.Email, d.Phone, d.Active)
	return err
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	return err
}

func (r *doctorRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	query := `SELECT ` + doctorCols + ` FROM doctors WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM doctors WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["name"]; ok {
		query += fmt.Sprintf(` AND full_name ILIKE $%d`, idx)
		countQuery += fmt.Sprintf(` AND full_name ILIKE $%d`, idx)
		args = append(args, "%"+p+"%")
		idx++
	}
	if p, ok := params["specialty"]; ok {
		query += fmt.Sprintf(` AND specialty = $%d`, idx)
		countQuery += fmt.Sprintf(` AND specialty = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["active"]; ok {
		query += fmt.Sprintf(` AND active = $%d`, idx)
		countQuery += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY full_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}

// =========== WorkingHours Repository ===========

type workingHoursRepoPG struct{ pool *pgxpool.Pool }

func NewWorkingHoursRepoPG(pool *pgxpool.Pool) WorkingHoursRepository {
	return &workingHoursRepoPG{pool: pool}
}

func (r *workingHoursRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const hoursCols = `id, owner_kind, owner_id, weekday, is_working,
	opening_minutes, closing_minutes, break_start_minutes, break_end_minutes,
	created_at, updated_at`

func (r *workingHoursRepoPG) scanHours(row pgx.Row) (*WorkingHours, error) {
	var w WorkingHours
	var opening, closing int
	var breakStart, breakEnd *int
	err := row.Scan(&w.ID, &w.OwnerKind, &w.OwnerID, &w.Weekday, &w.IsWorking,
		&opening, &closing, &breakStart, &breakEnd, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Opening = engine.TimeOfDay(opening)
	w.Closing = engine.TimeOfDay(closing)
	if breakStart != nil {
		bs := engine.TimeOfDay(*breakStart)
		w.BreakStart = &bs
	}
	if breakEnd != nil {
		be := engine.TimeOfDay(*breakEnd)
		w.BreakEnd = &be
	}
	return &w, nil
}

func minutesPtr(t *engine.TimeOfDay) *int {
	if t == nil {
		return nil
	}
	m := int(*t)
	return &m
}

func (r *workingHoursRepoPG) Upsert(ctx context.Context, w *WorkingHours) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO working_hours (id, owner_kind, owner_id, weekday, is_working,
			opening_minutes, closing_minutes, break_start_minutes, break_end_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (owner_kind, owner_id, weekday) DO UPDATE SET
			is_working = EXCLUDED.is_working,
			opening_minutes = EXCLUDED.opening_minutes,
			closing_minutes = EXCLUDED.closing_minutes,
			break_start_minutes = EXCLUDED.break_start_minutes,
			break_end_minutes = EXCLUDED.break_end_minutes,
			updated_at = NOW()`,
		w.ID, w.OwnerKind, w.OwnerID, w.Weekday, w.IsWorking,
		int(w.Opening), int(w.Closing), minutesPtr(w.BreakStart), minutesPtr(w.BreakEnd))
	return err
}

func (r *workingHoursRepoPG) GetDay(ctx context.Context, kind OwnerKind, ownerID uuid.UUID, weekday int) (*WorkingHours, error) {
	return r.scanHours(r.conn(ctx).QueryRow(ctx, `
		SELECT `+hoursCols+` FROM working_hours
		WHERE owner_kind = $1 AND owner_id = $2 AND weekday = $3`,
		kind, ownerID, weekday))
}

func (r *workingHoursRepoPG) ListByOwner(ctx context.Context, kind OwnerKind, ownerID uuid.UUID) ([]*WorkingHours, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+hoursCols+` FROM working_hours
		WHERE owner_kind = $1 AND owner_id = $2 ORDER BY weekday`,
		kind, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*WorkingHours
	for rows.Next() {
		w, err := r.scanHours(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, nil
}

func (r *workingHoursRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM working_hours WHERE id = $1`, id)
	return err
}

// =========== Holiday Repository ===========

type holidayRepoPG struct{ pool *pgxpool.Pool }

func NewHolidayRepoPG(pool *pgxpool.Pool) HolidayRepository { return &holidayRepoPG{pool: pool} }

func (r *holidayRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const holidayCols = `id, scope, clinic_id, name, start_date, end_date, created_at`

func (r *holidayRepoPG) scanHoliday(row pgx.Row) (*Holiday, error) {
	var h Holiday
	var start, end time.Time
	err := row.Scan(&h.ID, &h.Scope, &h.ClinicID, &h.Name, &start, &end, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	h.StartDate = engine.DateOf(start)
	h.EndDate = engine.DateOf(end)
	return &h, nil
}

func (r *holidayRepoPG) Create(ctx context.Context, h *Holiday) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO holidays (id, scope, clinic_id, name, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		h.ID, h.Scope, h.ClinicID, h.Name, h.StartDate.Time(), h.EndDate.Time())
	return err
}

func (r *holidayRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM holidays WHERE id = $1`, id)
	return err
}

func (r *holidayRepoPG) List(ctx context.Context, clinicID *uuid.UUID, limit, offset int) ([]*Holiday, int, error) {
	query := `SELECT ` + holidayCols + ` FROM holidays`
	countQuery := `SELECT COUNT(*) FROM holidays`
	var args []interface{}
	if clinicID != nil {
		query += ` WHERE scope = 'organization' OR clinic_id = $1`
		countQuery += ` WHERE scope = 'organization' OR clinic_id = $1`
		args = append(args, *clinicID)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query += fmt.Sprintf(` ORDER BY start_date DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Holiday
	for rows.Next() {
		h, err := r.scanHoliday(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, nil
}

func (r *holidayRepoPG) FindCovering(ctx context.Context, clinicID uuid.UUID, date engine.Date) ([]*Holiday, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+holidayCols+` FROM holidays
		WHERE (scope = 'organization' OR clinic_id = $1)
		  AND start_date <= $2 AND end_date >= $2`,
		clinicID, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Holiday
	for rows.Next() {
		h, err := r.scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, nil
}

// =========== BlockedSlot Repository ===========

type blockedSlotRepoPG struct{ pool *pgxpool.Pool }

func NewBlockedSlotRepoPG(pool *pgxpool.Pool) BlockedSlotRepository {
	return &blockedSlotRepoPG{pool: pool}
}

func (r *blockedSlotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const blockedCols = `id, doctor_id, start_date, end_date, start_minutes, end_minutes, reason, created_at`

func (r *blockedSlotRepoPG) scanBlocked(row pgx.Row) (*BlockedSlot, error) {
	var b BlockedSlot
	var start, end time.Time
	var startMin, endMin int
	err := row.Scan(&b.ID, &b.DoctorID, &start, &end, &startMin, &endMin, &b.Reason, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.StartDate = engine.DateOf(start)
	b.EndDate = engine.DateOf(end)
	b.StartTime = engine.TimeOfDay(startMin)
	b.EndTime = engine.TimeOfDay(endMin)
	return &b, nil
}

func (r *blockedSlotRepoPG) Create(ctx context.Context, b *BlockedSlot) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO blocked_slots (id, doctor_id, start_date, end_date, start_minutes, end_minutes, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.DoctorID, b.StartDate.Time(), b.EndDate.Time(),
		int(b.StartTime), int(b.EndTime), b.Reason)
	return err
}

func (r *blockedSlotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM blocked_slots WHERE id = $1`, id)
	return err
}

func (r *blockedSlotRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*BlockedSlot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM blocked_slots WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockedCols+` FROM blocked_slots
		WHERE doctor_id = $1 ORDER BY start_date DESC LIMIT $2 OFFSET $3`,
		doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*BlockedSlot
	for rows.Next() {
		b, err := r.scanBlocked(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, nil
}

func (r *blockedSlotRepoPG) FindCovering(ctx context.Context, doctorID uuid.UUID, date engine.Date) ([]*BlockedSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockedCols+` FROM blocked_slots
		WHERE doctor_id = $1 AND start_date <= $2 AND end_date >= $2`,
		doctorID, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BlockedSlot
	for rows.Next() {
		b, err := r.scanBlocked(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, nil
}
