package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository { return &serviceRepoPG{pool: pool} }

func (r *serviceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// inTx runs fn inside the ambient transaction when one rides the
// context, otherwise opens its own.
func (r *serviceRepoPG) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, r.pool, fn)
}

const serviceCols = `id, clinic_id, name, description, duration_minutes, price_cents, active, created_at, updated_at`

func (r *serviceRepoPG) scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.ClinicID, &s.Name, &s.Description, &s.DurationMinutes,
		&s.PriceCents, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *Service) error {
	s.ID = uuid.New()
	return r.inTx(ctx, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO services (id, clinic_id, name, description, duration_minutes, price_cents, active)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			s.ID, s.ClinicID, s.Name, s.Description, s.DurationMinutes, s.PriceCents, s.Active)
		if err != nil {
			return err
		}
		return r.insertSessions(ctx, s)
	})
}

func (r *serviceRepoPG) insertSessions(ctx context.Context, s *Service) error {
	for i := range s.Sessions {
		sess := &s.Sessions[i]
		if sess.ID == uuid.Nil {
			sess.ID = uuid.New()
		}
		sess.ServiceID = s.ID
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO service_sessions (id, service_id, position, name, duration_minutes)
			VALUES ($1,$2,$3,$4,$5)`,
			sess.ID, sess.ServiceID, sess.Position, sess.Name, sess.DurationMinutes)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	s, err := r.scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM services WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, service_id, position, name, duration_minutes
		FROM service_sessions WHERE service_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ServiceID, &sess.Position, &sess.Name, &sess.DurationMinutes); err != nil {
			return nil, err
		}
		s.Sessions = append(s.Sessions, sess)
	}
	return s, rows.Err()
}

func (r *serviceRepoPG) Update(ctx context.Context, s *Service) error {
	return r.inTx(ctx, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx, `
			UPDATE services SET clinic_id=$2, name=$3, description=$4, duration_minutes=$5,
				price_cents=$6, active=$7, updated_at=NOW()
			WHERE id = $1`,
			s.ID, s.ClinicID, s.Name, s.Description, s.DurationMinutes, s.PriceCents, s.Active)
		if err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM service_sessions WHERE service_id = $1`, s.ID); err != nil {
			return err
		}
		return r.insertSessions(ctx, s)
	})
}

func (r *serviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	return err
}

func (r *serviceRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Service, int, error) {
	filter := ``
	if activeOnly {
		filter = ` WHERE active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM services`+filter).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM services`+filter+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Service
	for rows.Next() {
		s, err := r.scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
