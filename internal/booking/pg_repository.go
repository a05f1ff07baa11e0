package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusionViolation is the SQLSTATE raised when an insert trips the
// appointments_no_overlap constraint.
const exclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanBusiness(row pgx.Row) (*Business, error) {
	var b Business

	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, err
	}

	return &b, nil
}

func scanService(row pgx.Row) (*ServiceOffering, error) {
	var s ServiceOffering

	err := row.Scan(
		&s.ID,
		&s.BusinessID,
		&s.Name,
		&s.DurationMinutes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var email *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&email,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	c.Email = email
	return &c, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.BusinessID,
		&a.ServiceID,
		&a.ClientID,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// Directory methods

func (r *PgRepository) GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`, id)
	return scanBusiness(row)
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*ServiceOffering, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, business_id, name, duration_minutes, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (r *PgRepository) OperatingWindows(ctx context.Context, businessID uuid.UUID, weekday time.Weekday) ([]OperatingWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT open_minute, close_minute
		FROM operating_windows
		WHERE business_id = $1
		  AND weekday = $2
		ORDER BY open_minute
	`, businessID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OperatingWindow
	for rows.Next() {
		var w OperatingWindow
		if err := rows.Scan(&w.OpenMinute, &w.CloseMinute); err != nil {
			return nil, err
		}
		result = append(result, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Repository methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, business_id, service_id, client_id, start_time, duration_minutes, status, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// ListOccupying pushes the day-window interval filter into SQL instead of
// loading the business's whole history and filtering in memory.
func (r *PgRepository) ListOccupying(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, service_id, client_id, start_time, duration_minutes, status, notes, created_at, updated_at
		FROM appointments
		WHERE business_id = $1
		  AND status IN ('confirmed', 'completed')
		  AND start_time < $3
		  AND start_time + make_interval(mins => duration_minutes) > $2
		ORDER BY start_time
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateAppointment inserts a booking. The appointments_no_overlap exclusion
// constraint backs up the service-level lock; a violation surfaces as a
// ConflictError without a known conflicting id.
func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, business_id, service_id, client_id, start_time, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, business_id, service_id, client_id, start_time, duration_minutes, status, notes, created_at, updated_at
	`, appt.ID, appt.BusinessID, appt.ServiceID, appt.ClientID, appt.StartTime, appt.DurationMinutes, appt.Status, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return nil, &ConflictError{}
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, business_id, service_id, client_id, start_time, duration_minutes, status, notes, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) FindFinishedConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, service_id, client_id, start_time, duration_minutes, status, notes, created_at, updated_at
		FROM appointments
		WHERE status = 'confirmed'
		  AND start_time + make_interval(mins => duration_minutes) < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
