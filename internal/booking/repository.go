package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the system of record for bookings.
// Implementations return ErrNotFound for unknown ids and may return
// ErrSlotConflict from Insert when the store itself rejects an overlap.
// Every other error is treated as the store being unavailable.
type Repository interface {
	// List returns bookings whose blocked time intersects [from, to), ordered by start.
	List(ctx context.Context, from, to time.Time) ([]*Booking, error)
	Get(ctx context.Context, id string) (*Booking, error)
	// Insert stores b, blocking [b.Start, b.BlockedUntil()), and sets b.ID.
	Insert(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id string) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewPgxRepository stores bookings in Postgres. The bookings_no_overlap exclusion
// constraint makes an overlapping insert fail atomically.
func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var bookingColumns = []string{
	"id", "requester_name", "service_type", "service_name", "duration_minutes", "price",
	"start_time", "end_time", "blocked_until", "summary", "description", "created_at",
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var blockedUntil time.Time
	if err := row.Scan(
		&b.ID, &b.RequesterName, &b.ServiceType, &b.ServiceName, &b.DurationMinutes, &b.Price,
		&b.Start, &b.End, &blockedUntil, &b.Summary, &b.Description, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.BufferMinutes = int(blockedUntil.Sub(b.End) / time.Minute)
	return &b, nil
}

func (r *pgxRepository) List(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Lt{"start_time": to}).
		Where(squirrel.Gt{"blocked_until": from}).
		OrderBy("start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings failed: %w", err)
	}
	return bookings, nil
}

func (r *pgxRepository) Get(ctx context.Context, id string) (*Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) Insert(ctx context.Context, b *Booking) error {
	id := uuid.NewString()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"id", "requester_name", "service_type", "service_name", "duration_minutes", "price",
			"start_time", "end_time", "blocked_until", "summary", "description",
		).
		Values(
			id, b.RequesterName, b.ServiceType, b.ServiceName, b.DurationMinutes, b.Price,
			b.Start, b.End, b.BlockedUntil(), b.Summary, b.Description,
		).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&b.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
			return ErrSlotConflict
		}
		return fmt.Errorf("create booking failed: %w", err)
	}
	b.ID = id
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete booking query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete booking failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
