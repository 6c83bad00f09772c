package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NewFlight struct {
	Number        string
	Departure     string
	Destination   string
	DepartureTime time.Time
	FareCents     int64
	Capacity      int
}

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByNumber(ctx context.Context, number string) (*domain.Flight, error)
	ListDepartingBetween(ctx context.Context, from, to time.Time) ([]domain.Flight, error)
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	Create(ctx context.Context, f NewFlight) (*domain.Flight, error)
	SetStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error)
}

const flightColumns = `id, number, departure, destination, departure_time, fare_cents, status, created_at, updated_at`

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) *PGFlightRepository {
	return &PGFlightRepository{db: db}
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	return r.list(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time, id`)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return r.get(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id)
}

func (r *PGFlightRepository) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	return r.get(ctx, `SELECT `+flightColumns+` FROM flights WHERE number = $1`, number)
}

func (r *PGFlightRepository) ListDepartingBetween(ctx context.Context, from, to time.Time) ([]domain.Flight, error) {
	return r.list(ctx, `SELECT `+flightColumns+` FROM flights
WHERE status = 'active' AND departure_time >= $1 AND departure_time < $2
ORDER BY departure_time, id`, from, to)
}

// ListSeats reports seats in seat-number order. A hold that has lapsed is
// reported as available, matching how claims treat it.
func (r *PGFlightRepository) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, flight_id, seat_number,
	CASE WHEN status = 'held' AND held_until <= now() THEN 'available' ELSE status END,
	created_at, updated_at
FROM seats WHERE flight_id = $1 ORDER BY seat_number`, flightID)
	if err != nil {
		return nil, fmt.Errorf("list seats of flight %d: %w", flightID, err)
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.FlightID, &s.SeatNumber, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// Create inserts the flight and provisions seats 1..Capacity in one transaction.
func (r *PGFlightRepository) Create(ctx context.Context, nf NewFlight) (*domain.Flight, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var f domain.Flight
	err = tx.QueryRow(ctx, `
INSERT INTO flights (number, departure, destination, departure_time, fare_cents)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+flightColumns, nf.Number, nf.Departure, nf.Destination, nf.DepartureTime, nf.FareCents).
		Scan(&f.ID, &f.Number, &f.Departure, &f.Destination, &f.DepartureTime, &f.FareCents, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrFlightNumberTaken
		}
		return nil, fmt.Errorf("insert flight %s: %w", nf.Number, err)
	}

	if nf.Capacity > 0 {
		if _, err := tx.Exec(ctx, `
INSERT INTO seats (flight_id, seat_number)
SELECT $1, n FROM generate_series(1, $2) AS n`, f.ID, nf.Capacity); err != nil {
			return nil, fmt.Errorf("provision seats for flight %s: %w", nf.Number, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) SetStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error) {
	return r.get(ctx, `UPDATE flights SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+flightColumns, id, status)
}

func (r *PGFlightRepository) get(ctx context.Context, query string, args ...any) (*domain.Flight, error) {
	var f domain.Flight
	err := r.db.QueryRow(ctx, query, args...).
		Scan(&f.ID, &f.Number, &f.Departure, &f.Destination, &f.DepartureTime, &f.FareCents, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFlightNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) list(ctx context.Context, query string, args ...any) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := rows.Scan(&f.ID, &f.Number, &f.Departure, &f.Destination, &f.DepartureTime, &f.FareCents, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)
