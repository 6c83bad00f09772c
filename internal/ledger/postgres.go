package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `id, seat_id, flight_id, seat_number, passenger, email, account_id, payment_status, payment_reference, created_at, updated_at`

type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Create(ctx context.Context, nt NewTicket) (*domain.Ticket, error) {
	t := &domain.Ticket{
		ID:               uuid.NewString(),
		SeatID:           nt.SeatID,
		FlightID:         nt.FlightID,
		SeatNumber:       nt.SeatNumber,
		Passenger:        nt.Passenger,
		Email:            nt.Email,
		AccountID:        nt.AccountID,
		PaymentStatus:    paymentStatusOrDefault(nt.PaymentStatus),
		PaymentReference: nt.PaymentReference,
	}

	err := l.db.QueryRow(ctx, `
INSERT INTO tickets (id, seat_id, flight_id, seat_number, passenger, email, account_id, payment_status, payment_reference)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at`,
		t.ID, t.SeatID, t.FlightID, t.SeatNumber, t.Passenger, t.Email, t.AccountID, t.PaymentStatus, t.PaymentReference,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case "23505":
			return nil, domain.ErrSeatAlreadyTicketed
		case "23503":
			return nil, domain.ErrSeatNotFound
		}
		return nil, fmt.Errorf("create ticket for seat %d: %w", nt.SeatID, err)
	}
	return t, nil
}

func (l *PostgresLedger) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrTicketNotFound
	}

	rows, err := l.db.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTicket)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return &t, nil
}

func (l *PostgresLedger) ListByFlight(ctx context.Context, flightID int64) ([]domain.Ticket, error) {
	return l.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE flight_id = $1 ORDER BY created_at, id`, flightID)
}

func (l *PostgresLedger) ListByAccount(ctx context.Context, accountID string) ([]domain.Ticket, error) {
	return l.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE account_id = $1 ORDER BY created_at, id`, accountID)
}

func (l *PostgresLedger) list(ctx context.Context, query string, arg any) ([]domain.Ticket, error) {
	rows, err := l.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	tickets, err := pgx.CollectRows(rows, scanTicket)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

func scanTicket(row pgx.CollectableRow) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(&t.ID, &t.SeatID, &t.FlightID, &t.SeatNumber, &t.Passenger, &t.Email, &t.AccountID,
		&t.PaymentStatus, &t.PaymentReference, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ Ledger = (*PostgresLedger)(nil)
