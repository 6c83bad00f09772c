package seatstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectBackoff    = 5 * time.Millisecond
	selectMaxBackoff = 100 * time.Millisecond
)

// claimable matches seats a new hold may take, with now bound to the given
// placeholder. A lapsed hold on a seat that already has a ticket is not
// claimable: the ledger says it is sold.
func claimable(now string) string {
	return `(status = 'available' OR (status = 'held' AND held_until <= ` + now + `
	AND NOT EXISTS (SELECT 1 FROM tickets t WHERE t.seat_id = seats.id)))`
}

type PostgresStore struct {
	db      *pgxpool.Pool
	holdTTL time.Duration
	now     func() time.Time
}

func NewPostgresStore(db *pgxpool.Pool, holdTTL time.Duration) *PostgresStore {
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	return &PostgresStore{db: db, holdTTL: holdTTL, now: time.Now}
}

func (s *PostgresStore) Claim(ctx context.Context, seatID int64) (*ClaimHandle, error) {
	now := s.now()
	h := &ClaimHandle{SeatID: seatID, Token: newToken(), ExpiresAt: now.Add(s.holdTTL)}

	err := s.db.QueryRow(ctx, `
UPDATE seats
SET status = 'held', hold_token = $2, held_until = $4, updated_at = now()
WHERE id = $1 AND `+claimable("$3")+`
RETURNING flight_id, seat_number`, seatID, h.Token, now, h.ExpiresAt).Scan(&h.FlightID, &h.SeatNumber)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim seat %d: %w", seatID, err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM seats WHERE id = $1)`, seatID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check seat %d: %w", seatID, err)
	}
	if !exists {
		return nil, domain.ErrSeatNotFound
	}
	return nil, domain.ErrSeatUnavailable
}

// SelectAvailable claims the lowest numbered free seat. Seats locked by a
// concurrent transaction are skipped; while free seats remain it keeps trying,
// backing off between rounds, until it holds one or ctx ends.
func (s *PostgresStore) SelectAvailable(ctx context.Context, flightID int64) (*ClaimHandle, error) {
	backoff := selectBackoff
	for {
		now := s.now()
		h := &ClaimHandle{FlightID: flightID, Token: newToken(), ExpiresAt: now.Add(s.holdTTL)}

		err := s.db.QueryRow(ctx, `
UPDATE seats
SET status = 'held', hold_token = $2, held_until = $4, updated_at = now()
WHERE id = (
	SELECT id FROM seats
	WHERE flight_id = $1 AND `+claimable("$3")+`
	ORDER BY seat_number
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
AND `+claimable("$3")+`
RETURNING id, seat_number`, flightID, h.Token, now, h.ExpiresAt).Scan(&h.SeatID, &h.SeatNumber)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("select seat on flight %d: %w", flightID, err)
		}

		var free int
		if err := s.db.QueryRow(ctx, `
SELECT count(*) FROM seats
WHERE flight_id = $1 AND `+claimable("$2"),
			flightID, now).Scan(&free); err != nil {
			return nil, fmt.Errorf("count free seats on flight %d: %w", flightID, err)
		}
		if free == 0 {
			return nil, domain.ErrNoSeatsAvailable
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, selectMaxBackoff)
	}
}

func (s *PostgresStore) Finalize(ctx context.Context, h *ClaimHandle) error {
	tag, err := s.db.Exec(ctx, `
UPDATE seats
SET status = 'booked', held_until = NULL, updated_at = now()
WHERE id = $1 AND hold_token = $2 AND status = 'held'`, h.SeatID, h.Token)
	if err != nil {
		return fmt.Errorf("finalize seat %d: %w", h.SeatID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// hold_token survives finalization, which makes a repeated finalize a no-op.
	var status domain.SeatStatus
	var token *string
	err = s.db.QueryRow(ctx, `SELECT status, hold_token FROM seats WHERE id = $1`, h.SeatID).Scan(&status, &token)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSeatNotFound
	}
	if err != nil {
		return fmt.Errorf("read seat %d: %w", h.SeatID, err)
	}
	if status == domain.SeatStatusBooked && token != nil && *token == h.Token {
		return nil
	}
	return domain.ErrHandleExpired
}

func (s *PostgresStore) Release(ctx context.Context, h *ClaimHandle) error {
	_, err := s.db.Exec(ctx, `
UPDATE seats
SET status = 'available', hold_token = NULL, held_until = NULL, updated_at = now()
WHERE id = $1 AND hold_token = $2 AND status = 'held'`, h.SeatID, h.Token)
	if err != nil {
		return fmt.Errorf("release seat %d: %w", h.SeatID, err)
	}
	return nil
}

// ReleaseExpired frees lapsed holds. A lapsed hold whose seat has a ticket is
// finalized instead, since the ticket was recorded but the finalize never landed.
func (s *PostgresStore) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	if _, err := s.db.Exec(ctx, `
UPDATE seats
SET status = 'booked', held_until = NULL, updated_at = now()
WHERE status = 'held' AND held_until <= $1
AND EXISTS (SELECT 1 FROM tickets t WHERE t.seat_id = seats.id)`, now); err != nil {
		return 0, fmt.Errorf("book ticketed holds: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
UPDATE seats
SET status = 'available', hold_token = NULL, held_until = NULL, updated_at = now()
WHERE status = 'held' AND held_until <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*PostgresStore)(nil)
