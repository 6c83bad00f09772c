// Package seatstore owns seat status transitions. A booking attempt claims a
// seat (available -> held), and then either finalizes it (held -> booked) or
// releases it (held -> available). Claims are exclusive per seat: of any number
// of concurrent claimants exactly one wins, the rest fail at once.
package seatstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	Claim(ctx context.Context, seatID int64) (*ClaimHandle, error)
	Finalize(ctx context.Context, h *ClaimHandle) error
	Release(ctx context.Context, h *ClaimHandle) error
	// SelectAvailable picks and claims a free seat of the flight in one step.
	SelectAvailable(ctx context.Context, flightID int64) (*ClaimHandle, error)
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// ClaimHandle proves ownership of a hold. Token distinguishes this hold from
// any later hold on the same seat.
type ClaimHandle struct {
	SeatID     int64
	FlightID   int64
	SeatNumber int
	Token      string
	ExpiresAt  time.Time
}

const DefaultHoldTTL = 2 * time.Minute

func newToken() string {
	return uuid.NewString()
}
