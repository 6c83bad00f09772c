// Package ledger is the durable record of issued tickets. It holds at most
// one ticket per seat; that uniqueness is the last line of defence against
// double booking.
package ledger

import (
	"context"

	"github.com/Domenick1991/airticket/internal/domain"
)

type NewTicket struct {
	SeatID           int64
	FlightID         int64
	SeatNumber       int
	Passenger        string
	Email            string
	AccountID        string
	PaymentStatus    domain.PaymentStatus
	PaymentReference string
}

type Ledger interface {
	// Create persists a ticket. A second ticket for the same seat fails with
	// domain.ErrSeatAlreadyTicketed.
	Create(ctx context.Context, t NewTicket) (*domain.Ticket, error)
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	ListByFlight(ctx context.Context, flightID int64) ([]domain.Ticket, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Ticket, error)
}

func paymentStatusOrDefault(s domain.PaymentStatus) domain.PaymentStatus {
	if s == "" {
		return domain.PaymentStatusPending
	}
	return s
}
