package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Ticket struct {
	ID               string
	SeatID           int64
	FlightID         int64
	SeatNumber       int
	Passenger        string
	Email            string
	AccountID        string
	PaymentStatus    PaymentStatus
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
