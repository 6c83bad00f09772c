package booking

import (
	"time"
)

type ReserveInput struct {
	Passenger string `json:"passenger" validate:"notblank,max=100"`
	SeatID    int64  `json:"seat_id" validate:"required,gt=0"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	AccountID string `json:"account_id" validate:"required"`
}

type PaymentInput struct {
	CardNumber  string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	CVV         string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=2000,max=2100"`
	PIN         string `json:"pin" validate:"required,numeric,len=4"`
}

// BookInput targets either a specific seat or, through FlightNumber, the first
// free seat of a flight. When both are given the seat must belong to that flight.
type BookInput struct {
	Passenger    string       `json:"passenger" validate:"notblank,max=100"`
	SeatID       int64        `json:"seat_id" validate:"required_without=FlightNumber,gte=0"`
	FlightNumber string       `json:"flight_number" validate:"required_without=SeatID,max=20"`
	Email        string       `json:"email" validate:"required,email,max=254"`
	AccountID    string       `json:"account_id" validate:"required"`
	Payment      PaymentInput `json:"payment"`
}

// cardExpired reports whether the card's expiry month lies before now's month.
func cardExpired(p PaymentInput, now time.Time) bool {
	y, m, _ := now.Date()
	if p.ExpiryYear != y {
		return p.ExpiryYear < y
	}
	return p.ExpiryMonth < int(m)
}
