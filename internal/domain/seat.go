package domain

import "time"

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	// SeatStatusHeld is the transient state of a seat claimed by an in-flight booking attempt.
	SeatStatusHeld   SeatStatus = "held"
	SeatStatusBooked SeatStatus = "booked"
)

type Seat struct {
	ID         int64
	FlightID   int64
	SeatNumber int
	Status     SeatStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
