package kafka

import "time"

const (
	EventTicketReserved = "ticket_reserved"
	EventTicketBooked   = "ticket_booked"
)

// BookingEvent is published on the booking events topic once a ticket is issued.
type BookingEvent struct {
	Type          string    `json:"type"`
	TicketID      string    `json:"ticket_id"`
	SeatID        int64     `json:"seat_id"`
	FlightID      int64     `json:"flight_id"`
	FlightNumber  string    `json:"flight_number"`
	SeatNumber    int       `json:"seat_number"`
	AccountID     string    `json:"account_id"`
	Email         string    `json:"email,omitempty"`
	PaymentStatus string    `json:"payment_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notification is a message for a passenger, delivered by the worker.
type Notification struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
