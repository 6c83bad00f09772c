package api

import (
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
)

type ticketResponse struct {
	ID               string `json:"id"`
	SeatID           int64  `json:"seat_id"`
	FlightID         int64  `json:"flight_id"`
	SeatNumber       int    `json:"seat_number"`
	Passenger        string `json:"passenger"`
	Email            string `json:"email,omitempty"`
	PaymentStatus    string `json:"payment_status"`
	PaymentReference string `json:"payment_reference,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func toTicketResponse(t *domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:               t.ID,
		SeatID:           t.SeatID,
		FlightID:         t.FlightID,
		SeatNumber:       t.SeatNumber,
		Passenger:        t.Passenger,
		Email:            t.Email,
		PaymentStatus:    string(t.PaymentStatus),
		PaymentReference: t.PaymentReference,
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// issuedResponse answers a successful reservation or booking.
type issuedResponse struct {
	Message string `json:"message"`
	ticketResponse
}

func toIssuedResponse(action string, t *domain.Ticket) issuedResponse {
	msg := action + " successful"
	if t.Email != "" {
		msg += ". Details have been sent by email"
	}
	return issuedResponse{Message: msg, ticketResponse: toTicketResponse(t)}
}

func toTicketResponses(list []domain.Ticket) []ticketResponse {
	out := make([]ticketResponse, 0, len(list))
	for i := range list {
		out = append(out, toTicketResponse(&list[i]))
	}
	return out
}

type flightResponse struct {
	ID            int64  `json:"id"`
	Number        string `json:"number"`
	Departure     string `json:"departure"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	Fare          string `json:"fare"`
	FareCents     int64  `json:"fare_cents"`
	Status        string `json:"status"`
}

func toFlightResponse(f *domain.Flight) flightResponse {
	return flightResponse{
		ID:            f.ID,
		Number:        f.Number,
		Departure:     f.Departure,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime.UTC().Format(time.RFC3339),
		Fare:          f.Fare(),
		FareCents:     f.FareCents,
		Status:        string(f.Status),
	}
}

type seatResponse struct {
	ID         int64  `json:"id"`
	SeatNumber int    `json:"seat_number"`
	Status     string `json:"status"`
}
