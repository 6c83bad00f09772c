package booking

import (
	"context"
	"strings"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
)

// TicketFilter narrows ticket listings. Text fields match case-insensitive
// substrings; FlightDate matches the flight's departure day in UTC. Zero
// fields match everything.
type TicketFilter struct {
	Passenger    string
	BookedBy     string
	FlightNumber string
	FlightDate   time.Time
}

func (f TicketFilter) empty() bool {
	return f.Passenger == "" && f.BookedBy == "" && f.FlightNumber == "" && f.FlightDate.IsZero()
}

func (f TicketFilter) needsFlight() bool {
	return f.FlightNumber != "" || !f.FlightDate.IsZero()
}

func (f TicketFilter) match(t domain.Ticket, flight *domain.Flight) bool {
	if !containsFold(t.Passenger, f.Passenger) || !containsFold(t.AccountID, f.BookedBy) {
		return false
	}
	if flight == nil {
		return true
	}
	if !containsFold(flight.Number, f.FlightNumber) {
		return false
	}
	if !f.FlightDate.IsZero() {
		y, m, d := flight.DepartureTime.UTC().Date()
		fy, fm, fd := f.FlightDate.Date()
		return y == fy && m == fm && d == fd
	}
	return true
}

func containsFold(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// filterTickets applies f, loading each referenced flight once.
func (s *BookingService) filterTickets(ctx context.Context, tickets []domain.Ticket, f TicketFilter) ([]domain.Ticket, error) {
	if f.empty() {
		return tickets, nil
	}

	flights := make(map[int64]*domain.Flight)
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		var flight *domain.Flight
		if f.needsFlight() {
			flight = flights[t.FlightID]
			if flight == nil {
				loaded, err := s.flights.GetByID(ctx, t.FlightID)
				if err != nil {
					return nil, err
				}
				flights[t.FlightID] = loaded
				flight = loaded
			}
		}
		if f.match(t, flight) {
			out = append(out, t)
		}
	}
	return out, nil
}
