// Package reminder sends "Travel Reminder" notifications to passengers whose
// flight departs on the next calendar day.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/notify"
	"github.com/sirupsen/logrus"
)

const subject = "Travel Reminder"

type FlightSource interface {
	ListDepartingBetween(ctx context.Context, from, to time.Time) ([]domain.Flight, error)
}

type TicketSource interface {
	ListByFlight(ctx context.Context, flightID int64) ([]domain.Ticket, error)
}

type Service struct {
	flights  FlightSource
	tickets  TicketSource
	notifier notify.Notifier
	hour     int
	log      *logrus.Logger
	now      func() time.Time
}

func NewService(flights FlightSource, tickets TicketSource, notifier notify.Notifier, hour int, log *logrus.Logger) *Service {
	return &Service{flights: flights, tickets: tickets, notifier: notifier, hour: hour, log: log, now: time.Now}
}

// Run sends reminders every day at the configured hour until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		wait := nextRun(s.now(), s.hour).Sub(s.now())
		s.log.WithField("in", wait.Round(time.Second)).Debug("next travel reminder run scheduled")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		if _, err := s.SendForTomorrow(ctx); err != nil {
			s.log.WithError(err).Error("travel reminders failed")
		}
	}
}

// SendForTomorrow notifies every ticket holder with an email on flights that
// depart tomorrow in the local time zone of now. It returns how many
// notifications went out; a failed send is logged and skipped.
func (s *Service) SendForTomorrow(ctx context.Context) (int, error) {
	now := s.now()
	from := startOfDay(now).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	flights, err := s.flights.ListDepartingBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list flights departing %s: %w", from.Format("2006-01-02"), err)
	}

	sent := 0
	for _, f := range flights {
		tickets, err := s.tickets.ListByFlight(ctx, f.ID)
		if err != nil {
			return sent, fmt.Errorf("list tickets of flight %s: %w", f.Number, err)
		}
		for _, t := range tickets {
			if t.Email == "" {
				continue
			}
			if err := s.notifier.Send(ctx, t.Email, subject, body(f, t)); err != nil {
				s.log.WithError(err).WithField("ticket_id", t.ID).Warn("travel reminder not sent")
				continue
			}
			sent++
		}
	}

	s.log.WithFields(logrus.Fields{"flights": len(flights), "sent": sent}).Info("travel reminders sent")
	return sent, nil
}

func body(f domain.Flight, t domain.Ticket) string {
	return fmt.Sprintf("Please be reminded of your schedulled flight as follows.\nPassenger: %s\nDate & time: %s\nFlight no.: %s\nSeat no.: %d",
		t.Passenger, f.DepartureTime.Format("2006-01-02 15:04"), f.Number, t.SeatNumber)
}

// nextRun is the first moment at hour:00 strictly after now.
func nextRun(now time.Time, hour int) time.Time {
	run := startOfDay(now).Add(time.Duration(hour) * time.Hour)
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
