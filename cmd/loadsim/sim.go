package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/airticket/internal/cache"
	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/ledger"
	"github.com/Domenick1991/airticket/internal/payment"
	"github.com/Domenick1991/airticket/internal/repository"
	"github.com/Domenick1991/airticket/internal/seatstore"
	"github.com/Domenick1991/airticket/internal/service/booking"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const flightNumber = "SIM001"

type options struct {
	Buyers       int
	Seats        int
	DeclineEvery int64
	Latency      time.Duration
	Guard        bool
	LedgerDSN    string
}

type report struct {
	Booked     int
	SoldOut    int
	Declined   int
	Contended  int
	Failed     int
	Tickets    int
	DoubleSold int
	Elapsed    time.Duration
}

func (r report) log(log *logrus.Logger) {
	log.WithFields(logrus.Fields{
		"booked":      r.Booked,
		"sold_out":    r.SoldOut,
		"declined":    r.Declined,
		"contended":   r.Contended,
		"failed":      r.Failed,
		"tickets":     r.Tickets,
		"double_sold": r.DoubleSold,
		"elapsed":     r.Elapsed.Round(time.Millisecond).String(),
	}).Info("simulation finished")
}

func simulate(ctx context.Context, opts options, log *logrus.Logger) (report, error) {
	tickets, err := ledger.OpenSQLite(ctx, opts.LedgerDSN)
	if err != nil {
		return report{}, err
	}
	defer tickets.Close()

	mem := seatstore.NewMemoryStore()
	var seats seatstore.Store = mem
	if opts.Guard {
		mr, err := miniredis.Run()
		if err != nil {
			return report{}, fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		seats = seatstore.NewGuarded(mem, cache.NewRedisCacheFromClient(client, time.Minute), seatstore.DefaultHoldTTL, log)
	}

	flights := repository.NewMemoryFlightRepository(mem)
	flight, err := flights.Create(ctx, repository.NewFlight{
		Number:        flightNumber,
		Departure:     "Lagos",
		Destination:   "Abuja",
		DepartureTime: time.Now().Add(24 * time.Hour),
		FareCents:     5000,
		Capacity:      opts.Seats,
	})
	if err != nil {
		return report{}, err
	}

	service := booking.NewBookingService(seats, tickets, flights,
		&payment.Stub{Latency: opts.Latency, DeclineEvery: opts.DeclineEvery},
		booking.WithLogger(log),
	)

	var (
		mu  sync.Mutex
		rep report
		wg  sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < opts.Buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.Book(ctx, buyer(i))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Booked++
			case errors.Is(err, domain.ErrNoSeatsAvailable):
				rep.SoldOut++
			case errors.Is(err, domain.ErrPaymentDeclined):
				rep.Declined++
			case errors.Is(err, domain.ErrSeatUnavailable):
				rep.Contended++
			default:
				rep.Failed++
				log.WithError(err).Warn("booking failed")
			}
		}(i)
	}
	wg.Wait()
	service.Wait()
	rep.Elapsed = time.Since(start)

	issued, err := tickets.ListByFlight(ctx, flight.ID)
	if err != nil {
		return rep, err
	}
	rep.Tickets = len(issued)
	seen := make(map[int64]bool, len(issued))
	for _, t := range issued {
		if seen[t.SeatID] {
			rep.DoubleSold++
		}
		seen[t.SeatID] = true
	}
	return rep, nil
}

func buyer(i int) booking.BookInput {
	return booking.BookInput{
		Passenger:    fmt.Sprintf("Passenger %d", i),
		FlightNumber: flightNumber,
		Email:        fmt.Sprintf("passenger%d@example.com", i),
		AccountID:    uuid.NewString(),
		Payment: booking.PaymentInput{
			CardNumber:  "5078503400000000",
			CVV:         "081",
			ExpiryMonth: 12,
			ExpiryYear:  time.Now().Year() + 3,
			PIN:         "1234",
		},
	}
}
