package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/seatstore"
)

// MemoryFlightRepository is the in-process catalogue used with
// seatstore.MemoryStore. Seats it provisions live in that store.
type MemoryFlightRepository struct {
	mu         sync.RWMutex
	flights    map[int64]*domain.Flight
	seats      *seatstore.MemoryStore
	nextFlight int64
	nextSeat   int64
	now        func() time.Time
}

func NewMemoryFlightRepository(seats *seatstore.MemoryStore) *MemoryFlightRepository {
	return &MemoryFlightRepository{
		flights: make(map[int64]*domain.Flight),
		seats:   seats,
		now:     time.Now,
	}
}

func (r *MemoryFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	return r.filter(func(*domain.Flight) bool { return true }), nil
}

func (r *MemoryFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flights[id]
	if !ok {
		return nil, domain.ErrFlightNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *MemoryFlightRepository) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	found := r.filter(func(f *domain.Flight) bool { return f.Number == number })
	if len(found) == 0 {
		return nil, domain.ErrFlightNotFound
	}
	return &found[0], nil
}

func (r *MemoryFlightRepository) ListDepartingBetween(ctx context.Context, from, to time.Time) ([]domain.Flight, error) {
	return r.filter(func(f *domain.Flight) bool {
		return f.Status == domain.FlightStatusActive && !f.DepartureTime.Before(from) && f.DepartureTime.Before(to)
	}), nil
}

func (r *MemoryFlightRepository) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	return r.seats.FlightSeats(flightID), nil
}

func (r *MemoryFlightRepository) Create(ctx context.Context, nf NewFlight) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.flights {
		if f.Number == nf.Number {
			return nil, domain.ErrFlightNumberTaken
		}
	}

	now := r.now()
	r.nextFlight++
	f := &domain.Flight{
		ID:            r.nextFlight,
		Number:        nf.Number,
		Departure:     nf.Departure,
		Destination:   nf.Destination,
		DepartureTime: nf.DepartureTime,
		FareCents:     nf.FareCents,
		Status:        domain.FlightStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	seats := make([]domain.Seat, 0, nf.Capacity)
	for n := 1; n <= nf.Capacity; n++ {
		r.nextSeat++
		seats = append(seats, domain.Seat{ID: r.nextSeat, FlightID: f.ID, SeatNumber: n, CreatedAt: now, UpdatedAt: now})
	}
	if err := r.seats.AddSeats(seats...); err != nil {
		return nil, err
	}

	r.flights[f.ID] = f
	cp := *f
	return &cp, nil
}

func (r *MemoryFlightRepository) SetStatus(ctx context.Context, id int64, status domain.FlightStatus) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[id]
	if !ok {
		return nil, domain.ErrFlightNotFound
	}
	f.Status = status
	f.UpdatedAt = r.now()
	cp := *f
	return &cp, nil
}

func (r *MemoryFlightRepository) filter(keep func(*domain.Flight) bool) []domain.Flight {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Flight, 0, len(r.flights))
	for _, f := range r.flights {
		if keep(f) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepartureTime.Before(out[j].DepartureTime)
	})
	return out
}

var _ FlightRepository = (*MemoryFlightRepository)(nil)
