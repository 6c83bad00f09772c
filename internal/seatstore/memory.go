package seatstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
)

// MemoryStore keeps seats in process. Each seat has its own mutex, so claims
// on different seats of one flight never contend with each other.
type MemoryStore struct {
	mu      sync.RWMutex
	seats   map[int64]*seatSlot
	flights map[int64][]*seatSlot // ordered by seat number
	holdTTL time.Duration
	now     func() time.Time
}

type seatSlot struct {
	mu        sync.Mutex
	seat      domain.Seat
	token     string
	heldUntil time.Time
}

type MemoryOption func(*MemoryStore)

func WithMemoryHoldTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithMemoryClock replaces time.Now, mostly for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		seats:   make(map[int64]*seatSlot),
		flights: make(map[int64][]*seatSlot),
		holdTTL: DefaultHoldTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSeats provisions seats. Seat numbers must be unique within a flight.
func (s *MemoryStore) AddSeats(seats ...domain.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seat := range seats {
		if _, ok := s.seats[seat.ID]; ok {
			return fmt.Errorf("seat %d already exists", seat.ID)
		}
		for _, other := range s.flights[seat.FlightID] {
			if other.seat.SeatNumber == seat.SeatNumber {
				return fmt.Errorf("flight %d seat %d: %w", seat.FlightID, seat.SeatNumber, domain.ErrDuplicateSeatNumber)
			}
		}
		if seat.Status == "" {
			seat.Status = domain.SeatStatusAvailable
		}
		slot := &seatSlot{seat: seat}
		s.seats[seat.ID] = slot
		// Copy so readers iterating the previous slice are never disturbed.
		list := append(append([]*seatSlot(nil), s.flights[seat.FlightID]...), slot)
		sort.Slice(list, func(i, j int) bool { return list[i].seat.SeatNumber < list[j].seat.SeatNumber })
		s.flights[seat.FlightID] = list
	}
	return nil
}

// Seat returns a snapshot of the seat; a lapsed hold reads as available.
func (s *MemoryStore) Seat(seatID int64) (domain.Seat, bool) {
	slot := s.slot(seatID)
	if slot == nil {
		return domain.Seat{}, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	seat := slot.seat
	if seat.Status == domain.SeatStatusHeld && !slot.heldUntil.After(s.now()) {
		seat.Status = domain.SeatStatusAvailable
	}
	return seat, true
}

// FlightSeats returns snapshots of the flight's seats in seat-number order.
func (s *MemoryStore) FlightSeats(flightID int64) []domain.Seat {
	s.mu.RLock()
	slots := s.flights[flightID]
	s.mu.RUnlock()

	seats := make([]domain.Seat, 0, len(slots))
	for _, slot := range slots {
		if seat, ok := s.Seat(slot.seat.ID); ok {
			seats = append(seats, seat)
		}
	}
	return seats
}

func (s *MemoryStore) Claim(ctx context.Context, seatID int64) (*ClaimHandle, error) {
	slot := s.slot(seatID)
	if slot == nil {
		return nil, domain.ErrSeatNotFound
	}
	if h, ok := s.tryClaim(slot); ok {
		return h, nil
	}
	return nil, domain.ErrSeatUnavailable
}

func (s *MemoryStore) SelectAvailable(ctx context.Context, flightID int64) (*ClaimHandle, error) {
	s.mu.RLock()
	candidates := s.flights[flightID]
	s.mu.RUnlock()

	for _, slot := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h, ok := s.tryClaim(slot); ok {
			return h, nil
		}
	}
	return nil, domain.ErrNoSeatsAvailable
}

func (s *MemoryStore) Finalize(ctx context.Context, h *ClaimHandle) error {
	slot := s.slot(h.SeatID)
	if slot == nil {
		return domain.ErrSeatNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.token != h.Token {
		return domain.ErrHandleExpired
	}
	if slot.seat.Status == domain.SeatStatusBooked {
		return nil
	}
	slot.seat.Status = domain.SeatStatusBooked
	slot.seat.UpdatedAt = s.now()
	slot.heldUntil = time.Time{}
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, h *ClaimHandle) error {
	slot := s.slot(h.SeatID)
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.token != h.Token || slot.seat.Status != domain.SeatStatusHeld {
		return nil
	}
	slot.seat.Status = domain.SeatStatusAvailable
	slot.seat.UpdatedAt = s.now()
	slot.token = ""
	slot.heldUntil = time.Time{}
	return nil
}

func (s *MemoryStore) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	slots := make([]*seatSlot, 0, len(s.seats))
	for _, slot := range s.seats {
		slots = append(slots, slot)
	}
	s.mu.RUnlock()

	released := 0
	for _, slot := range slots {
		slot.mu.Lock()
		if slot.seat.Status == domain.SeatStatusHeld && !slot.heldUntil.After(now) {
			slot.seat.Status = domain.SeatStatusAvailable
			slot.seat.UpdatedAt = now
			slot.token = ""
			slot.heldUntil = time.Time{}
			released++
		}
		slot.mu.Unlock()
	}
	return released, nil
}

func (s *MemoryStore) tryClaim(slot *seatSlot) (*ClaimHandle, bool) {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	now := s.now()
	switch slot.seat.Status {
	case domain.SeatStatusAvailable:
	case domain.SeatStatusHeld:
		if slot.heldUntil.After(now) {
			return nil, false
		}
	default:
		return nil, false
	}

	slot.seat.Status = domain.SeatStatusHeld
	slot.seat.UpdatedAt = now
	slot.token = newToken()
	slot.heldUntil = now.Add(s.holdTTL)

	return &ClaimHandle{
		SeatID:     slot.seat.ID,
		FlightID:   slot.seat.FlightID,
		SeatNumber: slot.seat.SeatNumber,
		Token:      slot.token,
		ExpiresAt:  slot.heldUntil,
	}, true
}

func (s *MemoryStore) slot(seatID int64) *seatSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seats[seatID]
}

var _ Store = (*MemoryStore)(nil)
