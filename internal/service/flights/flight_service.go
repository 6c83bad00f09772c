package flights

import (
	"context"
	"strings"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/repository"
	"github.com/Domenick1991/airticket/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type FlightUseCase interface {
	List(ctx context.Context, filter Filter) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByNumber(ctx context.Context, number string) (*domain.Flight, error)
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	Create(ctx context.Context, input CreateInput) (*domain.Flight, error)
	SetStatus(ctx context.Context, id int64, input StatusInput) (*domain.Flight, error)
}

// FlightCache holds the full catalogue; filters are applied on top of it.
type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

// Filter narrows List. Zero fields match everything; places compare case-insensitively.
type Filter struct {
	Departure   string
	Destination string
	From        time.Time
	To          time.Time
	Status      domain.FlightStatus
}

func (f Filter) match(fl domain.Flight) bool {
	if f.Departure != "" && !strings.EqualFold(f.Departure, fl.Departure) {
		return false
	}
	if f.Destination != "" && !strings.EqualFold(f.Destination, fl.Destination) {
		return false
	}
	if !f.From.IsZero() && fl.DepartureTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !fl.DepartureTime.Before(f.To) {
		return false
	}
	if f.Status != "" && f.Status != fl.Status {
		return false
	}
	return true
}

type CreateInput struct {
	Number        string    `json:"number" validate:"required,alphanum,max=20"`
	Departure     string    `json:"departure" validate:"notblank,max=100"`
	Destination   string    `json:"destination" validate:"notblank,max=100"`
	DepartureTime time.Time `json:"departure_time" validate:"required"`
	FareCents     int64     `json:"fare_cents" validate:"gte=0"`
	Capacity      int       `json:"capacity" validate:"required,min=1,max=1000"`
}

type StatusInput struct {
	Status domain.FlightStatus `json:"status" validate:"required,oneof=active cancelled"`
}

type FlightService struct {
	repo     repository.FlightRepository
	cache    FlightCache
	validate *validator.Validate
	log      *logrus.Logger
	now      func() time.Time
}

// NewFlightService wires the catalogue. cache may be nil.
func NewFlightService(repo repository.FlightRepository, cache FlightCache, log *logrus.Logger) *FlightService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FlightService{repo: repo, cache: cache, validate: validation.New(), log: log, now: time.Now}
}

func (s *FlightService) List(ctx context.Context, filter Filter) ([]domain.Flight, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Flight, 0, len(all))
	for _, f := range all {
		if filter.match(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *FlightService) all(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		cached, err := s.cache.GetFlights(ctx)
		if err != nil {
			s.log.WithError(err).Warn("flights cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			s.log.WithError(err).Warn("flights cache write failed")
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	return s.repo.GetByNumber(ctx, strings.ToUpper(number))
}

func (s *FlightService) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	if _, err := s.repo.GetByID(ctx, flightID); err != nil {
		return nil, err
	}
	return s.repo.ListSeats(ctx, flightID)
}

// Create adds a flight with seats numbered 1..Capacity, all available.
func (s *FlightService) Create(ctx context.Context, input CreateInput) (*domain.Flight, error) {
	input.Number = strings.ToUpper(strings.TrimSpace(input.Number))
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}
	if !input.DepartureTime.After(s.now()) {
		return nil, validation.Field("departure_time", "must be in the future")
	}

	flight, err := s.repo.Create(ctx, repository.NewFlight{
		Number:        input.Number,
		Departure:     input.Departure,
		Destination:   input.Destination,
		DepartureTime: input.DepartureTime.UTC(),
		FareCents:     input.FareCents,
		Capacity:      input.Capacity,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{"flight_id": flight.ID, "number": flight.Number, "capacity": input.Capacity}).Info("flight created")
	return flight, nil
}

func (s *FlightService) SetStatus(ctx context.Context, id int64, input StatusInput) (*domain.Flight, error) {
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}
	flight, err := s.repo.SetStatus(ctx, id, input.Status)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{"flight_id": id, "status": input.Status}).Info("flight status changed")
	return flight, nil
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.log.WithError(err).Warn("flights cache invalidation failed")
	}
}

var _ FlightUseCase = (*FlightService)(nil)
