package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/kafka"
	"github.com/Domenick1991/airticket/internal/ledger"
	"github.com/Domenick1991/airticket/internal/notify"
	"github.com/Domenick1991/airticket/internal/payment"
	"github.com/Domenick1991/airticket/internal/seatstore"
	"github.com/Domenick1991/airticket/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	defaultPaymentTimeout = 30 * time.Second
	backgroundTimeout     = 10 * time.Second
	finalizeAttempts      = 3
	finalizeBackoff       = 50 * time.Millisecond
	flightDateLayout      = "2006-01-02 15:04"
)

type BookingUseCase interface {
	Reserve(ctx context.Context, input ReserveInput) (*domain.Ticket, error)
	Book(ctx context.Context, input BookInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	ListFlightTickets(ctx context.Context, flightID int64, filter TicketFilter) ([]domain.Ticket, error)
	ListAccountTickets(ctx context.Context, accountID string, filter TicketFilter) ([]domain.Ticket, error)
}

type FlightReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByNumber(ctx context.Context, number string) (*domain.Flight, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type BookingService struct {
	seats          seatstore.Store
	tickets        ledger.Ledger
	flights        FlightReader
	gateway        payment.Gateway
	notifier       notify.Notifier
	producer       Producer
	bookingTopic   string
	paymentTimeout time.Duration
	validate       *validator.Validate
	log            *logrus.Logger
	now            func() time.Time

	background sync.WaitGroup
}

type BookingServiceOption func(*BookingService)

func WithPaymentTimeout(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.paymentTimeout = d
		}
	}
}

func WithNotifier(n notify.Notifier) BookingServiceOption {
	return func(s *BookingService) {
		s.notifier = n
	}
}

// WithEventProducer publishes ticket_reserved / ticket_booked events to topic.
func WithEventProducer(p Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = p
		s.bookingTopic = topic
	}
}

func WithLogger(log *logrus.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
	}
}

func NewBookingService(
	seats seatstore.Store,
	tickets ledger.Ledger,
	flights FlightReader,
	gateway payment.Gateway,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		seats:          seats,
		tickets:        tickets,
		flights:        flights,
		gateway:        gateway,
		paymentTimeout: defaultPaymentTimeout,
		validate:       validation.New(),
		log:            logrus.StandardLogger(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Reserve issues an unpaid ticket for a specific seat.
func (s *BookingService) Reserve(ctx context.Context, input ReserveInput) (*domain.Ticket, error) {
	input.Passenger = strings.TrimSpace(input.Passenger)
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}

	h, err := s.seats.Claim(ctx, input.SeatID)
	if err != nil {
		return nil, err
	}
	recorded := false
	defer func() {
		if !recorded {
			s.release(ctx, h)
		}
	}()

	flight, err := s.bookableFlight(ctx, h.FlightID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.record(ctx, h, ledger.NewTicket{
		SeatID:        h.SeatID,
		FlightID:      h.FlightID,
		SeatNumber:    h.SeatNumber,
		Passenger:     input.Passenger,
		Email:         input.Email,
		AccountID:     input.AccountID,
		PaymentStatus: domain.PaymentStatusPending,
	})
	if err != nil {
		// An already ticketed seat has been finalized by record.
		recorded = errors.Is(err, domain.ErrSeatAlreadyTicketed)
		return nil, err
	}
	recorded = true

	s.log.WithFields(logrus.Fields{
		"ticket_id": ticket.ID, "flight": flight.Number, "seat": ticket.SeatNumber, "account_id": ticket.AccountID,
	}).Info("seat reserved")

	s.afterIssue(kafka.EventTicketReserved, ticket, flight, "Ticket Reservation",
		fmt.Sprintf("Reservation made\n date: %s\n flight no.: %s\n seat no.: %d",
			flight.DepartureTime.Format(flightDateLayout), flight.Number, ticket.SeatNumber))
	return ticket, nil
}

// Book charges the flight fare and issues a paid ticket. Payment happens while
// the seat is held, so a decline or gateway failure gives the seat back.
func (s *BookingService) Book(ctx context.Context, input BookInput) (*domain.Ticket, error) {
	input.Passenger = strings.TrimSpace(input.Passenger)
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}
	if cardExpired(input.Payment, s.now()) {
		return nil, validation.Field("payment.expiry_year", "card has expired")
	}

	h, flight, err := s.claimForBooking(ctx, input)
	if err != nil {
		return nil, err
	}
	recorded := false
	defer func() {
		if !recorded {
			s.release(ctx, h)
		}
	}()

	charge, err := s.charge(ctx, h, flight, input)
	if err != nil {
		return nil, err
	}

	ticket, err := s.record(ctx, h, ledger.NewTicket{
		SeatID:           h.SeatID,
		FlightID:         h.FlightID,
		SeatNumber:       h.SeatNumber,
		Passenger:        input.Passenger,
		Email:            input.Email,
		AccountID:        input.AccountID,
		PaymentStatus:    domain.PaymentStatusPaid,
		PaymentReference: charge.Reference,
	})
	if err != nil {
		// The card was charged for a seat that cannot be ticketed.
		s.log.WithError(err).WithFields(logrus.Fields{
			"seat_id": h.SeatID, "reference": charge.Reference, "amount": flight.FareCents,
		}).Error("charged booking not recorded, refund required")
		recorded = errors.Is(err, domain.ErrSeatAlreadyTicketed)
		return nil, err
	}
	recorded = true

	s.log.WithFields(logrus.Fields{
		"ticket_id": ticket.ID, "flight": flight.Number, "seat": ticket.SeatNumber,
		"account_id": ticket.AccountID, "reference": charge.Reference,
	}).Info("seat booked")

	s.afterIssue(kafka.EventTicketBooked, ticket, flight, "Ticket Booking",
		fmt.Sprintf("Booking confirmed\n passenger: %s\n date: %s\n flight no.: %s\n seat no.: %d\n amount paid: %s",
			ticket.Passenger, flight.DepartureTime.Format(flightDateLayout), flight.Number, ticket.SeatNumber, flight.Fare()))
	return ticket, nil
}

func (s *BookingService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.Get(ctx, id)
}

func (s *BookingService) ListFlightTickets(ctx context.Context, flightID int64, filter TicketFilter) ([]domain.Ticket, error) {
	if _, err := s.flights.GetByID(ctx, flightID); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return s.filterTickets(ctx, tickets, filter)
}

func (s *BookingService) ListAccountTickets(ctx context.Context, accountID string, filter TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.filterTickets(ctx, tickets, filter)
}

// Wait blocks until in-flight notifications and events are delivered.
func (s *BookingService) Wait() {
	s.background.Wait()
}

// claimForBooking resolves the target seat and holds it. A flight that cannot
// be booked is rejected before any claim when it is known up front.
func (s *BookingService) claimForBooking(ctx context.Context, input BookInput) (*seatstore.ClaimHandle, *domain.Flight, error) {
	if input.SeatID == 0 {
		flight, err := s.flights.GetByNumber(ctx, input.FlightNumber)
		if err != nil {
			return nil, nil, err
		}
		if !flight.Bookable(s.now()) {
			return nil, nil, domain.ErrFlightNotBookable
		}
		h, err := s.seats.SelectAvailable(ctx, flight.ID)
		if err != nil {
			return nil, nil, err
		}
		return h, flight, nil
	}

	h, err := s.seats.Claim(ctx, input.SeatID)
	if err != nil {
		return nil, nil, err
	}
	flight, err := s.bookableFlight(ctx, h.FlightID)
	if err == nil && input.FlightNumber != "" && input.FlightNumber != flight.Number {
		err = validation.Field("seat_id", fmt.Sprintf("seat is not on flight %s", input.FlightNumber))
	}
	if err != nil {
		s.release(ctx, h)
		return nil, nil, err
	}
	return h, flight, nil
}

func (s *BookingService) bookableFlight(ctx context.Context, flightID int64) (*domain.Flight, error) {
	flight, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("load flight %d: %w", flightID, err)
	}
	if !flight.Bookable(s.now()) {
		return nil, domain.ErrFlightNotBookable
	}
	return flight, nil
}

// charge never outlives the hold: the call is cut off at whichever comes
// first, the payment timeout or the hold expiry.
func (s *BookingService) charge(ctx context.Context, h *seatstore.ClaimHandle, flight *domain.Flight, input BookInput) (*payment.ChargeResult, error) {
	deadline := s.now().Add(s.paymentTimeout)
	if !h.ExpiresAt.IsZero() && h.ExpiresAt.Before(deadline) {
		deadline = h.ExpiresAt
	}
	pctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	res, err := s.gateway.Charge(pctx, payment.ChargeRequest{
		Email:       input.Email,
		AmountMinor: flight.FareCents,
		PIN:         input.Payment.PIN,
		Card: payment.Card{
			Number:      input.Payment.CardNumber,
			CVV:         input.Payment.CVV,
			ExpiryMonth: input.Payment.ExpiryMonth,
			ExpiryYear:  input.Payment.ExpiryYear,
		},
	})
	entry := s.log.WithFields(logrus.Fields{"seat_id": h.SeatID, "flight": flight.Number, "amount": flight.FareCents})
	if err != nil {
		entry.WithError(err).Warn("payment gateway unreachable")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnreachable, err)
	}
	if !res.Success {
		entry.WithField("gateway_message", res.Message).Info("payment declined")
		if res.Message == "" {
			return nil, domain.ErrPaymentDeclined
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, res.Message)
	}
	return res, nil
}

// record writes the ticket and then finalizes the seat. Once the ticket is in
// the ledger the seat is sold, whatever the store says. Both steps outlive the
// request: a client that hangs up after the charge still gets its seat.
func (s *BookingService) record(ctx context.Context, h *seatstore.ClaimHandle, nt ledger.NewTicket) (*domain.Ticket, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
	defer cancel()

	ticket, err := s.tickets.Create(ctx, nt)
	if errors.Is(err, domain.ErrSeatAlreadyTicketed) {
		// Bring the store back in line with the ledger instead of freeing a sold seat.
		s.finalize(ctx, h, "")
		s.log.WithField("seat_id", h.SeatID).Error("claimed seat already has a ticket")
		return nil, fmt.Errorf("seat %d: %w", h.SeatID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("record ticket for seat %d: %w", h.SeatID, err)
	}

	s.finalize(ctx, h, ticket.ID)
	return ticket, nil
}

// finalize marks a ticketed seat booked, retrying transient store errors. A
// taken-over hold is not retried; the new holder meets the ledger's uniqueness
// check and finalizes the seat itself.
func (s *BookingService) finalize(ctx context.Context, h *seatstore.ClaimHandle, ticketID string) {
	var err error
retry:
	for attempt := 1; ; attempt++ {
		err = s.seats.Finalize(ctx, h)
		if err == nil || errors.Is(err, domain.ErrHandleExpired) || attempt == finalizeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(time.Duration(attempt) * finalizeBackoff):
		}
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"seat_id": h.SeatID, "ticket_id": ticketID,
		}).Error("ticket recorded but seat not finalized")
	}
}

// release is the compensating step; it must run even if the request was cancelled.
func (s *BookingService) release(ctx context.Context, h *seatstore.ClaimHandle) {
	if err := s.seats.Release(context.WithoutCancel(ctx), h); err != nil {
		s.log.WithError(err).WithField("seat_id", h.SeatID).Error("release seat")
	}
}

func (s *BookingService) afterIssue(eventType string, ticket *domain.Ticket, flight *domain.Flight, subject, body string) {
	if s.producer == nil && s.notifier == nil {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		TicketID:      ticket.ID,
		SeatID:        ticket.SeatID,
		FlightID:      ticket.FlightID,
		FlightNumber:  flight.Number,
		SeatNumber:    ticket.SeatNumber,
		AccountID:     ticket.AccountID,
		Email:         ticket.Email,
		PaymentStatus: string(ticket.PaymentStatus),
		OccurredAt:    s.now().UTC(),
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		entry := s.log.WithField("ticket_id", ticket.ID)
		if s.producer != nil && s.bookingTopic != "" {
			if err := s.producer.Publish(ctx, s.bookingTopic, ticket.ID, event); err != nil {
				entry.WithError(err).Warn("failed to publish booking event")
			}
		}
		if s.notifier != nil && ticket.Email != "" {
			if err := s.notifier.Send(ctx, ticket.Email, subject, body); err != nil {
				entry.WithError(err).Warn("failed to send notification")
			}
		}
	}()
}

var _ BookingUseCase = (*BookingService)(nil)
