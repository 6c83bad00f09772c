package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/ledger"
	"github.com/Domenick1991/airticket/internal/logger"
	"github.com/Domenick1991/airticket/internal/payment"
	"github.com/Domenick1991/airticket/internal/seatstore"
	"github.com/Domenick1991/airticket/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock структуры

type MockSeatStore struct {
	mock.Mock
}

func (m *MockSeatStore) Claim(ctx context.Context, seatID int64) (*seatstore.ClaimHandle, error) {
	args := m.Called(ctx, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seatstore.ClaimHandle), args.Error(1)
}

func (m *MockSeatStore) Finalize(ctx context.Context, h *seatstore.ClaimHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockSeatStore) Release(ctx context.Context, h *seatstore.ClaimHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockSeatStore) SelectAvailable(ctx context.Context, flightID int64) (*seatstore.ClaimHandle, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seatstore.ClaimHandle), args.Error(1)
}

func (m *MockSeatStore) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Create(ctx context.Context, t ledger.NewTicket) (*domain.Ticket, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockLedger) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockLedger) ListByFlight(ctx context.Context, flightID int64) ([]domain.Ticket, error) {
	args := m.Called(ctx, flightID)
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockLedger) ListByAccount(ctx context.Context, accountID string) ([]domain.Ticket, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

type MockFlights struct {
	mock.Mock
}

func (m *MockFlights) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlights) GetByNumber(ctx context.Context, number string) (*domain.Flight, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type mocks struct {
	seats    *MockSeatStore
	tickets  *MockLedger
	flights  *MockFlights
	gateway  *MockGateway
	notifier *MockNotifier
	producer *MockProducer
}

var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func newTestService() (*BookingService, *mocks) {
	m := &mocks{
		seats:    &MockSeatStore{},
		tickets:  &MockLedger{},
		flights:  &MockFlights{},
		gateway:  &MockGateway{},
		notifier: &MockNotifier{},
		producer: &MockProducer{},
	}
	service := &BookingService{
		seats:          m.seats,
		tickets:        m.tickets,
		flights:        m.flights,
		gateway:        m.gateway,
		notifier:       m.notifier,
		producer:       m.producer,
		bookingTopic:   "booking-events",
		paymentTimeout: 5 * time.Second,
		validate:       validation.New(),
		log:            logger.Discard(),
		now:            func() time.Time { return testNow },
	}
	return service, m
}

func (m *mocks) assertAll(t *testing.T) {
	m.seats.AssertExpectations(t)
	m.tickets.AssertExpectations(t)
	m.flights.AssertExpectations(t)
	m.gateway.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
	m.producer.AssertExpectations(t)
}

func testFlight() *domain.Flight {
	return &domain.Flight{
		ID:            4,
		Number:        "AT101",
		Departure:     "Lagos",
		Destination:   "Abuja",
		DepartureTime: testNow.Add(48 * time.Hour),
		FareCents:     5000,
		Status:        domain.FlightStatusActive,
	}
}

func testHandle() *seatstore.ClaimHandle {
	return &seatstore.ClaimHandle{SeatID: 41, FlightID: 4, SeatNumber: 7, Token: "hold-1", ExpiresAt: testNow.Add(2 * time.Minute)}
}

func validBookInput() BookInput {
	return BookInput{
		Passenger: "Dave",
		SeatID:    41,
		Email:     "dave@example.com",
		AccountID: "acc-1",
		Payment: PaymentInput{
			CardNumber:  "5078503400000000",
			CVV:         "081",
			ExpiryMonth: 12,
			ExpiryYear:  2030,
			PIN:         "1234",
		},
	}
}

// ============================ Reserve ============================

// Тест 1: Бронирование без оплаты - успешный сценарий
func TestBookingService_Reserve_Success(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()
	ticket := &domain.Ticket{ID: "t-1", SeatID: 41, FlightID: 4, SeatNumber: 7, Passenger: "Ada", Email: "ada@example.com", AccountID: "acc-1", PaymentStatus: domain.PaymentStatusPending}

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.tickets.On("Create", mock.Anything, ledger.NewTicket{
		SeatID: 41, FlightID: 4, SeatNumber: 7, Passenger: "Ada", Email: "ada@example.com", AccountID: "acc-1",
		PaymentStatus: domain.PaymentStatusPending,
	}).Return(ticket, nil).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(nil).Once()
	m.producer.On("Publish", mock.Anything, "booking-events", "t-1", mock.Anything).Return(nil).Once()
	m.notifier.On("Send", mock.Anything, "ada@example.com", "Ticket Reservation",
		"Reservation made\n date: 2026-04-12 09:00\n flight no.: AT101\n seat no.: 7").Return(nil).Once()

	got, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, Email: "ada@example.com", AccountID: "acc-1"})
	service.Wait()

	require.NoError(t, err)
	assert.Equal(t, ticket, got)
	m.seats.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 2: Ошибка валидации - место не трогаем
func TestBookingService_Reserve_ValidationShortCircuit(t *testing.T) {
	service, m := newTestService()

	testCases := []struct {
		name   string
		input  ReserveInput
		fields []string
	}{
		{"missing passenger", ReserveInput{SeatID: 41, AccountID: "acc-1"}, []string{"passenger"}},
		{"blank passenger", ReserveInput{Passenger: " \t ", SeatID: 41, AccountID: "acc-1"}, []string{"passenger"}},
		{"missing seat", ReserveInput{Passenger: "Ada", AccountID: "acc-1"}, []string{"seat_id"}},
		{"bad email", ReserveInput{Passenger: "Ada", SeatID: 41, AccountID: "acc-1", Email: "nope"}, []string{"email"}},
		{"no account", ReserveInput{Passenger: "Ada", SeatID: 41}, []string{"account_id"}},
		{"everything missing", ReserveInput{}, []string{"passenger", "seat_id", "account_id"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Reserve(context.Background(), tc.input)

			require.ErrorIs(t, err, domain.ErrValidationFailed)
			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tc.fields))
			for _, f := range tc.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
	m.seats.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
}

// Тест 3: Место уже занято
func TestBookingService_Reserve_SeatTaken(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	m.seats.On("Claim", ctx, int64(41)).Return(nil, domain.ErrSeatUnavailable).Once()

	_, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, AccountID: "acc-1"})

	assert.ErrorIs(t, err, domain.ErrSeatUnavailable)
	m.flights.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 4: Рейс отменён - место возвращается
func TestBookingService_Reserve_CancelledFlightReleases(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()
	flight := testFlight()
	flight.Status = domain.FlightStatusCancelled

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(flight, nil).Once()
	m.seats.On("Release", mock.Anything, h).Return(nil).Once()

	_, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, AccountID: "acc-1"})

	assert.ErrorIs(t, err, domain.ErrFlightNotBookable)
	m.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 5: Ошибка записи в журнал - место возвращается
func TestBookingService_Reserve_LedgerFailureReleases(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.tickets.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()
	m.seats.On("Release", mock.Anything, h).Return(nil).Once()

	_, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, AccountID: "acc-1"})

	assert.ErrorContains(t, err, "connection reset")
	m.seats.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 6: Журнал уже содержит билет - место финализируется, а не освобождается
func TestBookingService_Reserve_AlreadyTicketed(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.tickets.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrSeatAlreadyTicketed).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(nil).Once()

	_, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, AccountID: "acc-1"})

	assert.ErrorIs(t, err, domain.ErrSeatAlreadyTicketed)
	m.seats.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 7: Finalize не удался после записи билета - билет остаётся
func TestBookingService_Reserve_FinalizeFailureKeepsTicket(t *testing.T) {
	service, m := newTestService()
	service.notifier = nil
	service.producer = nil
	ctx := context.Background()
	h := testHandle()
	ticket := &domain.Ticket{ID: "t-2", SeatID: 41}

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.tickets.On("Create", mock.Anything, mock.Anything).Return(ticket, nil).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(domain.ErrHandleExpired).Once()

	got, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, AccountID: "acc-1"})

	require.NoError(t, err)
	assert.Equal(t, "t-2", got.ID)
	m.seats.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 7б: временная ошибка Finalize повторяется, место становится проданным
func TestBookingService_Reserve_FinalizeRetriesTransientError(t *testing.T) {
	service, m := newTestService()
	service.notifier = nil
	service.producer = nil
	ctx := context.Background()
	h := testHandle()
	ticket := &domain.Ticket{ID: "t-2", SeatID: 41}

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.tickets.On("Create", mock.Anything, mock.Anything).Return(ticket, nil).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(errors.New("connection reset")).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(nil).Once()

	got, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, AccountID: "acc-1"})

	require.NoError(t, err)
	assert.Equal(t, "t-2", got.ID)
	m.seats.AssertNumberOfCalls(t, "Finalize", 2)
	m.seats.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 8: Ошибка уведомления не влияет на бронирование
func TestBookingService_Reserve_NotifierFailureIgnored(t *testing.T) {
	service, m := newTestService()
	service.producer = nil
	ctx := context.Background()
	h := testHandle()
	ticket := &domain.Ticket{ID: "t-3", SeatID: 41, SeatNumber: 7, Email: "ada@example.com"}

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.tickets.On("Create", mock.Anything, mock.Anything).Return(ticket, nil).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(nil).Once()
	m.notifier.On("Send", mock.Anything, "ada@example.com", "Ticket Reservation", mock.Anything).
		Return(errors.New("smtp down")).Once()

	got, err := service.Reserve(ctx, ReserveInput{Passenger: "Ada", SeatID: 41, Email: "ada@example.com", AccountID: "acc-1"})
	service.Wait()

	require.NoError(t, err)
	assert.Equal(t, "t-3", got.ID)
	m.assertAll(t)
}

// ============================ Book ============================

// Тест 9: Оплаченное бронирование - успешный сценарий
func TestBookingService_Book_Success(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()
	input := validBookInput()
	ticket := &domain.Ticket{ID: "t-9", SeatID: 41, SeatNumber: 7, Passenger: "Dave", Email: "dave@example.com", PaymentStatus: domain.PaymentStatusPaid}

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.gateway.On("Charge", mock.Anything, payment.ChargeRequest{
		Email:       "dave@example.com",
		AmountMinor: 5000,
		PIN:         "1234",
		Card:        payment.Card{Number: "5078503400000000", CVV: "081", ExpiryMonth: 12, ExpiryYear: 2030},
	}).Return(&payment.ChargeResult{Success: true, Reference: "ref-9"}, nil).Once()
	m.tickets.On("Create", mock.Anything, ledger.NewTicket{
		SeatID: 41, FlightID: 4, SeatNumber: 7, Passenger: "Dave", Email: "dave@example.com", AccountID: "acc-1",
		PaymentStatus: domain.PaymentStatusPaid, PaymentReference: "ref-9",
	}).Return(ticket, nil).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(nil).Once()
	m.producer.On("Publish", mock.Anything, "booking-events", "t-9", mock.Anything).Return(nil).Once()
	m.notifier.On("Send", mock.Anything, "dave@example.com", "Ticket Booking", mock.MatchedBy(func(body string) bool {
		return assert.Contains(t, body, "amount paid: 50.00") && assert.Contains(t, body, "flight no.: AT101")
	})).Return(nil).Once()

	got, err := service.Book(ctx, input)
	service.Wait()

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	m.seats.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 10: Платёж отклонён - место освобождается, билета нет
func TestBookingService_Book_Declined(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.gateway.On("Charge", mock.Anything, mock.Anything).
		Return(&payment.ChargeResult{Success: false, Message: "Insufficient Funds"}, nil).Once()
	m.seats.On("Release", mock.Anything, h).Return(nil).Once()

	_, err := service.Book(ctx, validBookInput())

	assert.ErrorIs(t, err, domain.ErrPaymentDeclined)
	assert.ErrorContains(t, err, "Insufficient Funds")
	m.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 11: Платёжный шлюз недоступен
func TestBookingService_Book_GatewayUnreachable(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.gateway.On("Charge", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Once()
	m.seats.On("Release", mock.Anything, h).Return(nil).Once()

	_, err := service.Book(ctx, validBookInput())

	assert.ErrorIs(t, err, domain.ErrGatewayUnreachable)
	assert.NotErrorIs(t, err, domain.ErrPaymentDeclined)
	m.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 12: Таймаут платежа не превышает срок удержания места
func TestBookingService_Book_PaymentDeadlineCappedByHold(t *testing.T) {
	service, m := newTestService()
	service.paymentTimeout = time.Hour
	ctx := context.Background()
	h := testHandle()

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.gateway.On("Charge", mock.MatchedBy(func(c context.Context) bool {
		d, ok := c.Deadline()
		return ok && d.Equal(h.ExpiresAt)
	}), mock.Anything).Return(&payment.ChargeResult{Success: false}, nil).Once()
	m.seats.On("Release", mock.Anything, h).Return(nil).Once()

	_, err := service.Book(ctx, validBookInput())

	assert.Equal(t, domain.ErrPaymentDeclined, err)
	m.assertAll(t)
}

// Тест 13: Бронирование первого свободного места по номеру рейса
func TestBookingService_Book_ByFlightNumber(t *testing.T) {
	service, m := newTestService()
	service.notifier = nil
	service.producer = nil
	ctx := context.Background()
	h := testHandle()
	input := validBookInput()
	input.SeatID = 0
	input.FlightNumber = "AT101"

	m.flights.On("GetByNumber", ctx, "AT101").Return(testFlight(), nil).Once()
	m.seats.On("SelectAvailable", ctx, int64(4)).Return(h, nil).Once()
	m.gateway.On("Charge", mock.Anything, mock.Anything).Return(&payment.ChargeResult{Success: true, Reference: "r"}, nil).Once()
	m.tickets.On("Create", mock.Anything, mock.MatchedBy(func(nt ledger.NewTicket) bool { return nt.SeatID == 41 })).
		Return(&domain.Ticket{ID: "t-13", SeatID: 41}, nil).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(nil).Once()

	got, err := service.Book(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, int64(41), got.SeatID)
	m.seats.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 14: Рейс вылетел - никаких захватов мест
func TestBookingService_Book_DepartedFlightNoClaim(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	flight := testFlight()
	flight.DepartureTime = testNow.Add(-time.Hour)
	input := validBookInput()
	input.SeatID = 0
	input.FlightNumber = "AT101"

	m.flights.On("GetByNumber", ctx, "AT101").Return(flight, nil).Once()

	_, err := service.Book(ctx, input)

	assert.ErrorIs(t, err, domain.ErrFlightNotBookable)
	m.seats.AssertNotCalled(t, "SelectAvailable", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 15: Место не принадлежит указанному рейсу
func TestBookingService_Book_SeatOnOtherFlight(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()
	input := validBookInput()
	input.FlightNumber = "AT999"

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.seats.On("Release", mock.Anything, h).Return(nil).Once()

	_, err := service.Book(ctx, input)

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["seat_id"], "AT999")
	m.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 16: Ошибки валидации платёжных данных
func TestBookingService_Book_PaymentValidation(t *testing.T) {
	service, m := newTestService()

	testCases := []struct {
		name   string
		mutate func(*BookInput)
		field  string
	}{
		{"short card", func(in *BookInput) { in.Payment.CardNumber = "1234" }, "payment.card_number"},
		{"letters in card", func(in *BookInput) { in.Payment.CardNumber = "50785034000000ab" }, "payment.card_number"},
		{"cvv too long", func(in *BookInput) { in.Payment.CVV = "12345" }, "payment.cvv"},
		{"month 13", func(in *BookInput) { in.Payment.ExpiryMonth = 13 }, "payment.expiry_month"},
		{"pin length", func(in *BookInput) { in.Payment.PIN = "12" }, "payment.pin"},
		{"no target", func(in *BookInput) { in.SeatID = 0 }, "seat_id"},
		{"no passenger", func(in *BookInput) { in.Passenger = "" }, "passenger"},
		{"no email", func(in *BookInput) { in.Email = "" }, "email"},
		{"expired card", func(in *BookInput) { in.Payment.ExpiryYear = 2026; in.Payment.ExpiryMonth = 3 }, "payment.expiry_year"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := validBookInput()
			tc.mutate(&input)

			_, err := service.Book(context.Background(), input)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
	m.seats.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
	m.seats.AssertNotCalled(t, "SelectAvailable", mock.Anything, mock.Anything)
	m.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

// Тест 17: Билет уже существует после оплаты - место финализируется
func TestBookingService_Book_AlreadyTicketedAfterCharge(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	h := testHandle()

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.gateway.On("Charge", mock.Anything, mock.Anything).Return(&payment.ChargeResult{Success: true, Reference: "r"}, nil).Once()
	m.tickets.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrSeatAlreadyTicketed).Once()
	m.seats.On("Finalize", mock.Anything, h).Return(nil).Once()

	_, err := service.Book(ctx, validBookInput())

	assert.ErrorIs(t, err, domain.ErrSeatAlreadyTicketed)
	m.seats.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	m.assertAll(t)
}

// Тест 18: Отмена запроса не мешает освобождению места
func TestBookingService_Book_ReleaseSurvivesCancellation(t *testing.T) {
	service, m := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	h := testHandle()

	m.seats.On("Claim", ctx, int64(41)).Return(h, nil).Once()
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.gateway.On("Charge", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()
	m.seats.On("Release", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), h).Return(nil).Once()

	_, err := service.Book(ctx, validBookInput())

	assert.ErrorIs(t, err, domain.ErrGatewayUnreachable)
	m.assertAll(t)
}

// ============================ Reads ============================

func TestBookingService_ListFlightTickets(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	tickets := []domain.Ticket{{ID: "a"}, {ID: "b"}}

	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil).Once()
	m.tickets.On("ListByFlight", ctx, int64(4)).Return(tickets, nil).Once()
	m.flights.On("GetByID", ctx, int64(5)).Return(nil, domain.ErrFlightNotFound).Once()

	got, err := service.ListFlightTickets(ctx, 4, TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, tickets, got)

	_, err = service.ListFlightTickets(ctx, 5, TicketFilter{})
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	m.assertAll(t)
}

func TestBookingService_AccountTicketsAndGet(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()

	m.tickets.On("ListByAccount", ctx, "acc-1").Return([]domain.Ticket{{ID: "a"}}, nil).Once()
	m.tickets.On("Get", ctx, "a").Return(&domain.Ticket{ID: "a"}, nil).Once()
	m.tickets.On("Get", ctx, "zzz").Return(nil, domain.ErrTicketNotFound).Once()

	list, err := service.ListAccountTickets(ctx, "acc-1", TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := service.GetTicket(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = service.GetTicket(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	m.assertAll(t)
}

func TestBookingService_ListTicketsFiltered(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	other := &domain.Flight{ID: 5, Number: "AT202", DepartureTime: testNow.Add(72 * time.Hour)}
	tickets := []domain.Ticket{
		{ID: "a", FlightID: 4, Passenger: "Dave Okafor", AccountID: "agent-lagos"},
		{ID: "b", FlightID: 5, Passenger: "Ada Obi", AccountID: "agent-lagos"},
		{ID: "c", FlightID: 4, Passenger: "david king", AccountID: "agent-abuja"},
	}
	m.tickets.On("ListByAccount", ctx, "agent-lagos").Return(tickets, nil)
	m.flights.On("GetByID", ctx, int64(4)).Return(testFlight(), nil)
	m.flights.On("GetByID", ctx, int64(5)).Return(other, nil)

	testCases := []struct {
		name   string
		filter TicketFilter
		want   []string
	}{
		{"no filter", TicketFilter{}, []string{"a", "b", "c"}},
		{"passenger", TicketFilter{Passenger: "DAV"}, []string{"a", "c"}},
		{"booked by", TicketFilter{BookedBy: "abuja"}, []string{"c"}},
		{"flight number", TicketFilter{FlightNumber: "at2"}, []string{"b"}},
		{"flight date", TicketFilter{FlightDate: time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)}, []string{"a", "c"}},
		{"combined", TicketFilter{Passenger: "dav", FlightNumber: "AT101", BookedBy: "lagos"}, []string{"a"}},
		{"no match", TicketFilter{FlightDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := service.ListAccountTickets(ctx, "agent-lagos", tc.filter)
			require.NoError(t, err)
			var ids []string
			for _, ticket := range got {
				ids = append(ids, ticket.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestNewBookingService_Options(t *testing.T) {
	n := &MockNotifier{}
	p := &MockProducer{}
	s := NewBookingService(&MockSeatStore{}, &MockLedger{}, &MockFlights{}, &MockGateway{},
		WithPaymentTimeout(3*time.Second),
		WithPaymentTimeout(0),
		WithNotifier(n),
		WithEventProducer(p, "topic"),
		WithLogger(logger.Discard()),
	)

	assert.Equal(t, 3*time.Second, s.paymentTimeout)
	assert.Equal(t, n, s.notifier)
	assert.Equal(t, "topic", s.bookingTopic)
	assert.NotNil(t, s.validate)
}
