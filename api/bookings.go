package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/airticket/internal/boardingpass"
	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const qrSize = 320

type FlightLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

type PassIssuer interface {
	Issue(ticket *domain.Ticket, flight *domain.Flight) (string, error)
	Verify(token string) (*boardingpass.Claims, error)
}

type BookingHandler struct {
	service booking.BookingUseCase
	flights FlightLookup
	passes  PassIssuer
	log     *logrus.Logger
}

type reserveRequest struct {
	Passenger string `json:"passenger"`
	SeatID    int64  `json:"seat_id"`
	Email     string `json:"email"`
}

type bookRequest struct {
	Passenger    string               `json:"passenger"`
	SeatID       int64                `json:"seat_id"`
	FlightNumber string               `json:"flight_number"`
	Email        string               `json:"email"`
	Payment      booking.PaymentInput `json:"payment"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid        bool   `json:"valid"`
	TicketID     string `json:"ticket_id"`
	FlightNumber string `json:"flight_number"`
	SeatNumber   int    `json:"seat_number"`
	Passenger    string `json:"passenger"`
	Paid         bool   `json:"paid"`
	ExpiresAt    string `json:"expires_at"`
}

func NewBookingHandler(service booking.BookingUseCase, flights FlightLookup, passes PassIssuer, log *logrus.Logger) *BookingHandler {
	return &BookingHandler{service: service, flights: flights, passes: passes, log: log}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/boarding-passes/verify", h.verifyPass)

	authed := router.Group("", RequireAccount())
	authed.POST("/reservations", h.reserve)
	authed.POST("/bookings", h.book)
	authed.GET("/tickets/:id", h.getTicket)
	authed.GET("/tickets/:id/boarding-pass", h.boardingPass)
	authed.GET("/accounts/me/tickets", h.myTickets)
}

func (h *BookingHandler) reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ticket, err := h.service.Reserve(c.Request.Context(), booking.ReserveInput{
		Passenger: req.Passenger,
		SeatID:    req.SeatID,
		Email:     req.Email,
		AccountID: accountID(c),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toIssuedResponse("Reservation", ticket))
}

func (h *BookingHandler) book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ticket, err := h.service.Book(c.Request.Context(), booking.BookInput{
		Passenger:    req.Passenger,
		SeatID:       req.SeatID,
		FlightNumber: req.FlightNumber,
		Email:        req.Email,
		AccountID:    accountID(c),
		Payment:      req.Payment,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toIssuedResponse("Booking", ticket))
}

func (h *BookingHandler) getTicket(c *gin.Context) {
	ticket, ok := h.ownTicket(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toTicketResponse(ticket))
}

func (h *BookingHandler) myTickets(c *gin.Context) {
	filter, ok := ticketFilter(c)
	if !ok {
		return
	}
	tickets, err := h.service.ListAccountTickets(c.Request.Context(), accountID(c), filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTicketResponses(tickets))
}

func (h *BookingHandler) boardingPass(c *gin.Context) {
	ticket, ok := h.ownTicket(c)
	if !ok {
		return
	}
	flight, err := h.flights.GetByID(c.Request.Context(), ticket.FlightID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	token, err := h.passes.Issue(ticket, flight)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	png, err := boardingpass.PNG(token, qrSize)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Header("X-Boarding-Pass", token)
	c.Header("Content-Disposition", `inline; filename="boarding-pass-`+ticket.ID+`.png"`)
	c.Data(http.StatusOK, "image/png", png)
}

func (h *BookingHandler) verifyPass(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		badRequest(c, "token is required")
		return
	}

	claims, err := h.passes.Verify(req.Token)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	// A pass for a ticket that no longer exists is worthless.
	if _, err := h.service.GetTicket(c.Request.Context(), claims.TicketID()); err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := verifyResponse{
		Valid:        true,
		TicketID:     claims.TicketID(),
		FlightNumber: claims.FlightNumber,
		SeatNumber:   claims.SeatNumber,
		Passenger:    claims.Passenger,
		Paid:         claims.Paid,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// ownTicket loads the ticket in the path. Tickets of other accounts read as not found.
func (h *BookingHandler) ownTicket(c *gin.Context) (*domain.Ticket, bool) {
	ticket, err := h.service.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return nil, false
	}
	if ticket.AccountID != accountID(c) {
		writeError(c, h.log, domain.ErrTicketNotFound)
		return nil, false
	}
	return ticket, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
