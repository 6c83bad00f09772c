package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/service/booking"
	"github.com/Domenick1991/airticket/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type TicketLister interface {
	ListFlightTickets(ctx context.Context, flightID int64, filter booking.TicketFilter) ([]domain.Ticket, error)
}

type FlightHandler struct {
	service flights.FlightUseCase
	tickets TicketLister
	log     *logrus.Logger
}

func NewFlightHandler(service flights.FlightUseCase, tickets TicketLister, log *logrus.Logger) *FlightHandler {
	return &FlightHandler{service: service, tickets: tickets, log: log}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.PATCH("/:id/status", h.setStatus)
	router.GET("/:id/seats", h.seats)
	router.GET("/:id/tickets", h.listTickets)
}

// list accepts departure, destination, status and a from/to window given as
// RFC 3339 timestamps or plain dates.
func (h *FlightHandler) list(c *gin.Context) {
	filter := flights.Filter{
		Departure:   c.Query("departure"),
		Destination: c.Query("destination"),
		Status:      domain.FlightStatus(c.Query("status")),
	}
	var ok bool
	if filter.From, ok = queryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = queryTime(c, "to"); !ok {
		return
	}

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]flightResponse, 0, len(list))
	for i := range list {
		out = append(out, toFlightResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(flight))
}

func (h *FlightHandler) create(c *gin.Context) {
	var input flights.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	flight, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toFlightResponse(flight))
}

func (h *FlightHandler) setStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input flights.StatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	flight, err := h.service.SetStatus(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(flight))
}

func (h *FlightHandler) seats(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	seats, err := h.service.ListSeats(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]seatResponse, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatResponse{ID: s.ID, SeatNumber: s.SeatNumber, Status: string(s.Status)})
	}
	c.JSON(http.StatusOK, out)
}

func (h *FlightHandler) listTickets(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	filter, ok := ticketFilter(c)
	if !ok {
		return
	}
	tickets, err := h.tickets.ListFlightTickets(c.Request.Context(), id, filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTicketResponses(tickets))
}

func queryTime(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	badRequest(c, key+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	return time.Time{}, false
}

// ticketFilter reads passenger, booked_by, flight_number and flight_date.
func ticketFilter(c *gin.Context) (booking.TicketFilter, bool) {
	date, ok := queryTime(c, "flight_date")
	if !ok {
		return booking.TicketFilter{}, false
	}
	return booking.TicketFilter{
		Passenger:    c.Query("passenger"),
		BookedBy:     c.Query("booked_by"),
		FlightNumber: c.Query("flight_number"),
		FlightDate:   date,
	}, true
}
