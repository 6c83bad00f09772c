package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/airticket/internal/boardingpass"
	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// statusByError maps sentinels to answers. A non-empty message replaces the
// error text, which then only goes to the log.
var statusByError = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrSeatUnavailable, http.StatusConflict, ""},
	{domain.ErrNoSeatsAvailable, http.StatusConflict, ""},
	{domain.ErrFlightNumberTaken, http.StatusConflict, ""},
	{domain.ErrPaymentDeclined, http.StatusPaymentRequired, ""},
	{domain.ErrGatewayUnreachable, http.StatusBadGateway, "payment gateway unreachable, try again later"},
	{domain.ErrSeatNotFound, http.StatusNotFound, ""},
	{domain.ErrFlightNotFound, http.StatusNotFound, ""},
	{domain.ErrTicketNotFound, http.StatusNotFound, ""},
	{domain.ErrFlightNotBookable, http.StatusUnprocessableEntity, ""},
	{boardingpass.ErrInvalidPass, http.StatusUnauthorized, ""},
}

// writeError maps service errors onto HTTP answers. Anything unrecognised is
// logged and reported as a bare 500.
func writeError(c *gin.Context, log *logrus.Logger, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, errorResponse{Message: "validation failed", Errors: verr.Fields})
		return
	}
	for _, m := range statusByError {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.message == "" {
			c.JSON(m.status, errorResponse{Message: err.Error()})
			return
		}
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Warn("request failed")
		c.JSON(m.status, errorResponse{Message: m.message})
		return
	}

	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("request failed")
	c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Message: msg})
}
