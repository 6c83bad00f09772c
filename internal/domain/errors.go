package domain

import "errors"

var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrSeatUnavailable     = errors.New("seat is not available")
	ErrNoSeatsAvailable    = errors.New("no seats available")
	ErrHandleExpired       = errors.New("seat hold expired")
	ErrDuplicateSeatNumber = errors.New("duplicate seat number")
	ErrFlightNotFound      = errors.New("flight not found")
	ErrFlightNumberTaken   = errors.New("flight number already exists")
	ErrFlightNotBookable   = errors.New("flight is not open for booking")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrGatewayUnreachable  = errors.New("payment gateway unreachable")
	ErrSeatAlreadyTicketed = errors.New("seat already ticketed")
	ErrTicketNotFound      = errors.New("ticket not found")
)
