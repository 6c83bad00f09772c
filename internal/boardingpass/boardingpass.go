// Package boardingpass issues signed boarding passes for tickets. A pass is an
// HS256 JWT; PNG renders it as a QR code for scanning at the gate.
package boardingpass

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"
)

const issuer = "airticket"

var ErrInvalidPass = errors.New("invalid boarding pass")

type Claims struct {
	FlightNumber string `json:"flt"`
	SeatNumber   int    `json:"seat"`
	Passenger    string `json:"name"`
	Paid         bool   `json:"paid"`
	jwt.RegisteredClaims
}

// TicketID is the ticket the pass was issued for.
func (c *Claims) TicketID() string {
	return c.Subject
}

type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("boarding pass secret must be at least 16 bytes")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a pass valid until six hours after departure.
func (i *Issuer) Issue(ticket *domain.Ticket, flight *domain.Flight) (string, error) {
	now := i.now()
	claims := Claims{
		FlightNumber: flight.Number,
		SeatNumber:   ticket.SeatNumber,
		Passenger:    ticket.Passenger,
		Paid:         ticket.PaymentStatus == domain.PaymentStatusPaid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   ticket.ID,
			Audience:  jwt.ClaimStrings{strconv.FormatInt(flight.ID, 10)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(flight.DepartureTime.Add(6 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign boarding pass: %w", err)
	}
	return token, nil
}

func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing ticket id", ErrInvalidPass)
	}
	return claims, nil
}

// PNG renders the token as a QR code of size x size pixels.
func PNG(token string, size int) ([]byte, error) {
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode boarding pass qr: %w", err)
	}
	return png, nil
}
