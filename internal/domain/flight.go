package domain

import (
	"fmt"
	"time"
)

type FlightStatus string

const (
	FlightStatusActive    FlightStatus = "active"
	FlightStatusCancelled FlightStatus = "cancelled"
)

type Flight struct {
	ID            int64
	Number        string
	Departure     string
	Destination   string
	DepartureTime time.Time
	FareCents     int64
	Status        FlightStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Bookable reports whether seats of the flight may still be sold at the given moment.
func (f *Flight) Bookable(now time.Time) bool {
	return f.Status == FlightStatusActive && f.DepartureTime.After(now)
}

// Fare renders FareCents as a decimal with two places, e.g. 5000 -> "50.00".
func (f *Flight) Fare() string {
	return fmt.Sprintf("%d.%02d", f.FareCents/100, f.FareCents%100)
}
