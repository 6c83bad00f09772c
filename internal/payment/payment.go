// Package payment charges a card through an external gateway.
//
// Charge distinguishes two kinds of failure. A returned error means the
// gateway could not be reached or gave no usable answer. A result with
// Success false means the gateway answered and declined.
package payment

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Card struct {
	Number      string
	CVV         string
	ExpiryMonth int
	ExpiryYear  int
}

type ChargeRequest struct {
	Email string
	// AmountMinor is in the currency's minor unit (kobo, cents).
	AmountMinor int64
	PIN         string
	Card        Card
}

type ChargeResult struct {
	Success   bool
	Reference string
	Message   string
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// Stub approves every charge after Latency. It backs local runs and the load
// simulator; DeclineEvery > 0 declines every n-th charge.
type Stub struct {
	Latency      time.Duration
	DeclineEvery int64

	calls atomic.Int64
}

func (s *Stub) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	n := s.calls.Add(1)
	if s.DeclineEvery > 0 && n%s.DeclineEvery == 0 {
		return &ChargeResult{Success: false, Message: "Declined"}, nil
	}
	return &ChargeResult{Success: true, Reference: "stub_" + uuid.NewString(), Message: "Approved"}, nil
}

func (s *Stub) Calls() int64 {
	return s.calls.Load()
}

var (
	_ Gateway = (*Stub)(nil)
	_ Gateway = (*PaystackClient)(nil)
)
