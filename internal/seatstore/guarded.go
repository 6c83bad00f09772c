package seatstore

import (
	"context"
	"time"

	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/sirupsen/logrus"
)

type SeatLocker interface {
	AcquireSeatLock(ctx context.Context, seatID int64, owner string, ttl time.Duration) (bool, error)
	TransferSeatLock(ctx context.Context, seatID int64, from, to string) (bool, error)
	ReleaseSeatLock(ctx context.Context, seatID int64, owner string) error
}

// Guarded fronts a Store with a distributed per-seat lock. Contended seats
// are rejected by the lock without reaching the inner store. The inner store
// remains the authority on seat state: when Redis is down claims go straight
// to it.
type Guarded struct {
	inner  Store
	locker SeatLocker
	ttl    time.Duration
	log    *logrus.Logger
}

func NewGuarded(inner Store, locker SeatLocker, ttl time.Duration, log *logrus.Logger) *Guarded {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &Guarded{inner: inner, locker: locker, ttl: ttl, log: log}
}

func (g *Guarded) Claim(ctx context.Context, seatID int64) (*ClaimHandle, error) {
	provisional := newToken()
	ok, err := g.locker.AcquireSeatLock(ctx, seatID, provisional, g.ttl)
	if err != nil {
		g.warn(err, seatID, "acquire seat lock")
		return g.inner.Claim(ctx, seatID)
	}
	if !ok {
		return nil, domain.ErrSeatUnavailable
	}

	h, err := g.inner.Claim(ctx, seatID)
	if err != nil {
		g.unlock(ctx, seatID, provisional)
		return nil, err
	}
	g.adopt(ctx, h, provisional)
	return h, nil
}

// SelectAvailable keeps seats whose lock is taken elsewhere held in the inner
// store until it wins one, so the inner store never offers them twice. They
// are given back before returning, whatever the outcome.
func (g *Guarded) SelectAvailable(ctx context.Context, flightID int64) (*ClaimHandle, error) {
	var skipped []*ClaimHandle
	defer func() {
		for _, h := range skipped {
			if err := g.inner.Release(context.WithoutCancel(ctx), h); err != nil {
				g.warn(err, h.SeatID, "return skipped seat")
			}
		}
	}()

	for {
		h, err := g.inner.SelectAvailable(ctx, flightID)
		if err != nil {
			return nil, err
		}

		ok, err := g.locker.AcquireSeatLock(ctx, h.SeatID, h.Token, g.ttl)
		if err != nil {
			g.warn(err, h.SeatID, "acquire seat lock")
			return h, nil
		}
		if ok {
			return h, nil
		}
		skipped = append(skipped, h)
	}
}

func (g *Guarded) Finalize(ctx context.Context, h *ClaimHandle) error {
	if err := g.inner.Finalize(ctx, h); err != nil {
		return err
	}
	g.unlock(ctx, h.SeatID, h.Token)
	return nil
}

func (g *Guarded) Release(ctx context.Context, h *ClaimHandle) error {
	if err := g.inner.Release(ctx, h); err != nil {
		return err
	}
	g.unlock(ctx, h.SeatID, h.Token)
	return nil
}

// ReleaseExpired only sweeps the inner store; Redis expires the locks itself.
func (g *Guarded) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	return g.inner.ReleaseExpired(ctx, now)
}

// adopt re-keys the lock from the provisional owner to the hold token so that
// Finalize and Release can drop it by handle alone.
func (g *Guarded) adopt(ctx context.Context, h *ClaimHandle, provisional string) {
	if _, err := g.locker.TransferSeatLock(ctx, h.SeatID, provisional, h.Token); err != nil {
		g.warn(err, h.SeatID, "transfer seat lock")
	}
}

func (g *Guarded) unlock(ctx context.Context, seatID int64, owner string) {
	if err := g.locker.ReleaseSeatLock(ctx, seatID, owner); err != nil {
		g.warn(err, seatID, "release seat lock")
	}
}

func (g *Guarded) warn(err error, seatID int64, msg string) {
	if g.log != nil {
		g.log.WithError(err).WithField("seat_id", seatID).Warn(msg)
	}
}

var _ Store = (*Guarded)(nil)
