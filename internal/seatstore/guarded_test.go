package seatstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/airticket/internal/cache"
	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/Domenick1991/airticket/internal/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGuarded(t *testing.T, seats int) (*Guarded, *MemoryStore, *cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locks := cache.NewRedisCacheFromClient(client, time.Minute)
	inner := newFlightStore(t, 1, seats)
	return NewGuarded(inner, locks, time.Minute, logger.Discard()), inner, locks, mr
}

func TestGuarded_ClaimFinalizeRelease(t *testing.T) {
	g, inner, _, mr := setupGuarded(t, 2)
	ctx := context.Background()

	h, err := g.Claim(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, h.Token, mustGet(t, mr, "lock:seat:1001"))

	_, err = g.Claim(ctx, 1001)
	assert.ErrorIs(t, err, domain.ErrSeatUnavailable)

	require.NoError(t, g.Finalize(ctx, h))
	assert.False(t, mr.Exists("lock:seat:1001"))
	seat, _ := inner.Seat(1001)
	assert.Equal(t, domain.SeatStatusBooked, seat.Status)

	h2, err := g.Claim(ctx, 1002)
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx, h2))
	require.NoError(t, g.Release(ctx, h2))
	assert.False(t, mr.Exists("lock:seat:1002"))
	seat, _ = inner.Seat(1002)
	assert.Equal(t, domain.SeatStatusAvailable, seat.Status)
}

func TestGuarded_InnerRejectionDropsLock(t *testing.T) {
	g, _, _, mr := setupGuarded(t, 1)
	ctx := context.Background()

	_, err := g.Claim(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrSeatNotFound)
	assert.False(t, mr.Exists("lock:seat:999"))
}

func TestGuarded_LockedSeatRejectedWithoutInnerCall(t *testing.T) {
	g, inner, locks, _ := setupGuarded(t, 1)
	ctx := context.Background()

	ok, err := locks.AcquireSeatLock(ctx, 1001, "another-instance", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = g.Claim(ctx, 1001)
	assert.ErrorIs(t, err, domain.ErrSeatUnavailable)
	seat, _ := inner.Seat(1001)
	assert.Equal(t, domain.SeatStatusAvailable, seat.Status)
}

func TestGuarded_SelectAvailableSkipsLockedSeat(t *testing.T) {
	g, inner, locks, _ := setupGuarded(t, 2)
	ctx := context.Background()

	ok, err := locks.AcquireSeatLock(ctx, 1001, "another-instance", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	h, err := g.SelectAvailable(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1002), h.SeatID)

	seat, _ := inner.Seat(1001)
	assert.Equal(t, domain.SeatStatusAvailable, seat.Status, "seat given back after lock miss")
}

func TestGuarded_SelectAvailableEveryFreeSeatLocked(t *testing.T) {
	g, inner, locks, _ := setupGuarded(t, 3)
	ctx := context.Background()

	for _, id := range []int64{1001, 1002, 1003} {
		ok, err := locks.AcquireSeatLock(ctx, id, "another-instance", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, err := g.SelectAvailable(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNoSeatsAvailable)

	for _, seat := range inner.FlightSeats(1) {
		assert.Equal(t, domain.SeatStatusAvailable, seat.Status, "seat %d", seat.ID)
	}
}

func TestGuarded_ConcurrentSelectAvailableTakesEverySeat(t *testing.T) {
	const seats = 20
	g, inner, locks, _ := setupGuarded(t, seats)
	ctx := context.Background()

	// Two seats are mid-claim through another instance for the whole run.
	locked := map[int64]bool{1003: true, 1007: true}
	for id := range locked {
		ok, err := locks.AcquireSeatLock(ctx, id, "another-instance", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}

	buyers := seats - len(locked)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  = make(map[int64]int)
		errs []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := g.SelectAvailable(ctx, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			won[h.SeatID]++
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Len(t, won, buyers)
	for id, n := range won {
		assert.Equal(t, 1, n, "seat %d handed out twice", id)
		assert.False(t, locked[id], "seat %d is locked elsewhere", id)
	}

	_, err := g.SelectAvailable(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNoSeatsAvailable)
	for id := range locked {
		seat, _ := inner.Seat(id)
		assert.Equal(t, domain.SeatStatusAvailable, seat.Status)
	}
}

func TestGuarded_RedisDownFallsThrough(t *testing.T) {
	g, inner, _, mr := setupGuarded(t, 1)
	ctx := context.Background()
	mr.Close()

	h, err := g.Claim(ctx, 1001)
	require.NoError(t, err)
	require.NoError(t, g.Finalize(ctx, h))
	seat, _ := inner.Seat(1001)
	assert.Equal(t, domain.SeatStatusBooked, seat.Status)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	if err != nil && !errors.Is(err, miniredis.ErrKeyNotFound) {
		t.Fatalf("get %s: %v", key, err)
	}
	return v
}
