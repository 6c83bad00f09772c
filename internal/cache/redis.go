package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airticket/config"
	"github.com/Domenick1991/airticket/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still carries the caller's owner value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Moves ownership from ARGV[1] to ARGV[2] keeping the remaining TTL.
var transferScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl > 0 then
		redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
	else
		redis.call("SET", KEYS[1], ARGV[2])
	end
	return 1
end
return 0`)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return NewRedisCacheFromClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL,
	)
}

func NewRedisCacheFromClient(client *redis.Client, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, flightsTTL: flightsTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.flightsTTL).Err()
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

// AcquireSeatLock takes the per-seat lock for owner. It reports false when
// somebody else holds it.
func (c *RedisCache) AcquireSeatLock(ctx context.Context, seatID int64, owner string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, seatLockKey(seatID), owner, ttl).Result()
}

// TransferSeatLock hands a held lock over to a new owner value.
func (c *RedisCache) TransferSeatLock(ctx context.Context, seatID int64, from, to string) (bool, error) {
	n, err := transferScript.Run(ctx, c.client, []string{seatLockKey(seatID)}, from, to).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseSeatLock drops the lock if owner still holds it.
func (c *RedisCache) ReleaseSeatLock(ctx context.Context, seatID int64, owner string) error {
	return releaseScript.Run(ctx, c.client, []string{seatLockKey(seatID)}, owner).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func seatLockKey(seatID int64) string {
	return fmt.Sprintf("lock:seat:%d", seatID)
}
