package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/airticket/internal/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDBUser     = "airticket"
	testDBPassword = "airticket"
	testDBName     = "airticket"
	testDBLockID   = int64(801234569)
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// NewTestPool returns a pool on a migrated, empty database. TEST_DATABASE_URL
// wins when set; otherwise a throwaway postgres container is started once per
// test binary. The test is skipped in -short mode or when neither is reachable.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		containerOnce.Do(startContainer)
		if containerErr != nil {
			t.Skipf("skipping Postgres integration test: %v", containerErr)
		}
		dsn = containerDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 16

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skipping Postgres integration test: %v", err)
	}
	t.Cleanup(pool.Close)

	lockTestDB(t, pool)

	if err := migrations.Apply(migrateURL(dsn)); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	TruncateAll(t, pool)
	return pool
}

func TruncateAll(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE tickets, seats, flights RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// InsertFlight creates a flight with seats numbered 1..capacity and returns
// the flight id together with the seat ids in seat-number order.
func InsertFlight(t *testing.T, pool *pgxpool.Pool, number string, departure time.Time, fareCents int64, capacity int) (int64, []int64) {
	t.Helper()
	ctx := context.Background()

	var flightID int64
	if err := pool.QueryRow(ctx, `
INSERT INTO flights (number, departure, destination, departure_time, fare_cents)
VALUES ($1, 'Lagos', 'Abuja', $2, $3)
RETURNING id`, number, departure, fareCents).Scan(&flightID); err != nil {
		t.Fatalf("insert flight: %v", err)
	}

	rows, err := pool.Query(ctx, `
INSERT INTO seats (flight_id, seat_number)
SELECT $1, n FROM generate_series(1, $2) AS n
RETURNING id`, flightID, capacity)
	if err != nil {
		t.Fatalf("insert seats: %v", err)
	}
	defer rows.Close()

	seatIDs := make([]int64, 0, capacity)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan seat: %v", err)
		}
		seatIDs = append(seatIDs, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("insert seats: %v", err)
	}
	return flightID, seatIDs
}

func startContainer() {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testDBUser,
				"POSTGRES_PASSWORD": testDBPassword,
				"POSTGRES_DB":       testDBName,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		containerErr = fmt.Errorf("start postgres container: %w", err)
		return
	}

	host, err := c.Host(ctx)
	if err != nil {
		containerErr = err
		return
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		containerErr = err
		return
	}
	// Ryuk reaps the container when the test binary exits.
	containerDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testDBUser, testDBPassword, host, port.Port(), testDBName)
}

func migrateURL(dsn string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}

func lockTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		t.Fatalf("acquire test lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}

func Tomorrow() time.Time {
	return time.Now().Add(24 * time.Hour).Truncate(time.Second)
}
