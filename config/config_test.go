package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
http:
  address: ":8081"
database:
  user: airticket
  name: airticket
booking:
  hold_ttl_seconds: 300
kafka:
  brokers: ["localhost:9092"]
  notifications_topic: notifications
`)
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTP.Address)
	assert.Equal(t, ":9090", cfg.GRPC.Address)
	assert.Equal(t, 5*time.Minute, cfg.Booking.HoldTTL())
	assert.Equal(t, 30*time.Second, cfg.Booking.PaymentTimeout())
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "sk_test", cfg.Payment.SecretKey)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 12, cfg.Worker.ReminderHour)
	assert.Equal(t, "paystack", cfg.Payment.Provider)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadConfig_HoldMustOutlivePayment(t *testing.T) {
	path := writeConfig(t, `
booking:
  hold_ttl_seconds: 10
  payment_timeout_seconds: 30
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must exceed")
}

func TestDatabaseConfig_URLs(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", Name: "air", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p@ss dbname=air sslmode=disable", d.DSN())
	assert.Equal(t, "pgx5://u:p%40ss@db:5432/air?sslmode=disable", d.MigrateURL())
}

func TestLoadConfig_UnknownPaymentProvider(t *testing.T) {
	path := writeConfig(t, `
payment:
  provider: stripe
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "payment.provider")
}
