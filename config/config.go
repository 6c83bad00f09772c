package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Payment  PaymentConfig  `yaml:"payment"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	// AutoMigrate applies embedded migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// MigrateURL is the DSN in the URL form expected by golang-migrate's pgx/v5 driver.
func (d DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// SeatGuard puts a Redis lock in front of every seat claim.
	SeatGuard bool `yaml:"seat_guard"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	HoldTTLSeconds         int    `yaml:"hold_ttl_seconds"`
	PaymentTimeoutSeconds  int    `yaml:"payment_timeout_seconds"`
	FlightsCacheTTLSeconds int    `yaml:"flights_cache_ttl_seconds"`
	BoardingPassSecret     string `yaml:"boarding_pass_secret"`
}

func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLSeconds) * time.Second
}

func (b BookingConfig) PaymentTimeout() time.Duration {
	return time.Duration(b.PaymentTimeoutSeconds) * time.Second
}

func (b BookingConfig) FlightsCacheTTL() time.Duration {
	return time.Duration(b.FlightsCacheTTLSeconds) * time.Second
}

type PaymentConfig struct {
	// Provider is "paystack" or "stub"; the stub approves every charge.
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	SecretKey string `yaml:"secret_key"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type WorkerConfig struct {
	ExpirationSweepSeconds int `yaml:"expiration_sweep_seconds"`
	// ReminderHour is the local hour at which next-day travel reminders go out.
	ReminderHour int `yaml:"reminder_hour"`
}

func defaults() Config {
	return Config{
		HTTP: HTTPConfig{Address: ":8080"},
		GRPC: GRPCConfig{Address: ":9090"},
		Log:  LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{GroupID: "airticket-worker"},
		Booking: BookingConfig{
			HoldTTLSeconds:         120,
			PaymentTimeoutSeconds:  30,
			FlightsCacheTTLSeconds: 60,
		},
		Payment: PaymentConfig{Provider: "paystack", BaseURL: "https://api.paystack.co"},
		SMTP:    SMTPConfig{Port: 587},
		Worker: WorkerConfig{
			ExpirationSweepSeconds: 60,
			ReminderHour:           12,
		},
	}
}

// LoadConfig reads the YAML file at path on top of defaults, then applies
// environment overrides (a .env file in the working directory is honoured).
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Host = getEnv("DATABASE_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DATABASE_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DATABASE_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DATABASE_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DATABASE_NAME", cfg.Database.Name)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Payment.SecretKey = getEnv("PAYSTACK_SECRET_KEY", cfg.Payment.SecretKey)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.Booking.BoardingPassSecret = getEnv("BOARDING_PASS_SECRET", cfg.Booking.BoardingPassSecret)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func (c *Config) Validate() error {
	if c.Booking.HoldTTLSeconds <= 0 {
		return errors.New("booking.hold_ttl_seconds must be positive")
	}
	if c.Booking.PaymentTimeoutSeconds <= 0 {
		return errors.New("booking.payment_timeout_seconds must be positive")
	}
	// A hold must outlive the payment round-trip, otherwise a paid seat can be taken over.
	if c.Booking.HoldTTLSeconds <= c.Booking.PaymentTimeoutSeconds {
		return fmt.Errorf("booking.hold_ttl_seconds (%d) must exceed booking.payment_timeout_seconds (%d)",
			c.Booking.HoldTTLSeconds, c.Booking.PaymentTimeoutSeconds)
	}
	if c.Payment.Provider != "paystack" && c.Payment.Provider != "stub" {
		return fmt.Errorf("payment.provider must be paystack or stub, got %q", c.Payment.Provider)
	}
	if c.Worker.ReminderHour < 0 || c.Worker.ReminderHour > 23 {
		return fmt.Errorf("worker.reminder_hour must be within 0..23, got %d", c.Worker.ReminderHour)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
