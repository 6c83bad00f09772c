package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/airticket/config"
	"github.com/Domenick1991/airticket/internal/boardingpass"
	"github.com/Domenick1991/airticket/internal/bootstrap"
	"github.com/Domenick1991/airticket/internal/cache"
	"github.com/Domenick1991/airticket/internal/kafka"
	"github.com/Domenick1991/airticket/internal/ledger"
	"github.com/Domenick1991/airticket/internal/logger"
	"github.com/Domenick1991/airticket/internal/migrations"
	"github.com/Domenick1991/airticket/internal/notify"
	"github.com/Domenick1991/airticket/internal/payment"
	"github.com/Domenick1991/airticket/internal/repository"
	"github.com/Domenick1991/airticket/internal/seatstore"
	"github.com/Domenick1991/airticket/internal/service/booking"
	"github.com/Domenick1991/airticket/internal/service/flights"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(cfg.Database.MigrateURL()); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.FlightsCacheTTL())
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	var seats seatstore.Store = seatstore.NewPostgresStore(pool, cfg.Booking.HoldTTL())
	if cfg.Redis.SeatGuard {
		seats = seatstore.NewGuarded(seats, redisCache, cfg.Booking.HoldTTL(), log)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		notifier = notify.NewKafkaNotifier(producer, cfg.Kafka.NotificationsTopic)
	}

	flightRepo := repository.NewFlightRepository(pool)
	flightService := flights.NewFlightService(flightRepo, redisCache, log)
	bookingService := booking.NewBookingService(
		seats,
		ledger.NewPostgresLedger(pool),
		flightRepo,
		newGateway(cfg.Payment, log),
		booking.WithPaymentTimeout(cfg.Booking.PaymentTimeout()),
		booking.WithNotifier(notifier),
		booking.WithEventProducer(producer, cfg.Kafka.BookingEventsTopic),
		booking.WithLogger(log),
	)
	defer bookingService.Wait()

	secret := cfg.Booking.BoardingPassSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		log.Warn("booking.boarding_pass_secret not set, boarding passes will not survive a restart")
	}
	passes, err := boardingpass.NewIssuer(secret)
	if err != nil {
		log.Fatalf("boarding passes: %v", err)
	}

	err = bootstrap.Run(ctx, bootstrap.Deps{
		Config:   cfg,
		Log:      log,
		Flights:  flightService,
		Bookings: bookingService,
		Passes:   passes,
		Checks: []bootstrap.Check{
			{Name: "postgres", Probe: pool.Ping},
			{Name: "redis", Probe: redisCache.Ping},
			{Name: "kafka", Probe: producer.CheckConnection},
		},
	})
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newGateway(cfg config.PaymentConfig, log *logrus.Logger) payment.Gateway {
	if cfg.Provider == "stub" {
		log.Warn("payment provider is the stub, every charge is approved")
		return &payment.Stub{}
	}
	return payment.NewPaystackClient(cfg.BaseURL, cfg.SecretKey, payment.WithLogger(log))
}
