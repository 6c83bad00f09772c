package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Domenick1991/airticket/config"
	"github.com/Domenick1991/airticket/internal/email"
	"github.com/Domenick1991/airticket/internal/kafka"
	"github.com/Domenick1991/airticket/internal/ledger"
	"github.com/Domenick1991/airticket/internal/logger"
	"github.com/Domenick1991/airticket/internal/notify"
	"github.com/Domenick1991/airticket/internal/repository"
	"github.com/Domenick1991/airticket/internal/seatstore"
	"github.com/Domenick1991/airticket/internal/service/reminder"
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

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	seats := seatstore.NewPostgresStore(pool, cfg.Booking.HoldTTL())
	reminders := reminder.NewService(
		repository.NewFlightRepository(pool),
		ledger.NewPostgresLedger(pool),
		notify.NewKafkaNotifier(producer, cfg.Kafka.NotificationsTopic, notify.WithRetries(3)),
		cfg.Worker.ReminderHour,
		log,
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()
	sender := email.NewSender(cfg.SMTP, log)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		handler := kafka.WithRetry(sender.HandleMessage, 3, 2*time.Second, log)
		if err := consumer.Consume(ctx, handler); err != nil {
			log.WithError(err).Error("notification consumer stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := reminders.Run(ctx); err != nil {
			log.WithError(err).Error("travel reminders stopped")
		}
	}()
	go func() {
		defer wg.Done()
		sweepExpiredHolds(ctx, seats, time.Duration(cfg.Worker.ExpirationSweepSeconds)*time.Second, log)
	}()

	log.Info("worker started")
	wg.Wait()
	log.Info("worker stopped")
}

// sweepExpiredHolds returns lapsed holds to the pool. Claims already treat them
// as free; the sweep keeps seat listings honest.
func sweepExpiredHolds(ctx context.Context, seats seatstore.Store, every time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			released, err := seats.ReleaseExpired(ctx, now)
			if err != nil {
				log.WithError(err).Error("release expired holds")
				continue
			}
			if released > 0 {
				log.WithField("released", released).Info("expired holds released")
			}
		}
	}
}
