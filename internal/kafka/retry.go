package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Handler func(context.Context, kafka.Message) error

// WithRetry retries handler up to attempts times with a linearly growing delay.
// A message that still fails is logged and acknowledged so the partition moves on.
func WithRetry(handler Handler, attempts int, delay time.Duration, log *logrus.Logger) Handler {
	if attempts < 1 {
		attempts = 1
	}
	return func(ctx context.Context, msg kafka.Message) error {
		var err error
		for i := 1; i <= attempts; i++ {
			if err = handler(ctx, msg); err == nil {
				return nil
			}
			if i == attempts {
				break
			}
			t := time.NewTimer(time.Duration(i) * delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		log.WithError(err).WithFields(logrus.Fields{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"attempts":  attempts,
		}).Error("message dropped after retries")
		return nil
	}
}
