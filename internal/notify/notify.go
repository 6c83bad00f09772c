// Package notify hands passenger messages to whatever delivers them.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/airticket/internal/kafka"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// RetryPublisher is a Publisher that can retry on its own, like kafka.Producer.
type RetryPublisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries int) error
}

// KafkaNotifier queues notifications on a topic; the worker turns them into email.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
	retries   int
	now       func() time.Time
}

type KafkaNotifierOption func(*KafkaNotifier)

// WithRetries makes Send retry up to n attempts when the publisher supports it.
func WithRetries(n int) KafkaNotifierOption {
	return func(k *KafkaNotifier) {
		k.retries = n
	}
}

func NewKafkaNotifier(publisher Publisher, topic string, opts ...KafkaNotifierOption) *KafkaNotifier {
	n := &KafkaNotifier{publisher: publisher, topic: topic, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *KafkaNotifier) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return errors.New("notification without recipient")
	}
	msg := kafka.Notification{
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: n.now().UTC(),
	}
	if rp, ok := n.publisher.(RetryPublisher); ok && n.retries > 1 {
		return rp.PublishWithRetry(ctx, n.topic, to, msg, n.retries)
	}
	return n.publisher.Publish(ctx, n.topic, to, msg)
}

// LogNotifier only logs. It stands in when no broker is configured.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info(body)
	return nil
}

var (
	_ Notifier = (*KafkaNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
