package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/airticket/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	written  []kafka.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer([]string{"localhost:9092"}, w, logger.Discard())

	event := BookingEvent{Type: EventTicketBooked, TicketID: "t-1", FlightID: 3, SeatNumber: 12, OccurredAt: time.Now().UTC()}
	require.NoError(t, p.Publish(context.Background(), "booking-events", "t-1", event))

	require.Len(t, w.written, 1)
	assert.Equal(t, "booking-events", w.written[0].Topic)
	assert.Equal(t, []byte("t-1"), w.written[0].Key)

	var got BookingEvent
	require.NoError(t, json.Unmarshal(w.written[0].Value, &got))
	assert.Equal(t, EventTicketBooked, got.Type)
	assert.Equal(t, 12, got.SeatNumber)
}

func TestProducer_PublishWithRetry(t *testing.T) {
	w := &fakeWriter{failures: 1}
	p := newProducer(nil, w, logger.Discard())

	require.NoError(t, p.PublishWithRetry(context.Background(), "notifications", "k", Notification{To: "a@b.c"}, 3))
	assert.Len(t, w.written, 1)

	w.failures = 5
	err := p.PublishWithRetry(context.Background(), "notifications", "k", Notification{}, 2)
	assert.ErrorContains(t, err, "failed after 2 retries")
}

func TestConsumer_CommitsAfterHandler(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Value: []byte("1")}, {Value: []byte("2")}, {Value: []byte("3")}}}
	c := &Consumer{reader: r}

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	err := c.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
		seen = append(seen, string(msg.Value))
		if len(seen) == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, seen)
	assert.Len(t, r.committed, 3)
}

func TestConsumer_HandlerErrorStops(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Value: []byte("bad")}}}
	c := &Consumer{reader: r}

	err := c.Consume(context.Background(), func(context.Context, kafka.Message) error {
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Empty(t, r.committed)
}
