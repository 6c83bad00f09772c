package notify

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/airticket/internal/kafka"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

func TestKafkaNotifier_Send(t *testing.T) {
	pub := &MockPublisher{}
	n := NewKafkaNotifier(pub, "notifications")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n.now = func() time.Time { return fixed }
	ctx := context.Background()

	pub.On("Publish", ctx, "notifications", "ada@example.com", kafka.Notification{
		To: "ada@example.com", Subject: "Ticket Reservation", Body: "hello", CreatedAt: fixed,
	}).Return(nil).Once()

	require.NoError(t, n.Send(ctx, "ada@example.com", "Ticket Reservation", "hello"))
	pub.AssertExpectations(t)
}

func TestKafkaNotifier_NoRecipient(t *testing.T) {
	pub := &MockPublisher{}
	n := NewKafkaNotifier(pub, "notifications")

	assert.Error(t, n.Send(context.Background(), "", "s", "b"))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

type MockRetryPublisher struct {
	MockPublisher
}

func (m *MockRetryPublisher) PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries int) error {
	args := m.Called(ctx, topic, key, payload, maxRetries)
	return args.Error(0)
}

func TestKafkaNotifier_Retries(t *testing.T) {
	ctx := context.Background()

	t.Run("retrying publisher", func(t *testing.T) {
		pub := &MockRetryPublisher{}
		n := NewKafkaNotifier(pub, "notifications", WithRetries(3))
		pub.On("PublishWithRetry", ctx, "notifications", "ada@example.com", mock.Anything, 3).Return(nil).Once()

		require.NoError(t, n.Send(ctx, "ada@example.com", "Travel Reminder", "hello"))
		pub.AssertExpectations(t)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("plain publisher ignores retries", func(t *testing.T) {
		pub := &MockPublisher{}
		n := NewKafkaNotifier(pub, "notifications", WithRetries(3))
		pub.On("Publish", ctx, "notifications", "ada@example.com", mock.Anything).Return(nil).Once()

		require.NoError(t, n.Send(ctx, "ada@example.com", "Travel Reminder", "hello"))
		pub.AssertExpectations(t)
	})
}

func TestLogNotifier_Send(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	n := NewLogNotifier(log)

	require.NoError(t, n.Send(context.Background(), "ada@example.com", "Travel Reminder", "see you"))
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "see you", entry.Message)
	assert.Equal(t, "Travel Reminder", entry.Data["subject"])
}
