package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-platform/internal/adapters/messaging"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/notification"
)

func newTestBus() *Bus {
	return NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBus_TypedRequestResponse(t *testing.T) {
	// --- Arrange ---
	bus := newTestBus()
	messaging.Respond(bus, domain.TopicPaymentRequested, func(_ context.Context, req domain.PaymentRequested) (domain.ResponseMessage, error) {
		if req.Total <= 0 {
			return domain.ResponseMessage{Success: false, Errors: []string{"invalid amount"}}, nil
		}
		return domain.ResponseMessage{Success: true}, nil
	})

	// --- Act ---
	ok, err := messaging.Request[domain.PaymentRequested, domain.ResponseMessage](context.Background(), bus, domain.TopicPaymentRequested, domain.PaymentRequested{Total: 10})
	require.NoError(t, err)
	failed, err := messaging.Request[domain.PaymentRequested, domain.ResponseMessage](context.Background(), bus, domain.TopicPaymentRequested, domain.PaymentRequested{})
	require.NoError(t, err)

	// --- Assert ---
	assert.True(t, ok.Success)
	assert.False(t, failed.Success)
	assert.Equal(t, []string{"invalid amount"}, failed.Errors)
}

func TestBus_RequestWithoutResponder(t *testing.T) {
	bus := newTestBus()

	_, err := bus.Request(context.Background(), "nobody.listens", []byte(`{}`))

	assert.ErrorIs(t, err, domain.ErrNoResponder)
}

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := newTestBus()
	var got []domain.PaymentApproved
	messaging.Subscribe(bus, domain.TopicPaymentApproved, func(_ context.Context, e domain.PaymentApproved) error {
		got = append(got, e)
		return nil
	})
	event := domain.PaymentApproved{PaymentID: uuid.New(), CourseID: uuid.New(), StudentID: uuid.New(), Amount: 10}

	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, got, 1)
	assert.Equal(t, event.PaymentID, got[0].PaymentID)
	assert.Empty(t, bus.DeadLetters())
}

func TestBus_FailedHandlersAreDeadLettered(t *testing.T) {
	bus := newTestBus()
	messaging.Subscribe(bus, domain.TopicLessonFinished, func(context.Context, domain.LessonFinished) error {
		return errors.New("database is unavailable")
	})

	bus.Deliver(context.Background(), domain.TopicLessonFinished, []byte(`{"lesson_id":`))
	require.NoError(t, bus.Publish(context.Background(), domain.LessonFinished{LessonID: uuid.New()}))

	letters := bus.DeadLetters()
	require.Len(t, letters, 2)
	assert.Equal(t, "unmarshal_error", letters[0].ErrorType)
	assert.Equal(t, "handler_error", letters[1].ErrorType)
}

func TestBus_SubscribersDoNotShareThePublisherContext(t *testing.T) {
	bus := newTestBus()
	sink := notification.NewSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var handlerErr error
	var handlerMessages []string
	messaging.Subscribe(bus, domain.TopicLessonFinished, func(ctx context.Context, _ domain.LessonFinished) error {
		handlerErr = ctx.Err()
		sink.Publish(ctx, domain.Notification{Key: "course", Message: "lessons pending"})
		c, ok := notification.FromContext(ctx)
		require.True(t, ok)
		handlerMessages = c.Messages()
		return nil
	})

	ctx, collector := notification.WithCollector(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, bus.Publish(ctx, domain.LessonFinished{LessonID: uuid.New()}))

	assert.NoError(t, handlerErr)
	assert.Equal(t, []string{"lessons pending"}, handlerMessages)
	assert.False(t, collector.HasNotifications())
}
