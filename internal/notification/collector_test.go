package notification

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-platform/internal/core/domain"
)

func TestSink_PublishesIntoContextCollector(t *testing.T) {
	// --- Arrange ---
	sink := NewSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, collector := WithCollector(context.Background())

	// --- Act ---
	sink.Publish(ctx, domain.Notification{Key: "card", Message: "first"})
	sink.Publish(ctx, domain.Notification{Key: "card", Message: "second"})

	// --- Assert ---
	require.True(t, collector.HasNotifications())
	assert.Equal(t, []string{"first", "second"}, collector.Messages())
}

func TestSink_WithoutCollector(t *testing.T) {
	sink := NewSink(slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NotPanics(t, func() {
		sink.Publish(context.Background(), domain.Notification{Key: "k", Message: "m"})
	})
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestCollector_ConcurrentAdd(t *testing.T) {
	_, collector := WithCollector(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.Add(domain.Notification{Key: "k", Message: "m"})
		}()
	}
	wg.Wait()

	assert.Len(t, collector.Notifications(), 50)
}
