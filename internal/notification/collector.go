// Package notification collects validation and business-rule failures for the
// duration of a single request or message.
package notification

import (
	"context"
	"log/slog"
	"sync"

	"academy-platform/internal/core/domain"
)

type collectorKey struct{}

// Collector accumulates the notifications raised while handling one command.
type Collector struct {
	mu    sync.Mutex
	items []domain.Notification
}

// WithCollector attaches a fresh collector to ctx.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// FromContext returns the collector attached to ctx, if any.
func FromContext(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	return c, ok
}

func (c *Collector) Add(n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
}

func (c *Collector) HasNotifications() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) > 0
}

// Notifications returns a copy in publication order.
func (c *Collector) Notifications() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Messages flattens the notifications for response bodies.
func (c *Collector) Messages() []string {
	items := c.Notifications()
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Message)
	}
	return out
}

// Sink implements ports.NotificationSink. It routes each notification to the
// collector in the context and logs it at debug level.
type Sink struct {
	logger *slog.Logger
}

func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) Publish(ctx context.Context, n domain.Notification) {
	s.logger.DebugContext(ctx, "notification", "key", n.Key, "message", n.Message)
	if c, ok := FromContext(ctx); ok {
		c.Add(n)
	}
}
