// Package memory is an in-process ports.MessageBus. Delivery is synchronous, which keeps tests deterministic.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"academy-platform/internal/adapters/messaging"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
	"academy-platform/internal/notification"
	"academy-platform/internal/observability"
)

// DeadLetter is a message whose handler failed.
type DeadLetter struct {
	Topic     string
	Payload   []byte
	ErrorType string
	Err       error
}

type Bus struct {
	mu          sync.RWMutex
	handlers    map[string][]ports.Handler
	responders  map[string]ports.Responder
	deadLetters []DeadLetter
	logger      *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers:   make(map[string][]ports.Handler),
		responders: make(map[string]ports.Responder),
		logger:     logger,
	}
}

// Publish hands the event to every subscriber before returning. Handler failures are dead-lettered, not returned.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event.Topic(), err)
	}
	b.Deliver(ctx, event.Topic(), payload)
	return nil
}

// Deliver dispatches a raw payload, as a broker would. Each handler runs detached from
// the publisher's cancellation and with its own notification collector.
func (b *Bus) Deliver(ctx context.Context, topic string, payload []byte) {
	b.mu.RLock()
	handlers := append([]ports.Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		hctx, _ := notification.WithCollector(context.WithoutCancel(ctx))
		if err := h(hctx, payload); err != nil {
			b.logger.Error("handler failed, dead-lettering message", "topic", topic, "error", err)
			observability.BusMessagesTotal.WithLabelValues(topic, "dead_lettered").Inc()
			b.mu.Lock()
			b.deadLetters = append(b.deadLetters, DeadLetter{Topic: topic, Payload: payload, ErrorType: messaging.ErrorType(err), Err: err})
			b.mu.Unlock()
			continue
		}
		observability.BusMessagesTotal.WithLabelValues(topic, "ok").Inc()
	}
}

func (b *Bus) Subscribe(topic string, handler ports.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

func (b *Bus) Respond(topic string, responder ports.Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders[topic] = responder
}

func (b *Bus) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	b.mu.RLock()
	responder, ok := b.responders[topic]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoResponder, topic)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reply, err := responder(ctx, payload)
	if err != nil {
		observability.BusMessagesTotal.WithLabelValues(topic, "error").Inc()
		return nil, err
	}
	observability.BusMessagesTotal.WithLabelValues(topic, "ok").Inc()
	return reply, nil
}

// DeadLetters returns a copy of the failed deliveries.
func (b *Bus) DeadLetters() []DeadLetter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]DeadLetter(nil), b.deadLetters...)
}
