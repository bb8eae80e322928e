package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"academy-platform/internal/adapters/messaging"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
	"academy-platform/internal/observability"
)

// Options configures the Kafka bus.
type Options struct {
	Brokers       []string
	ConsumerGroup string
	DLQTopic      string
	// ReplyTopic receives the answers to Request. Leave empty on processes that never send requests.
	ReplyTopic     string
	RequestTimeout time.Duration
	// MaxAttempts bounds handler retries before a record is dead-lettered.
	MaxAttempts int
}

// NewReplyTopic returns a reply topic private to this process.
func NewReplyTopic(service string) string {
	return fmt.Sprintf("academy.replies.%s.%s", service, uuid.NewString())
}

type reply struct {
	payload []byte
	err     error
}

// Bus implements ports.MessageBus on Kafka. Handlers and responders must be
// registered before Run, which starts the consumers.
type Bus struct {
	producer *kgo.Client
	opts     Options
	logger   *slog.Logger
	wg       sync.WaitGroup

	mu         sync.Mutex
	handlers   map[string][]ports.Handler
	responders map[string]ports.Responder
	pending    map[string]chan reply
}

// NewBus creates the producer and checks the connection.
func NewBus(opts Options, logger *slog.Logger) (*Bus, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(opts.Brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := producer.Ping(context.Background()); err != nil {
		producer.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	return &Bus{
		producer:   producer,
		opts:       opts,
		logger:     logger,
		handlers:   make(map[string][]ports.Handler),
		responders: make(map[string]ports.Responder),
		pending:    make(map[string]chan reply),
	}, nil
}

// Publish writes the event synchronously so a failed delivery reaches the caller.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event.Topic(), err)
	}

	record := &kgo.Record{Topic: event.Topic(), Key: []byte(event.Key()), Value: payload}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		observability.BusMessagesTotal.WithLabelValues(event.Topic(), "publish_failed").Inc()
		return fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}
	observability.BusMessagesTotal.WithLabelValues(event.Topic(), "published").Inc()
	return nil
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

// Request publishes payload with a correlation id and waits for the matching record on the reply topic.
func (b *Bus) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	if b.opts.ReplyTopic == "" {
		return nil, fmt.Errorf("%w: no reply topic configured", domain.ErrBrokerUnavailable)
	}

	correlationID := uuid.NewString()
	ch := make(chan reply, 1)
	b.mu.Lock()
	b.pending[correlationID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, correlationID)
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
	defer cancel()

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(correlationID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: messaging.HeaderCorrelationID, Value: []byte(correlationID)},
			{Key: messaging.HeaderReplyTo, Value: []byte(b.opts.ReplyTopic)},
		},
	}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	select {
	case r := <-ch:
		return r.payload, r.err
	case <-ctx.Done():
		observability.BusMessagesTotal.WithLabelValues(topic, "timeout").Inc()
		return nil, fmt.Errorf("%w: no reply on %s: %v", domain.ErrBrokerUnavailable, topic, ctx.Err())
	}
}

// Run consumes the subscribed topics and, when requests are enabled, the reply topic.
// It returns when ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if topics := b.topics(); len(topics) > 0 {
		consumer, err := kgo.NewClient(
			kgo.SeedBrokers(b.opts.Brokers...),
			kgo.ConsumerGroup(b.opts.ConsumerGroup),
			kgo.ConsumeTopics(topics...),
			kgo.AllowAutoTopicCreation(),
			kgo.DisableAutoCommit(),
		)
		if err != nil {
			return fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		g.Go(func() error {
			defer consumer.Close()
			return b.consume(ctx, consumer)
		})
	}

	if b.opts.ReplyTopic != "" {
		replies, err := kgo.NewClient(
			kgo.SeedBrokers(b.opts.Brokers...),
			kgo.ConsumeTopics(b.opts.ReplyTopic),
			kgo.AllowAutoTopicCreation(),
			// The topic belongs to this process alone, so everything on it is ours.
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
		if err != nil {
			return fmt.Errorf("failed to create kafka reply consumer: %w", err)
		}
		g.Go(func() error {
			defer replies.Close()
			return b.consumeReplies(ctx, replies)
		})
	}

	return g.Wait()
}

func (b *Bus) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	for t := range b.handlers {
		seen[t] = true
	}
	for t := range b.responders {
		seen[t] = true
	}
	topics := make([]string, 0, len(seen))
	for t := range seen {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (b *Bus) consume(ctx context.Context, client *kgo.Client) error {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(t string, p int32, err error) {
			b.logger.Error("error reading from kafka", "topic", t, "partition", p, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			b.dispatch(ctx, record)
		})

		// Offsets are committed after the whole batch was handled or dead-lettered.
		if err := client.CommitUncommittedOffsets(ctx); err != nil {
			b.logger.Error("error committing offsets", "error", err)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, record *kgo.Record) {
	ctx, span := observability.StartMessageSpan(ctx, record.Topic)
	defer span.End()

	b.mu.Lock()
	handlers := append([]ports.Handler(nil), b.handlers[record.Topic]...)
	responder := b.responders[record.Topic]
	b.mu.Unlock()

	for _, h := range handlers {
		if err := b.withRetry(ctx, func() error { return h(ctx, record.Value) }); err != nil {
			b.logger.Error("handler failed, sending to DLQ", "topic", record.Topic, "offset", record.Offset, "error", err)
			b.deadLetter(record, err)
			continue
		}
		observability.BusMessagesTotal.WithLabelValues(record.Topic, "handled").Inc()
	}

	if responder != nil {
		b.respond(ctx, record, responder)
	}
}

func (b *Bus) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= b.opts.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, messaging.ErrMalformedMessage) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return err
}

func (b *Bus) respond(ctx context.Context, record *kgo.Record, responder ports.Responder) {
	replyTo := header(record, messaging.HeaderReplyTo)
	correlationID := header(record, messaging.HeaderCorrelationID)
	if replyTo == "" || correlationID == "" {
		b.deadLetter(record, fmt.Errorf("%w: request without reply headers", messaging.ErrMalformedMessage))
		return
	}

	out := &kgo.Record{
		Topic:   replyTo,
		Key:     []byte(correlationID),
		Headers: []kgo.RecordHeader{{Key: messaging.HeaderCorrelationID, Value: []byte(correlationID)}},
	}
	payload, err := responder(ctx, record.Value)
	if err != nil {
		b.logger.Error("responder failed", "topic", record.Topic, "error", err)
		out.Headers = append(out.Headers, kgo.RecordHeader{Key: messaging.HeaderReplyError, Value: []byte(err.Error())})
		observability.BusMessagesTotal.WithLabelValues(record.Topic, "respond_failed").Inc()
	} else {
		out.Value = payload
		observability.BusMessagesTotal.WithLabelValues(record.Topic, "responded").Inc()
	}

	b.wg.Add(1)
	b.producer.Produce(ctx, out, func(r *kgo.Record, err error) {
		defer b.wg.Done()
		if err != nil {
			b.logger.Error("failed to deliver reply", "topic", r.Topic, "error", err)
		}
	})
}

func (b *Bus) consumeReplies(ctx context.Context, client *kgo.Client) error {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(t string, p int32, err error) {
			b.logger.Error("error reading replies", "topic", t, "partition", p, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			b.mu.Lock()
			ch, ok := b.pending[header(record, messaging.HeaderCorrelationID)]
			b.mu.Unlock()
			if !ok {
				// The requester already gave up.
				return
			}
			ch <- decodeReply(record)
		})
	}
}

func decodeReply(record *kgo.Record) reply {
	if msg := header(record, messaging.HeaderReplyError); msg != "" {
		return reply{err: errors.New(msg)}
	}
	return reply{payload: record.Value}
}

// deadLetter sends the original record to the DLQ with the failure described in its headers.
func (b *Bus) deadLetter(record *kgo.Record, cause error) {
	observability.BusMessagesTotal.WithLabelValues(record.Topic, "dead_lettered").Inc()

	b.wg.Add(1)
	b.producer.Produce(context.Background(), deadLetterRecord(b.opts.DLQTopic, record, cause), func(r *kgo.Record, err error) {
		defer b.wg.Done()
		if err != nil {
			b.logger.Error("failed to send message to DLQ", "topic", r.Topic, "error", err)
		}
	})
}

func deadLetterRecord(dlqTopic string, original *kgo.Record, cause error) *kgo.Record {
	return &kgo.Record{
		Topic: dlqTopic,
		Key:   original.Key,
		Value: original.Value,
		Headers: []kgo.RecordHeader{
			{Key: messaging.HeaderErrorType, Value: []byte(messaging.ErrorType(cause))},
			{Key: messaging.HeaderErrorString, Value: []byte(cause.Error())},
			{Key: messaging.HeaderOriginalTopic, Value: []byte(original.Topic)},
		},
	}
}

func header(record *kgo.Record, key string) string {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close waits for in-flight replies and dead letters, then stops the producer.
func (b *Bus) Close() {
	b.logger.Info("waiting for kafka deliveries to finish...")
	b.wg.Wait()
	b.producer.Close()
	b.logger.Info("kafka client stopped")
}
