// Package messaging holds the typed JSON helpers shared by every ports.MessageBus implementation.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"academy-platform/internal/core/ports"
)

// ErrMalformedMessage marks a payload that could not be decoded. Buses dead-letter it without retrying.
var ErrMalformedMessage = errors.New("malformed message")

// Header keys attached to dead-lettered and request/reply records.
const (
	HeaderErrorType     = "error_type"
	HeaderErrorString   = "error_string"
	HeaderOriginalTopic = "original_topic"
	HeaderCorrelationID = "correlation_id"
	HeaderReplyTo       = "reply_to"
	HeaderReplyError    = "reply_error"
)

// ErrorType classifies a handler failure for the dead-letter headers.
func ErrorType(err error) string {
	if errors.Is(err, ErrMalformedMessage) {
		return "unmarshal_error"
	}
	return "handler_error"
}

// Request sends req on topic and decodes the reply.
func Request[Req, Resp any](ctx context.Context, bus ports.MessageBus, topic string, req Req) (Resp, error) {
	var resp Resp

	payload, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("encode request for %s: %w", topic, err)
	}
	raw, err := bus.Request(ctx, topic, payload)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("%w: reply from %s: %v", ErrMalformedMessage, topic, err)
	}
	return resp, nil
}

// Respond registers a typed responder for topic.
func Respond[Req, Resp any](bus ports.MessageBus, topic string, fn func(context.Context, Req) (Resp, error)) {
	bus.Respond(topic, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
}

// Subscribe registers a typed handler for the events published on topic.
func Subscribe[E any](bus ports.MessageBus, topic string, fn func(context.Context, E) error) {
	bus.Subscribe(topic, func(ctx context.Context, payload []byte) error {
		var event E
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return fn(ctx, event)
	})
}
