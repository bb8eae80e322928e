package app

import (
	"context"
	"log/slog"
	"time"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
	"academy-platform/internal/notification"
)

// MsgPaymentFailed answers a payment request that failed without a more specific reason.
const MsgPaymentFailed = "Payment failed."

// Settler is the part of PaymentService the command handler needs.
type Settler interface {
	Settle(ctx context.Context, pc domain.PaymentCourse) (domain.Payment, bool, error)
}

// PaymentCommandHandler validates payment commands and announces approved payments.
type PaymentCommandHandler struct {
	payments Settler
	events   ports.EventBus
	notifier ports.NotificationSink
	logger   *slog.Logger
	now      func() time.Time
}

func NewPaymentCommandHandler(payments Settler, events ports.EventBus, notifier ports.NotificationSink, logger *slog.Logger) *PaymentCommandHandler {
	return &PaymentCommandHandler{
		payments: payments,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidatePaymentCourse runs the payment workflow for a well-formed command and
// publishes PaymentApproved once the payment is persisted.
func (h *PaymentCommandHandler) ValidatePaymentCourse(ctx context.Context, cmd ValidatePaymentCourseCommand) (bool, error) {
	if errs := cmd.Validate(); len(errs) > 0 {
		for _, e := range errs {
			h.notifier.Publish(ctx, domain.Notification{Key: e.Field, Message: e.Message})
		}
		return false, nil
	}

	payment, ok, err := h.payments.Settle(ctx, cmd.PaymentCourse())
	if err != nil || !ok {
		return false, err
	}

	event := domain.PaymentApproved{
		PaymentID:  payment.ID,
		CourseID:   payment.CourseID,
		StudentID:  payment.StudentID,
		Amount:     payment.Value,
		OccurredAt: h.now().UTC(),
	}
	if err := h.events.Publish(ctx, event); err != nil {
		// The payment stands; enrollment can still go through the register endpoint.
		h.logger.ErrorContext(ctx, "failed to publish payment approved", "payment_id", payment.ID, "error", err)
	}
	return true, nil
}

// HandlePaymentRequested answers a PaymentRequested bus request.
func (h *PaymentCommandHandler) HandlePaymentRequested(ctx context.Context, req domain.PaymentRequested) (domain.ResponseMessage, error) {
	ctx, collector := notification.WithCollector(ctx)

	ok, err := h.ValidatePaymentCourse(ctx, ValidatePaymentCourseCommand{
		CourseID:           req.CourseID,
		StudentID:          req.StudentID,
		CardName:           req.CardName,
		CardNumber:         req.CardNumber,
		CardExpirationDate: req.CardExpirationDate,
		CardCVV:            req.CardCVV,
		Total:              req.Total,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "payment request failed", "course_id", req.CourseID, "student_id", req.StudentID, "error", err)
		return domain.ResponseMessage{Success: false, Errors: []string{MsgPaymentFailed}}, nil
	}
	if ok {
		return domain.ResponseMessage{Success: true}, nil
	}

	messages := collector.Messages()
	if len(messages) == 0 {
		messages = []string{MsgPaymentFailed}
	}
	return domain.ResponseMessage{Success: false, Errors: messages}, nil
}
