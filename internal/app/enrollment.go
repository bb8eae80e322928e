package app

import (
	"context"
	"errors"
	"log/slog"

	"academy-platform/internal/core/domain"
)

// EnrollmentHandler reacts to integration events that move a student through a course.
type EnrollmentHandler struct {
	registrations *RegistrationService
	logger        *slog.Logger
}

func NewEnrollmentHandler(registrations *RegistrationService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{registrations: registrations, logger: logger}
}

// HandlePaymentApproved enrolls the paying student. Redelivered events are no-ops.
func (h *EnrollmentHandler) HandlePaymentApproved(ctx context.Context, event domain.PaymentApproved) error {
	ok, err := h.registrations.Register(ctx, event.StudentID, event.CourseID)
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	h.logger.DebugContext(ctx, "payment approved handled", "payment_id", event.PaymentID, "registered", ok)
	return nil
}

// HandleLessonFinished attempts to certify the student on the lesson's course.
func (h *EnrollmentHandler) HandleLessonFinished(ctx context.Context, event domain.LessonFinished) error {
	ok, err := h.registrations.FinishCourse(ctx, event.StudentID, event.CourseID)
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	h.logger.DebugContext(ctx, "lesson finished handled", "lesson_id", event.LessonID, "certified", ok)
	return nil
}
