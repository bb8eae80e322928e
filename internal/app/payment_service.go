package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy-platform/internal/cardvalidation"
	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
	"academy-platform/internal/observability"
)

const (
	notificationKeyPayment = "payment"
	MsgTransactionDeclined = "The transaction was declined"
)

// CardValidator checks plaintext card data before anything else touches it.
type CardValidator interface {
	ValidateCard(cardNumber, expirationDate, cvv, cardName string) cardvalidation.Result
}

// PaymentService runs the course payment workflow:
// Received -> Validated -> Authorized -> Settled | Declined | Rejected.
type PaymentService struct {
	store     ports.Store
	validator CardValidator
	encrypter ports.Encrypter
	facade    ports.PaymentFacade
	notifier  ports.NotificationSink
	logger    *slog.Logger
	now       func() time.Time
}

func NewPaymentService(
	store ports.Store,
	validator CardValidator,
	encrypter ports.Encrypter,
	facade ports.PaymentFacade,
	notifier ports.NotificationSink,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		store:     store,
		validator: validator,
		encrypter: encrypter,
		facade:    facade,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// MakePaymentCourse returns true only when the payment was authorized and persisted.
// Rejected and declined payments return false with notifications and a nil error.
func (s *PaymentService) MakePaymentCourse(ctx context.Context, pc domain.PaymentCourse) (bool, error) {
	_, ok, err := s.Settle(ctx, pc)
	return ok, err
}

// Settle is MakePaymentCourse returning the persisted payment.
func (s *PaymentService) Settle(ctx context.Context, pc domain.PaymentCourse) (domain.Payment, bool, error) {
	payment, ok, err := s.settle(ctx, pc)
	switch {
	case err != nil:
		observability.PaymentsTotal.WithLabelValues("FAILED").Inc()
	case ok:
		observability.PaymentsTotal.WithLabelValues(string(domain.PaymentSettled)).Inc()
		s.logger.InfoContext(ctx, "payment settled", "payment_id", payment.ID, "course_id", payment.CourseID)
	}
	return payment, ok, err
}

func (s *PaymentService) settle(ctx context.Context, pc domain.PaymentCourse) (domain.Payment, bool, error) {
	state := domain.PaymentReceived

	result := s.validator.ValidateCard(pc.CardNumber, pc.CardExpirationDate, pc.CardCVV, pc.CardName)
	if !result.IsValid() {
		for _, msg := range result.Errors {
			s.notifier.Publish(ctx, domain.Notification{Key: notificationKeyPayment, Message: msg})
		}
		observability.PaymentsTotal.WithLabelValues(string(domain.PaymentRejected)).Inc()
		return domain.Payment{}, false, nil
	}
	state = domain.PaymentValidated

	payment, err := s.newPayment(pc)
	if err != nil {
		return domain.Payment{}, false, err
	}

	tx, err := s.facade.MakePayment(ctx, payment)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment authorization failed", "payment_id", payment.ID, "state", state, "error", err)
		return domain.Payment{}, false, err
	}

	if !tx.Accepted() {
		s.notifier.Publish(ctx, domain.Notification{Key: notificationKeyPayment, Message: MsgTransactionDeclined})
		observability.PaymentsTotal.WithLabelValues(string(domain.PaymentDeclined)).Inc()
		return domain.Payment{}, false, nil
	}
	state = domain.PaymentAuthorized
	payment.Transaction = &tx

	uow := s.store.Begin()
	uow.Payments().Add(payment)
	uow.Payments().AddTransaction(tx)
	if err := uow.Commit(ctx); err != nil {
		// The gateway has already captured the funds at this point.
		s.logger.ErrorContext(ctx, "authorized payment was not persisted",
			"payment_id", payment.ID, "transaction_id", tx.ID, "state", state, "error", err)
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		return domain.Payment{}, false, err
	}

	return payment, true, nil
}

func (s *PaymentService) newPayment(pc domain.PaymentCourse) (domain.Payment, error) {
	number := cardvalidation.Normalize(pc.CardNumber)

	encNumber, err := s.encrypter.Encrypt(number)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("encrypt card number: %w", err)
	}
	encExpiration, err := s.encrypter.Encrypt(pc.CardExpirationDate)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("encrypt card expiration: %w", err)
	}
	encCVV, err := s.encrypter.Encrypt(pc.CardCVV)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("encrypt card cvv: %w", err)
	}

	return domain.Payment{
		ID:                          uuid.New(),
		CourseID:                    pc.CourseID,
		StudentID:                   pc.StudentID,
		Value:                       pc.Total,
		CardName:                    pc.CardName,
		EncryptedCardNumber:         encNumber,
		EncryptedCardExpirationDate: encExpiration,
		EncryptedCardCVV:            encCVV,
		CardNumberLast4:             domain.LastFour(number),
		CreatedAt:                   s.now().UTC(),
	}, nil
}

// PaymentExists reports whether the student has a settled payment for the course.
func (s *PaymentService) PaymentExists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	return NewPaymentQueries(s.store).PaymentExists(ctx, studentID, courseID)
}

// PaymentQueries answers payment reads for processes that never settle payments themselves.
type PaymentQueries struct {
	store ports.Store
}

func NewPaymentQueries(store ports.Store) *PaymentQueries {
	return &PaymentQueries{store: store}
}

func (q *PaymentQueries) PaymentExists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	return q.store.Begin().Payments().Exists(ctx, studentID, courseID)
}
