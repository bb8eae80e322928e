package ports

import (
	"context"

	"academy-platform/internal/core/domain"

	"github.com/google/uuid"
)

// CourseRepository reads courses from the store and stages writes in the unit of work.
// Lookups return domain.ErrNotFound when nothing matches. Reads only see active courses and lessons.
type CourseRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	List(ctx context.Context) ([]domain.Course, error)
	GetLesson(ctx context.Context, id uuid.UUID) (*domain.Lesson, error)
	ListLessons(ctx context.Context, courseID uuid.UUID) ([]domain.Lesson, error)

	Add(course domain.Course)
	// Update writes the course fields and the deleted flag of each of its lessons.
	Update(course domain.Course)
	AddLesson(lesson domain.Lesson)
	UpdateLesson(lesson domain.Lesson)
}

type ProgressRepository interface {
	Get(ctx context.Context, lessonID, studentID uuid.UUID) (*domain.ProgressLesson, error)
	ListByCourse(ctx context.Context, courseID, studentID uuid.UUID) ([]domain.ProgressLesson, error)

	Add(progress domain.ProgressLesson)
	// Update applies only if the stored status is still from; otherwise Commit returns domain.ErrConflict.
	Update(progress domain.ProgressLesson, from domain.ProgressStatus)
}

type RegistrationRepository interface {
	Get(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Registration, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Registration, error)
	ListAll(ctx context.Context) ([]domain.Registration, error)
	// ListInProgress feeds the certification sweep.
	ListInProgress(ctx context.Context) ([]domain.Registration, error)
	GetCertification(ctx context.Context, studentID, courseID uuid.UUID) (*domain.Certification, error)

	Add(registration domain.Registration)
	Update(registration domain.Registration)
	AddCertification(certification domain.Certification)
}

type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Exists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)

	Add(payment domain.Payment)
	AddTransaction(tx domain.Transaction)
}

// UnitOfWork groups the repositories of one command. Nothing staged is visible
// until Commit applies every write atomically.
type UnitOfWork interface {
	Courses() CourseRepository
	Progress() ProgressRepository
	Registrations() RegistrationRepository
	Payments() PaymentRepository
	// Commit returns domain.ErrConflict on a unique violation and
	// domain.ErrStorageUnavailable for any other persistence failure.
	Commit(ctx context.Context) error
}

// Store opens units of work over the shared backing store.
type Store interface {
	Begin() UnitOfWork
}

// NotificationSink receives validation and business-rule failures.
type NotificationSink interface {
	Publish(ctx context.Context, n domain.Notification)
}

// EventBus publishes one-way integration events.
type EventBus interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Handler consumes a raw message from the bus.
type Handler func(ctx context.Context, payload []byte) error

// Responder answers a raw bus request.
type Responder func(ctx context.Context, payload []byte) ([]byte, error)

// MessageBus is the transport behind EventBus. It also carries request/response exchanges.
type MessageBus interface {
	EventBus
	Subscribe(topic string, handler Handler)
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)
	Respond(topic string, responder Responder)
}

// CardGateway is the external card processor protocol.
type CardGateway interface {
	GetServiceKey(apiKey, encryptionKey string) (string, error)
	GetCardHashKey(serviceKey, cardNumber string) (string, error)
	CommitTransaction(ctx context.Context, cardHashKey, reference string, amount float64) (domain.Transaction, error)
}

// Encrypter protects card fields at rest.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// PaymentFacade translates a payment into a gateway transaction.
type PaymentFacade interface {
	MakePayment(ctx context.Context, payment domain.Payment) (domain.Transaction, error)
}
