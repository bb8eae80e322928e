package app

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
)

// Mock - implementation of the store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Begin() ports.UnitOfWork {
	args := m.Called()
	return args.Get(0).(ports.UnitOfWork)
}

type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Courses() ports.CourseRepository             { return nil }
func (m *MockUnitOfWork) Progress() ports.ProgressRepository          { return nil }
func (m *MockUnitOfWork) Registrations() ports.RegistrationRepository { return nil }

func (m *MockUnitOfWork) Payments() ports.PaymentRepository {
	args := m.Called()
	return args.Get(0).(ports.PaymentRepository)
}

func (m *MockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	payment, _ := args.Get(0).(*domain.Payment)
	return payment, args.Error(1)
}

func (m *MockPaymentRepository) Exists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	args := m.Called(ctx, studentID, courseID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) Add(payment domain.Payment) {
	m.Called(payment)
}

func (m *MockPaymentRepository) AddTransaction(tx domain.Transaction) {
	m.Called(tx)
}

// Mock - implementation of the gateway facade
type MockFacade struct {
	mock.Mock
}

func (m *MockFacade) MakePayment(ctx context.Context, payment domain.Payment) (domain.Transaction, error) {
	args := m.Called(ctx, payment)
	if fn, ok := args.Get(0).(func(context.Context, domain.Payment) domain.Transaction); ok {
		return fn(ctx, payment), args.Error(1)
	}
	return args.Get(0).(domain.Transaction), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, n domain.Notification) {
	m.Called(ctx, n)
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, pc domain.PaymentCourse) (domain.Payment, bool, error) {
	args := m.Called(ctx, pc)
	return args.Get(0).(domain.Payment), args.Bool(1), args.Error(2)
}

// recordingBus keeps every published event in order.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (b *recordingBus) Publish(_ context.Context, event domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	topics := make([]string, 0, len(b.events))
	for _, e := range b.events {
		topics = append(topics, e.Topic())
	}
	return topics
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
