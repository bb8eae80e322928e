package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/security"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) GetServiceKey(apiKey, encryptionKey string) (string, error) {
	args := m.Called(apiKey, encryptionKey)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) GetCardHashKey(serviceKey, cardNumber string) (string, error) {
	args := m.Called(serviceKey, cardNumber)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CommitTransaction(ctx context.Context, cardHashKey, reference string, amount float64) (domain.Transaction, error) {
	args := m.Called(ctx, cardHashKey, reference, amount)
	return args.Get(0).(domain.Transaction), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encryptedPayment(t *testing.T, enc *security.EncryptionService, number string, value float64) domain.Payment {
	t.Helper()
	encrypted, err := enc.Encrypt(number)
	require.NoError(t, err)
	return domain.Payment{
		ID:                  uuid.New(),
		CourseID:            uuid.New(),
		StudentID:           uuid.New(),
		Value:               value,
		EncryptedCardNumber: encrypted,
		CardNumberLast4:     domain.LastFour(number),
	}
}

func newEncrypter(t *testing.T) *security.EncryptionService {
	t.Helper()
	enc, err := security.NewEncryptionService(security.KeyMaterial("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func TestCreditCardFacade_MakePayment_UsesDecryptedCard(t *testing.T) {
	// --- Arrange ---
	enc := newEncrypter(t)
	gw := new(MockGateway)
	facade := NewCreditCardFacade(gw, enc, Settings{APIKey: "api", EncryptionKey: "enc"}, discardLogger())
	payment := encryptedPayment(t, enc, "4532015112830366", 150)
	ctx := context.Background()

	gw.On("GetServiceKey", "api", "enc").Return("service", nil)
	gw.On("GetCardHashKey", "service", "4532015112830366").Return("hash", nil)
	gw.On("CommitTransaction", ctx, "hash", payment.CourseID.String(), 150.0).
		Return(domain.Transaction{ID: uuid.New(), Status: domain.StatusAccept, Total: 150}, nil)

	// --- Act ---
	tx, err := facade.MakePayment(ctx, payment)

	// --- Assert ---
	require.NoError(t, err)
	assert.True(t, tx.Accepted())
	assert.Equal(t, payment.ID, tx.PaymentID)
	gw.AssertExpectations(t)
}

func TestCreditCardFacade_MakePayment_ProtocolFailureDeclines(t *testing.T) {
	enc := newEncrypter(t)
	gw := new(MockGateway)
	facade := NewCreditCardFacade(gw, enc, Settings{APIKey: "api", EncryptionKey: "enc"}, discardLogger())
	payment := encryptedPayment(t, enc, "4532015112830366", 150)

	gw.On("GetServiceKey", "api", "enc").Return("service", nil)
	gw.On("GetCardHashKey", "service", "4532015112830366").Return("", errors.New("card blocked"))

	tx, err := facade.MakePayment(context.Background(), payment)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, tx.Status)
	assert.Equal(t, payment.ID, tx.PaymentID)
	gw.AssertNotCalled(t, "CommitTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreditCardFacade_MakePayment_GatewayUnavailable(t *testing.T) {
	enc := newEncrypter(t)
	gw := new(MockGateway)
	facade := NewCreditCardFacade(gw, enc, Settings{APIKey: "api", EncryptionKey: "enc"}, discardLogger())
	payment := encryptedPayment(t, enc, "4532015112830366", 150)

	gw.On("GetServiceKey", "api", "enc").Return("service", nil)
	gw.On("GetCardHashKey", "service", "4532015112830366").Return("hash", nil)
	gw.On("CommitTransaction", mock.Anything, "hash", payment.CourseID.String(), 150.0).
		Return(domain.Transaction{}, domain.ErrGatewayUnavailable)

	_, err := facade.MakePayment(context.Background(), payment)

	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestCreditCardFacade_MakePayment_UndecryptableCard(t *testing.T) {
	gw := new(MockGateway)
	facade := NewCreditCardFacade(gw, newEncrypter(t), Settings{}, discardLogger())
	payment := domain.Payment{ID: uuid.New(), EncryptedCardNumber: "bm90LWEtcmVhbC1jaXBoZXJ0ZXh0LWF0LWFsbA=="}

	_, err := facade.MakePayment(context.Background(), payment)

	assert.ErrorIs(t, err, domain.ErrDecryption)
	assert.NotContains(t, err.Error(), "4532")
	gw.AssertNotCalled(t, "GetServiceKey", mock.Anything, mock.Anything)
}

func TestSimulatedGateway(t *testing.T) {
	gw := NewSimulatedGateway(1000, []string{"0002"})
	ctx := context.Background()

	serviceKey, err := gw.GetServiceKey("api", "enc")
	require.NoError(t, err)
	again, err := gw.GetServiceKey("api", "enc")
	require.NoError(t, err)
	assert.Equal(t, serviceKey, again)

	t.Run("accepts", func(t *testing.T) {
		hash, err := gw.GetCardHashKey(serviceKey, "4532015112830366")
		require.NoError(t, err)
		assert.NotContains(t, hash, "4532015112830366")

		tx, err := gw.CommitTransaction(ctx, hash, "course", 100)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAccept, tx.Status)
	})

	t.Run("declines above limit", func(t *testing.T) {
		hash, err := gw.GetCardHashKey(serviceKey, "4532015112830366")
		require.NoError(t, err)

		tx, err := gw.CommitTransaction(ctx, hash, "course", 1000.01)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDeclined, tx.Status)
	})

	t.Run("declines listed suffix", func(t *testing.T) {
		hash, err := gw.GetCardHashKey(serviceKey, "4000000000000002")
		require.NoError(t, err)

		tx, err := gw.CommitTransaction(ctx, hash, "course", 10)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDeclined, tx.Status)
	})

	t.Run("same declined card paid concurrently", func(t *testing.T) {
		first, err := gw.GetCardHashKey(serviceKey, "4000000000000002")
		require.NoError(t, err)
		second, err := gw.GetCardHashKey(serviceKey, "4000000000000002")
		require.NoError(t, err)

		var wg sync.WaitGroup
		statuses := make([]domain.TransactionStatus, 2)
		for i, hash := range []string{first, second} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tx, err := gw.CommitTransaction(ctx, hash, "course", 10)
				assert.NoError(t, err)
				statuses[i] = tx.Status
			}()
		}
		wg.Wait()

		assert.Equal(t, []domain.TransactionStatus{domain.StatusDeclined, domain.StatusDeclined}, statuses)
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := gw.GetServiceKey("", "enc")
		assert.Error(t, err)
	})

	t.Run("cancelled context is unavailable", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := gw.CommitTransaction(cancelled, "hash", "course", 10)
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	})
}
