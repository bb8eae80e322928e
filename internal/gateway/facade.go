// Package gateway translates internal payments into the card processor protocol.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
)

// Settings carries the credentials the facade presents to the gateway.
type Settings struct {
	APIKey        string
	EncryptionKey string
}

// CreditCardFacade is the anti-corruption layer in front of ports.CardGateway.
type CreditCardFacade struct {
	gateway   ports.CardGateway
	encrypter ports.Encrypter
	settings  Settings
	logger    *slog.Logger
}

func NewCreditCardFacade(gw ports.CardGateway, encrypter ports.Encrypter, settings Settings, logger *slog.Logger) *CreditCardFacade {
	return &CreditCardFacade{
		gateway:   gw,
		encrypter: encrypter,
		settings:  settings,
		logger:    logger,
	}
}

// MakePayment decrypts the card number for the duration of the call only.
// Protocol refusals come back as a declined transaction; an unreachable gateway
// or an undecryptable payment is an error.
func (f *CreditCardFacade) MakePayment(ctx context.Context, payment domain.Payment) (domain.Transaction, error) {
	cardNumber, err := f.encrypter.Decrypt(payment.EncryptedCardNumber)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("payment %s: %w", payment.ID, err)
	}

	tx, err := f.commit(ctx, payment, cardNumber)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			return domain.Transaction{}, err
		}
		f.logger.Warn("gateway refused payment", "payment_id", payment.ID, "error", err)
		tx = domain.Transaction{ID: uuid.New(), Status: domain.StatusDeclined, Total: payment.Value}
	}

	tx.PaymentID = payment.ID
	return tx, nil
}

func (f *CreditCardFacade) commit(ctx context.Context, payment domain.Payment, cardNumber string) (domain.Transaction, error) {
	serviceKey, err := f.gateway.GetServiceKey(f.settings.APIKey, f.settings.EncryptionKey)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("service key: %w", err)
	}
	cardHashKey, err := f.gateway.GetCardHashKey(serviceKey, cardNumber)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("card hash: %w", err)
	}
	return f.gateway.CommitTransaction(ctx, cardHashKey, payment.CourseID.String(), payment.Value)
}
