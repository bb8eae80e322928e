package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"academy-platform/internal/core/domain"
)

// declinedPrefix marks a card hash key whose card matched a decline rule.
const declinedPrefix = "d."

// SimulatedGateway is an in-process card processor used outside production.
// Card numbers never leave it: only their keyed hash reaches CommitTransaction.
// It keeps no state between calls.
type SimulatedGateway struct {
	declineAbove     float64
	declinedSuffixes []string
}

func NewSimulatedGateway(declineAbove float64, declinedSuffixes []string) *SimulatedGateway {
	return &SimulatedGateway{
		declineAbove:     declineAbove,
		declinedSuffixes: declinedSuffixes,
	}
}

// GetServiceKey derives the merchant session key from the API credentials.
func (g *SimulatedGateway) GetServiceKey(apiKey, encryptionKey string) (string, error) {
	if apiKey == "" || encryptionKey == "" {
		return "", errors.New("gateway credentials are required")
	}

	reader := hkdf.New(sha256.New, []byte(apiKey), []byte(encryptionKey), []byte("academy-card-gateway"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return "", fmt.Errorf("derive service key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// GetCardHashKey binds the card to the service key. Cards matching a declined
// suffix get a hash key carrying the decline.
func (g *SimulatedGateway) GetCardHashKey(serviceKey, cardNumber string) (string, error) {
	if serviceKey == "" || cardNumber == "" {
		return "", errors.New("service key and card number are required")
	}

	mac := hmac.New(sha256.New, []byte(serviceKey))
	mac.Write([]byte(cardNumber))
	hash := hex.EncodeToString(mac.Sum(nil))

	for _, suffix := range g.declinedSuffixes {
		if suffix != "" && strings.HasSuffix(cardNumber, suffix) {
			return declinedPrefix + hash, nil
		}
	}
	return hash, nil
}

// CommitTransaction authorizes the amount unless a decline rule matches.
func (g *SimulatedGateway) CommitTransaction(ctx context.Context, cardHashKey, reference string, amount float64) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if cardHashKey == "" || reference == "" {
		return domain.Transaction{}, domain.ErrCardRefused
	}

	status := domain.StatusAccept
	if strings.HasPrefix(cardHashKey, declinedPrefix) || (g.declineAbove > 0 && amount > g.declineAbove) {
		status = domain.StatusDeclined
	}

	return domain.Transaction{ID: uuid.New(), Status: status, Total: amount}, nil
}
