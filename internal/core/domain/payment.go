package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState tracks a payment through the workflow. Only Settled payments are persisted.
type PaymentState string

const (
	PaymentReceived   PaymentState = "RECEIVED"
	PaymentValidated  PaymentState = "VALIDATED"
	PaymentAuthorized PaymentState = "AUTHORIZED"
	PaymentSettled    PaymentState = "SETTLED"
	PaymentDeclined   PaymentState = "DECLINED"
	PaymentRejected   PaymentState = "REJECTED"
)

// Payment is the aggregate root of a course purchase. Card fields hold ciphertext only.
type Payment struct {
	ID                          uuid.UUID
	CourseID                    uuid.UUID
	StudentID                   uuid.UUID
	Value                       float64
	CardName                    string
	EncryptedCardNumber         string
	EncryptedCardExpirationDate string
	EncryptedCardCVV            string
	CardNumberLast4             string
	Transaction                 *Transaction
	CreatedAt                   time.Time
}

// PaymentCourse is the plaintext input of the payment workflow.
type PaymentCourse struct {
	CourseID           uuid.UUID
	StudentID          uuid.UUID
	CardName           string
	CardNumber         string
	CardExpirationDate string
	CardCVV            string
	Total              float64
}

// LastFour returns the trailing four characters used for display.
func LastFour(cardNumber string) string {
	if len(cardNumber) >= 4 {
		return cardNumber[len(cardNumber)-4:]
	}
	return cardNumber
}
