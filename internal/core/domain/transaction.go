package domain

import (
	"github.com/google/uuid"
)

// TransactionStatus is the gateway verdict on a payment.
type TransactionStatus string

const (
	StatusAccept   TransactionStatus = "ACCEPT"
	StatusDeclined TransactionStatus = "DECLINED"
)

// Transaction is produced by the card gateway and never changes afterwards.
type Transaction struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Status    TransactionStatus
	Total     float64
}

// Accepted reports whether the gateway authorized the funds.
func (t Transaction) Accepted() bool {
	return t.Status == StatusAccept
}
