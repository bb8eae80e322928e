// Package cardvalidation checks credit card data before it reaches the gateway.
package cardvalidation

import (
	"strconv"
	"strings"
	"time"
)

const (
	MsgHolderRequired    = "Cardholder name is required"
	MsgInvalidNumber     = "Card number is invalid"
	MsgInvalidExpiration = "Card expiration date is invalid or expired"
	MsgInvalidCVV        = "Card CVV is invalid"
)

// Result collects every failed check of a card.
type Result struct {
	Errors []string
}

// IsValid reports whether no check failed.
func (r Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator holds the clock used by the expiration rule.
type Validator struct {
	now func() time.Time
}

func New() *Validator {
	return &Validator{now: time.Now}
}

// WithClock overrides the current time source.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// ValidateCard runs all four checks; none of them short-circuits the others.
func (v *Validator) ValidateCard(cardNumber, expirationDate, cvv, cardName string) Result {
	var result Result

	if strings.TrimSpace(cardName) == "" {
		result.Errors = append(result.Errors, MsgHolderRequired)
	}
	if !v.ValidateCardNumber(cardNumber) {
		result.Errors = append(result.Errors, MsgInvalidNumber)
	}
	if !v.ValidateExpirationDate(expirationDate) {
		result.Errors = append(result.Errors, MsgInvalidExpiration)
	}
	if !v.ValidateCVV(cvv) {
		result.Errors = append(result.Errors, MsgInvalidCVV)
	}

	return result
}

// ValidateCardNumber validates a card number using the Luhn algorithm.
func (v *Validator) ValidateCardNumber(cardNumber string) bool {
	cardNumber = Normalize(cardNumber)
	if len(cardNumber) < 13 || len(cardNumber) > 19 {
		return false
	}
	if !allDigits(cardNumber) {
		return false
	}

	sum := 0
	isSecond := false

	// Process digits from right to left
	for i := len(cardNumber) - 1; i >= 0; i-- {
		digit := int(cardNumber[i] - '0')

		if isSecond {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		isSecond = !isSecond
	}

	return sum%10 == 0
}

// ValidateExpirationDate accepts MM/YY dates whose month has not ended yet.
// A two-digit year below the current one is read as the next century.
func (v *Validator) ValidateExpirationDate(expirationDate string) bool {
	parts := strings.Split(strings.TrimSpace(expirationDate), "/")
	if len(parts) != 2 {
		return false
	}

	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || year < 0 || year > 99 {
		return false
	}

	now := v.now().UTC()
	currentTwoDigitYear := now.Year() % 100
	century := now.Year() - currentTwoDigitYear

	fullYear := century + year
	if year < currentTwoDigitYear {
		fullYear += 100
	}

	// Last second of the month: day 0 of the next month is the last day of this one.
	expiry := time.Date(fullYear, time.Month(month)+1, 0, 23, 59, 59, 0, time.UTC)

	return expiry.After(now)
}

// ValidateCVV accepts 3 or 4 digits.
func (v *Validator) ValidateCVV(cvv string) bool {
	return len(cvv) >= 3 && len(cvv) <= 4 && allDigits(cvv)
}

// Normalize strips the separators users type between digit groups.
func Normalize(cardNumber string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(cardNumber)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
