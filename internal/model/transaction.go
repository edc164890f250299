package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// LedgerTransaction is a booked or pending movement on a linked account.
// (AccountID, ExternalID) is unique; reconciliation never inserts it twice.
type LedgerTransaction struct {
	BookingDate time.Time
	CreatedAt   time.Time
	Amount      Money
	ID          string
	AccountID   string
	ExternalID  string
	Description string
	Status      string
}

// GenerateExternalID derives a stable reference for transactions the bank
// did not give one to.
func GenerateExternalID(bookingDate time.Time, amount Money, description string) string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		bookingDate.Format("2006-01-02"),
		amount.Amount.String(),
		amount.Currency,
		description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("gen-%x", hash[:16])
}
