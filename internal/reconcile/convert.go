package reconcile

import (
	"fmt"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/model"
)

const dateLayout = "2006-01-02"

// BookedBalance returns the first booked balance, or nil when the bank
// reported none.
func BookedBalance(balances []enablebanking.Balance) (*model.Money, error) {
	for _, b := range balances {
		if !b.Booked() {
			continue
		}
		m, err := model.NewMoney(b.BalanceAmount.Amount, b.BalanceAmount.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: balance: %w", common.ErrMalformedResponse, err)
		}
		return &m, nil
	}
	return nil, nil
}

// ToLedger converts a provider transaction. Debits become negative amounts.
func ToLedger(accountID string, t enablebanking.Transaction) (model.LedgerTransaction, error) {
	amount, err := model.NewMoney(t.TransactionAmount.Amount, t.TransactionAmount.Currency)
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("%w: transaction amount: %w", common.ErrMalformedResponse, err)
	}
	switch t.CreditDebitIndicator {
	case enablebanking.Debit:
		if amount.Amount.IsPositive() {
			amount = amount.Neg()
		}
	case enablebanking.Credit:
		amount.Amount = amount.Amount.Abs()
	}

	var booked time.Time
	for _, raw := range []string{t.BookingDate, t.ValueDate, t.TransactionDate} {
		if raw == "" {
			continue
		}
		booked, err = time.Parse(dateLayout, raw)
		if err != nil {
			return model.LedgerTransaction{}, fmt.Errorf("%w: transaction date %q: %w", common.ErrMalformedResponse, raw, err)
		}
		break
	}

	description := t.Description()

	externalID := t.EntryReference
	if externalID == "" {
		externalID = t.TransactionID
	}
	if externalID == "" {
		externalID = model.GenerateExternalID(booked, amount, description)
	}

	return model.LedgerTransaction{
		AccountID:   accountID,
		ExternalID:  externalID,
		Amount:      amount,
		Description: description,
		BookingDate: booked,
		Status:      t.Status,
	}, nil
}
