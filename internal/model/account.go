// Package model defines the core domain models used throughout the application.
package model

import (
	"time"
)

// ProviderEnableBanking tags accounts linked through Enable Banking.
const ProviderEnableBanking = "enable_banking"

// AccountTypeBank is the account type given to every imported bank account.
const AccountTypeBank = "bank"

// LinkedAccount is a bank account mirrored from the provider into the ledger.
// (Provider, ExternalID) identifies it; linking is an upsert on that pair.
type LinkedAccount struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSyncedAt    *time.Time
	Balance         Money
	ID              string
	Provider        string
	ExternalID      string
	Name            string
	InstitutionName string
	AccountType     string
}

// SyncWindowStart returns where the next incremental sync should begin.
func (a *LinkedAccount) SyncWindowStart(now time.Time, lookback time.Duration) time.Time {
	if a.LastSyncedAt != nil && !a.LastSyncedAt.IsZero() {
		return *a.LastSyncedAt
	}
	return now.Add(-lookback)
}
