package model

import "time"

// MaxConsentValidity is the longest access period the provider grants.
const MaxConsentValidity = 90 * 24 * time.Hour

const maxConsentDays = int(MaxConsentValidity / (24 * time.Hour))

// ConsentRequest is one authorization attempt. RequestID doubles as the
// state token echoed back on the callback; it is consumed exactly once.
type ConsentRequest struct {
	CreatedAt           time.Time
	ExpiresAt           time.Time
	RequestID           string
	InstitutionID       string
	InstitutionName     string
	InstitutionCountry  string
	PSUType             string
	AuthMethod          string
	ConsentValidityDays int
}

// ConsentExpiry caps the requested validity at MaxConsentValidity.
// Zero or negative days mean "as long as allowed".
func ConsentExpiry(createdAt time.Time, validityDays int) time.Time {
	limit := createdAt.Add(MaxConsentValidity)
	if validityDays <= 0 || validityDays >= maxConsentDays {
		return limit
	}
	requested := createdAt.AddDate(0, 0, validityDays)
	if requested.Before(limit) {
		return requested
	}
	return limit
}

// Expired reports whether the consent can no longer be completed.
func (c *ConsentRequest) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// AccountSummary is what the provider returns for an account during the
// session exchange, before the user picks which ones to link.
type AccountSummary struct {
	UID             string `json:"uid"`
	Name            string `json:"name,omitempty"`
	IBAN            string `json:"iban,omitempty"`
	Currency        string `json:"currency,omitempty"`
	CashAccountType string `json:"cash_account_type,omitempty"`
}

// PendingSelection holds a fetched account list while the user chooses.
type PendingSelection struct {
	CreatedAt       time.Time        `json:"created_at"`
	SessionID       string           `json:"session_id"`
	InstitutionName string           `json:"institution_name"`
	Accounts        []AccountSummary `json:"accounts"`
}

// Find returns the summary with the given uid.
func (p *PendingSelection) Find(uid string) (AccountSummary, bool) {
	for _, acc := range p.Accounts {
		if acc.UID == uid {
			return acc, true
		}
	}
	return AccountSummary{}, false
}

// SchedulerState is the persisted cadence of a recurring job.
type SchedulerState struct {
	NextRunAt time.Time
	LastRunAt *time.Time
	Name      string
}
