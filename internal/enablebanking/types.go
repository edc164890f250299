package enablebanking

import (
	"strings"

	"github.com/Veraticus/ledgersync/internal/model"
)

// Institution is an ASPSP (bank) the application can connect to.
type Institution struct {
	Name                   string       `json:"name" validate:"required"`
	Country                string       `json:"country" validate:"required,len=2"`
	Logo                   string       `json:"logo,omitempty"`
	BIC                    string       `json:"bic,omitempty"`
	PSUTypes               []string     `json:"psu_types,omitempty"`
	AuthMethods            []AuthMethod `json:"auth_methods,omitempty" validate:"dive"`
	MaximumConsentValidity int64        `json:"maximum_consent_validity,omitempty"`
	Beta                   bool         `json:"beta,omitempty"`
}

// MaxConsentDays converts the institution's consent limit, given in
// seconds, to whole days.
func (i Institution) MaxConsentDays() int {
	return int(i.MaximumConsentValidity / 86400)
}

// AuthMethod is one way a PSU can authenticate at an institution.
type AuthMethod struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	PSUType  string `json:"psu_type,omitempty"`
	Approach string `json:"approach,omitempty"`
}

// Country is a supported country with its English display name.
type Country struct {
	Name string
	Code string
}

// ASPSP identifies the institution an authorization is for.
type ASPSP struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Access describes the requested consent.
type Access struct {
	ValidUntil string `json:"valid_until"`
}

// AuthorizationRequest is the body of POST /auth.
type AuthorizationRequest struct {
	ASPSP       ASPSP  `json:"aspsp"`
	Access      Access `json:"access"`
	RedirectURL string `json:"redirect_url"`
	PSUType     string `json:"psu_type"`
	State       string `json:"state"`
	AuthMethod  string `json:"auth_method,omitempty"`
}

// AuthorizationResponse carries the bank URL the user is sent to.
type AuthorizationResponse struct {
	URL             string `json:"url" validate:"required,url"`
	AuthorizationID string `json:"authorization_id,omitempty"`
}

// AccountIdentification holds the account's scheme identifiers.
type AccountIdentification struct {
	IBAN string `json:"iban,omitempty"`
}

// SessionAccount is an account granted in a session.
type SessionAccount struct {
	AccountID       AccountIdentification `json:"account_id"`
	UID             string                `json:"uid" validate:"required"`
	Name            string                `json:"name,omitempty"`
	Currency        string                `json:"currency,omitempty"`
	CashAccountType string                `json:"cash_account_type,omitempty"`
}

// Session is the result of exchanging an authorization code.
type Session struct {
	SessionID string           `json:"session_id" validate:"required"`
	Accounts  []SessionAccount `json:"accounts" validate:"dive"`
}

// Summaries converts the granted accounts for the selection step.
func (s *Session) Summaries() []model.AccountSummary {
	out := make([]model.AccountSummary, 0, len(s.Accounts))
	for _, acc := range s.Accounts {
		out = append(out, model.AccountSummary{
			UID:             acc.UID,
			Name:            acc.Name,
			IBAN:            acc.AccountID.IBAN,
			Currency:        acc.Currency,
			CashAccountType: acc.CashAccountType,
		})
	}
	return out
}

// Amount is a decimal string with its currency.
type Amount struct {
	Currency string `json:"currency" validate:"required,len=3"`
	Amount   string `json:"amount" validate:"required,numeric"`
}

// Balance is one balance figure reported for an account.
type Balance struct {
	BalanceAmount Amount `json:"balance_amount"`
	Name          string `json:"name,omitempty"`
	BalanceType   string `json:"balance_type,omitempty"`
	Status        string `json:"status,omitempty"`
	ReferenceDate string `json:"reference_date,omitempty"`
}

// Balance statuses and types treated as booked.
const (
	BalanceStatusBooked      = "BOOK"
	BalanceTypeClosingBooked = "CLBD"
	BalanceTypeInterimBooked = "ITBD"
)

// Booked reports whether the balance reflects booked entries only.
func (b Balance) Booked() bool {
	if b.Status != "" {
		return b.Status == BalanceStatusBooked
	}
	switch b.BalanceType {
	case BalanceTypeClosingBooked, BalanceTypeInterimBooked:
		return true
	default:
		return false
	}
}

// Credit/debit indicators.
const (
	Credit = "CRDT"
	Debit  = "DBIT"
)

// Transaction is one entry of an account's transaction list.
type Transaction struct {
	TransactionAmount     Amount   `json:"transaction_amount"`
	EntryReference        string   `json:"entry_reference,omitempty"`
	TransactionID         string   `json:"transaction_id,omitempty"`
	CreditDebitIndicator  string   `json:"credit_debit_indicator,omitempty" validate:"omitempty,oneof=CRDT DBIT"`
	Status                string   `json:"status,omitempty"`
	BookingDate           string   `json:"booking_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ValueDate             string   `json:"value_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TransactionDate       string   `json:"transaction_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	RemittanceInformation []string `json:"remittance_information,omitempty"`
}

// Description joins the remittance lines with single spaces.
func (t Transaction) Description() string {
	return strings.Join(t.RemittanceInformation, " ")
}

type institutionsResponse struct {
	ASPSPs []Institution `json:"aspsps" validate:"dive"`
}

type applicationResponse struct {
	Name      string   `json:"name,omitempty"`
	Countries []string `json:"countries" validate:"dive,len=2"`
}

type sessionRequest struct {
	Code string `json:"code"`
}

type balancesResponse struct {
	Balances []Balance `json:"balances" validate:"dive"`
}

type transactionsResponse struct {
	ContinuationKey string        `json:"continuation_key,omitempty"`
	Transactions    []Transaction `json:"transactions" validate:"dive"`
}
