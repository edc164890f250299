package enablebanking

import "context"

// Directory lists what the application can connect to.
type Directory interface {
	ListInstitutions(ctx context.Context, country string) ([]Institution, error)
	ListSupportedCountries(ctx context.Context) ([]Country, error)
}

// Authorizer drives the consent handshake.
type Authorizer interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*AuthorizationResponse, error)
	ExchangeCode(ctx context.Context, code string) (*Session, error)
}

// AccountFetcher reads account data under an existing session.
type AccountFetcher interface {
	GetBalances(ctx context.Context, accountUID string) ([]Balance, error)
	GetTransactions(ctx context.Context, accountUID string, q TransactionQuery) ([]Transaction, error)
}

// Provider is the full API surface.
type Provider interface {
	Directory
	Authorizer
	AccountFetcher
}

var _ Provider = (*Client)(nil)
