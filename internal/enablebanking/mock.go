package enablebanking

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of Provider for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	ListInstitutionsFn       func(ctx context.Context, country string) ([]Institution, error)
	ListSupportedCountriesFn func(ctx context.Context) ([]Country, error)
	CreateAuthorizationFn    func(ctx context.Context, req AuthorizationRequest) (*AuthorizationResponse, error)
	ExchangeCodeFn           func(ctx context.Context, code string) (*Session, error)
	GetBalancesFn            func(ctx context.Context, accountUID string) ([]Balance, error)
	GetTransactionsFn        func(ctx context.Context, accountUID string, q TransactionQuery) ([]Transaction, error)

	// Call tracking
	CreateAuthorizationCalls []AuthorizationRequest
	ExchangeCodeCalls        []string
	GetBalancesCalls         []string
	GetTransactionsCalls     []GetTransactionsCall
	ListInstitutionsCalls    int

	mu sync.Mutex
}

// GetTransactionsCall records the parameters of a GetTransactions call.
type GetTransactionsCall struct {
	Query      TransactionQuery
	AccountUID string
}

// NewMockClient creates a new mock provider.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// ListInstitutions implements Directory.ListInstitutions.
func (m *MockClient) ListInstitutions(ctx context.Context, country string) ([]Institution, error) {
	m.mu.Lock()
	m.ListInstitutionsCalls++
	m.mu.Unlock()

	if m.ListInstitutionsFn != nil {
		return m.ListInstitutionsFn(ctx, country)
	}
	return []Institution{}, nil
}

// ListSupportedCountries implements Directory.ListSupportedCountries.
func (m *MockClient) ListSupportedCountries(ctx context.Context) ([]Country, error) {
	if m.ListSupportedCountriesFn != nil {
		return m.ListSupportedCountriesFn(ctx)
	}
	return []Country{}, nil
}

// CreateAuthorization implements Authorizer.CreateAuthorization.
func (m *MockClient) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*AuthorizationResponse, error) {
	m.mu.Lock()
	m.CreateAuthorizationCalls = append(m.CreateAuthorizationCalls, req)
	m.mu.Unlock()

	if m.CreateAuthorizationFn != nil {
		return m.CreateAuthorizationFn(ctx, req)
	}
	return &AuthorizationResponse{URL: "https://bank.example/authorize?state=" + req.State}, nil
}

// ExchangeCode implements Authorizer.ExchangeCode.
func (m *MockClient) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	m.mu.Lock()
	m.ExchangeCodeCalls = append(m.ExchangeCodeCalls, code)
	m.mu.Unlock()

	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, code)
	}
	return &Session{SessionID: "session-" + code}, nil
}

// GetBalances implements AccountFetcher.GetBalances.
func (m *MockClient) GetBalances(ctx context.Context, accountUID string) ([]Balance, error) {
	m.mu.Lock()
	m.GetBalancesCalls = append(m.GetBalancesCalls, accountUID)
	m.mu.Unlock()

	if m.GetBalancesFn != nil {
		return m.GetBalancesFn(ctx, accountUID)
	}
	return []Balance{}, nil
}

// GetTransactions implements AccountFetcher.GetTransactions.
func (m *MockClient) GetTransactions(ctx context.Context, accountUID string, q TransactionQuery) ([]Transaction, error) {
	m.mu.Lock()
	m.GetTransactionsCalls = append(m.GetTransactionsCalls, GetTransactionsCall{AccountUID: accountUID, Query: q})
	m.mu.Unlock()

	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, accountUID, q)
	}
	return []Transaction{}, nil
}

// TransactionCalls returns a snapshot of recorded GetTransactions calls.
func (m *MockClient) TransactionCalls() []GetTransactionsCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GetTransactionsCall(nil), m.GetTransactionsCalls...)
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateAuthorizationCalls = nil
	m.ExchangeCodeCalls = nil
	m.GetBalancesCalls = nil
	m.GetTransactionsCalls = nil
	m.ListInstitutionsCalls = 0
}

// Ensure MockClient implements Provider interface.
var _ Provider = (*MockClient)(nil)
