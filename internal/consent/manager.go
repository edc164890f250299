// Package consent drives the authorization handshake with the bank: it
// issues consent requests, checks the callback state, and exchanges the
// returned code for a session.
package consent

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// InitiateRequest is what the user picked before being sent to the bank.
type InitiateRequest struct {
	InstitutionID          string
	InstitutionName        string `validate:"required"`
	InstitutionCountry     string `validate:"required,len=2,alpha"`
	PSUType                string `validate:"required,oneof=personal business"`
	AuthMethod             string
	MaxConsentValidityDays int
}

// Initiation is the outcome of a successful Initiate. Consent must be
// stored by the caller until the callback arrives.
type Initiation struct {
	Consent     model.ConsentRequest
	RedirectURL string
	State       string
}

// Manager issues consent requests.
type Manager struct {
	provider    enablebanking.Authorizer
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
	newState    func() string
	redirectURL string
}

// NewManager creates a manager that sends users back to redirectURL.
func NewManager(provider enablebanking.Authorizer, redirectURL string) (*Manager, error) {
	u, err := url.Parse(redirectURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: redirect URL must be an absolute http(s) URL: %q", common.ErrConfiguration, redirectURL)
	}

	return &Manager{
		provider:    provider,
		validate:    validator.New(),
		logger:      common.Component("consent"),
		now:         time.Now,
		newState:    uuid.NewString,
		redirectURL: redirectURL,
	}, nil
}

// Initiate creates a consent request and asks the bank for an
// authorization URL. Nothing is returned unless the bank accepted it.
func (m *Manager) Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	now := m.now().UTC()
	state := m.newState()
	consent := model.ConsentRequest{
		RequestID:           state,
		InstitutionID:       req.InstitutionID,
		InstitutionName:     req.InstitutionName,
		InstitutionCountry:  req.InstitutionCountry,
		PSUType:             req.PSUType,
		AuthMethod:          req.AuthMethod,
		ConsentValidityDays: req.MaxConsentValidityDays,
		CreatedAt:           now,
		ExpiresAt:           model.ConsentExpiry(now, req.MaxConsentValidityDays),
	}

	resp, err := m.provider.CreateAuthorization(ctx, enablebanking.AuthorizationRequest{
		ASPSP: enablebanking.ASPSP{
			Name:    req.InstitutionName,
			Country: req.InstitutionCountry,
		},
		Access: enablebanking.Access{
			ValidUntil: consent.ExpiresAt.Format(time.RFC3339),
		},
		RedirectURL: m.redirectURL,
		PSUType:     req.PSUType,
		State:       state,
		AuthMethod:  req.AuthMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrAuthorizationFailed, err)
	}

	m.logger.Info("Authorization started",
		"institution", req.InstitutionName,
		"country", req.InstitutionCountry,
		"expires_at", consent.ExpiresAt)

	return &Initiation{
		Consent:     consent,
		RedirectURL: resp.URL,
		State:       state,
	}, nil
}

// ValidateState reports whether the callback state matches the stored one.
// An empty value on either side never matches.
func ValidateState(got, stored string) bool {
	if got == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(stored)) == 1
}
