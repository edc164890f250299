package consent

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/Veraticus/ledgersync/internal/selection"
)

// CallbackParams are the query parameters the bank redirects back with.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallbackURL extracts callback parameters from a full redirect URL.
func ParseCallbackURL(raw string) (CallbackParams, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return CallbackParams{}, fmt.Errorf("%w: invalid callback URL: %w", common.ErrValidation, err)
	}
	q := u.Query()
	return CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}, nil
}

// Exchange turns an authorization code into a session and parks the
// granted accounts in the selection cache.
type Exchange struct {
	provider enablebanking.Authorizer
	cache    selection.Cache
	logger   *slog.Logger
	now      func() time.Time
}

// NewExchange creates an Exchange.
func NewExchange(provider enablebanking.Authorizer, cache selection.Cache) *Exchange {
	return &Exchange{
		provider: provider,
		cache:    cache,
		logger:   common.Component("consent"),
		now:      time.Now,
	}
}

// Complete exchanges code for a session.
func (e *Exchange) Complete(ctx context.Context, code string) (*enablebanking.Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: authorization code is empty", common.ErrValidation)
	}

	session, err := e.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSessionFailed, err)
	}
	return session, nil
}

// CompleteCallback handles the user's return from the bank. It checks the
// state against the stored consent and its expiry, creates the session and caches the
// account list, returning the key the selection is held under.
func (e *Exchange) CompleteCallback(ctx context.Context, params CallbackParams, stored model.ConsentRequest) (string, *model.PendingSelection, error) {
	if !ValidateState(params.State, stored.RequestID) {
		return "", nil, common.ErrInvalidState
	}
	if stored.Expired(e.now()) {
		return "", nil, fmt.Errorf("%w: consent expired at %s", common.ErrInvalidState, stored.ExpiresAt.Format(time.RFC3339))
	}

	if params.Code == "" {
		reason := params.Error
		if params.ErrorDescription != "" {
			reason = strings.TrimSpace(reason + ": " + params.ErrorDescription)
		}
		if reason == "" {
			reason = "no authorization code returned"
		}
		e.logger.Warn("Authorization denied", "institution", stored.InstitutionName, "reason", reason)
		return "", nil, fmt.Errorf("%w: %s", common.ErrAuthorizationDenied, reason)
	}

	session, err := e.Complete(ctx, params.Code)
	if err != nil {
		return "", nil, err
	}

	pending := model.PendingSelection{
		SessionID:       session.SessionID,
		InstitutionName: stored.InstitutionName,
		Accounts:        session.Summaries(),
		CreatedAt:       e.now().UTC(),
	}

	key, err := e.cache.Put(ctx, pending)
	if err != nil {
		return "", nil, err
	}

	e.logger.Info("Session created",
		"institution", stored.InstitutionName,
		"accounts", len(pending.Accounts))

	return key, &pending, nil
}
