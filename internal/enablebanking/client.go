// Package enablebanking provides a client for the Enable Banking open banking API.
package enablebanking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultBaseURL is the production API endpoint. Sandbox applications use
// the same host; the application id decides the environment.
const DefaultBaseURL = "https://api.enablebanking.com"

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 10 << 20
	maxPages         = 100
	dateLayout       = "2006-01-02"
	strategyLongest  = "longest"
)

// Config configures a Client.
type Config struct {
	HTTPClient     *http.Client
	BaseURL        string
	AppID          string
	PrivateKey     []byte
	Timeout        time.Duration
	SendAuthMethod bool
}

// Client talks to the Enable Banking REST API.
type Client struct {
	httpClient     *http.Client
	signer         *Signer
	baseURL        *url.URL
	validate       *validator.Validate
	logger         *slog.Logger
	sendAuthMethod bool
}

// NewClient creates a client. The private key is parsed eagerly so a bad
// key is reported at startup rather than on the first request.
func NewClient(cfg Config) (*Client, error) {
	signer, err := NewSigner(cfg.AppID, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rawURL := cfg.BaseURL
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", common.ErrConfiguration, rawURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient:     httpClient,
		signer:         signer,
		baseURL:        baseURL,
		validate:       validator.New(),
		logger:         common.Component("enablebanking"),
		sendAuthMethod: cfg.SendAuthMethod,
	}, nil
}

// ListInstitutions returns the banks available in a country.
func (c *Client) ListInstitutions(ctx context.Context, country string) ([]Institution, error) {
	query := url.Values{}
	if country != "" {
		query.Set("country", country)
	}

	var resp institutionsResponse
	if err := c.do(ctx, "list institutions", http.MethodGet, []string{"aspsps"}, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ASPSPs, nil
}

// ListSupportedCountries returns the countries enabled for this application,
// named in English.
func (c *Client) ListSupportedCountries(ctx context.Context) ([]Country, error) {
	var resp applicationResponse
	if err := c.do(ctx, "get application", http.MethodGet, []string{"application"}, nil, nil, &resp); err != nil {
		return nil, err
	}

	namer := display.English.Regions()
	countries := make([]Country, 0, len(resp.Countries))
	for _, code := range resp.Countries {
		name := code
		if region, err := language.ParseRegion(code); err == nil {
			if n := namer.Name(region); n != "" {
				name = n
			}
		}
		countries = append(countries, Country{Name: name, Code: code})
	}
	return countries, nil
}

// CreateAuthorization starts a consent at the bank and returns where to
// send the user. The auth method is only forwarded when enabled in config.
func (c *Client) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*AuthorizationResponse, error) {
	if !c.sendAuthMethod {
		req.AuthMethod = ""
	}

	var resp AuthorizationResponse
	if err := c.do(ctx, "create authorization", http.MethodPost, []string{"auth"}, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangeCode turns the callback code into a session.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	var resp Session
	if err := c.do(ctx, "create session", http.MethodPost, []string{"sessions"}, nil, sessionRequest{Code: code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBalances returns every balance the bank reports for an account.
func (c *Client) GetBalances(ctx context.Context, accountUID string) ([]Balance, error) {
	var resp balancesResponse
	path := []string{"accounts", url.PathEscape(accountUID), "balances"}
	if err := c.do(ctx, "get balances", http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

// TransactionQuery bounds a transaction fetch. Zero dates are omitted; with
// no bounds at all the longest available history is requested.
type TransactionQuery struct {
	DateFrom time.Time
	DateTo   time.Time
}

// GetTransactions fetches an account's transactions, following continuation
// keys until the bank reports no more pages.
func (c *Client) GetTransactions(ctx context.Context, accountUID string, q TransactionQuery) ([]Transaction, error) {
	base := url.Values{}
	if !q.DateFrom.IsZero() {
		base.Set("date_from", q.DateFrom.Format(dateLayout))
	}
	if !q.DateTo.IsZero() {
		base.Set("date_to", q.DateTo.Format(dateLayout))
	}
	if q.DateFrom.IsZero() && q.DateTo.IsZero() {
		base.Set("strategy", strategyLongest)
	}

	path := []string{"accounts", url.PathEscape(accountUID), "transactions"}
	var (
		all  []Transaction
		seen = map[string]bool{}
		key  string
	)
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		for k, v := range base {
			query[k] = v
		}
		if key != "" {
			query.Set("continuation_key", key)
		}

		var resp transactionsResponse
		if err := c.do(ctx, "get transactions", http.MethodGet, path, query, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Transactions...)

		if resp.ContinuationKey == "" {
			return all, nil
		}
		if seen[resp.ContinuationKey] {
			return nil, fmt.Errorf("get transactions: %w: repeated continuation key", common.ErrMalformedResponse)
		}
		seen[resp.ContinuationKey] = true
		key = resp.ContinuationKey
	}

	return nil, fmt.Errorf("get transactions: %w: more than %d pages", common.ErrMalformedResponse, maxPages)
}

func (c *Client) do(ctx context.Context, operation, method string, path []string, query url.Values, body, out any) error {
	token, err := c.signer.Token()
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	endpoint := c.baseURL.JoinPath(path...)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("%s: failed to encode request: %w", operation, marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Enable Banking request", "operation", operation, "method", method, "path", endpoint.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.TransportError{Operation: operation, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &common.TransportError{Operation: operation, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Enable Banking API error",
			"operation", operation,
			"status", resp.StatusCode,
			"body", string(data))
		providerErr := &common.ProviderError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", common.ErrRateLimit, providerErr)
		}
		return providerErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %w", operation, common.ErrMalformedResponse, err)
	}

	if err := c.validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%s: %w", operation, err)
		}
		return fmt.Errorf("%s: %w: %w", operation, common.ErrMalformedResponse, err)
	}

	return nil
}

// InstitutionsOrEmpty lists institutions for display, logging failures
// instead of returning them.
func InstitutionsOrEmpty(ctx context.Context, dir Directory, country string) []Institution {
	institutions, err := dir.ListInstitutions(ctx, country)
	if err != nil {
		slog.Error("Failed to list institutions", "country", country, "error", err)
		return []Institution{}
	}
	return institutions
}

// CountriesOrEmpty lists supported countries for display, logging failures
// instead of returning them.
func CountriesOrEmpty(ctx context.Context, dir Directory) []Country {
	countries, err := dir.ListSupportedCountries(ctx)
	if err != nil {
		slog.Error("Failed to list supported countries", "error", err)
		return []Country{}
	}
	return countries
}
