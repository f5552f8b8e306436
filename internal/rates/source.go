package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/httpclient"
	"github.com/Checker-Finance/storefront/pkg/model"
)

// Upstream is the secret/limiter name of the exchange-rate API.
const Upstream = "exchange-rates"

// ErrUnauthorized is returned when the rate API rejects the API key.
var ErrUnauthorized = errors.New("rates: unauthorized")

// Credentials for the exchange-rate API.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// ParseCredentials reads Credentials from a secret map.
func ParseCredentials(m map[string]string) (Credentials, error) {
	c := Credentials{APIKey: m["api_key"], BaseURL: strings.TrimRight(m["base_url"], "/")}
	if c.BaseURL == "" {
		return Credentials{}, errors.New("base_url is required")
	}
	return c, nil
}

// CredentialResolver supplies (and forgets) rate API credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, upstream string) (Credentials, error)
	Invalidate(upstream string)
}

// ratesResponse is the payload of GET /v1/rates.
type ratesResponse struct {
	Base  string              `json:"base"`
	Rates map[string]rateItem `json:"rates"`
}

type rateItem struct {
	RateToBase decimal.Decimal `json:"rateToBase"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type apiError struct {
	Message string `json:"message"`
}

// HTTPSource fetches the full table from the exchange-rate API.
type HTTPSource struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	creds  CredentialResolver
	base   string
	now    func() time.Time
}

// NewHTTPSource builds a source over exec. base is the currency the table is
// quoted in (VND).
func NewHTTPSource(logger *zap.Logger, exec *httpclient.Executor, creds CredentialResolver, base string) *HTTPSource {
	return &HTTPSource{
		logger: logger,
		exec:   exec,
		creds:  creds,
		base:   base,
		now:    time.Now,
	}
}

// ErrorHandler maps rate API 4xx responses; 401/403 become ErrUnauthorized.
func ErrorHandler(logger *zap.Logger) func(status int, body []byte) error {
	return func(status int, body []byte) error {
		var e apiError
		_ = json.Unmarshal(body, &e)
		msg := e.Message
		if msg == "" {
			msg = string(body)
		}
		logger.Warn("rates.client_error", zap.Int("status", status), zap.String("message", msg))
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return fmt.Errorf("rate api returned %d: %s", status, msg)
	}
}

// Name identifies the source in logs.
func (s *HTTPSource) Name() string { return "http" }

// Fetch requests GET {base_url}/v1/rates?base={base}.
func (s *HTTPSource) Fetch(ctx context.Context) (*Table, error) {
	creds, err := s.creds.Resolve(ctx, Upstream)
	if err != nil {
		return nil, err
	}

	u := creds.BaseURL + "/v1/rates?base=" + url.QueryEscape(s.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if creds.APIKey != "" {
		req.Header.Set("X-API-Key", creds.APIKey)
	}

	var resp ratesResponse
	if err := s.exec.DoJSON(ctx, req, Upstream, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.creds.Invalidate(Upstream)
		}
		return nil, err
	}
	if resp.Base != "" && !strings.EqualFold(resp.Base, s.base) {
		return nil, fmt.Errorf("rate api quoted base %s, want %s", resp.Base, s.base)
	}

	out := make(map[string]model.ExchangeRate, len(resp.Rates))
	for code, item := range resp.Rates {
		code = strings.ToUpper(code)
		if !item.RateToBase.IsPositive() {
			s.logger.Warn("rates.invalid_rate_skipped",
				zap.String("currency", code),
				zap.String("rate", item.RateToBase.String()))
			continue
		}
		out[code] = model.ExchangeRate{
			CurrencyCode: code,
			RateToBase:   item.RateToBase,
			UpdatedAt:    item.UpdatedAt,
		}
	}
	// The base converts to itself even if the API omits it.
	if _, ok := out[s.base]; !ok && len(out) > 0 {
		out[s.base] = model.ExchangeRate{CurrencyCode: s.base, RateToBase: decimal.NewFromInt(1), UpdatedAt: s.now().UTC()}
	}
	return NewTable(s.base, out, s.now().UTC()), nil
}

// StaticSource serves a fixed table; used for local runs and tests.
type StaticSource struct {
	Base  string
	Rates map[string]model.ExchangeRate
}

// Name identifies the source in logs.
func (s StaticSource) Name() string { return "static" }

// Fetch returns a fresh table built from Rates.
func (s StaticSource) Fetch(_ context.Context) (*Table, error) {
	return NewTable(s.Base, s.Rates, time.Now().UTC()), nil
}
