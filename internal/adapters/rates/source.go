// Package rates fetches USD exchange rates and keeps them between requests.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCurrency = errors.New("currency missing from rate response")
	ErrSourceDisabled  = errors.New("rate source not configured")
)

// latestResponse is the body of GET {base_url}/latest/USD.
type latestResponse struct {
	Result string                     `json:"result"`
	Base   string                     `json:"base_code"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

type HTTPRateSource struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewHTTPRateSource(cfg config.RatesConfig) ports.RateSource {
	return &HTTPRateSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

// FetchRate returns how many units of currency one USD buys.
func (s *HTTPRateSource) FetchRate(ctx context.Context, currency string) (domain.ExchangeRate, error) {
	if s.baseURL == "" {
		return domain.ExchangeRate{}, ErrSourceDisabled
	}
	code := strings.ToUpper(currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/latest/USD", nil)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ExchangeRate{}, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("decode rate response: %w", err)
	}
	if body.Result != "" && body.Result != "success" {
		return domain.ExchangeRate{}, fmt.Errorf("rate source result %q", body.Result)
	}

	rate, ok := body.Rates[code]
	if !ok || !rate.IsPositive() {
		return domain.ExchangeRate{}, fmt.Errorf("%s: %w", code, ErrUnknownCurrency)
	}

	return domain.ExchangeRate{
		Currency:  code,
		Rate:      rate,
		FetchedAt: s.now().UTC(),
	}, nil
}
