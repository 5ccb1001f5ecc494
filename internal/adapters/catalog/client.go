// Package catalog reads the print price list from the storefront's content API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
)

type priceListResponse struct {
	Prices []domain.SizePrice `json:"prices"`
}

type HTTPPriceSource struct {
	url        string
	httpClient *http.Client
}

func NewHTTPPriceSource(cfg config.CatalogConfig) ports.PriceSource {
	return &HTTPPriceSource{
		url: cfg.PriceURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchPrices returns the price list with sizes upper-cased.
func (s *HTTPPriceSource) FetchPrices(ctx context.Context) ([]domain.SizePrice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("price list returned status %d", resp.StatusCode)
	}

	var body priceListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}

	prices := make([]domain.SizePrice, 0, len(body.Prices))
	for _, p := range body.Prices {
		if p.Size == "" {
			continue
		}
		p.Size = strings.ToUpper(strings.TrimSpace(p.Size))
		prices = append(prices, p)
	}
	return prices, nil
}
