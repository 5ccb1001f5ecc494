package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
)

// RateSource fetches a fresh USD rate for a currency from upstream.
type RateSource interface {
	FetchRate(ctx context.Context, currency string) (domain.ExchangeRate, error)
}

// RateStore keeps fetched rates between requests. Get reports false on a miss.
type RateStore interface {
	Get(ctx context.Context, currency string) (domain.ExchangeRate, bool, error)
	Set(ctx context.Context, rate domain.ExchangeRate, ttl time.Duration) error
}

// PriceSource fetches the USD price list per print size.
type PriceSource interface {
	FetchPrices(ctx context.Context) ([]domain.SizePrice, error)
}
