package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// staleRetention is how many TTLs a rate stays in the store, so an expired
// rate can still stand in while the source is down.
const staleRetention = 6

// RateCache owns the exchange-rate TTL. Concurrent misses for the same
// currency share one upstream fetch.
type RateCache struct {
	source ports.RateSource
	store  ports.RateStore
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

func NewRateCache(source ports.RateSource, store ports.RateStore, ttl time.Duration, logger *slog.Logger) *RateCache {
	return &RateCache{
		source: source,
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Rate returns a fresh rate for currency, refreshing it when needed. A stale
// entry is served if the refresh fails.
func (c *RateCache) Rate(ctx context.Context, currency string) (domain.ExchangeRate, error) {
	currency = strings.ToUpper(currency)

	cached, ok, err := c.store.Get(ctx, currency)
	if err != nil {
		c.logger.Warn("rate store read failed", "currency", currency, "error", err)
	}
	if ok && cached.Fresh(c.now(), c.ttl) {
		return cached, nil
	}

	v, err, shared := c.group.Do(currency, func() (interface{}, error) {
		rate, err := c.source.FetchRate(ctx, currency)
		if err != nil {
			return domain.ExchangeRate{}, err
		}
		if rate.FetchedAt.IsZero() {
			rate.FetchedAt = c.now()
		}
		rate.Currency = currency
		if err := c.store.Set(ctx, rate, c.ttl*staleRetention); err != nil {
			c.logger.Warn("rate store write failed", "currency", currency, "error", err)
		}
		return rate, nil
	})
	if err != nil {
		if ok {
			c.logger.Warn("serving stale rate", "currency", currency, "fetched_at", cached.FetchedAt, "error", err)
			return cached, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("fetch rate %s: %w", currency, err)
	}

	c.logger.Debug("rate refreshed", "currency", currency, "shared", shared)
	return v.(domain.ExchangeRate), nil
}

// Converter turns USD list prices into local amounts.
type Converter struct {
	rates  *RateCache
	logger *slog.Logger
}

func NewConverter(rates *RateCache, logger *slog.Logger) *Converter {
	return &Converter{rates: rates, logger: logger}
}

// ConvertUSDToLocal converts amountUSD into currency, or into the currency of
// countryHint when currency is empty. It never fails: on a cache miss with an
// upstream error the fixed fallback rate is used.
func (c *Converter) ConvertUSDToLocal(ctx context.Context, amountUSD decimal.Decimal, currency, countryHint string) decimal.Decimal {
	currency = ResolveCurrency(currency, countryHint)
	if currency == "USD" {
		return domain.Round(amountUSD, currency)
	}

	rate, err := c.rates.Rate(ctx, currency)
	if err != nil || !rate.Rate.IsPositive() {
		fallback := fallbackRate(currency)
		c.logger.Warn("using fallback exchange rate",
			"currency", currency,
			"rate", fallback.String(),
			"error", err,
		)
		return domain.Round(amountUSD.Mul(fallback), currency)
	}

	return domain.Round(amountUSD.Mul(rate.Rate), currency)
}

// ResolveCurrency picks the explicit currency when set, otherwise the
// currency of country.
func ResolveCurrency(currency, country string) string {
	if currency != "" {
		return strings.ToUpper(currency)
	}
	return domain.CurrencyForCountry(country)
}

func fallbackRate(currency string) decimal.Decimal {
	if c, ok := domain.LookupCurrency(currency); ok {
		return c.FallbackRate
	}
	return decimal.NewFromInt(1)
}
