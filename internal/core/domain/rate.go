package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is a cached USD to local currency rate. Refreshes replace the
// entry rather than mutate it.
type ExchangeRate struct {
	Currency  string          `json:"currency"`
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Fresh reports whether the rate is younger than ttl at now.
func (r ExchangeRate) Fresh(now time.Time, ttl time.Duration) bool {
	return !r.FetchedAt.IsZero() && now.Sub(r.FetchedAt) < ttl
}

// SizePrice is one price-list entry in USD.
type SizePrice struct {
	Size     string          `json:"size"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	Enabled  bool            `json:"enabled"`
}

// CartLine is a requested line before pricing.
type CartLine struct {
	Title    string `json:"title" validate:"required"`
	Size     string `json:"size" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}
