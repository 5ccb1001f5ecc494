package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// PriceList caches the per-size USD price list.
type PriceList struct {
	source ports.PriceSource
	ttl    time.Duration
	logger *slog.Logger

	mu        sync.RWMutex
	prices    map[string]domain.SizePrice
	fetchedAt time.Time
	group     singleflight.Group
}

func NewPriceList(source ports.PriceSource, ttl time.Duration, logger *slog.Logger) *PriceList {
	return &PriceList{source: source, ttl: ttl, logger: logger}
}

func (p *PriceList) snapshot() (map[string]domain.SizePrice, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prices, p.prices != nil && time.Since(p.fetchedAt) < p.ttl
}

func (p *PriceList) load(ctx context.Context) (map[string]domain.SizePrice, error) {
	prices, fresh := p.snapshot()
	if fresh {
		return prices, nil
	}

	v, err, _ := p.group.Do("prices", func() (interface{}, error) {
		list, err := p.source.FetchPrices(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[string]domain.SizePrice, len(list))
		for _, sp := range list {
			m[strings.ToLower(sp.Size)] = sp
		}
		p.mu.Lock()
		p.prices = m
		p.fetchedAt = time.Now()
		p.mu.Unlock()
		return m, nil
	})
	if err != nil {
		if prices != nil {
			p.logger.Warn("serving stale price list", "error", err)
			return prices, nil
		}
		return nil, fmt.Errorf("fetch price list: %w", err)
	}
	return v.(map[string]domain.SizePrice), nil
}

// Quote prices cart lines in USD. Unknown or disabled sizes are rejected.
func (p *PriceList) Quote(ctx context.Context, lines []domain.CartLine) ([]domain.LineItem, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, &domain.ValidationError{Field: "lines", Reason: "at least one line is required"}
	}

	prices, err := p.load(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}

	items := make([]domain.LineItem, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, decimal.Zero, &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
		}
		sp, ok := prices[strings.ToLower(l.Size)]
		if !ok || !sp.Enabled {
			return nil, decimal.Zero, &domain.ValidationError{Field: "size", Reason: fmt.Sprintf("size %q is not available", l.Size)}
		}
		item := domain.LineItem{Title: l.Title, Size: l.Size, Quantity: l.Quantity, UnitPrice: sp.PriceUSD}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}
	return items, total, nil
}
