package rates

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
)

// MemoryStore is the single-instance rate store used when no Redis address is
// configured. Expired entries are reported as misses.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rate      domain.ExchangeRate
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, currency string) (domain.ExchangeRate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[strings.ToUpper(currency)]
	if !ok || !s.now().Before(entry.expiresAt) {
		return domain.ExchangeRate{}, false, nil
	}
	return entry.rate, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, rate domain.ExchangeRate, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[strings.ToUpper(rate.Currency)] = memoryEntry{
		rate:      rate,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}
