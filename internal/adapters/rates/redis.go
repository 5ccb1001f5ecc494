package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "checkout:rate:"

// RedisStore shares fetched rates between instances. Entries expire with
// the rate TTL so a stale value is never served from Redis.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisClient(ctx context.Context, cfg config.RatesConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("connected to rate cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return client, nil
}

func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, currency string) (domain.ExchangeRate, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+strings.ToUpper(currency)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ExchangeRate{}, false, nil
	}
	if err != nil {
		return domain.ExchangeRate{}, false, fmt.Errorf("redis get rate %s: %w", currency, err)
	}

	var rate domain.ExchangeRate
	if err := json.Unmarshal(raw, &rate); err != nil {
		s.logger.Warn("discarding undecodable cached rate", "currency", currency, "error", err)
		return domain.ExchangeRate{}, false, nil
	}
	return rate, true, nil
}

func (s *RedisStore) Set(ctx context.Context, rate domain.ExchangeRate, ttl time.Duration) error {
	raw, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("encode rate: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+strings.ToUpper(rate.Currency), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set rate %s: %w", rate.Currency, err)
	}
	return nil
}
