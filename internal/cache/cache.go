// Package cache stores finished recommendation results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/xsell-cli/internal/model"
)

const keyPrefix = "xsell:result:"

// ResultCache caches RecommendationResults keyed by customer id.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to the Redis server at url (redis://host:port/db) and pings it.
func New(ctx context.Context, url string, ttl time.Duration) (*ResultCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "cache: ping")
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

func key(customerID string) string {
	return keyPrefix + customerID
}

// Get returns the cached result for a customer. ok is false on a miss.
func (c *ResultCache) Get(ctx context.Context, customerID string) (res *model.RecommendationResult, ok bool, err error) {
	data, err := c.client.Get(ctx, key(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", customerID)
	}

	res = &model.RecommendationResult{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, false, eris.Wrapf(err, "cache: decode %s", customerID)
	}
	return res, true, nil
}

// Set stores a result. Only fully successful results are cached; other
// outcomes are ignored.
func (c *ResultCache) Set(ctx context.Context, res *model.RecommendationResult) error {
	if res == nil || res.Outcome != model.OutcomeSuccess {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "cache: encode result")
	}
	return eris.Wrapf(c.client.Set(ctx, key(res.CustomerID), data, c.ttl).Err(), "cache: set %s", res.CustomerID)
}

// Invalidate drops the cached result for a customer.
func (c *ResultCache) Invalidate(ctx context.Context, customerID string) error {
	return eris.Wrapf(c.client.Del(ctx, key(customerID)).Err(), "cache: delete %s", customerID)
}

// Ping checks connectivity.
func (c *ResultCache) Ping(ctx context.Context) error {
	return eris.Wrap(c.client.Ping(ctx).Err(), "cache: ping")
}

// Close closes the underlying client.
func (c *ResultCache) Close() error {
	return c.client.Close()
}
