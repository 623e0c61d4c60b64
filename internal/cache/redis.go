// Package cache keeps route listings in Redis. Every method is safe on a
// cache without a client, which behaves as permanently empty.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/septivank/meter-field-ops/internal/db"
	"go.uber.org/zap"
)

const (
	routeKeyFmt   = "route:%s:%s"
	routeKeyMatch = "route:*"
)

// RouteCache caches route listings per officer and reading day
type RouteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRouteCache connects to Redis at addr. An empty addr, or a server that
// does not answer PING, yields a cache without a client.
func NewRouteCache(addr, password string, database int, ttl time.Duration, logger *zap.Logger) *RouteCache {
	c := &RouteCache{ttl: ttl, logger: logger}
	if addr == "" {
		logger.Info("REDIS_ADDR not set, route cache disabled")
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client for graceful degradation
		client.Close()
		logger.Warn("redis unavailable, route cache disabled", zap.String("addr", addr), zap.Error(err))
		return c
	}

	logger.Info("redis route cache connected", zap.String("addr", addr))
	c.client = client
	return c
}

// Enabled reports whether a Redis client is attached
func (c *RouteCache) Enabled() bool {
	return c != nil && c.client != nil
}

func routeKey(officer, day string) string {
	return fmt.Sprintf(routeKeyFmt, officer, day)
}

// GetRoute returns the cached route if present
func (c *RouteCache) GetRoute(ctx context.Context, officer, day string) ([]db.Customer, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, routeKey(officer, day)).Bytes()
	if err != nil {
		return nil, false
	}

	var customers []db.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		c.logger.Warn("discarding unreadable cached route", zap.String("officer", officer), zap.String("day", day), zap.Error(err))
		return nil, false
	}
	return customers, true
}

// SetRoute caches a route for the configured TTL
func (c *RouteCache) SetRoute(ctx context.Context, officer, day string, customers []db.Customer) {
	if !c.Enabled() {
		return
	}
	data, err := json.Marshal(customers)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, routeKey(officer, day), data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache route", zap.String("officer", officer), zap.String("day", day), zap.Error(err))
	}
}

// InvalidateRoutes drops every cached route
func (c *RouteCache) InvalidateRoutes(ctx context.Context) {
	if !c.Enabled() {
		return
	}

	iter := c.client.Scan(ctx, 0, routeKeyMatch, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("failed to scan cached routes", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("failed to invalidate cached routes", zap.Error(err))
		return
	}
	c.logger.Debug("route cache invalidated", zap.Int("keys", len(keys)))
}

// Close closes the Redis client
func (c *RouteCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
