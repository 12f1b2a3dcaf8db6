package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/purplekit/backend/services/analytics/metrics"
	"github.com/purplekit/backend/services/analytics/usecase"
)

// Config holds Redis cache configuration
type Config struct {
	Enabled      bool          `mapstructure:"enabled" json:"enabled"`
	Address      string        `mapstructure:"address" json:"address"`
	Password     string        `mapstructure:"password" json:"password"`
	Database     int           `mapstructure:"database" json:"database"`
	PoolSize     int           `mapstructure:"pool_size" json:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	TTL          time.Duration `mapstructure:"ttl" json:"ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix" json:"key_prefix"`
}

// ResponseCache is a short-TTL read-through cache for dashboard payloads.
// It is strictly best-effort: any Redis failure degrades to a direct read and
// never fails the request.
type ResponseCache struct {
	client    *redis.Client
	logger    *logrus.Logger
	collector *metrics.Collector
	ttl       time.Duration
	prefix    string
}

// NewResponseCache connects to Redis and returns a cache handle. The
// connection is verified up front so a misconfigured address surfaces at
// startup instead of on the first request.
func NewResponseCache(cfg Config, logger *logrus.Logger, collector *metrics.Collector) (*ResponseCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"component": "response_cache",
		"address":   cfg.Address,
		"ttl":       cfg.TTL,
	}).Info("Redis response cache initialized")

	return &ResponseCache{
		client:    client,
		logger:    logger,
		collector: collector,
		ttl:       cfg.TTL,
		prefix:    cfg.KeyPrefix,
	}, nil
}

// Key derives the cache key for one analytics request. Timestamps are
// truncated to the second; sub-second variance in parsed query parameters
// should not fragment the cache.
func Key(tenantID uuid.UUID, start, end time.Time, engagementID *uuid.UUID) string {
	engagement := "all"
	if engagementID != nil {
		engagement = engagementID.String()
	}
	return fmt.Sprintf("analytics:%s:%d:%d:%s",
		tenantID, start.Unix(), end.Unix(), engagement)
}

// Get returns the cached payload for key, or nil on miss or any Redis error.
func (c *ResponseCache) Get(ctx context.Context, key string) *usecase.AnalyticsResponse {
	if c == nil {
		return nil
	}

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Cache read failed, falling through to repository")
		}
		c.collector.CacheMiss()
		return nil
	}

	var resp usecase.AnalyticsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.WithError(err).Warn("Discarding undecodable cache entry")
		c.collector.CacheMiss()
		return nil
	}

	c.collector.CacheHit()
	return &resp
}

// Set stores the payload under key with the configured TTL, best effort.
func (c *ResponseCache) Set(ctx context.Context, key string, resp *usecase.AnalyticsResponse) {
	if c == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode payload for caching")
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Cache write failed")
	}
}

// Close releases the Redis connection pool.
func (c *ResponseCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
