package clients

import (
	"context"
	"fmt"
	"time"

	"inmo-payments/pkg/cache/redis"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration

	Prefix string
}

type RedisClient struct {
	raw    *redis.Client
	prefix string
}

func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	rdb, err := redis.NewRedisConnection(redis.ConnectionInfo{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "inmo_payments_"
	}

	return &RedisClient{raw: rdb, prefix: prefix}, nil
}

func (c *RedisClient) Close() {
	if c.raw == nil {
		return
	}
	redis.Close(c.raw)
}

func (c *RedisClient) withPrefix(key string) string {
	return c.prefix + key
}

func (c *RedisClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.raw.Set(ctx, c.withPrefix(key), value, ttl).Err()
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.raw.Get(ctx, c.withPrefix(key)).Result()
}

func (c *RedisClient) Del(ctx context.Context, key string) error {
	return c.raw.Del(ctx, c.withPrefix(key)).Err()
}

func (c *RedisClient) SAdd(ctx context.Context, key string, members ...any) error {
	return c.raw.SAdd(ctx, c.withPrefix(key), members...).Err()
}

func (c *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.raw.SMembers(ctx, c.withPrefix(key)).Result()
}

const statementTTL = time.Minute

// StatementCache keeps account statements hot for the dashboard reads that
// hammer them, keyed per tenant and plan. Payments invalidate the entry.
type StatementCache struct {
	redis *RedisClient
}

func NewStatementCache(redis *RedisClient) *StatementCache {
	return &StatementCache{redis: redis}
}

func statementKey(tenantID string, planID int64) string {
	return fmt.Sprintf("statement:%s:%d", tenantID, planID)
}

func (c *StatementCache) Get(ctx context.Context, tenantID string, planID int64) (string, error) {
	if c.redis == nil {
		return "", nil
	}
	return c.redis.Get(ctx, statementKey(tenantID, planID))
}

func (c *StatementCache) Set(ctx context.Context, tenantID string, planID int64, payload string) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Set(ctx, statementKey(tenantID, planID), payload, statementTTL)
}

func (c *StatementCache) Invalidate(ctx context.Context, tenantID string, planID int64) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, statementKey(tenantID, planID))
}
