package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "gitlab-auth:principal:"

// RedisPrincipalCache shares verified principals between replicas. Entries
// are written with SET EX, so a read never extends their lifetime.
type RedisPrincipalCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewRedisPrincipalCache(ctx context.Context, options *redis.Options, ttl time.Duration, log logrus.FieldLogger) (*RedisPrincipalCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("principal cache ttl must be positive, got %s", ttl)
	}
	// Redis expiry has millisecond resolution.
	if ttl < time.Millisecond {
		return nil, fmt.Errorf("principal cache ttl %s is below redis resolution", ttl)
	}

	client := redis.NewClient(options)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to enable redis tracing: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", options.Addr, err)
	}

	log.WithField("addr", options.Addr).Info("Connected to redis principal cache")
	return &RedisPrincipalCache{client: client, ttl: ttl, log: log}, nil
}

func (c *RedisPrincipalCache) Get(ctx context.Context, key string) (Principal, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Principal{}, false, nil
	}
	if err != nil {
		return Principal{}, false, fmt.Errorf("failed to read principal: %w", err)
	}

	var principal Principal
	if err := json.Unmarshal(data, &principal); err != nil {
		return Principal{}, false, fmt.Errorf("failed to decode cached principal: %w", err)
	}
	if principal.IsZero() {
		return Principal{}, false, errors.New("cached principal has no username")
	}
	return principal, true, nil
}

func (c *RedisPrincipalCache) Set(ctx context.Context, key string, principal Principal) error {
	data, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("failed to encode principal: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write principal: %w", err)
	}
	return nil
}

func (c *RedisPrincipalCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPrincipalCache) Close() error {
	return c.client.Close()
}
