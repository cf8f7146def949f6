//go:build integration

package auth

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// redisAddr returns REDIS_ADDR when set, otherwise starts a throwaway Redis.
func redisAddr(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisPrincipalCache(t *testing.T) {
	ctx := context.Background()
	ttl := time.Second
	cache, err := NewRedisPrincipalCache(ctx, &redis.Options{Addr: redisAddr(t)}, ttl, newSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	alice := NewPrincipal("alice@example.com", []string{"team-b", "team-a"})
	require.NoError(t, cache.Set(ctx, key, alice))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, alice.Equal(got))
	assert.NoError(t, cache.Ping(ctx))

	ttlLeft, err := cache.client.TTL(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttlLeft, ttl)

	assert.Eventually(t, func() bool {
		_, ok, err := cache.Get(ctx, key)
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedisPrincipalCacheRejectsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	cache, err := NewRedisPrincipalCache(ctx, &redis.Options{Addr: redisAddr(t)}, time.Minute, newSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	key := fmt.Sprintf("corrupt-%d", time.Now().UnixNano())
	require.NoError(t, cache.client.Set(ctx, redisKeyPrefix+key, "not json", time.Minute).Err())

	_, ok, err := cache.Get(ctx, key)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisPrincipalCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisPrincipalCache(ctx, &redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1}, time.Minute, newSilentLogger())
	assert.Error(t, err)
}
