package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
)

// PrincipalCache maps fingerprints to principals. Entries expire a fixed
// TTL after they are written; reads never extend them.
type PrincipalCache interface {
	Get(ctx context.Context, key string) (Principal, bool, error)
	Set(ctx context.Context, key string, principal Principal) error
}

type CacheStats struct {
	Entries    int
	Insertions uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
}

// MemoryPrincipalCache is a process-local PrincipalCache. Capacity, when
// non-zero, bounds the number of entries by evicting the least recently used.
type MemoryPrincipalCache struct {
	cache    *ttlcache.Cache[string, Principal]
	ttl      time.Duration
	log      logrus.FieldLogger
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	done     chan struct{}
}

func NewMemoryPrincipalCache(ttl time.Duration, capacity uint64, log logrus.FieldLogger) (*MemoryPrincipalCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("principal cache ttl must be positive, got %s", ttl)
	}
	opts := []ttlcache.Option[string, Principal]{
		ttlcache.WithTTL[string, Principal](ttl),
		ttlcache.WithDisableTouchOnHit[string, Principal](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, Principal](capacity))
	}
	return &MemoryPrincipalCache{
		cache: ttlcache.New(opts...),
		ttl:   ttl,
		log:   log,
		done:  make(chan struct{}),
	}, nil
}

// Start runs the expiry loop until ctx is cancelled or Stop is called.
// Expired entries are never returned even without it; the loop only frees
// their memory.
func (c *MemoryPrincipalCache) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.New("principal cache already started")
	}
	c.started = true

	go c.cache.Start()
	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.done:
		}
	}()

	c.log.Debug("Principal cache expiry loop started")
	return nil
}

func (c *MemoryPrincipalCache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	c.stopOnce.Do(func() {
		close(c.done)
		c.cache.Stop()
		c.log.Debug("Principal cache expiry loop stopped")
	})
}

func (c *MemoryPrincipalCache) Get(_ context.Context, key string) (Principal, bool, error) {
	item := c.cache.Get(key)
	if item == nil {
		return Principal{}, false, nil
	}
	return item.Value(), true, nil
}

func (c *MemoryPrincipalCache) Set(_ context.Context, key string, principal Principal) error {
	c.cache.Set(key, principal, ttlcache.DefaultTTL)
	return nil
}

// Ping always succeeds; it exists so readiness checks can treat every cache
// alike.
func (c *MemoryPrincipalCache) Ping(context.Context) error {
	return nil
}

func (c *MemoryPrincipalCache) Stats() CacheStats {
	m := c.cache.Metrics()
	return CacheStats{
		Entries:    c.cache.Len(),
		Insertions: m.Insertions,
		Hits:       m.Hits,
		Misses:     m.Misses,
		Evictions:  m.Evictions,
	}
}
