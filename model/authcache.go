package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// Auth cache namespaces.
const (
	NamespaceManage = "manage"
	NamespaceModel  = "model"
)

type authCacheEntry struct {
	accountID string
	expireAt  time.Time
}

// AuthCache is the bounded-capacity, per-entry-TTL mapping used to
// short-circuit remote auth checks. Namespaces are disjoint but share one
// underlying bounded cache and a single capacity budget.
type AuthCache struct {
	mu       sync.Mutex
	cache    *otter.Cache[string, authCacheEntry]
	enabled  bool
	capacity int
}

// NewAuthCache builds an AuthCache with the given combined capacity. A
// non-positive capacity disables caching entirely (every check is a miss).
func NewAuthCache(capacity int) (*AuthCache, error) {
	if capacity <= 0 {
		return &AuthCache{enabled: false}, nil
	}

	c, err := otter.New(&otter.Options[string, authCacheEntry]{
		MaximumSize: capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth cache: %w", err)
	}
	return &AuthCache{cache: c, enabled: true, capacity: capacity}, nil
}

func cacheKey(ns, key string) string { return ns + "\x00" + key }

// Check returns the cached account_id for (ns, key), or "", false on a miss
// or an expired entry. An expired-but-present entry is evicted eagerly.
func (a *AuthCache) Check(ns, key string) (string, bool) {
	if !a.enabled {
		return "", false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ck := cacheKey(ns, key)
	entry, ok := a.cache.GetIfPresent(ck)
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expireAt) {
		a.cache.Invalidate(ck)
		return "", false
	}
	return entry.accountID, true
}

// Set inserts (ns, key) -> accountID with the given TTL. A non-positive ttl
// stores the entry pre-expired, so the very next Check treats it as a miss.
func (a *AuthCache) Set(ns, key, accountID string, ttl time.Duration) {
	if !a.enabled {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cache.Set(cacheKey(ns, key), authCacheEntry{
		accountID: accountID,
		expireAt:  time.Now().Add(ttl),
	})
}

// Invalidate removes (ns, key) if present, reporting whether it was found.
func (a *AuthCache) Invalidate(ns, key string) bool {
	if !a.enabled {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ck := cacheKey(ns, key)
	_, ok := a.cache.GetIfPresent(ck)
	a.cache.Invalidate(ck)
	return ok
}

// Capacity reports the configured capacity bound; the cache itself evicts
// when more than Capacity entries are live.
func (a *AuthCache) Capacity() int {
	return a.capacity
}
