package authz

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is the default time-to-live for cached role-check results.
const DefaultCacheTTL = 10 * time.Second

// cacheEntry stores a cached check result with its expiration time.
type cacheEntry struct {
	allowed   bool
	expiresAt time.Time
}

// CachedAuthorizer wraps another Authorizer with a short-lived in-memory cache.
// Transitions can issue several role checks per request; the cache keeps them
// from hitting the membership table repeatedly.
type CachedAuthorizer struct {
	inner Authorizer
	ttl   time.Duration
	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewCachedAuthorizer creates a CachedAuthorizer that wraps inner with the given TTL.
func NewCachedAuthorizer(inner Authorizer, ttl time.Duration) *CachedAuthorizer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedAuthorizer{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// HasProjectAccess checks the cache first and delegates on miss.
func (c *CachedAuthorizer) HasProjectAccess(ctx context.Context, userID, projectID string) (bool, error) {
	key := cacheKey("access", userID, projectID, nil)
	if allowed, ok := c.lookup(key); ok {
		return allowed, nil
	}
	allowed, err := c.inner.HasProjectAccess(ctx, userID, projectID)
	if err != nil {
		return false, err
	}
	c.put(key, allowed)
	return allowed, nil
}

// HasRole checks the cache first and delegates on miss.
func (c *CachedAuthorizer) HasRole(ctx context.Context, userID, projectID string, roles ...Role) (bool, error) {
	key := cacheKey("role", userID, projectID, roles)
	if allowed, ok := c.lookup(key); ok {
		return allowed, nil
	}
	allowed, err := c.inner.HasRole(ctx, userID, projectID, roles...)
	if err != nil {
		return false, err
	}
	c.put(key, allowed)
	return allowed, nil
}

// MembersWithRoles is not cached; fan-out recipient sets must be fresh.
func (c *CachedAuthorizer) MembersWithRoles(ctx context.Context, projectID string, roles ...Role) ([]string, error) {
	return c.inner.MembersWithRoles(ctx, projectID, roles...)
}

func (c *CachedAuthorizer) lookup(key string) (bool, bool) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.allowed, true
	}
	return false, false
}

func (c *CachedAuthorizer) put(key string, allowed bool) {
	c.mu.Lock()
	c.cache[key] = cacheEntry{allowed: allowed, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func cacheKey(kind, userID, projectID string, roles []Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	sort.Strings(parts)
	return kind + "|" + userID + "|" + projectID + "|" + strings.Join(parts, ",")
}
