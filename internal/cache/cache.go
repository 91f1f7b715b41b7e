// Package cache implements the bounded L1 (resolved strings) and L3
// (compiled templates) tiers of the lookup path. The registry acts as L2
// and is not part of this package.
//
// Both tiers are expirable LRU caches keyed by "lang:ns:key". L1 refreshes
// its TTL on access so hot strings stay resident; L3 expires on write age
// only. InvalidateNamespace scans keys and drops those whose middle segment
// matches, which is the primitive behind atomic namespace reload.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/openlocale/openlocale/internal/template"
)

// Stats reports counters for one cache tier.
type Stats struct {
	Items  int
	Hits   uint64
	Misses uint64
	// Evictions counts capacity and TTL evictions only; explicit
	// invalidations are excluded.
	Evictions uint64
	HitRate   float64
}

// Tier is a bounded, TTL-bearing cache of values derived from the registry.
type Tier[V any] struct {
	lru        *expirable.LRU[string, V]
	refreshTTL bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newTier[V any](maxSize int, ttl time.Duration, refreshTTL bool) (*Tier[V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache max size must be positive, got %d", maxSize)
	}
	t := &Tier[V]{refreshTTL: refreshTTL}
	t.lru = expirable.NewLRU[string, V](maxSize, func(string, V) {
		t.evictions.Add(1)
	}, ttl)
	return t, nil
}

// Get returns the cached value for the key. When the tier refreshes TTL on
// access, a hit re-inserts the entry to restart its expiry window.
func (t *Tier[V]) Get(key string) (V, bool) {
	v, ok := t.lru.Get(key)
	if !ok {
		t.misses.Add(1)
		var zero V
		return zero, false
	}
	t.hits.Add(1)
	if t.refreshTTL {
		t.lru.Add(key, v)
	}
	return v, true
}

// Put stores a value under the key.
func (t *Tier[V]) Put(key string, value V) {
	t.lru.Add(key, value)
}

// Invalidate removes a single key. Remove fires the eviction callback,
// so the counter is corrected to keep Evictions meaning capacity and TTL
// evictions only.
func (t *Tier[V]) Invalidate(key string) {
	if t.lru.Remove(key) {
		t.evictions.Add(^uint64(0))
	}
}

// InvalidateNamespace removes every entry whose key's middle segment equals
// the namespace. Returns the number of removed entries.
func (t *Tier[V]) InvalidateNamespace(namespace string) int {
	removed := 0
	for _, key := range t.lru.Keys() {
		if ns, ok := keyNamespace(key); ok && ns == namespace {
			if t.lru.Remove(key) {
				t.evictions.Add(^uint64(0))
				removed++
			}
		}
	}
	return removed
}

// InvalidateAll drops every entry. Removal is key by key rather than
// Purge so the eviction counter stays exact.
func (t *Tier[V]) InvalidateAll() {
	for _, key := range t.lru.Keys() {
		if t.lru.Remove(key) {
			t.evictions.Add(^uint64(0))
		}
	}
}

// Stats returns a snapshot of the tier's counters.
func (t *Tier[V]) Stats() Stats {
	hits := t.hits.Load()
	misses := t.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Items:     t.lru.Len(),
		Hits:      hits,
		Misses:    misses,
		Evictions: t.evictions.Load(),
		HitRate:   rate,
	}
}

// Config bounds one cache tier.
type Config struct {
	MaxSize int
	TTL     time.Duration
}

// Tiered bundles the L1 resolved-string cache and the L3 compiled-template
// cache. Mutation paths invalidate both tiers for the affected namespace
// slice before their operation completes.
type Tiered struct {
	// L1 holds fully-resolved strings with access-refreshed TTL.
	L1 *Tier[string]
	// L3 holds compiled templates with write-based TTL.
	L3 *Tier[*template.Compiled]
}

// NewTiered creates both tiers from their configs.
func NewTiered(l1, l3 Config) (*Tiered, error) {
	hot, err := newTier[string](l1.MaxSize, l1.TTL, true)
	if err != nil {
		return nil, fmt.Errorf("l1: %w", err)
	}
	tmpl, err := newTier[*template.Compiled](l3.MaxSize, l3.TTL, false)
	if err != nil {
		return nil, fmt.Errorf("l3: %w", err)
	}
	return &Tiered{L1: hot, L3: tmpl}, nil
}

// InvalidateNamespace drops the namespace slice from both tiers.
func (c *Tiered) InvalidateNamespace(namespace string) {
	c.L1.InvalidateNamespace(namespace)
	c.L3.InvalidateNamespace(namespace)
}

// Invalidate drops a single (language, namespace, key) from both tiers.
func (c *Tiered) Invalidate(language, namespace, key string) {
	k := Key(language, namespace, key)
	c.L1.Invalidate(k)
	c.L3.Invalidate(k)
}

// InvalidateAll drops everything from both tiers.
func (c *Tiered) InvalidateAll() {
	c.L1.InvalidateAll()
	c.L3.InvalidateAll()
}
