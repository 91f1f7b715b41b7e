package resolver

import (
	"testing"
	"time"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry *registry.Registry
	caches   *cache.Tiered
	resolver *Resolver
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	reg := registry.New()
	caches, err := cache.NewTiered(
		cache.Config{MaxSize: 100, TTL: time.Minute},
		cache.Config{MaxSize: 100, TTL: time.Minute},
	)
	require.NoError(t, err)
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "pt_br"
	}
	if opts.MissingFormat == "" {
		opts.MissingFormat = "[Missing: {key}]"
	}
	return &fixture{registry: reg, caches: caches, resolver: New(reg, caches, opts)}
}

func (f *fixture) register(t *testing.T, lang, ns, key, text string) {
	t.Helper()
	require.NoError(t, f.registry.Register(&models.Translation{
		Namespace: ns, Key: key, Language: lang, Text: text,
	}))
}

func TestResolveDirectHit(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "app", "hello", "Hello, {name}!")

	got := f.resolver.Resolve("en_us", "app", "hello", map[string]string{"name": "Ana"})
	assert.Equal(t, "Hello, Ana!", got)
}

// S1: requested language missing, default language has the key.
func TestResolveFallsBackToDefault(t *testing.T) {
	f := newFixture(t, Options{DefaultLanguage: "pt_br", ShowKey: true})
	f.register(t, "pt_br", "app", "hello", "Olá, {name}!")

	got := f.resolver.Resolve("en_us", "app", "hello", map[string]string{"name": "Ana"})
	assert.Equal(t, "Olá, Ana!", got)
}

// S2: key missing everywhere yields the missing-format.
func TestResolveMissingKey(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	got := f.resolver.Resolve("en_us", "app", "bye", nil)
	assert.Equal(t, "[Missing: bye]", got)
}

func TestResolveMissingKeyHidden(t *testing.T) {
	f := newFixture(t, Options{ShowKey: false})
	assert.Equal(t, "", f.resolver.Resolve("en_us", "app", "bye", nil))
}

// S3: plural selection picks key.one for 1 and key.other for 5.
func TestResolvePlural(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "shop", "items.one", "1 item")
	f.register(t, "en_us", "shop", "items.other", "{count} items")

	assert.Equal(t, "1 item", f.resolver.ResolveCount("en_us", "shop", "items", nil, 1))
	assert.Equal(t, "5 items", f.resolver.ResolveCount("en_us", "shop", "items", nil, 5))
}

func TestResolvePluralFallsBackToOther(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "shop", "items.other", "{count} items")

	// en_us selects ONE for count=1, but only .other exists.
	assert.Equal(t, "1 items", f.resolver.ResolveCount("en_us", "shop", "items", nil, 1))
}

func TestResolvePluralFallsBackToBaseKey(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "shop", "items", "items: {count}")
	assert.Equal(t, "items: 3", f.resolver.ResolveCount("en_us", "shop", "items", nil, 3))
}

func TestResolveNegativeCount(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "shop", "items", "items: {count}")
	// Negative counts skip plural selection but still resolve.
	assert.Equal(t, "items: -2", f.resolver.ResolveCount("en_us", "shop", "items", nil, -2))
}

func TestResolveCachesPlaceholderFreeResults(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "app", "hello", "Hello")

	assert.Equal(t, "Hello", f.resolver.Resolve("en_us", "app", "hello", nil))

	cached, ok := f.caches.L1.Get(cache.Key("en_us", "app", "hello"))
	require.True(t, ok)
	assert.Equal(t, "Hello", cached)
}

func TestResolveDoesNotCachePlaceholderResults(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "app", "hello", "Hello, {name}!")

	f.resolver.Resolve("en_us", "app", "hello", map[string]string{"name": "Ana"})

	_, ok := f.caches.L1.Get(cache.Key("en_us", "app", "hello"))
	assert.False(t, ok)
}

func TestResolveCachePlaceholderResultsToggle(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true, CachePlaceholderResults: true})
	f.register(t, "en_us", "app", "hello", "Hello, {name}!")

	f.resolver.Resolve("en_us", "app", "hello", map[string]string{"name": "Ana"})

	cached, ok := f.caches.L1.Get(cache.Key("en_us", "app", "hello"))
	require.True(t, ok)
	assert.Equal(t, "Hello, Ana!", cached)
}

func TestResolveServesFromL1(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "app", "hello", "Hello")
	f.resolver.Resolve("en_us", "app", "hello", nil)

	// Change the registry behind the cache's back: L1 still serves the
	// old value until the slice is invalidated.
	f.register(t, "en_us", "app", "hello", "Changed")
	assert.Equal(t, "Hello", f.resolver.Resolve("en_us", "app", "hello", nil))

	f.caches.InvalidateNamespace("app")
	assert.Equal(t, "Changed", f.resolver.Resolve("en_us", "app", "hello", nil))
}

func TestResolveCompilesThroughL3(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "app", "hello", "Hello, {name}!")

	f.resolver.Resolve("en_us", "app", "hello", map[string]string{"name": "A"})
	_, ok := f.caches.L3.Get(cache.Key("en_us", "app", "hello"))
	assert.True(t, ok, "compiled template stored in L3")

	// Second call hits L3.
	before := f.caches.L3.Stats().Hits
	f.resolver.Resolve("en_us", "app", "hello", map[string]string{"name": "B"})
	assert.Greater(t, f.caches.L3.Stats().Hits, before)
}

func TestResolvePassThroughPlaceholder(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true})
	f.register(t, "en_us", "app", "hi", "Hi {name}")
	assert.Equal(t, "Hi {name}", f.resolver.Resolve("en_us", "app", "hi", map[string]string{"other": "x"}))
}

func TestResetMissingTracking(t *testing.T) {
	f := newFixture(t, Options{ShowKey: true, LogMissing: true})
	f.resolver.Resolve("en_us", "app", "gone", nil)
	assert.False(t, f.resolver.missing.firstSighting("app:gone"))

	f.resolver.ResetMissingTracking()
	assert.True(t, f.resolver.missing.firstSighting("app:gone"))
}
