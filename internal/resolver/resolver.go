// Package resolver turns (language, namespace, key) lookups into final
// user-facing strings. It owns the fallback chain (requested language →
// default language → missing-format), plural dispatch, and the discipline
// for the L1/L3 cache tiers.
//
// Resolution never fails visibly: every uncovered case degrades to the
// configured missing-format with {key} substituted.
package resolver

import (
	"strconv"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/plural"
	"github.com/openlocale/openlocale/internal/registry"
	"github.com/openlocale/openlocale/internal/template"
)

// Options tunes resolver behavior.
type Options struct {
	// DefaultLanguage is the fallback language code.
	DefaultLanguage string
	// MissingFormat is the template returned when neither the requested
	// nor the default language has the key. "{key}" is substituted.
	MissingFormat string
	// ShowKey controls missing-key output: when true the missing-format
	// (with the key substituted) is returned, when false the resolver
	// returns an empty string.
	ShowKey bool
	// LogMissing logs each distinct missing key once.
	LogMissing bool
	// CachePlaceholderResults stores placeholder-applied strings in L1.
	// Default off: only placeholder-free resolutions are cached.
	CachePlaceholderResults bool
	// OnResolved is invoked with the requested language after every
	// successful resolution. Optional.
	OnResolved func(lang string)
	// OnMissing is invoked whenever no translation exists in either the
	// requested or the default language. Optional.
	OnMissing func()
}

// Resolver resolves translation keys against the registry through the
// cache tiers.
type Resolver struct {
	registry *registry.Registry
	caches   *cache.Tiered
	opts     Options
	missing  *missingTracker
	logger   *logging.Logger
}

// New creates a resolver.
func New(reg *registry.Registry, caches *cache.Tiered, opts Options) *Resolver {
	if opts.MissingFormat == "" {
		opts.MissingFormat = "[Missing: {key}]"
	}
	return &Resolver{
		registry: reg,
		caches:   caches,
		opts:     opts,
		missing:  newMissingTracker(),
		logger:   logging.GetLogger("resolver"),
	}
}

// Resolve resolves a key without plural selection.
func (r *Resolver) Resolve(lang, ns, key string, placeholders map[string]string) string {
	return r.resolve(lang, ns, key, placeholders, nil)
}

// ResolveCount resolves a key with plural selection for count. The "count"
// placeholder is populated automatically when the caller did not set it.
func (r *Resolver) ResolveCount(lang, ns, key string, placeholders map[string]string, count int) string {
	return r.resolve(lang, ns, key, placeholders, &count)
}

func (r *Resolver) resolve(lang, ns, key string, placeholders map[string]string, count *int) string {
	effectiveKeys := []string{key}
	if count != nil {
		category, err := plural.Select(lang, *count)
		if err != nil {
			// Negative count: treat as a plain lookup.
			r.logger.Warn("plural selection failed for %s:%s:%s: %v", lang, ns, key, err)
		} else {
			effectiveKeys = pluralLookupOrder(key, category)
		}
		placeholders = withCount(placeholders, *count)
	}

	cacheable := len(placeholders) == 0 && count == nil
	if cacheable {
		if cached, ok := r.caches.L1.Get(cache.Key(lang, ns, key)); ok {
			r.resolved(lang)
			return cached
		}
	}

	compiled, found := r.lookupTemplate(lang, ns, effectiveKeys)
	if !found {
		if r.opts.OnMissing != nil {
			r.opts.OnMissing()
		}
		return r.missingText(ns, key)
	}

	r.resolved(lang)
	result := compiled.Apply(placeholders)
	if cacheable || (r.opts.CachePlaceholderResults && count == nil) {
		r.caches.L1.Put(cache.Key(lang, ns, key), result)
	}
	return result
}

// lookupTemplate walks the candidate keys through the fallback chain and
// returns the first compiled template. L3 is consulted per (lang, key)
// pair; registry misses are not negatively cached.
func (r *Resolver) lookupTemplate(lang, ns string, keys []string) (*template.Compiled, bool) {
	langs := []string{lang}
	if r.opts.DefaultLanguage != "" && r.opts.DefaultLanguage != lang {
		langs = append(langs, r.opts.DefaultLanguage)
	}
	for _, candidateLang := range langs {
		for _, candidateKey := range keys {
			ck := cache.Key(candidateLang, ns, candidateKey)
			if compiled, ok := r.caches.L3.Get(ck); ok {
				return compiled, true
			}
			if t := r.registry.Get(candidateLang, ns, candidateKey); t != nil {
				compiled := template.Compile(t.Text)
				r.caches.L3.Put(ck, compiled)
				return compiled, true
			}
		}
	}
	return nil, false
}

func (r *Resolver) resolved(lang string) {
	if r.opts.OnResolved != nil {
		r.opts.OnResolved(lang)
	}
}

func (r *Resolver) missingText(ns, key string) string {
	full := ns + ":" + key
	if r.opts.LogMissing && r.missing.firstSighting(full) {
		r.logger.Warn("missing translation key %s", full)
	}
	if !r.opts.ShowKey {
		return ""
	}
	return template.Compile(r.opts.MissingFormat).Apply(map[string]string{"key": key})
}

// ResetMissingTracking forgets all logged missing keys. Used by the
// dynamic store's bulk delete when missing.reset-on-delete-all is set.
func (r *Resolver) ResetMissingTracking() {
	r.missing.reset()
}

// pluralLookupOrder yields key.<category>, key.other, key.
func pluralLookupOrder(key string, category models.PluralCategory) []string {
	order := []string{key + "." + string(category)}
	if category != models.PluralOther {
		order = append(order, key+"."+string(models.PluralOther))
	}
	return append(order, key)
}

func withCount(placeholders map[string]string, count int) map[string]string {
	out := make(map[string]string, len(placeholders)+1)
	for k, v := range placeholders {
		out[k] = v
	}
	if _, ok := out["count"]; !ok {
		out["count"] = strconv.Itoa(count)
	}
	return out
}
