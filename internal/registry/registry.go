// Package registry holds the canonical in-memory translation corpus keyed
// by (language, namespace, key). It is the L2 of the tiered lookup path:
// the resolver consults it whenever the template cache misses.
//
// Readers vastly outnumber writers. The registry guarantees per-entry
// atomicity; namespace-level write serialization is owned by the namespace
// manager, which holds a per-namespace mutex around bulk mutations.
package registry

import (
	"sort"
	"sync"

	"github.com/openlocale/openlocale/internal/models"
)

// Registry is the canonical store of translations.
type Registry struct {
	mu sync.RWMutex
	// entries: language -> namespace -> key -> translation
	entries map[string]map[string]map[string]*models.Translation
	// nsCounts tracks entry counts per namespace across all languages.
	nsCounts map[string]int
	size     int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[string]map[string]map[string]*models.Translation),
		nsCounts: make(map[string]int),
	}
}

// Register upserts a translation. The registry takes ownership of the
// pointer; callers must not mutate it afterwards.
func (r *Registry) Register(t *models.Translation) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(t)
	return nil
}

func (r *Registry) registerLocked(t *models.Translation) {
	byNS, ok := r.entries[t.Language]
	if !ok {
		byNS = make(map[string]map[string]*models.Translation)
		r.entries[t.Language] = byNS
	}
	byKey, ok := byNS[t.Namespace]
	if !ok {
		byKey = make(map[string]*models.Translation)
		byNS[t.Namespace] = byKey
	}
	if _, exists := byKey[t.Key]; !exists {
		r.size++
		r.nsCounts[t.Namespace]++
	}
	byKey[t.Key] = t
}

// Unregister removes a single entry. Returns the removed translation, or
// nil when no entry existed.
func (r *Registry) Unregister(language, namespace, key string) *models.Translation {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey := r.entries[language][namespace]
	old, ok := byKey[key]
	if !ok {
		return nil
	}
	delete(byKey, key)
	r.size--
	r.nsCounts[namespace]--
	if r.nsCounts[namespace] == 0 {
		delete(r.nsCounts, namespace)
	}
	if len(byKey) == 0 {
		delete(r.entries[language], namespace)
	}
	return old
}

// ClearNamespace removes every entry of the namespace across all languages
// and returns the number of removed entries.
func (r *Registry) ClearNamespace(namespace string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearNamespaceLocked(namespace)
}

func (r *Registry) clearNamespaceLocked(namespace string) int {
	removed := 0
	for lang, byNS := range r.entries {
		if byKey, ok := byNS[namespace]; ok {
			removed += len(byKey)
			delete(byNS, namespace)
			if len(byNS) == 0 {
				delete(r.entries, lang)
			}
		}
	}
	r.size -= removed
	delete(r.nsCounts, namespace)
	return removed
}

// ReplaceNamespace atomically swaps the full content of a namespace for one
// language set. Readers observe either the complete previous view or the
// complete new view, which is the primitive behind atomic reload.
func (r *Registry) ReplaceNamespace(namespace string, translations []*models.Translation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearNamespaceLocked(namespace)
	for _, t := range translations {
		if t.Namespace != namespace {
			continue
		}
		r.registerLocked(t)
	}
}

// Get returns the translation for (language, namespace, key), or nil.
func (r *Registry) Get(language, namespace, key string) *models.Translation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[language][namespace][key]
}

// Size returns the total number of entries.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Namespaces returns all namespaces with at least one entry, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nsCounts))
	for ns := range r.nsCounts {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// CountFor returns the number of entries in a namespace across languages.
func (r *Registry) CountFor(namespace string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nsCounts[namespace]
}

// Snapshot returns a copy of all entries for (language, namespace), keyed
// by translation key. The sync engine uses this to build upload documents
// without holding the registry lock.
func (r *Registry) Snapshot(language, namespace string) map[string]*models.Translation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.entries[language][namespace]
	out := make(map[string]*models.Translation, len(src))
	for k, t := range src {
		copied := *t
		out[k] = &copied
	}
	return out
}

// Languages returns all language codes with at least one entry, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for lang := range r.entries {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
