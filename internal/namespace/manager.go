// Package namespace coordinates loading translation files into the
// registry. It owns the identity of file-loaded translations, serializes
// mutations per namespace, and keeps the cache tiers consistent with every
// reload.
//
// Directory layout: <root>/<language>/<namespace>/*.yml, where root is the
// languages directory under the data root.
package namespace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/events"
	"github.com/openlocale/openlocale/internal/loader"
	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/registry"
)

// Stats describes one registered namespace.
type Stats struct {
	Namespace  string
	Entries    int
	Languages  int
	LastReload time.Time
}

// Manager registers, reloads and unregisters namespaces.
type Manager struct {
	root      string
	languages []models.Language
	sourceLang string

	registry *registry.Registry
	caches   *cache.Tiered
	bus      *events.Bus
	logger   *logging.Logger

	mu         sync.Mutex
	registered map[string]*nsState
}

type nsState struct {
	// reloadMu serializes reload, dynamic write and sync merge for the
	// namespace. Reloading X never blocks readers of Y.
	reloadMu   sync.Mutex
	lastReload time.Time
}

// New creates a namespace manager rooted at the languages directory.
func New(root string, languages []models.Language, sourceLang string, reg *registry.Registry, caches *cache.Tiered, bus *events.Bus) *Manager {
	langs := make([]models.Language, len(languages))
	copy(langs, languages)
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return &Manager{
		root:       root,
		languages:  langs,
		sourceLang: sourceLang,
		registry:   reg,
		caches:     caches,
		bus:        bus,
		logger:     logging.GetLogger("namespace"),
		registered: make(map[string]*nsState),
	}
}

// Dir returns the directory for (language, namespace).
func (m *Manager) Dir(language, ns string) string {
	return filepath.Join(m.root, language, ns)
}

// state returns the per-namespace state, creating it when absent.
func (m *Manager) state(ns string) *nsState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.registered[ns]
	if !ok {
		st = &nsState{}
		m.registered[ns] = st
	}
	return st
}

// Register registers a namespace and performs the initial load. When the
// source language directory is empty and defaultSourceDir is supplied, its
// files are copied there first so plugins can ship their defaults.
// Registration is idempotent: an already-registered namespace is reloaded.
func (m *Manager) Register(ctx context.Context, ns, defaultSourceDir string) error {
	if err := validateName(ns); err != nil {
		return err
	}
	st := m.state(ns)
	st.reloadMu.Lock()
	defer st.reloadMu.Unlock()

	if defaultSourceDir != "" {
		if err := m.seedDefaults(ns, defaultSourceDir); err != nil {
			return fmt.Errorf("seed defaults for namespace %s: %w", ns, err)
		}
	}
	return m.reloadLocked(ctx, ns, st)
}

// Reload atomically re-reads every file of the namespace. Readers observe
// either the fully pre-reload or fully post-reload view.
func (m *Manager) Reload(ctx context.Context, ns string) error {
	m.mu.Lock()
	st, ok := m.registered[ns]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("namespace %s is not registered", ns)
	}
	st.reloadMu.Lock()
	defer st.reloadMu.Unlock()
	return m.reloadLocked(ctx, ns, st)
}

// reloadLocked loads all files first and swaps the registry content only
// after every file has been read, so a failed load leaves the previous
// snapshot intact.
func (m *Manager) reloadLocked(ctx context.Context, ns string, st *nsState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var fresh []*models.Translation
	now := time.Now()
	for _, lang := range m.languages {
		if !lang.Enabled {
			continue
		}
		flat, err := loader.LoadNamespace(m.Dir(lang.Code, ns), m.logger)
		if err != nil {
			return fmt.Errorf("load namespace %s (%s): %w", ns, lang.Code, err)
		}
		for key, text := range flat {
			fresh = append(fresh, &models.Translation{
				Namespace: ns,
				Key:       key,
				Language:  lang.Code,
				Text:      text,
				UpdatedAt: now,
			})
		}
	}

	m.registry.ReplaceNamespace(ns, fresh)
	m.caches.InvalidateNamespace(ns)
	st.lastReload = now
	m.bus.Publish(models.NamespaceReloaded(ns))

	m.logger.InfoWithFields("namespace reloaded",
		logging.Field("namespace", ns),
		logging.Field("entries", len(fresh)),
	)
	return nil
}

// ReloadAll reloads every registered namespace concurrently.
func (m *Manager) ReloadAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ns := range m.Registered() {
		ns := ns
		g.Go(func() error {
			return m.Reload(ctx, ns)
		})
	}
	return g.Wait()
}

// Unregister removes the namespace from the registry and caches. Files on
// disk are left untouched.
func (m *Manager) Unregister(ns string) {
	m.mu.Lock()
	st, ok := m.registered[ns]
	if ok {
		delete(m.registered, ns)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	st.reloadMu.Lock()
	defer st.reloadMu.Unlock()
	removed := m.registry.ClearNamespace(ns)
	m.caches.InvalidateNamespace(ns)
	m.logger.Info("unregistered namespace %s (%d entries removed)", ns, removed)
}

// IsRegistered reports whether the namespace is registered.
func (m *Manager) IsRegistered(ns string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.registered[ns]
	return ok
}

// Registered returns all registered namespaces, sorted.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.registered))
	for ns := range m.registered {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Stats returns entry counts for a registered namespace.
func (m *Manager) Stats(ns string) (Stats, error) {
	m.mu.Lock()
	st, ok := m.registered[ns]
	m.mu.Unlock()
	if !ok {
		return Stats{}, fmt.Errorf("namespace %s is not registered", ns)
	}

	langs := 0
	for _, lang := range m.languages {
		if lang.Enabled && len(m.registry.Snapshot(lang.Code, ns)) > 0 {
			langs++
		}
	}
	return Stats{
		Namespace:  ns,
		Entries:    m.registry.CountFor(ns),
		Languages:  langs,
		LastReload: st.lastReload,
	}, nil
}

// seedDefaults copies defaultSourceDir into the source-language directory
// when that directory has no YAML files yet.
func (m *Manager) seedDefaults(ns, defaultSourceDir string) error {
	target := m.Dir(m.sourceLang, ns)
	if hasYAMLFiles(target) {
		return nil
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(defaultSourceDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isYAMLName(e.Name()) {
			continue
		}
		if err := copyFile(filepath.Join(defaultSourceDir, e.Name()), filepath.Join(target, e.Name())); err != nil {
			return err
		}
	}
	m.logger.Info("seeded default translations for namespace %s into %s", ns, target)
	return nil
}

func hasYAMLFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && isYAMLName(e.Name()) {
			return true
		}
	}
	return false
}

func isYAMLName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func validateName(ns string) error {
	if ns == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if strings.ContainsAny(ns, ":/\\") {
		return fmt.Errorf("namespace %q must not contain ':', '/' or '\\'", ns)
	}
	return nil
}

// WithNamespaceLock runs fn while holding the namespace's write mutex. The
// dynamic store and sync engine use this to serialize their mutations with
// reloads.
func (m *Manager) WithNamespaceLock(ns string, fn func() error) error {
	st := m.state(ns)
	st.reloadMu.Lock()
	defer st.reloadMu.Unlock()
	return fn()
}
