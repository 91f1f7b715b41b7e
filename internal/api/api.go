// Package api is the host-neutral facade over the engine: message
// dispatch, player language management, namespace registration with
// extractor triggers, dynamic translation CRUD and Crowdin delegation.
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/config"
	"github.com/openlocale/openlocale/internal/crowdin"
	"github.com/openlocale/openlocale/internal/extract"
	"github.com/openlocale/openlocale/internal/host"
	"github.com/openlocale/openlocale/internal/loader"
	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/namespace"
	"github.com/openlocale/openlocale/internal/registry"
	"github.com/openlocale/openlocale/internal/resolver"
	"github.com/openlocale/openlocale/internal/store"
	syncengine "github.com/openlocale/openlocale/internal/sync"
)

// ErrCrowdinDisabled is returned by Crowdin operations when the
// integration is not configured.
var ErrCrowdinDisabled = errors.New("crowdin integration is disabled")

// API is the engine facade handed to plugin adapters and commands.
type API struct {
	cfg      *config.Config
	reg      *registry.Registry
	caches   *cache.Tiered
	resolver *resolver.Resolver
	players  *store.PlayerStore
	dynamic  *store.DynamicStore
	manager  *namespace.Manager
	writer   *extract.Writer

	// engine and client are nil when crowdin.enabled is false.
	engine *syncengine.Engine
	client *crowdin.Client

	scheduler host.Scheduler
	chat      host.ChatTransport
	logger    *logging.Logger
}

// Deps bundles the facade's collaborators.
type Deps struct {
	Config    *config.Config
	Registry  *registry.Registry
	Caches    *cache.Tiered
	Resolver  *resolver.Resolver
	Players   *store.PlayerStore
	Dynamic   *store.DynamicStore
	Manager   *namespace.Manager
	Writer    *extract.Writer
	Engine    *syncengine.Engine
	Client    *crowdin.Client
	Scheduler host.Scheduler
	Chat      host.ChatTransport
}

// New creates the facade.
func New(d Deps) *API {
	return &API{
		cfg:       d.Config,
		reg:       d.Registry,
		caches:    d.Caches,
		resolver:  d.Resolver,
		players:   d.Players,
		dynamic:   d.Dynamic,
		manager:   d.Manager,
		writer:    d.Writer,
		engine:    d.Engine,
		client:    d.Client,
		scheduler: d.Scheduler,
		chat:      d.Chat,
		logger:    logging.GetLogger("api"),
	}
}

// PlayerLanguage returns the player's language, or the default when the
// player has no stored preference.
func (a *API) PlayerLanguage(id string) string {
	if p, ok := a.players.GetCached(id); ok {
		return p.Language
	}
	return a.cfg.Language.Default
}

// SetPlayerLanguage stores an explicit language choice.
func (a *API) SetPlayerLanguage(id, code string) error {
	return a.players.Set(id, code, false)
}

// AvailableLanguages lists the enabled languages sorted by code.
func (a *API) AvailableLanguages() []models.Language {
	langs := a.cfg.EnabledLanguages()
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return langs
}

// DefaultLanguage returns the configured fallback language.
func (a *API) DefaultLanguage() string {
	return a.cfg.Language.Default
}

// Get resolves a key in the player's language.
func (a *API) Get(playerID, ns, key string, placeholders map[string]string) string {
	return a.resolver.Resolve(a.PlayerLanguage(playerID), ns, key, placeholders)
}

// GetCount resolves a key with plural selection in the player's language.
func (a *API) GetCount(playerID, ns, key string, placeholders map[string]string, count int) string {
	return a.resolver.ResolveCount(a.PlayerLanguage(playerID), ns, key, placeholders, count)
}

// GetOrDefault resolves a key, returning def when no translation exists
// in the player's language or the default language.
func (a *API) GetOrDefault(playerID, ns, key, def string, placeholders map[string]string) string {
	lang := a.PlayerLanguage(playerID)
	if a.reg.Get(lang, ns, key) == nil && a.reg.Get(a.cfg.Language.Default, ns, key) == nil {
		return def
	}
	return a.resolver.Resolve(lang, ns, key, placeholders)
}

// Send resolves a key and delivers it to the player on the primary lane.
func (a *API) Send(playerID, ns, key string, placeholders map[string]string) {
	message := a.Get(playerID, ns, key, placeholders)
	a.deliver(playerID, message)
}

// SendCount resolves with plural selection and delivers.
func (a *API) SendCount(playerID, ns, key string, placeholders map[string]string, count int) {
	message := a.GetCount(playerID, ns, key, placeholders, count)
	a.deliver(playerID, message)
}

// SendBatch resolves several keys with shared placeholders and delivers
// them in order.
func (a *API) SendBatch(playerID, ns string, keys []string, shared map[string]string) {
	for _, key := range keys {
		a.Send(playerID, ns, key, shared)
	}
}

// Broadcast delivers a key to every known player in each player's own
// language.
func (a *API) Broadcast(ns, key string, placeholders map[string]string) {
	for _, id := range a.players.CachedIDs() {
		a.Send(id, ns, key, placeholders)
	}
}

func (a *API) deliver(playerID, message string) {
	if message == "" {
		return
	}
	a.scheduler.RunSync(func() {
		a.chat.SendMessage(playerID, message)
	})
}

// RegisterNamespace registers a namespace, running extractors when the
// owner's resource directory ships messages.yml or inventories.yml.
// Idempotent: an already-registered namespace is reloaded.
func (a *API) RegisterNamespace(ctx context.Context, ns, resourceDir string) error {
	if resourceDir != "" {
		if err := a.runExtractors(ns, resourceDir); err != nil {
			return err
		}
	}
	if a.manager.IsRegistered(ns) {
		return a.manager.Reload(ctx, ns)
	}
	return a.manager.Register(ctx, ns, resourceDir)
}

func (a *API) runExtractors(ns, resourceDir string) error {
	extractors := []struct {
		file string
		ex   extract.Extractor
	}{
		{"messages.yml", extract.AllExtractor{}},
		{"inventories.yml", extract.InventoryExtractor{}},
	}
	for _, e := range extractors {
		path := filepath.Join(resourceDir, e.file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		doc, err := extract.ParseFile(path)
		if err != nil {
			return fmt.Errorf("extract %s for %s: %w", e.file, ns, err)
		}
		if _, err := a.writer.WriteNamespace(ns, e.file, e.ex.Extract(doc)); err != nil {
			return err
		}
	}
	return nil
}

// CreateTranslation saves a scalar dynamic translation.
func (a *API) CreateTranslation(ctx context.Context, ns, key, lang, text string) error {
	return a.dynamic.Save(ctx, &models.Translation{
		Namespace: ns, Key: key, Language: lang, Text: text,
	})
}

// CreateWithPlurals saves a dynamic translation with plural forms.
func (a *API) CreateWithPlurals(ctx context.Context, ns, key, lang, text string, plurals models.PluralForms) error {
	return a.dynamic.Save(ctx, &models.Translation{
		Namespace: ns, Key: key, Language: lang, Text: text, Plurals: plurals,
	})
}

// UpdateTranslation overwrites an existing dynamic translation.
func (a *API) UpdateTranslation(ctx context.Context, ns, key, lang, text string) error {
	return a.CreateTranslation(ctx, ns, key, lang, text)
}

// DeleteTranslation removes a dynamic translation.
func (a *API) DeleteTranslation(ctx context.Context, ns, key, lang string) (bool, error) {
	return a.dynamic.Delete(ctx, ns, key, lang)
}

// DeleteAllTranslations removes every dynamic translation of a namespace.
func (a *API) DeleteAllTranslations(ctx context.Context, ns string) (int, error) {
	return a.dynamic.DeleteNamespace(ctx, ns)
}

// GetTranslation returns the persisted dynamic translation, or nil.
func (a *API) GetTranslation(ctx context.Context, ns, key, lang string) (*models.Translation, error) {
	return a.dynamic.Get(ctx, ns, key, lang)
}

// CountTranslations counts a namespace's dynamic translations.
func (a *API) CountTranslations(ctx context.Context, ns string) (int, error) {
	return a.dynamic.Count(ctx, ns)
}

// TranslationExists reports whether a dynamic translation is persisted.
func (a *API) TranslationExists(ctx context.Context, ns, key, lang string) (bool, error) {
	return a.dynamic.Exists(ctx, ns, key, lang)
}

// InvalidateCache drops the namespace's cache slice.
func (a *API) InvalidateCache(ns string) {
	a.caches.InvalidateNamespace(ns)
}

// Reload atomically reloads the namespace from disk.
func (a *API) Reload(ctx context.Context, ns string) error {
	return a.manager.Reload(ctx, ns)
}

// ExportNamespace writes the namespace's translations to
// <dataRoot>/exports/<ns>/<lang>.yml and returns the written paths.
func (a *API) ExportNamespace(ns string) ([]string, error) {
	dir := filepath.Join(a.cfg.DataRoot, "exports", ns)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	var written []string
	for _, lang := range a.reg.Languages() {
		snapshot := a.reg.Snapshot(lang, ns)
		if len(snapshot) == 0 {
			continue
		}
		entries := make(map[string]string, len(snapshot))
		for key, t := range snapshot {
			entries[key] = t.Text
		}
		data, err := syncengine.MarshalDocument(syncengine.BuildDocument(entries))
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, lang+".yml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write export %s: %w", path, err)
		}
		written = append(written, path)
	}
	a.logger.Info("exported namespace %s to %d files", ns, len(written))
	return written, nil
}

// ImportTranslations loads a YAML file into the dynamic store. Existing
// keys are skipped unless overwrite is set. Returns the number imported.
func (a *API) ImportTranslations(ctx context.Context, file, ns, lang string, overwrite bool) (int, error) {
	if err := models.ValidateLanguageCode(lang); err != nil {
		return 0, err
	}
	entries, err := loader.LoadFile(file)
	if err != nil {
		return 0, err
	}

	imported := 0
	for key, text := range entries {
		if !overwrite && a.reg.Get(lang, ns, key) != nil {
			continue
		}
		err := a.dynamic.Save(ctx, &models.Translation{
			Namespace: ns, Key: key, Language: lang, Text: text,
		})
		if err != nil {
			return imported, fmt.Errorf("import %s.%s: %w", ns, key, err)
		}
		imported++
	}
	a.logger.Info("imported %d translations into %s (%s)", imported, ns, lang)
	return imported, nil
}

// SyncNamespace uploads then downloads one namespace.
func (a *API) SyncNamespace(ctx context.Context, ns string) (*models.SyncResult, error) {
	if a.engine == nil {
		return nil, ErrCrowdinDisabled
	}
	return a.engine.SyncNamespace(ctx, ns)
}

// UploadNamespace runs the upload pipeline for one namespace.
func (a *API) UploadNamespace(ctx context.Context, ns string) (*models.SyncResult, error) {
	if a.engine == nil {
		return nil, ErrCrowdinDisabled
	}
	return a.engine.Upload(ctx, ns)
}

// DownloadNamespace runs the download pipeline for one namespace.
func (a *API) DownloadNamespace(ctx context.Context, ns string) (*models.SyncResult, error) {
	if a.engine == nil {
		return nil, ErrCrowdinDisabled
	}
	return a.engine.Download(ctx, ns)
}

// SyncAll runs a full sync across all sync namespaces.
func (a *API) SyncAll(ctx context.Context) (*models.SyncResult, error) {
	if a.engine == nil {
		return nil, ErrCrowdinDisabled
	}
	return a.engine.FullSync(ctx)
}

// IsSyncInProgress reports whether the engine is busy.
func (a *API) IsSyncInProgress() bool {
	return a.engine != nil && a.engine.Busy()
}

// LastSyncResult returns the most recent result for the namespace.
func (a *API) LastSyncResult(ns string) (*models.SyncResult, bool) {
	if a.engine == nil {
		return nil, false
	}
	return a.engine.LastResult(ns)
}

// TestConnection validates the Crowdin credentials.
func (a *API) TestConnection(ctx context.Context) (string, error) {
	if a.client == nil {
		return "", ErrCrowdinDisabled
	}
	project, err := a.client.TestConnection(ctx)
	if err != nil {
		return "", err
	}
	return project.Name, nil
}
