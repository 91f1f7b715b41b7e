package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openlocale/openlocale/internal/api"
	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/config"
	"github.com/openlocale/openlocale/internal/crowdin"
	"github.com/openlocale/openlocale/internal/events"
	"github.com/openlocale/openlocale/internal/extract"
	"github.com/openlocale/openlocale/internal/host"
	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/metrics"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/namespace"
	"github.com/openlocale/openlocale/internal/registry"
	"github.com/openlocale/openlocale/internal/resolver"
	"github.com/openlocale/openlocale/internal/store"
	syncengine "github.com/openlocale/openlocale/internal/sync"
)

// app bundles the wired engine for the commands. serve runs it under the
// lifecycle manager; the one-shot commands use it directly and Close it.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	reg     *registry.Registry
	caches  *cache.Tiered
	bus     *events.Bus
	manager *namespace.Manager
	players *store.PlayerStore
	dynamic *store.DynamicStore
	metrics *metrics.Metrics

	// client and engine are nil when crowdin.enabled is false.
	client *crowdin.Client
	engine *syncengine.Engine

	scheduler *host.AsyncScheduler
	api       *api.API
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath, crowdinPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, err
	}

	tables := store.Tables{
		PlayerLanguage:      cfg.Database.Tables.PlayerLanguage,
		DynamicTranslations: cfg.Database.Tables.DynamicTranslations,
	}
	db, err := store.Open(cfg.Database.Datasource, tables)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	caches, err := cache.NewTiered(
		cache.Config{MaxSize: cfg.Cache.L1.MaxSize, TTL: cfg.L1TTL()},
		cache.Config{MaxSize: cfg.Cache.L3.MaxSize, TTL: cfg.L3TTL()},
	)
	if err != nil {
		db.Close()
		return nil, err
	}
	bus := events.NewBus()

	root := filepath.Join(cfg.DataRoot, "languages")
	manager := namespace.New(root, cfg.EnabledLanguages(), cfg.Sync.SourceLanguage, reg, caches, bus)
	if err := registerExistingNamespaces(ctx, manager, root, cfg.Sync.SourceLanguage); err != nil {
		db.Close()
		return nil, err
	}

	players := store.NewPlayerStore(db, tables.PlayerLanguage)
	dynamic := store.NewDynamicStore(db, tables.DynamicTranslations, reg, caches, bus, manager)
	if n, err := dynamic.LoadAll(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("load dynamic translations: %w", err)
	} else if n > 0 {
		logging.GetLogger("bootstrap").Info("restored %d dynamic translations", n)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	res := resolver.New(reg, caches, resolver.Options{
		DefaultLanguage:         cfg.Language.Default,
		MissingFormat:           cfg.Missing.Format,
		ShowKey:                 cfg.Missing.ShowKey,
		LogMissing:              cfg.Missing.Log,
		CachePlaceholderResults: cfg.Cache.CachePlaceholderResults,
		OnResolved: func(lang string) {
			m.ResolutionsTotal.WithLabelValues(lang).Inc()
		},
		OnMissing: m.MissingTotal.Inc,
	})
	if cfg.Missing.ResetOnDeleteAll {
		dynamic.SetDeleteAllHook(res.ResetMissingTracking)
	}

	var langCodes []string
	for _, l := range cfg.EnabledLanguages() {
		langCodes = append(langCodes, l.Code)
	}
	writer := extract.NewWriter(root, cfg.Sync.SourceLanguage, langCodes)

	var client *crowdin.Client
	var engine *syncengine.Engine
	if cfg.Crowdin.Enabled {
		client = crowdin.NewClient(crowdin.Options{
			BaseURL:            cfg.Crowdin.BaseURL,
			Token:              cfg.Crowdin.Token,
			ProjectID:          int64(cfg.Crowdin.ProjectID),
			ServerID:           cfg.Crowdin.ServerID,
			DirectoryOverrides: cfg.Crowdin.NamespaceDirectories,
			Timeout:            time.Duration(cfg.Sync.Advanced.TimeoutSeconds) * time.Second,
			MaxRetries:         cfg.Sync.Advanced.MaxRetries,
		})
		state, err := syncengine.LoadState(filepath.Join(cfg.DataRoot, "cache", "crowdin-state.json"))
		if err != nil {
			db.Close()
			return nil, err
		}
		engine = syncengine.New(cfg, client, dynamic, reg, caches, manager, state, manager.Registered)
		engine.SetResultHook(func(r *models.SyncResult) {
			m.SyncRunsTotal.WithLabelValues(string(r.Operation), string(r.Status)).Inc()
		})
	}

	scheduler := host.NewAsyncScheduler()
	facade := api.New(api.Deps{
		Config:    cfg,
		Registry:  reg,
		Caches:    caches,
		Resolver:  res,
		Players:   players,
		Dynamic:   dynamic,
		Manager:   manager,
		Writer:    writer,
		Engine:    engine,
		Client:    client,
		Scheduler: scheduler,
		Chat:      host.NewLogTransport(),
	})

	return &app{
		cfg:       cfg,
		db:        db,
		reg:       reg,
		caches:    caches,
		bus:       bus,
		manager:   manager,
		players:   players,
		dynamic:   dynamic,
		metrics:   m,
		client:    client,
		engine:    engine,
		scheduler: scheduler,
		api:       facade,
	}, nil
}

func (a *app) close(ctx context.Context) {
	_ = a.scheduler.Shutdown(ctx)
	a.bus.Close()
	_ = a.db.Close()
}

// registerExistingNamespaces re-registers every namespace that already has
// a directory under the source language.
func registerExistingNamespaces(ctx context.Context, manager *namespace.Manager, root, sourceLang string) error {
	entries, err := os.ReadDir(filepath.Join(root, sourceLang))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan namespaces: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := manager.Register(ctx, e.Name(), ""); err != nil {
			return fmt.Errorf("register namespace %s: %w", e.Name(), err)
		}
	}
	return nil
}
