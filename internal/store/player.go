package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/models"
)

// PlayerStore maps player ids to language preferences. Reads are served
// from an in-memory cache; writes update the cache synchronously and are
// persisted by a background worker, so a persistence failure never blocks
// or degrades the caller.
type PlayerStore struct {
	db     *sql.DB
	table  string
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]models.PlayerLanguagePref

	persistCh chan persistOp
	workerWg  sync.WaitGroup
	stopped   atomic.Bool
}

type persistOp struct {
	pref   models.PlayerLanguagePref
	remove bool
	id     string
}

const persistQueueSize = 1024

// NewPlayerStore creates a player language store backed by db.
func NewPlayerStore(db *sql.DB, table string) *PlayerStore {
	return &PlayerStore{
		db:        db,
		table:     table,
		logger:    logging.GetLogger("player-store"),
		cache:     make(map[string]models.PlayerLanguagePref),
		persistCh: make(chan persistOp, persistQueueSize),
	}
}

// Name implements lifecycle.Component.
func (s *PlayerStore) Name() string { return "player-store" }

// Start preloads all persisted preferences into the cache and launches
// the persistence worker.
func (s *PlayerStore) Start(ctx context.Context) error {
	if err := s.preload(ctx); err != nil {
		return err
	}
	s.workerWg.Add(1)
	go s.persistWorker()
	s.logger.Info("player store started with %d cached preferences", s.Size())
	return nil
}

// Stop drains the persistence queue and flushes the cache. The caller's
// context bounds the flush; entries that cannot be written in time are
// recovered from the cache-behind database state on next start.
func (s *PlayerStore) Stop(ctx context.Context) error {
	if s.stopped.Swap(true) {
		return nil
	}
	close(s.persistCh)

	done := make(chan struct{})
	go func() {
		s.workerWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("persistence worker did not drain before deadline")
		return ctx.Err()
	}
	return s.SaveAll(ctx)
}

func (s *PlayerStore) preload(ctx context.Context) error {
	query := fmt.Sprintf(
		`SELECT uuid, language, auto_detected, first_join, updated_at FROM %s`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preload player languages: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var p models.PlayerLanguagePref
		if err := rows.Scan(&p.PlayerID, &p.Language, &p.AutoDetected, &p.FirstSeenAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("scan player language: %w", err)
		}
		s.cache[p.PlayerID] = p
	}
	return rows.Err()
}

func (s *PlayerStore) persistWorker() {
	defer s.workerWg.Done()
	for op := range s.persistCh {
		var err error
		if op.remove {
			err = s.deleteRow(context.Background(), op.id)
		} else {
			err = s.upsertRow(context.Background(), op.pref)
		}
		if err != nil {
			s.logger.ErrorWithErr("persist player language", err)
		}
	}
}

func (s *PlayerStore) enqueue(op persistOp) {
	if s.stopped.Load() {
		return
	}
	select {
	case s.persistCh <- op:
	default:
		// Queue saturated, write inline rather than lose the update.
		s.logger.Warn("persistence queue full, writing synchronously")
		var err error
		if op.remove {
			err = s.deleteRow(context.Background(), op.id)
		} else {
			err = s.upsertRow(context.Background(), op.pref)
		}
		if err != nil {
			s.logger.ErrorWithErr("persist player language", err)
		}
	}
}

// Get returns the preference for id, consulting the database on a cache
// miss. A player with no stored preference yields (nil, nil).
func (s *PlayerStore) Get(ctx context.Context, id string) (*models.PlayerLanguagePref, error) {
	if p, ok := s.GetCached(id); ok {
		return p, nil
	}

	query := fmt.Sprintf(
		`SELECT uuid, language, auto_detected, first_join, updated_at FROM %s WHERE uuid = ?`, s.table)
	var p models.PlayerLanguagePref
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.PlayerID, &p.Language, &p.AutoDetected, &p.FirstSeenAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query player language: %w", err)
	}

	s.mu.Lock()
	s.cache[p.PlayerID] = p
	s.mu.Unlock()
	out := p
	return &out, nil
}

// GetCached returns the cached preference without touching the database.
func (s *PlayerStore) GetCached(id string) (*models.PlayerLanguagePref, bool) {
	s.mu.RLock()
	p, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := p
	return &out, true
}

// Set records a language preference. The cache reflects the new value
// before Set returns; persistence happens in the background.
func (s *PlayerStore) Set(id, lang string, autoDetected bool) error {
	if err := models.ValidateLanguageCode(lang); err != nil {
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	p, ok := s.cache[id]
	if !ok {
		p = models.PlayerLanguagePref{PlayerID: id, FirstSeenAt: now}
	}
	p.Language = lang
	p.AutoDetected = autoDetected
	p.UpdatedAt = now
	s.cache[id] = p
	s.mu.Unlock()

	s.enqueue(persistOp{pref: p})
	return nil
}

// AutoDetect stores a normalized preference for a player seen for the
// first time. Existing preferences, including earlier auto-detections,
// are left untouched. Returns the normalized code that is now in effect.
func (s *PlayerStore) AutoDetect(id, rawLocale string) (string, error) {
	if p, ok := s.GetCached(id); ok {
		return p.Language, nil
	}
	lang, err := models.NormalizeLocale(rawLocale)
	if err != nil {
		return "", err
	}
	if err := s.Set(id, lang, true); err != nil {
		return "", err
	}
	return lang, nil
}

// Remove deletes the preference and reports whether one existed. The
// database row is removed in the background.
func (s *PlayerStore) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.cache[id]
	delete(s.cache, id)
	s.mu.Unlock()

	s.enqueue(persistOp{remove: true, id: id})
	return ok
}

// ListByLanguage returns the ids of all players with the given language.
func (s *PlayerStore) ListByLanguage(ctx context.Context, lang string) ([]string, error) {
	query := fmt.Sprintf(`SELECT uuid FROM %s WHERE language = ? ORDER BY uuid`, s.table)
	rows, err := s.db.QueryContext(ctx, query, lang)
	if err != nil {
		return nil, fmt.Errorf("list players by language: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Histogram returns the number of players per language, from the cache.
func (s *PlayerStore) Histogram() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, p := range s.cache {
		out[p.Language]++
	}
	return out
}

// SaveAll writes every cached preference to the database synchronously.
func (s *PlayerStore) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	prefs := make([]models.PlayerLanguagePref, 0, len(s.cache))
	for _, p := range s.cache {
		prefs = append(prefs, p)
	}
	s.mu.RUnlock()

	for _, p := range prefs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.upsertRow(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// CachedIDs returns the ids of all cached players.
func (s *PlayerStore) CachedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	return ids
}

// Size returns the number of cached preferences.
func (s *PlayerStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *PlayerStore) upsertRow(ctx context.Context, p models.PlayerLanguagePref) error {
	query := fmt.Sprintf(`INSERT INTO %s (uuid, language, auto_detected, first_join, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			language = excluded.language,
			auto_detected = excluded.auto_detected,
			updated_at = excluded.updated_at`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		p.PlayerID, p.Language, p.AutoDetected, p.FirstSeenAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert player language: %w", err)
	}
	return nil
}

func (s *PlayerStore) deleteRow(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE uuid = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete player language: %w", err)
	}
	return nil
}
