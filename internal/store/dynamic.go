package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/events"
	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/registry"
)

// NamespaceLocker serializes mutations against reloads of the same
// namespace. The namespace manager implements it.
type NamespaceLocker interface {
	WithNamespaceLock(ns string, fn func() error) error
}

// DynamicStore persists translations created or edited at runtime. Every
// mutation follows the same sequence: persist the row, register in the
// registry, invalidate the cache slice, publish a lifecycle event.
type DynamicStore struct {
	db     *sql.DB
	table  string
	reg    *registry.Registry
	caches *cache.Tiered
	bus    *events.Bus
	locker NamespaceLocker
	logger *logging.Logger

	// onDeleteAll runs after DeleteNamespace; the composition root wires
	// it to the resolver's missing-key reset when configured.
	onDeleteAll func()
}

// NewDynamicStore creates a dynamic translation store.
func NewDynamicStore(db *sql.DB, table string, reg *registry.Registry, caches *cache.Tiered, bus *events.Bus, locker NamespaceLocker) *DynamicStore {
	return &DynamicStore{
		db:     db,
		table:  table,
		reg:    reg,
		caches: caches,
		bus:    bus,
		locker: locker,
		logger: logging.GetLogger("dynamic-store"),
	}
}

// SetDeleteAllHook installs a callback invoked after DeleteNamespace.
func (s *DynamicStore) SetDeleteAllHook(fn func()) {
	s.onDeleteAll = fn
}

// Save inserts or updates a translation and makes it visible to resolvers.
func (s *DynamicStore) Save(ctx context.Context, t *models.Translation) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.locker.WithNamespaceLock(t.Namespace, func() error {
		old := s.reg.Get(t.Language, t.Namespace, t.Key)
		if err := s.upsert(ctx, t); err != nil {
			return err
		}
		t.UpdatedAt = time.Now().UTC()
		if err := s.registerEntry(t); err != nil {
			return err
		}
		s.caches.Invalidate(t.Language, t.Namespace, t.Key)
		for category := range t.Plurals {
			s.caches.Invalidate(t.Language, t.Namespace, t.Key+"."+string(category))
		}

		eventType := models.EventCreated
		if old != nil {
			eventType = models.EventUpdated
		}
		s.bus.Publish(models.TranslationEvent{
			Type:      eventType,
			Namespace: t.Namespace,
			Key:       t.Key,
			Language:  t.Language,
			Old:       old,
			New:       t,
			At:        time.Now(),
		})
		return nil
	})
}

// Get returns the persisted translation or nil when absent.
func (s *DynamicStore) Get(ctx context.Context, ns, key, lang string) (*models.Translation, error) {
	query := s.selectClause() + ` WHERE namespace = ? AND translation_key = ? AND language = ?`
	row := s.db.QueryRowContext(ctx, query, ns, key, lang)
	t, err := scanTranslation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// Delete removes a translation and reports whether one existed.
func (s *DynamicStore) Delete(ctx context.Context, ns, key, lang string) (bool, error) {
	var existed bool
	err := s.locker.WithNamespaceLock(ns, func() error {
		query := fmt.Sprintf(
			`DELETE FROM %s WHERE namespace = ? AND translation_key = ? AND language = ?`, s.table)
		res, err := s.db.ExecContext(ctx, query, ns, key, lang)
		if err != nil {
			return fmt.Errorf("delete translation: %w", err)
		}
		n, _ := res.RowsAffected()
		existed = n > 0
		if !existed {
			return nil
		}

		old := s.unregisterEntry(lang, ns, key)
		s.caches.Invalidate(lang, ns, key)
		if old != nil {
			for category := range old.Plurals {
				s.caches.Invalidate(lang, ns, key+"."+string(category))
			}
		}
		s.bus.Publish(models.TranslationEvent{
			Type:      models.EventDeleted,
			Namespace: ns,
			Key:       key,
			Language:  lang,
			Old:       old,
			At:        time.Now(),
		})
		return nil
	})
	return existed, err
}

// DeleteNamespace removes every dynamic translation of the namespace and
// returns how many were deleted.
func (s *DynamicStore) DeleteNamespace(ctx context.Context, ns string) (int, error) {
	var deleted int
	err := s.locker.WithNamespaceLock(ns, func() error {
		rows, err := s.queryTranslations(ctx, s.selectClause()+` WHERE namespace = ?`, ns)
		if err != nil {
			return err
		}

		query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = ?`, s.table)
		if _, err := s.db.ExecContext(ctx, query, ns); err != nil {
			return fmt.Errorf("delete namespace %s: %w", ns, err)
		}
		deleted = len(rows)

		for _, t := range rows {
			old := s.unregisterEntry(t.Language, ns, t.Key)
			s.bus.Publish(models.TranslationEvent{
				Type:      models.EventDeleted,
				Namespace: ns,
				Key:       t.Key,
				Language:  t.Language,
				Old:       old,
				At:        time.Now(),
			})
		}
		s.caches.InvalidateNamespace(ns)
		return nil
	})
	if err == nil && deleted > 0 && s.onDeleteAll != nil {
		s.onDeleteAll()
	}
	return deleted, err
}

// Count returns the number of dynamic translations in the namespace.
func (s *DynamicStore) Count(ctx context.Context, ns string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE namespace = ?`, s.table)
	var n int
	if err := s.db.QueryRowContext(ctx, query, ns).Scan(&n); err != nil {
		return 0, fmt.Errorf("count namespace %s: %w", ns, err)
	}
	return n, nil
}

// Exists reports whether a dynamic translation is persisted.
func (s *DynamicStore) Exists(ctx context.Context, ns, key, lang string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT 1 FROM %s WHERE namespace = ? AND translation_key = ? AND language = ?`, s.table)
	var one int
	err := s.db.QueryRowContext(ctx, query, ns, key, lang).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check translation existence: %w", err)
	}
	return true, nil
}

// LoadAll registers every persisted dynamic translation in the registry.
// Called once at startup, after file namespaces are loaded, so dynamic
// edits shadow file-based entries.
func (s *DynamicStore) LoadAll(ctx context.Context) (int, error) {
	rows, err := s.queryTranslations(ctx, s.selectClause())
	if err != nil {
		return 0, err
	}
	namespaces := make(map[string]struct{})
	for _, t := range rows {
		if err := s.registerEntry(t); err != nil {
			s.logger.Warn("skipping invalid persisted translation %s.%s: %v", t.Namespace, t.Key, err)
			continue
		}
		namespaces[t.Namespace] = struct{}{}
	}
	for ns := range namespaces {
		s.caches.InvalidateNamespace(ns)
	}
	return len(rows), nil
}

// Namespaces lists the distinct namespaces with dynamic translations.
func (s *DynamicStore) Namespaces(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT namespace FROM %s ORDER BY namespace`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// UpdateSyncStatus sets the sync status of one translation.
func (s *DynamicStore) UpdateSyncStatus(ctx context.Context, ns, key, lang string, status models.SyncStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET sync_status = ?, updated_at = ?
		WHERE namespace = ? AND translation_key = ? AND language = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, string(status), time.Now().UTC(), ns, key, lang); err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return nil
}

// UpdateCrowdinHash records the uploaded-content hash and sync timestamp.
func (s *DynamicStore) UpdateCrowdinHash(ctx context.Context, ns, key, lang, hash string) error {
	query := fmt.Sprintf(`UPDATE %s SET crowdin_hash = ?, last_synced_at = ?
		WHERE namespace = ? AND translation_key = ? AND language = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, hash, time.Now().UTC(), ns, key, lang); err != nil {
		return fmt.Errorf("update crowdin hash: %w", err)
	}
	return nil
}

// FindPendingSync returns the namespace's translations awaiting upload.
func (s *DynamicStore) FindPendingSync(ctx context.Context, ns string) ([]*models.Translation, error) {
	return s.FindByStatus(ctx, ns, models.SyncPending)
}

// FindByStatus returns the namespace's translations with the given status.
func (s *DynamicStore) FindByStatus(ctx context.Context, ns string, status models.SyncStatus) ([]*models.Translation, error) {
	return s.queryTranslations(ctx,
		s.selectClause()+` WHERE namespace = ? AND sync_status = ?`, ns, string(status))
}

// GetCrowdinHashes maps full keys ("ns.key") to the hash recorded at the
// last successful upload. Entries never uploaded are absent.
func (s *DynamicStore) GetCrowdinHashes(ctx context.Context, ns string) (map[string]string, error) {
	query := fmt.Sprintf(`SELECT translation_key, crowdin_hash FROM %s
		WHERE namespace = ? AND crowdin_hash IS NOT NULL`, s.table)
	rows, err := s.db.QueryContext(ctx, query, ns)
	if err != nil {
		return nil, fmt.Errorf("load crowdin hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, err
		}
		out[ns+"."+key] = hash
	}
	return out, rows.Err()
}

// BatchUpdateSyncStatus updates the status of many keys in one transaction.
func (s *DynamicStore) BatchUpdateSyncStatus(ctx context.Context, ns string, keys []string, status models.SyncStatus) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch status update: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`UPDATE %s SET sync_status = ?, updated_at = ?
		WHERE namespace = ? AND translation_key = ?`, s.table)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch status update: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, string(status), now, ns, key); err != nil {
			return fmt.Errorf("update status for %s.%s: %w", ns, key, err)
		}
	}
	return tx.Commit()
}

// registerEntry registers the base entry plus one suffixed entry per
// plural form, matching the flat key layout the resolver looks up.
func (s *DynamicStore) registerEntry(t *models.Translation) error {
	if err := s.reg.Register(t); err != nil {
		return err
	}
	for category, form := range t.Plurals {
		err := s.reg.Register(&models.Translation{
			Namespace: t.Namespace,
			Key:       t.Key + "." + string(category),
			Language:  t.Language,
			Text:      form,
			UpdatedAt: t.UpdatedAt,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// unregisterEntry removes the base entry and any plural-form entries,
// returning the removed base entry.
func (s *DynamicStore) unregisterEntry(lang, ns, key string) *models.Translation {
	old := s.reg.Unregister(lang, ns, key)
	if old != nil {
		for category := range old.Plurals {
			s.reg.Unregister(lang, ns, key+"."+string(category))
		}
	}
	return old
}

func (s *DynamicStore) upsert(ctx context.Context, t *models.Translation) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO %s
		(namespace, translation_key, language, text,
		 plural_zero, plural_one, plural_two, plural_few, plural_many, plural_other,
		 sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, translation_key, language) DO UPDATE SET
			text = excluded.text,
			plural_zero = excluded.plural_zero,
			plural_one = excluded.plural_one,
			plural_two = excluded.plural_two,
			plural_few = excluded.plural_few,
			plural_many = excluded.plural_many,
			plural_other = excluded.plural_other,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		t.Namespace, t.Key, t.Language, t.Text,
		pluralColumn(t, models.PluralZero),
		pluralColumn(t, models.PluralOne),
		pluralColumn(t, models.PluralTwo),
		pluralColumn(t, models.PluralFew),
		pluralColumn(t, models.PluralMany),
		pluralColumn(t, models.PluralOther),
		string(models.SyncPending), now, now)
	if err != nil {
		return fmt.Errorf("upsert translation %s.%s: %w", t.Namespace, t.Key, err)
	}
	return nil
}

func (s *DynamicStore) selectClause() string {
	return fmt.Sprintf(`SELECT namespace, translation_key, language, text,
		plural_zero, plural_one, plural_two, plural_few, plural_many, plural_other,
		crowdin_hash, updated_at FROM %s`, s.table)
}

func (s *DynamicStore) queryTranslations(ctx context.Context, query string, args ...any) ([]*models.Translation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query translations: %w", err)
	}
	defer rows.Close()

	var out []*models.Translation
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranslation(row rowScanner) (*models.Translation, error) {
	var (
		t       models.Translation
		plurals [6]sql.NullString
		hash    sql.NullString
	)
	err := row.Scan(&t.Namespace, &t.Key, &t.Language, &t.Text,
		&plurals[0], &plurals[1], &plurals[2], &plurals[3], &plurals[4], &plurals[5],
		&hash, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.SourceHash = hash.String

	hasPlural := false
	for _, p := range plurals {
		if p.Valid {
			hasPlural = true
			break
		}
	}
	if hasPlural {
		forms := make(models.PluralForms)
		for i, category := range models.PluralCategories {
			if plurals[i].Valid {
				forms[category] = plurals[i].String
			}
		}
		if _, ok := forms[models.PluralOther]; !ok {
			forms[models.PluralOther] = t.Text
		}
		t.Plurals = forms
	}
	return &t, nil
}

func pluralColumn(t *models.Translation, category models.PluralCategory) any {
	if t.Plurals == nil {
		return nil
	}
	form, ok := t.Plurals[category]
	if !ok {
		return nil
	}
	return form
}
