// Package sync orchestrates translation synchronization with Crowdin:
// the upload pipeline (change detection, full-document serialization,
// storage and file management), the download pipeline (build, archive
// parse, three-way merge with conflict policies) and the periodic
// scheduler. A single engine-wide busy flag rejects overlapping runs.
package sync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/config"
	"github.com/openlocale/openlocale/internal/crowdin"
	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/registry"
	"github.com/openlocale/openlocale/internal/store"
)

// ErrSyncInProgress is returned when a sync is requested while another
// run holds the engine.
var ErrSyncInProgress = errors.New("sync already in progress")

// maxBuildWait bounds build polling per download.
const maxBuildWait = 60 * time.Second

// backupsToKeep bounds retained pre-sync backups per namespace.
const backupsToKeep = 5

// RemoteClient is the slice of the Crowdin client the engine uses.
type RemoteClient interface {
	FilePath(ns string) string
	DirSegments(ns string) []string
	UploadStorage(ctx context.Context, fileName string, content []byte) (int64, error)
	FindFileByPath(ctx context.Context, path string) (*crowdin.File, error)
	AddFile(ctx context.Context, storageID int64, name string, directoryID int64) (*crowdin.File, error)
	UpdateFile(ctx context.Context, fileID, storageID int64) error
	UploadTranslation(ctx context.Context, languageID string, fileID, storageID int64) error
	EnsureDirectory(ctx context.Context, segments []string) (int64, error)
	BuildProject(ctx context.Context, approvedOnly, skipUntranslated bool) (*crowdin.Build, error)
	WaitForBuild(ctx context.Context, buildID int64, maxWait time.Duration) error
	DownloadURL(ctx context.Context, buildID int64) (string, error)
	DownloadArchive(ctx context.Context, url string) ([]byte, error)
}

// Engine drives uploads and downloads for registered namespaces.
type Engine struct {
	cfg     *config.Config
	client  RemoteClient
	dynamic *store.DynamicStore
	reg     *registry.Registry
	caches  *cache.Tiered
	locker  store.NamespaceLocker
	state   *State
	logger  *logging.Logger

	// namespaces returns the set to sync when the descriptor lists none.
	namespaces func() []string

	busy atomic.Bool

	mu       stdsync.Mutex
	results  map[string]*models.SyncResult
	onResult func(*models.SyncResult)
}

// New creates a sync engine. namespaces supplies the registered set used
// when crowdin.yml does not pin sync-namespaces.
func New(cfg *config.Config, client RemoteClient, dynamic *store.DynamicStore, reg *registry.Registry, caches *cache.Tiered, locker store.NamespaceLocker, state *State, namespaces func() []string) *Engine {
	return &Engine{
		cfg:        cfg,
		client:     client,
		dynamic:    dynamic,
		reg:        reg,
		caches:     caches,
		locker:     locker,
		state:      state,
		logger:     logging.GetLogger("sync"),
		namespaces: namespaces,
		results:    make(map[string]*models.SyncResult),
	}
}

// Busy reports whether a sync run is in progress.
func (e *Engine) Busy() bool { return e.busy.Load() }

// LastResult returns the most recent result for the namespace.
func (e *Engine) LastResult(ns string) (*models.SyncResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.results[ns]
	return r, ok
}

func (e *Engine) recordResult(r *models.SyncResult) *models.SyncResult {
	e.mu.Lock()
	e.results[r.Namespace] = r
	hook := e.onResult
	e.mu.Unlock()
	if hook != nil {
		hook(r)
	}
	return r
}

// SetResultHook installs a callback invoked with every recorded sync
// result. Used to feed the sync-run metrics.
func (e *Engine) SetResultHook(fn func(*models.SyncResult)) {
	e.mu.Lock()
	e.onResult = fn
	e.mu.Unlock()
}

// acquire claims the engine-wide flag; callers must release on success.
func (e *Engine) acquire() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	return nil
}

func (e *Engine) release() { e.busy.Store(false) }

// SyncNamespaces returns the namespaces a full sync covers.
func (e *Engine) SyncNamespaces() []string {
	if len(e.cfg.Sync.SyncNamespaces) > 0 {
		return e.cfg.Sync.SyncNamespaces
	}
	return e.namespaces()
}

// Upload runs the upload pipeline for one namespace.
func (e *Engine) Upload(ctx context.Context, ns string) (*models.SyncResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.recordResult(e.uploadNamespace(ctx, ns)), nil
}

// Download runs the download pipeline for one namespace.
func (e *Engine) Download(ctx context.Context, ns string) (*models.SyncResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.recordResult(e.downloadNamespace(ctx, ns)), nil
}

// SyncNamespace uploads then downloads one namespace under a single
// busy-flag acquisition.
func (e *Engine) SyncNamespace(ctx context.Context, ns string) (*models.SyncResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	up := e.recordResult(e.uploadNamespace(ctx, ns))
	if up.Status == models.SyncFailed {
		return up, nil
	}
	return e.recordResult(e.downloadNamespace(ctx, ns)), nil
}

// FullSync uploads then downloads every sync namespace sequentially.
func (e *Engine) FullSync(ctx context.Context) (*models.SyncResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	total := models.NewSyncResult(models.OpFull, "*")
	failed := 0
	namespaces := e.SyncNamespaces()
	for _, ns := range namespaces {
		up := e.recordResult(e.uploadNamespace(ctx, ns))
		total.Uploaded += up.Uploaded
		total.Skipped += up.Skipped
		if up.Status == models.SyncFailed {
			failed++
			total.Errors = append(total.Errors, up.Errors...)
			continue
		}
		down := e.recordResult(e.downloadNamespace(ctx, ns))
		total.Downloaded += down.Downloaded
		total.Skipped += down.Skipped
		total.Conflicts += down.Conflicts
		if down.Status == models.SyncFailed {
			failed++
			total.Errors = append(total.Errors, down.Errors...)
		}
	}

	switch {
	case failed == 0:
		total.Complete(models.SyncSuccess)
	case failed == len(namespaces):
		total.Complete(models.SyncFailed)
	default:
		total.Complete(models.SyncPartial)
	}
	e.recordResult(total)
	return total, nil
}

func md5hex(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// snapshotStrings captures the namespace's entries for one language under
// the namespace lock, flattened to key -> text.
func (e *Engine) snapshotStrings(lang, ns string) map[string]string {
	out := make(map[string]string)
	_ = e.locker.WithNamespaceLock(ns, func() error {
		for key, t := range e.reg.Snapshot(lang, ns) {
			out[key] = t.Text
		}
		return nil
	})
	return out
}

func (e *Engine) uploadNamespace(ctx context.Context, ns string) *models.SyncResult {
	result := models.NewSyncResult(models.OpUpload, ns)
	sourceLang := e.cfg.Sync.SourceLanguage

	entries := e.snapshotStrings(sourceLang, ns)
	if len(entries) == 0 {
		e.logger.Info("namespace %s has no %s entries, nothing to upload", ns, sourceLang)
		return result.Complete(models.SyncSuccess)
	}

	hashes := make(map[string]string, len(entries))
	var changed []string
	for key, text := range entries {
		hashes[key] = md5hex(text)
		if e.state.Hash(sourceLang, ns, key) != hashes[key] {
			changed = append(changed, key)
		}
	}
	if len(changed) == 0 {
		e.logger.Info("namespace %s unchanged since last upload, skipping", ns)
		result.Skipped = len(entries)
		return result.Complete(models.SyncSuccess)
	}

	// The remote replaces the file wholesale, so the full document is
	// serialized even though only some entries changed.
	data, err := MarshalDocument(BuildDocument(entries))
	if err != nil {
		return result.Fail(err)
	}

	storageID, err := e.client.UploadStorage(ctx, ns+".yml", data)
	if err != nil {
		return result.Fail(fmt.Errorf("upload storage for %s: %w", ns, err))
	}

	path := e.client.FilePath(ns)
	file, err := e.client.FindFileByPath(ctx, path)
	if err != nil {
		return result.Fail(fmt.Errorf("lookup remote file %s: %w", path, err))
	}
	if file == nil {
		dirID, err := e.client.EnsureDirectory(ctx, e.client.DirSegments(ns))
		if err != nil {
			return result.Fail(fmt.Errorf("ensure remote directory for %s: %w", ns, err))
		}
		if file, err = e.client.AddFile(ctx, storageID, ns+".yml", dirID); err != nil {
			return result.Fail(fmt.Errorf("add remote file %s: %w", path, err))
		}
	} else if err := e.client.UpdateFile(ctx, file.ID, storageID); err != nil {
		return result.Fail(fmt.Errorf("update remote file %s: %w", path, err))
	}

	if e.cfg.Crowdin.UploadTranslations {
		if err := e.uploadTranslations(ctx, ns, file.ID); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	for key, hash := range hashes {
		e.state.SetHash(sourceLang, ns, key, hash)
	}
	e.state.MarkSynced(ns, time.Now())
	if err := e.state.Save(); err != nil {
		e.logger.ErrorWithErr("persist sync state", err)
	}
	if err := e.dynamic.BatchUpdateSyncStatus(ctx, ns, changed, models.SyncSynced); err != nil {
		e.logger.ErrorWithErr("persist sync status", err)
	}
	for _, key := range changed {
		if err := e.dynamic.UpdateCrowdinHash(ctx, ns, key, sourceLang, hashes[key]); err != nil {
			e.logger.ErrorWithErr("persist crowdin hash", err)
		}
	}

	result.Uploaded = len(changed)
	result.Skipped = len(entries) - len(changed)
	e.logger.Info("uploaded namespace %s: %d changed, %d skipped", ns, result.Uploaded, result.Skipped)
	if len(result.Errors) > 0 {
		return result.Complete(models.SyncPartial)
	}
	return result.Complete(models.SyncSuccess)
}

// uploadTranslations pushes non-source language files for the namespace.
func (e *Engine) uploadTranslations(ctx context.Context, ns string, fileID int64) error {
	remoteByInternal := make(map[string]string, len(e.cfg.Sync.LocaleMapping))
	for remote, internal := range e.cfg.Sync.LocaleMapping {
		remoteByInternal[internal] = remote
	}

	for _, lang := range e.cfg.EnabledLanguages() {
		if lang.Code == e.cfg.Sync.SourceLanguage {
			continue
		}
		remote, ok := remoteByInternal[lang.Code]
		if !ok {
			continue
		}
		entries := e.snapshotStrings(lang.Code, ns)
		if len(entries) == 0 {
			continue
		}
		data, err := MarshalDocument(BuildDocument(entries))
		if err != nil {
			return err
		}
		storageID, err := e.client.UploadStorage(ctx, ns+"-"+lang.Code+".yml", data)
		if err != nil {
			return fmt.Errorf("upload %s translations for %s: %w", lang.Code, ns, err)
		}
		if err := e.client.UploadTranslation(ctx, remote, fileID, storageID); err != nil {
			return fmt.Errorf("attach %s translations for %s: %w", lang.Code, ns, err)
		}
	}
	return nil
}

func (e *Engine) backupDir() string {
	return filepath.Join(e.cfg.DataRoot, "cache", "backups")
}

func (e *Engine) conflictsPath() string {
	return filepath.Join(e.cfg.DataRoot, "cache", "conflicts.json")
}

func (e *Engine) downloadNamespace(ctx context.Context, ns string) *models.SyncResult {
	result := models.NewSyncResult(models.OpDownload, ns)

	var backup *Backup
	if e.cfg.Crowdin.BackupBeforeSync {
		backup = e.snapshotBackup(ns)
		if _, err := WriteBackup(e.backupDir(), backup, backupsToKeep); err != nil {
			return result.Fail(fmt.Errorf("write pre-sync backup for %s: %w", ns, err))
		}
	}

	build, err := e.client.BuildProject(ctx,
		e.cfg.Sync.Download.ExportApprovedOnly, e.cfg.Sync.Download.SkipUntranslated)
	if err != nil {
		return result.Fail(fmt.Errorf("request build: %w", err))
	}
	if err := e.client.WaitForBuild(ctx, build.ID, maxBuildWait); err != nil {
		return result.Fail(err)
	}
	url, err := e.client.DownloadURL(ctx, build.ID)
	if err != nil {
		return result.Fail(fmt.Errorf("resolve download url: %w", err))
	}
	archive, err := e.client.DownloadArchive(ctx, url)
	if err != nil {
		return result.Fail(fmt.Errorf("download archive: %w", err))
	}

	entries, err := ParseArchive(archive, e.cfg.Sync.LocaleMapping)
	if err != nil {
		return result.Fail(err)
	}

	policy := models.ConflictPolicy(e.cfg.Crowdin.ConflictResolution)
	var conflicts []models.ConflictRecord
	for _, entry := range entries {
		if entry.Namespace != ns {
			continue
		}
		if err := e.merge(ctx, ns, entry, policy, result, &conflicts); err != nil {
			e.rollback(ns, backup)
			return result.Fail(err)
		}
	}

	if err := AppendConflicts(e.conflictsPath(), conflicts); err != nil {
		e.logger.ErrorWithErr("record conflicts", err)
	}

	e.state.MarkSynced(ns, time.Now())
	if err := e.state.Save(); err != nil {
		e.logger.ErrorWithErr("persist sync state", err)
	}
	e.logger.Info("downloaded namespace %s: %d applied, %d skipped, %d conflicts",
		ns, result.Downloaded, result.Skipped, result.Conflicts)
	return result.Complete(models.SyncSuccess)
}

// merge applies one language's downloaded entries, classifying each key
// as new, unchanged, or conflicting.
func (e *Engine) merge(ctx context.Context, ns string, entry ArchiveEntry, policy models.ConflictPolicy, result *models.SyncResult, conflicts *[]models.ConflictRecord) error {
	lang := entry.Language
	for key, text := range entry.Entries {
		current := e.reg.Get(lang, ns, key)
		remoteHash := md5hex(text)

		switch {
		case current == nil:
			if err := e.apply(ctx, ns, key, lang, text); err != nil {
				return fmt.Errorf("apply %s:%s.%s: %w", lang, ns, key, err)
			}
			e.state.SetHash(lang, ns, key, remoteHash)
			result.Downloaded++

		case current.Text == text:
			e.state.SetHash(lang, ns, key, remoteHash)
			result.Skipped++

		default:
			lastSynced := e.state.Hash(lang, ns, key)
			localEdited := lastSynced == "" || md5hex(current.Text) != lastSynced
			if !localEdited {
				// Remote changed, local untouched since last sync.
				if err := e.apply(ctx, ns, key, lang, text); err != nil {
					return fmt.Errorf("apply %s:%s.%s: %w", lang, ns, key, err)
				}
				e.state.SetHash(lang, ns, key, remoteHash)
				result.Downloaded++
				continue
			}

			result.Conflicts++
			switch policy {
			case models.RemoteWins:
				if err := e.apply(ctx, ns, key, lang, text); err != nil {
					return fmt.Errorf("apply %s:%s.%s: %w", lang, ns, key, err)
				}
				e.state.SetHash(lang, ns, key, remoteHash)
				result.Downloaded++
			case models.LocalWins:
				result.Skipped++
			case models.Manual:
				*conflicts = append(*conflicts, models.ConflictRecord{
					Namespace:  ns,
					Key:        key,
					Language:   lang,
					LocalText:  current.Text,
					RemoteText: text,
					DetectedAt: time.Now(),
				})
				if err := e.dynamic.UpdateSyncStatus(ctx, ns, key, lang, models.SyncConflict); err != nil {
					e.logger.ErrorWithErr("flag conflict status", err)
				}
			}
		}
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, ns, key, lang, text string) error {
	return e.dynamic.Save(ctx, &models.Translation{
		Namespace: ns,
		Key:       key,
		Language:  lang,
		Text:      text,
	})
}

// snapshotBackup captures the namespace across all loaded languages.
func (e *Engine) snapshotBackup(ns string) *Backup {
	b := &Backup{Namespace: ns, CreatedAt: time.Now()}
	_ = e.locker.WithNamespaceLock(ns, func() error {
		for _, lang := range e.reg.Languages() {
			for _, t := range e.reg.Snapshot(lang, ns) {
				b.Translations = append(b.Translations, t)
			}
		}
		return nil
	})
	return b
}

// rollback restores the registry view from a pre-sync backup. Dynamic
// rows written before the failure stay persisted with pending status and
// reconverge on the next successful sync.
func (e *Engine) rollback(ns string, backup *Backup) {
	if backup == nil {
		return
	}
	e.logger.Warn("rolling back namespace %s from pre-sync backup", ns)
	// Swap the whole namespace back so keys the failed merge inserted
	// disappear along with any it overwrote.
	e.reg.ReplaceNamespace(ns, backup.Translations)
	e.caches.InvalidateNamespace(ns)
}
