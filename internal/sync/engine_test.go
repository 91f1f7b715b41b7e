package sync

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/config"
	"github.com/openlocale/openlocale/internal/crowdin"
	"github.com/openlocale/openlocale/internal/events"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/registry"
	"github.com/openlocale/openlocale/internal/store"
)

type fakeRemote struct {
	mu       stdsync.Mutex
	nextID   int64
	storages map[int64][]byte
	files    map[string]*crowdin.File

	archive []byte

	storageUploads     int
	addCalls           int
	updateCalls        int
	translationUploads []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		storages: make(map[int64][]byte),
		files:    make(map[string]*crowdin.File),
	}
}

func (f *fakeRemote) DirSegments(ns string) []string { return []string{ns} }

func (f *fakeRemote) FilePath(ns string) string { return "/" + ns + "/" + ns + ".yml" }

func (f *fakeRemote) UploadStorage(_ context.Context, _ string, content []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.storages[f.nextID] = content
	f.storageUploads++
	return f.nextID, nil
}

func (f *fakeRemote) FindFileByPath(_ context.Context, path string) (*crowdin.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[path], nil
}

func (f *fakeRemote) AddFile(_ context.Context, storageID int64, name string, directoryID int64) (*crowdin.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.nextID++
	file := &crowdin.File{ID: f.nextID, Name: name, DirectoryID: directoryID, Path: "/" + name[:len(name)-4] + "/" + name}
	f.files[file.Path] = file
	return file, nil
}

func (f *fakeRemote) UpdateFile(_ context.Context, fileID, storageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	return nil
}

func (f *fakeRemote) UploadTranslation(_ context.Context, languageID string, fileID, storageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.translationUploads = append(f.translationUploads, languageID)
	return nil
}

func (f *fakeRemote) EnsureDirectory(_ context.Context, segments []string) (int64, error) {
	return 1, nil
}

func (f *fakeRemote) BuildProject(_ context.Context, _, _ bool) (*crowdin.Build, error) {
	return &crowdin.Build{ID: 7, Status: "inProgress"}, nil
}

func (f *fakeRemote) WaitForBuild(_ context.Context, _ int64, _ time.Duration) error { return nil }

func (f *fakeRemote) DownloadURL(_ context.Context, _ int64) (string, error) {
	return "https://example.invalid/archive.zip", nil
}

func (f *fakeRemote) DownloadArchive(_ context.Context, _ string) ([]byte, error) {
	return f.archive, nil
}

type engineFixture struct {
	engine  *Engine
	remote  *fakeRemote
	reg     *registry.Registry
	dynamic *store.DynamicStore
	cfg     *config.Config
}

type fixtureLocker struct {
	mu stdsync.Mutex
}

func (l *fixtureLocker) WithNamespaceLock(ns string, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	cfg := config.Default()
	cfg.DataRoot = t.TempDir()
	cfg.Sync.LocaleMapping = map[string]string{"pt-BR": "pt_br", "en-US": "en_us"}

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, store.InitSchema(db, store.DefaultTables()))
	t.Cleanup(func() { db.Close() })

	reg := registry.New()
	caches, err := cache.NewTiered(
		cache.Config{MaxSize: 100, TTL: time.Minute},
		cache.Config{MaxSize: 100, TTL: time.Minute},
	)
	require.NoError(t, err)
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	locker := &fixtureLocker{}
	dynamic := store.NewDynamicStore(db, store.DefaultTables().DynamicTranslations, reg, caches, bus, locker)

	state, err := LoadState(filepath.Join(cfg.DataRoot, "cache", "crowdin-state.json"))
	require.NoError(t, err)

	remote := newFakeRemote()
	engine := New(cfg, remote, dynamic, reg, caches, locker, state,
		func() []string { return []string{"app"} })
	return &engineFixture{engine: engine, remote: remote, reg: reg, dynamic: dynamic, cfg: cfg}
}

func (f *engineFixture) register(t *testing.T, lang, ns, key, text string) {
	t.Helper()
	require.NoError(t, f.reg.Register(&models.Translation{
		Namespace: ns, Key: key, Language: lang, Text: text,
	}))
}

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUploadChangeDetection(t *testing.T) {
	f := newEngineFixture(t)
	f.register(t, "pt_br", "app", "hello", "Olá")
	f.register(t, "pt_br", "app", "bye", "Tchau")

	result, err := f.engine.Upload(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, result.Status)
	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, 1, f.remote.addCalls)

	// The uploaded document carries the whole namespace.
	uploaded := string(f.remote.storages[1])
	assert.Contains(t, uploaded, "hello: Olá")
	assert.Contains(t, uploaded, "bye: Tchau")

	// Unchanged content short-circuits before any remote call.
	result, err = f.engine.Upload(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Uploaded)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, f.remote.storageUploads)
}

func TestUploadUpdatesExistingFile(t *testing.T) {
	f := newEngineFixture(t)
	f.register(t, "pt_br", "app", "hello", "Olá")

	_, err := f.engine.Upload(context.Background(), "app")
	require.NoError(t, err)
	require.Equal(t, 1, f.remote.addCalls)

	f.register(t, "pt_br", "app", "hello", "Oi")
	result, err := f.engine.Upload(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, f.remote.updateCalls)
	assert.Equal(t, 1, f.remote.addCalls)
}

func TestUploadTranslationsForOtherLanguages(t *testing.T) {
	f := newEngineFixture(t)
	f.cfg.Crowdin.UploadTranslations = true
	f.register(t, "pt_br", "app", "hello", "Olá")
	f.register(t, "en_us", "app", "hello", "Hello")

	_, err := f.engine.Upload(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"en-US"}, f.remote.translationUploads)
}

func TestDownloadMergeClassification(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// "hello" synced and untouched locally; "edited" synced then locally
	// changed; "fresh" only exists remotely.
	f.register(t, "pt_br", "app", "hello", "Olá")
	f.register(t, "pt_br", "app", "edited", "Local edit")
	f.engine.state.SetHash("pt_br", "app", "hello", md5hex("Olá"))
	f.engine.state.SetHash("pt_br", "app", "edited", md5hex("Before edit"))

	f.remote.archive = buildArchive(t, map[string]string{
		"pt-BR/app/app.yml": "hello: Olá\nedited: Remote edit\nfresh: Novo\n",
	})

	result, err := f.engine.Download(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, result.Status)

	// new applied, unchanged skipped, conflict resolved REMOTE_WINS.
	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, "Novo", f.reg.Get("pt_br", "app", "fresh").Text)
	assert.Equal(t, "Remote edit", f.reg.Get("pt_br", "app", "edited").Text)
}

func TestDownloadLocalWinsKeepsLocalEdit(t *testing.T) {
	f := newEngineFixture(t)
	f.cfg.Crowdin.ConflictResolution = string(models.LocalWins)

	f.register(t, "pt_br", "app", "edited", "Local edit")
	f.engine.state.SetHash("pt_br", "app", "edited", md5hex("Before edit"))
	f.remote.archive = buildArchive(t, map[string]string{
		"pt-BR/app/app.yml": "edited: Remote edit\n",
	})

	result, err := f.engine.Download(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, 0, result.Downloaded)
	assert.Equal(t, "Local edit", f.reg.Get("pt_br", "app", "edited").Text)
}

func TestDownloadManualRecordsConflict(t *testing.T) {
	f := newEngineFixture(t)
	f.cfg.Crowdin.ConflictResolution = string(models.Manual)
	ctx := context.Background()

	// The conflicting entry exists as a dynamic row so its status can be
	// flagged.
	require.NoError(t, f.dynamic.Save(ctx, &models.Translation{
		Namespace: "app", Key: "edited", Language: "pt_br", Text: "Local edit"}))
	f.engine.state.SetHash("pt_br", "app", "edited", md5hex("Before edit"))
	f.remote.archive = buildArchive(t, map[string]string{
		"pt-BR/app/app.yml": "edited: Remote edit\n",
	})

	result, err := f.engine.Download(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, "Local edit", f.reg.Get("pt_br", "app", "edited").Text)

	flagged, err := f.dynamic.FindByStatus(ctx, "app", models.SyncConflict)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "edited", flagged[0].Key)

	raw, err := os.ReadFile(f.engine.conflictsPath())
	require.NoError(t, err)
	var records []models.ConflictRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Local edit", records[0].LocalText)
	assert.Equal(t, "Remote edit", records[0].RemoteText)
}

func TestDownloadSkipsUnmappedLocales(t *testing.T) {
	f := newEngineFixture(t)
	f.remote.archive = buildArchive(t, map[string]string{
		"fr-FR/app/app.yml": "hello: Bonjour\n",
		"pt-BR/app/app.yml": "hello: Olá\n",
	})

	result, err := f.engine.Download(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)
	assert.Nil(t, f.reg.Get("fr_fr", "app", "hello"))
}

func TestDownloadRollbackRemovesPartialMerge(t *testing.T) {
	f := newEngineFixture(t)
	f.cfg.Crowdin.BackupBeforeSync = true
	// An invalid mapped code makes every apply for that locale fail.
	f.cfg.Sync.LocaleMapping["fr-FR"] = "bad"

	f.register(t, "pt_br", "app", "hello", "Olá")
	f.engine.state.SetHash("pt_br", "app", "hello", md5hex("Olá"))

	// Archive entry order matters here: the valid locale inserts a new
	// key before the broken one aborts the merge.
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("pt-BR/app/app.yml")
	require.NoError(t, err)
	_, err = entry.Write([]byte("hello: Olá\nfresh: Novo\n"))
	require.NoError(t, err)
	entry, err = w.Create("fr-FR/app/app.yml")
	require.NoError(t, err)
	_, err = entry.Write([]byte("hello: Bonjour\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	f.remote.archive = buf.Bytes()

	result, err := f.engine.Download(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, models.SyncFailed, result.Status)

	// The rollback restores the exact pre-sync view: the key the failed
	// merge inserted is gone, the pre-existing one is untouched.
	assert.Nil(t, f.reg.Get("pt_br", "app", "fresh"))
	require.NotNil(t, f.reg.Get("pt_br", "app", "hello"))
	assert.Equal(t, "Olá", f.reg.Get("pt_br", "app", "hello").Text)
}

func TestFullSyncAggregates(t *testing.T) {
	f := newEngineFixture(t)
	f.register(t, "pt_br", "app", "hello", "Olá")
	f.remote.archive = buildArchive(t, map[string]string{
		"pt-BR/app/app.yml": "hello: Olá\nfresh: Novo\n",
	})

	result, err := f.engine.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, result.Status)
	assert.Equal(t, models.OpFull, result.Operation)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.Downloaded)

	last, ok := f.engine.LastResult("app")
	require.True(t, ok)
	assert.Equal(t, models.OpDownload, last.Operation)
}

func TestBusyFlagRejectsConcurrentSync(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.acquire())
	defer f.engine.release()

	_, err := f.engine.Upload(context.Background(), "app")
	assert.ErrorIs(t, err, ErrSyncInProgress)
	_, err = f.engine.Download(context.Background(), "app")
	assert.ErrorIs(t, err, ErrSyncInProgress)
	_, err = f.engine.FullSync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.True(t, f.engine.Busy())
}

func TestStatePersistsAcrossLoads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s, err := LoadState(path)
	require.NoError(t, err)
	s.SetHash("pt_br", "app", "hello", "abc123")
	s.MarkSynced("app", time.Now())
	require.NoError(t, s.Save())

	reloaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", reloaded.Hash("pt_br", "app", "hello"))
	_, ok := reloaded.LastSync("app")
	assert.True(t, ok)
}

func TestBuildDocumentNesting(t *testing.T) {
	doc := BuildDocument(map[string]string{
		"hello":            "Olá",
		"errors.not-found": "Não encontrado",
		"errors.denied":    "Negado",
		"lore":             "line one\nline two",
	})
	assert.Equal(t, "Olá", doc["hello"])
	errs := doc["errors"].(map[string]any)
	assert.Equal(t, "Não encontrado", errs["not-found"])
	assert.Equal(t, []any{"line one", "line two"}, doc["lore"])

	data, err := MarshalDocument(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "not-found: Não encontrado")
}

func TestParseArchiveMapsLocales(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"pt-BR/shop/shop.yml": "title: Loja\n",
		"en-US/shop/shop.yml": "title: Shop\n",
		"pt-BR/readme.txt":    "ignored",
	})
	entries, err := ParseArchive(archive, map[string]string{"pt-BR": "pt_br", "en-US": "en_us"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byLang := map[string]ArchiveEntry{}
	for _, e := range entries {
		byLang[e.Language] = e
	}
	assert.Equal(t, "shop", byLang["pt_br"].Namespace)
	assert.Equal(t, "Loja", byLang["pt_br"].Entries["title"])
	assert.Equal(t, "Shop", byLang["en_us"].Entries["title"])
}

func TestSchedulerSkipsWhenBusy(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.acquire())
	defer f.engine.release()

	s := NewScheduler(f.engine, time.Minute)
	// A manual run against a busy engine must not block or error.
	s.run(context.Background())
	assert.Equal(t, 0, f.remote.storageUploads)
}

func TestSchedulerLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	s := NewScheduler(f.engine, time.Hour)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	// No run before the first interval.
	assert.Equal(t, 0, f.remote.storageUploads)
}

func TestWriteBackupPrunes(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		b := &Backup{
			Namespace: "app",
			CreatedAt: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		}
		_, err := WriteBackup(dir, b, 3)
		require.NoError(t, err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "app-*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
