package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/openlocale/openlocale/internal/models"
)

// State tracks per-key content hashes from the last successful sync and
// per-namespace sync timestamps. Persisted as JSON under the data root so
// change detection survives restarts.
type State struct {
	mu   sync.Mutex
	path string
	data stateData
}

type stateData struct {
	// Hashes maps "lang:ns.key" to the md5 recorded at the last sync.
	Hashes map[string]string `json:"hashes"`
	// LastSync maps a namespace to its last successful sync time.
	LastSync map[string]time.Time `json:"last_sync"`
}

// LoadState reads the state file, returning empty state when absent.
func LoadState(path string) (*State, error) {
	s := &State{
		path: path,
		data: stateData{
			Hashes:   make(map[string]string),
			LastSync: make(map[string]time.Time),
		},
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse sync state %s: %w", path, err)
	}
	if s.data.Hashes == nil {
		s.data.Hashes = make(map[string]string)
	}
	if s.data.LastSync == nil {
		s.data.LastSync = make(map[string]time.Time)
	}
	return s, nil
}

func hashKey(lang, ns, key string) string {
	return lang + ":" + ns + "." + key
}

// Hash returns the recorded hash for the entry, empty when never synced.
func (s *State) Hash(lang, ns, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Hashes[hashKey(lang, ns, key)]
}

// SetHash records the hash for the entry.
func (s *State) SetHash(lang, ns, key, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Hashes[hashKey(lang, ns, key)] = hash
}

// MarkSynced records the namespace's sync completion time.
func (s *State) MarkSynced(ns string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastSync[ns] = at
}

// LastSync returns the namespace's last successful sync time.
func (s *State) LastSync(ns string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.data.LastSync[ns]
	return at, ok
}

// Save writes the state file atomically (write temp, rename).
func (s *State) Save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Backup is a pre-sync snapshot of a namespace's translations.
type Backup struct {
	Namespace    string                `json:"namespace"`
	CreatedAt    time.Time             `json:"created_at"`
	Translations []*models.Translation `json:"translations"`
}

// WriteBackup persists a backup under dir and prunes old backups of the
// same namespace beyond keep.
func WriteBackup(dir string, b *Backup, keep int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.json", b.Namespace, b.CreatedAt.UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backup: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	pruneBackups(dir, b.Namespace, keep)
	return path, nil
}

// ReadBackup loads a backup file.
func ReadBackup(path string) (*Backup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var b Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", path, err)
	}
	return &b, nil
}

func pruneBackups(dir, ns string, keep int) {
	if keep < 1 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(dir, ns+"-*.json"))
	if err != nil || len(matches) <= keep {
		return
	}
	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-keep] {
		os.Remove(stale)
	}
}

// AppendConflicts records MANUAL-policy conflicts for operator review.
func AppendConflicts(path string, records []models.ConflictRecord) error {
	if len(records) == 0 {
		return nil
	}
	var existing []models.ConflictRecord
	if raw, err := os.ReadFile(path); err == nil {
		// A corrupt conflict file is replaced rather than blocking sync.
		_ = json.Unmarshal(raw, &existing)
	}
	existing = append(existing, records...)
	raw, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conflicts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create conflict directory: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
