package resolver

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// missingTracker remembers which missing keys have already been logged so
// each distinct key is reported once. Bounded: old entries fall out under
// pressure and may be logged again, which is acceptable.
type missingTracker struct {
	seen *lru.Cache[string, struct{}]
}

const missingTrackerSize = 4096

func newMissingTracker() *missingTracker {
	// lru.New only fails for non-positive sizes.
	seen, _ := lru.New[string, struct{}](missingTrackerSize)
	return &missingTracker{seen: seen}
}

// firstSighting records the key and reports whether it was unseen before.
func (m *missingTracker) firstSighting(key string) bool {
	_, seen := m.seen.Get(key)
	if seen {
		return false
	}
	m.seen.Add(key, struct{}{})
	return true
}

// reset forgets all tracked keys.
func (m *missingTracker) reset() {
	m.seen.Purge()
}
