package models

import "time"

// EventType identifies a translation lifecycle event.
type EventType string

const (
	EventCreated           EventType = "created"
	EventUpdated           EventType = "updated"
	EventDeleted           EventType = "deleted"
	EventNamespaceReloaded EventType = "namespace_reloaded"
)

// TranslationEvent is broadcast whenever the translation corpus changes.
// For EventUpdated, Old carries the previous entry; for EventDeleted, Old
// carries the removed entry. Namespace-level events leave Key and Language
// empty.
type TranslationEvent struct {
	Type      EventType
	Namespace string
	Key       string
	Language  string
	Old       *Translation
	New       *Translation
	At        time.Time
}

// NamespaceReloaded builds the event emitted after an atomic reload.
func NamespaceReloaded(namespace string) TranslationEvent {
	return TranslationEvent{
		Type:      EventNamespaceReloaded,
		Namespace: namespace,
		At:        time.Now(),
	}
}
