package models

import (
	"fmt"
	"time"
)

// PluralCategory is a CLDR-style plural category.
type PluralCategory string

const (
	PluralZero  PluralCategory = "zero"
	PluralOne   PluralCategory = "one"
	PluralTwo   PluralCategory = "two"
	PluralFew   PluralCategory = "few"
	PluralMany  PluralCategory = "many"
	PluralOther PluralCategory = "other"
)

// PluralCategories lists all categories in canonical order.
var PluralCategories = []PluralCategory{
	PluralZero, PluralOne, PluralTwo, PluralFew, PluralMany, PluralOther,
}

// PluralForms maps plural categories to template text. When present on a
// Translation, the "other" category is mandatory.
type PluralForms map[PluralCategory]string

// Translation is a single translatable entry owned by the registry.
type Translation struct {
	Namespace string
	Key       string
	Language  string

	// Text is the canonical scalar form, used when no count is supplied.
	Text string

	// Plurals holds per-category forms; nil for non-plural entries.
	Plurals PluralForms

	// SourceHash is the md5 of Text at the last successful upload; empty
	// when the entry has never been synced.
	SourceHash string

	UpdatedAt time.Time
}

// FullKey returns the namespace-qualified key used by sync state maps.
func (t *Translation) FullKey() string {
	return t.Namespace + "." + t.Key
}

// Validate checks the structural invariants of a translation.
func (t *Translation) Validate() error {
	if t.Namespace == "" {
		return fmt.Errorf("translation namespace must not be empty")
	}
	if t.Key == "" {
		return fmt.Errorf("translation key must not be empty")
	}
	if err := ValidateLanguageCode(t.Language); err != nil {
		return fmt.Errorf("translation %s.%s: %w", t.Namespace, t.Key, err)
	}
	if t.Plurals != nil {
		if _, ok := t.Plurals[PluralOther]; !ok {
			return fmt.Errorf("translation %s.%s: plural forms require the %q category", t.Namespace, t.Key, PluralOther)
		}
	}
	return nil
}

// PluralForm returns the template for the given category, falling back to
// "other" and finally to Text.
func (t *Translation) PluralForm(category PluralCategory) string {
	if t.Plurals != nil {
		if form, ok := t.Plurals[category]; ok {
			return form
		}
		if form, ok := t.Plurals[PluralOther]; ok {
			return form
		}
	}
	return t.Text
}

// PlayerLanguagePref is a persisted per-player language preference.
type PlayerLanguagePref struct {
	PlayerID     string
	Language     string
	AutoDetected bool
	FirstSeenAt  time.Time
	UpdatedAt    time.Time
}
