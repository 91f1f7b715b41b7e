// Package plural selects CLDR-style plural categories for a count in a
// given language. Rules are registered per language code; languages without
// a registered rule fall back to the English rule.
package plural

import (
	"fmt"
	"sync"

	"github.com/openlocale/openlocale/internal/models"
)

// Rule maps a non-negative count to a plural category.
type Rule func(count int) models.PluralCategory

// simpleOneOther is the rule shared by English, Spanish and Portuguese:
// ONE for exactly 1, OTHER for everything else.
func simpleOneOther(count int) models.PluralCategory {
	if count == 1 {
		return models.PluralOne
	}
	return models.PluralOther
}

var (
	rulesMu sync.RWMutex
	rules   = map[string]Rule{
		"en_us": simpleOneOther,
		"en_gb": simpleOneOther,
		"pt_br": simpleOneOther,
		"pt_pt": simpleOneOther,
		"es_es": simpleOneOther,
		"es_mx": simpleOneOther,
	}
)

// fallbackRule is applied for languages without a registered rule.
var fallbackRule Rule = simpleOneOther

// Register installs or replaces the plural rule for a language code.
// Plugins use this to extend the engine with additional CLDR rules.
func Register(languageCode string, rule Rule) error {
	if err := models.ValidateLanguageCode(languageCode); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("plural rule for %s must not be nil", languageCode)
	}
	rulesMu.Lock()
	rules[languageCode] = rule
	rulesMu.Unlock()
	return nil
}

// Select returns the plural category for count in the given language.
// Negative counts are rejected; unknown languages use the English rule.
func Select(languageCode string, count int) (models.PluralCategory, error) {
	if count < 0 {
		return "", fmt.Errorf("plural selection requires a non-negative count, got %d", count)
	}
	rulesMu.RLock()
	rule, ok := rules[languageCode]
	rulesMu.RUnlock()
	if !ok {
		rule = fallbackRule
	}
	return rule(count), nil
}
