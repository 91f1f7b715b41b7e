package models

import (
	"fmt"
	"regexp"
	"strings"
)

// languageCodePattern is the canonical format for language codes: two
// lowercase letters, underscore, two lowercase letters (e.g. "pt_br").
var languageCodePattern = regexp.MustCompile(`^[a-z]{2}_[a-z]{2}$`)

// regionDefaults maps a bare ISO-639 language tag to its canonical region
// so that locales like "pt" normalize to a full internal code.
var regionDefaults = map[string]string{
	"pt": "pt_br",
	"en": "en_us",
	"es": "es_es",
	"fr": "fr_fr",
	"de": "de_de",
	"it": "it_it",
	"ja": "ja_jp",
	"ko": "ko_kr",
	"zh": "zh_cn",
	"ru": "ru_ru",
	"nl": "nl_nl",
	"pl": "pl_pl",
	"tr": "tr_tr",
}

// Language describes a language the engine can resolve into.
type Language struct {
	// Code is the internal language code, always in xx_yy form.
	Code string
	// Name is the human-readable display name, e.g. "Português (Brasil)".
	Name string
	// Enabled controls whether namespace loading and resolution consider
	// this language.
	Enabled bool
}

// ValidLanguageCode reports whether code matches the canonical xx_yy form.
func ValidLanguageCode(code string) bool {
	return languageCodePattern.MatchString(code)
}

// ValidateLanguageCode returns an error describing why code is not a valid
// internal language code, or nil if it is valid.
func ValidateLanguageCode(code string) error {
	if !ValidLanguageCode(code) {
		return fmt.Errorf("invalid language code %q: must match xx_yy (lowercase)", code)
	}
	return nil
}

// NormalizeLocale converts an externally-supplied locale string into the
// internal xx_yy form. It accepts BCP-47 style tags ("pt-BR"), Java style
// tags ("pt_BR") and bare language tags ("pt", resolved through the
// canonical region table). Returns an error when no normalization applies.
func NormalizeLocale(locale string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(locale))
	if s == "" {
		return "", fmt.Errorf("empty locale")
	}
	s = strings.ReplaceAll(s, "-", "_")

	if languageCodePattern.MatchString(s) {
		return s, nil
	}

	// Tags with more than two segments (e.g. "zh_hans_cn") keep the first
	// and last segment.
	if parts := strings.Split(s, "_"); len(parts) > 2 {
		candidate := parts[0] + "_" + parts[len(parts)-1]
		if languageCodePattern.MatchString(candidate) {
			return candidate, nil
		}
	}

	if mapped, ok := regionDefaults[s]; ok {
		return mapped, nil
	}

	return "", fmt.Errorf("cannot normalize locale %q", locale)
}
