// Package config defines and loads the engine configuration: the main
// settings file plus the optional crowdin.yml sync descriptor. Files are
// loaded with koanf and validated before any component starts.
package config

import (
	"fmt"
	"time"

	"github.com/openlocale/openlocale/internal/models"
)

// ConfigError represents a configuration validation error; fatal at startup.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}

// LanguageConfig describes one configured language.
type LanguageConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// LanguageSettings holds the default language and the language set.
type LanguageSettings struct {
	Default   string                    `yaml:"default"`
	Languages map[string]LanguageConfig `yaml:"languages"`
}

// CacheTierConfig bounds one cache tier.
type CacheTierConfig struct {
	MaxSize    int `yaml:"max-size"`
	TTLSeconds int `yaml:"ttl-seconds"`
}

// CacheSettings configures the L1 and L3 tiers.
type CacheSettings struct {
	L1 CacheTierConfig `yaml:"l1"`
	L3 CacheTierConfig `yaml:"l3"`
	// CachePlaceholderResults enables L1 caching of placeholder-applied
	// strings. Off by default: only placeholder-free resolutions are cached.
	CachePlaceholderResults bool `yaml:"cache-placeholder-results"`
}

// MissingSettings configures missing-key behavior.
type MissingSettings struct {
	ShowKey bool   `yaml:"show-key"`
	Format  string `yaml:"format"`
	Log     bool   `yaml:"log"`
	// ResetOnDeleteAll clears the once-per-key missing log when a
	// namespace's dynamic translations are bulk-deleted.
	ResetOnDeleteAll bool `yaml:"reset-on-delete-all"`
}

// DatabaseSettings names the datasource and table names.
type DatabaseSettings struct {
	Datasource string         `yaml:"datasource"`
	Tables     DatabaseTables `yaml:"tables"`
}

// DatabaseTables holds configurable table names.
type DatabaseTables struct {
	PlayerLanguage      string `yaml:"player-language"`
	DynamicTranslations string `yaml:"dynamic-translations"`
}

// WebhookSettings configures the webhook receiver.
type WebhookSettings struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Secret  string `yaml:"secret"`
}

// CrowdinSettings is the main-config side of the Crowdin integration.
type CrowdinSettings struct {
	Enabled              bool              `yaml:"enabled"`
	ProjectID            int               `yaml:"project-id"`
	Token                string            `yaml:"token"`
	BaseURL              string            `yaml:"base-url"`
	ServerID             string            `yaml:"server-id"`
	NamespaceDirectories map[string]string `yaml:"namespace-directories"`
	AutoSyncInterval     int               `yaml:"auto-sync-interval-minutes"`
	ConflictResolution   string            `yaml:"conflict-resolution"`
	Webhook              WebhookSettings   `yaml:"webhook"`
	UploadTranslations   bool              `yaml:"upload-translations"`
	HotReload            bool              `yaml:"hot-reload"`
	BackupBeforeSync     bool              `yaml:"backup-before-sync"`
}

// Config is the engine's full configuration surface.
type Config struct {
	// DataRoot is the directory holding languages/, cache/, imports/ and
	// exports/ subtrees.
	DataRoot string           `yaml:"data-root"`
	LogLevel string           `yaml:"log-level"`
	Language LanguageSettings `yaml:"language"`
	Cache    CacheSettings    `yaml:"cache"`
	Missing  MissingSettings  `yaml:"missing"`
	Database DatabaseSettings `yaml:"database"`
	Crowdin  CrowdinSettings  `yaml:"crowdin"`

	// Sync holds the crowdin.yml descriptor, loaded separately.
	Sync SyncDescriptor `yaml:"-"`
}

// SyncDescriptor mirrors crowdin.yml.
type SyncDescriptor struct {
	SourceLanguage string            `yaml:"source-language"`
	LocaleMapping  map[string]string `yaml:"locale-mapping"`
	SyncNamespaces []string          `yaml:"sync-namespaces"`
	Advanced       AdvancedSettings  `yaml:"advanced"`
	Upload         UploadSettings    `yaml:"upload"`
	Download       DownloadSettings  `yaml:"download"`
}

// AdvancedSettings tunes client behavior.
type AdvancedSettings struct {
	BatchSize      int `yaml:"batch-size"`
	TimeoutSeconds int `yaml:"timeout-seconds"`
	MaxRetries     int `yaml:"max-retries"`
}

// UploadSettings tunes the upload pipeline.
type UploadSettings struct {
	AutoUpload    bool   `yaml:"auto-upload"`
	UpdateStrings bool   `yaml:"update-strings"`
	CleanupMode   string `yaml:"cleanup-mode"`
}

// DownloadSettings tunes the download pipeline.
type DownloadSettings struct {
	SkipUntranslated   bool `yaml:"skip-untranslated"`
	ExportApprovedOnly bool `yaml:"export-approved-only"`
}

// Default returns a configuration with documented defaults applied.
func Default() *Config {
	return &Config{
		DataRoot: "data",
		LogLevel: "info",
		Language: LanguageSettings{
			Default: "pt_br",
			Languages: map[string]LanguageConfig{
				"pt_br": {Name: "Português (Brasil)", Enabled: true},
				"en_us": {Name: "English (US)", Enabled: true},
			},
		},
		Cache: CacheSettings{
			L1: CacheTierConfig{MaxSize: 10000, TTLSeconds: 300},
			L3: CacheTierConfig{MaxSize: 5000, TTLSeconds: 1800},
		},
		Missing: MissingSettings{
			ShowKey: true,
			Format:  "[Missing: {key}]",
			Log:     true,
		},
		Database: DatabaseSettings{
			Datasource: "data/openlocale.db",
			Tables: DatabaseTables{
				PlayerLanguage:      "player_language",
				DynamicTranslations: "dynamic_translations",
			},
		},
		Crowdin: CrowdinSettings{
			BaseURL:            "https://api.crowdin.com/api/v2",
			AutoSyncInterval:   60,
			ConflictResolution: string(models.RemoteWins),
			BackupBeforeSync:   true,
			Webhook:            WebhookSettings{Port: 8090},
		},
		Sync: SyncDescriptor{
			SourceLanguage: "pt_br",
			Advanced:       AdvancedSettings{BatchSize: 100, TimeoutSeconds: 30, MaxRetries: 3},
			Download:       DownloadSettings{SkipUntranslated: true, ExportApprovedOnly: true},
		},
	}
}

// EnabledLanguages returns the enabled languages as model values.
func (c *Config) EnabledLanguages() []models.Language {
	out := make([]models.Language, 0, len(c.Language.Languages))
	for code, lc := range c.Language.Languages {
		if lc.Enabled {
			out = append(out, models.Language{Code: code, Name: lc.Name, Enabled: true})
		}
	}
	return out
}

// L1TTL returns the configured L1 TTL as a duration.
func (c *Config) L1TTL() time.Duration {
	return time.Duration(c.Cache.L1.TTLSeconds) * time.Second
}

// L3TTL returns the configured L3 TTL as a duration.
func (c *Config) L3TTL() time.Duration {
	return time.Duration(c.Cache.L3.TTLSeconds) * time.Second
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return NewConfigError("data-root must not be empty")
	}
	if !models.ValidLanguageCode(c.Language.Default) {
		return NewConfigError(fmt.Sprintf("language.default %q is not a valid xx_yy code", c.Language.Default))
	}
	for code := range c.Language.Languages {
		if !models.ValidLanguageCode(code) {
			return NewConfigError(fmt.Sprintf("language code %q is not a valid xx_yy code", code))
		}
	}
	if lc, ok := c.Language.Languages[c.Language.Default]; !ok || !lc.Enabled {
		return NewConfigError(fmt.Sprintf("language.default %q must be a configured, enabled language", c.Language.Default))
	}
	if c.Cache.L1.MaxSize < 1 || c.Cache.L3.MaxSize < 1 {
		return NewConfigError("cache tier max-size must be at least 1")
	}
	if c.Cache.L1.TTLSeconds < 1 || c.Cache.L3.TTLSeconds < 1 {
		return NewConfigError("cache tier ttl-seconds must be at least 1")
	}
	if c.Missing.Format == "" {
		return NewConfigError("missing.format must not be empty")
	}
	if c.Database.Tables.PlayerLanguage == "" || c.Database.Tables.DynamicTranslations == "" {
		return NewConfigError("database table names must not be empty")
	}

	if c.Crowdin.Enabled {
		if c.Crowdin.ProjectID <= 0 {
			return NewConfigError("crowdin.project-id must be set when crowdin is enabled")
		}
		if c.Crowdin.Token == "" {
			return NewConfigError("crowdin.token must be set when crowdin is enabled")
		}
		switch models.ConflictPolicy(c.Crowdin.ConflictResolution) {
		case models.RemoteWins, models.LocalWins, models.Manual:
		default:
			return NewConfigError(fmt.Sprintf("crowdin.conflict-resolution %q must be one of REMOTE_WINS, LOCAL_WINS, MANUAL", c.Crowdin.ConflictResolution))
		}
		if c.Crowdin.AutoSyncInterval < 0 {
			return NewConfigError("crowdin.auto-sync-interval-minutes must not be negative")
		}
		if c.Crowdin.Webhook.Enabled {
			if c.Crowdin.Webhook.Port < 1 || c.Crowdin.Webhook.Port > 65535 {
				return NewConfigError("crowdin.webhook.port must be between 1 and 65535")
			}
			if c.Crowdin.Webhook.Secret == "" {
				return NewConfigError("crowdin.webhook.secret must be set when the webhook is enabled")
			}
		}
	}

	if !models.ValidLanguageCode(c.Sync.SourceLanguage) {
		return NewConfigError(fmt.Sprintf("source-language %q is not a valid xx_yy code", c.Sync.SourceLanguage))
	}
	for remote, internal := range c.Sync.LocaleMapping {
		if remote == "" {
			return NewConfigError("locale-mapping keys must not be empty")
		}
		if !models.ValidLanguageCode(internal) {
			return NewConfigError(fmt.Sprintf("locale-mapping value %q is not a valid xx_yy code", internal))
		}
	}
	if c.Sync.Advanced.BatchSize < 1 {
		return NewConfigError("advanced.batch-size must be at least 1")
	}
	if c.Sync.Advanced.TimeoutSeconds < 1 {
		return NewConfigError("advanced.timeout-seconds must be at least 1")
	}
	if c.Sync.Advanced.MaxRetries < 0 {
		return NewConfigError("advanced.max-retries must not be negative")
	}
	return nil
}
