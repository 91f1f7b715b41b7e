package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads the main configuration file and, when present, the crowdin.yml
// descriptor next to it. Missing files fall back to defaults; a present but
// ill-formed file is an error. The merged configuration is validated.
func Load(configPath, crowdinPath string) (*Config, error) {
	cfg := Default()

	if err := loadInto(configPath, "", cfg); err != nil {
		return nil, err
	}

	if crowdinPath != "" {
		if err := loadInto(crowdinPath, "", &cfg.Sync); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadInto loads a YAML file over the pre-populated target struct so that
// absent keys keep their default values.
func loadInto(path, prefix string, target interface{}) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	if err := k.UnmarshalWithConf(prefix, target, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	return nil
}
