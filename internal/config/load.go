package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override. Nested keys are joined
	// with underscores, e.g. BLOBD_OBJECTSTORE_ENDPOINT or BLOBD_GC_ENABLED.
	EnvPrefix = "BLOBD"

	// EnvConfigPath names the configuration file used by Load.
	EnvConfigPath = "BLOBD_CONFIG"

	// DefaultConfigFile is read by Load from the working directory when
	// EnvConfigPath is unset.
	DefaultConfigFile = "blobd.yaml"
)

// Load resolves the configuration file from BLOBD_CONFIG, then
// ./blobd.yaml, and falls back to defaults plus environment overrides when
// neither exists.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFromPath(path)
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return LoadFromPath(DefaultConfigFile)
	}
	return load("")
}

// LoadFromPath loads the YAML file at path over the defaults and applies
// environment overrides. The file must exist.
func LoadFromPath(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return load(path)
}

// Configuration precedence (highest to lowest):
//  1. Environment variables (BLOBD_*)
//  2. Configuration file
//  3. Default values
func load(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newViper returns a viper instance seeded with the defaults. Seeding
// registers every key, which AutomaticEnv needs to resolve overrides
// during Unmarshal.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("config: marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	return v, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config: nil config")
	}
	return yaml.Marshal(cfg)
}
