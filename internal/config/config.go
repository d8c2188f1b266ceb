// Package config loads project configuration from .medulla/config.yaml
// with MEDULLA_* environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the project configuration. Everything has a working default;
// the file is optional.
type Config struct {
	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
	Embeddings struct {
		Provider string `mapstructure:"provider"`
		Model    string `mapstructure:"model"`
	} `mapstructure:"embeddings"`
}

// Load reads config.yaml from medullaDir if present. Environment
// variables override file values (MEDULLA_LOG_LEVEL,
// MEDULLA_EMBEDDINGS_PROVIDER, ...).
func Load(medullaDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(medullaDir)
	v.SetEnvPrefix("MEDULLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("embeddings.provider", "local")
	v.SetDefault("embeddings.model", "all-MiniLM-L6-v2")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindProjectRoot walks up from dir looking for a .medulla directory,
// the way git discovers its repository root. Returns "" when none is
// found.
func FindProjectRoot(dir string) string {
	current, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(current, ".medulla")); err == nil && info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}
