// Package config loads CLI settings from a file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds the paths and switches of a rex invocation.
type Config struct {
	Rules       string `yaml:"rules" json:"rules" env:"REX_RULES"`
	Schema      string `yaml:"schema" json:"schema" env:"REX_SCHEMA"`
	Data        string `yaml:"data" json:"data" env:"REX_DATA"`
	LogLevel    string `yaml:"log_level" json:"log_level" env:"REX_LOG_LEVEL"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" env:"REX_METRICS_ADDR"`
	Pretty      bool   `yaml:"pretty" json:"pretty" env:"REX_PRETTY"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{LogLevel: "info"}
}

// Load starts from the defaults, applies the file at path when path is not empty and
// then any REX_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if strings.ToLower(filepath.Ext(path)) == ".json" {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Level parses LogLevel, defaulting to info when it is empty.
func (c Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(c.LogLevel))
}
