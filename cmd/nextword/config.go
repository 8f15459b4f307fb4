package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the nextword configuration file
// (~/.config/nextword/config.yaml or config.toml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Model string `yaml:"model" toml:"model"`
	Vocab string `yaml:"vocab" toml:"vocab"`

	// Prediction defaults
	Words *int `yaml:"words" toml:"words"`
	TopN  *int `yaml:"top_n" toml:"top_n"`

	// Output
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address" toml:"server_address"`
	Watch         *bool  `yaml:"watch" toml:"watch"`
	CacheTTL      string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// configPath returns the first config file that exists in the user config
// directory, preferring YAML.
func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		path := filepath.Join(dir, "nextword", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyModelConfig fills the artifact paths from the config file when the
// flags (or their environment variables) were not set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelPath = cfg.Model
	}
	if cfg.Vocab != "" && !c.IsSet("vocab") {
		vocabPath = cfg.Vocab
	}
}

func applyPredictConfig(c *cli.Command, cfg Config, words, topN *int64) {
	applyModelConfig(c, cfg)
	if cfg.Words != nil && !c.IsSet("words") {
		*words = int64(*cfg.Words)
	}
	if cfg.TopN != nil && !c.IsSet("top") {
		*topN = int64(*cfg.TopN)
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, watch *bool, cacheTTL *time.Duration) error {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Watch != nil && !c.IsSet("watch") {
		*watch = *cfg.Watch
	}
	if cfg.CacheTTL != "" && !c.IsSet("cache-ttl") {
		d, err := time.ParseDuration(cfg.CacheTTL)
		if err != nil {
			return fmt.Errorf("config cache_ttl: %w", err)
		}
		*cacheTTL = d
	}
	return nil
}
