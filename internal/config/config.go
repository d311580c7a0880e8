// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const EncryptionKeyEnv = "PROVIDERS_ENC_KEY"

type Config struct {
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
	Storage struct {
		Backend string `yaml:"backend"` // sqlite or memory
		Path    string `yaml:"path"`
	} `yaml:"storage"`
	Providers struct {
		File           string `yaml:"file"`
		RequestTimeout int    `yaml:"request_timeout"` // seconds
	} `yaml:"providers"`
	Templates struct {
		File string `yaml:"file"`
	} `yaml:"templates"`
	Round struct {
		ChunkSize            int   `yaml:"chunk_size"`
		TokenDelay           int   `yaml:"token_delay"` // milliseconds
		TitleMaxLength       int   `yaml:"title_max_length"`
		ThoughtFilterEnabled *bool `yaml:"thought_filter_enabled"`
		ParallelModelCalls   bool  `yaml:"parallel_model_calls"`
	} `yaml:"round"`
	Retry struct {
		Attempts    int `yaml:"attempts"`
		BackoffBase int `yaml:"backoff_base"` // milliseconds
		MaxDelay    int `yaml:"max_delay"`    // milliseconds
	} `yaml:"retry"`
}

// Load reads a YAML config file and fills unset values with defaults. A
// missing file is not an error; the defaults describe a runnable local setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "127.0.0.1:8390"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/agentround.db"
	}
	if cfg.Providers.File == "" {
		cfg.Providers.File = "providers.yaml"
	}
	if cfg.Providers.RequestTimeout == 0 {
		cfg.Providers.RequestTimeout = 120
	}
	if cfg.Templates.File == "" {
		cfg.Templates.File = "templates.yaml"
	}
	if cfg.Round.ChunkSize == 0 {
		cfg.Round.ChunkSize = 4
	}
	if cfg.Round.TokenDelay == 0 {
		cfg.Round.TokenDelay = 25
	}
	if cfg.Round.TitleMaxLength == 0 {
		cfg.Round.TitleMaxLength = 24
	}
	if cfg.Round.ThoughtFilterEnabled == nil {
		enabled := true
		cfg.Round.ThoughtFilterEnabled = &enabled
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.BackoffBase == 0 {
		cfg.Retry.BackoffBase = 500
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 5000
	}
}

// ThoughtFilter reports whether reasoning markup is stripped from responses.
func (c *Config) ThoughtFilter() bool {
	return c.Round.ThoughtFilterEnabled == nil || *c.Round.ThoughtFilterEnabled
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Providers.RequestTimeout) * time.Second
}

func (c *Config) TokenDelay() time.Duration {
	return time.Duration(c.Round.TokenDelay) * time.Millisecond
}

func (c *Config) RetryBackoffBase() time.Duration {
	return time.Duration(c.Retry.BackoffBase) * time.Millisecond
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelay) * time.Millisecond
}

// EncryptionKey reads the provider-secret passphrase from the environment.
// Empty means API keys are stored in plaintext.
func EncryptionKey() string {
	return os.Getenv(EncryptionKeyEnv)
}
