// Package config loads engine settings from YAML.
package config

import (
	"os"
	"time"

	"heapstore/pkg/dberror"
	"heapstore/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPageSize          = 4096
	DefaultPages             = 50
	DefaultLockTimeout       = 500 * time.Millisecond
	DefaultLockRetryInterval = 10 * time.Millisecond

	minPageSize = 64
)

// StorageConfig holds the buffer pool and page settings.
type StorageConfig struct {
	PageSize          int           `yaml:"page_size"`
	BufferPoolPages   int           `yaml:"buffer_pool_pages"`
	LockTimeout       time.Duration `yaml:"lock_timeout"`
	LockRetryInterval time.Duration `yaml:"lock_retry_interval"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type Config struct {
	Storage StorageConfig  `yaml:"storage"`
	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			PageSize:          DefaultPageSize,
			BufferPoolPages:   DefaultPages,
			LockTimeout:       DefaultLockTimeout,
			LockRetryInterval: DefaultLockRetryInterval,
		},
		Logging: logging.Config{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return Config{}, dberror.Wrap(err, dberror.CodeInvalidConfig, "Load", "config")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, dberror.Wrap(err, dberror.CodeInvalidConfig, "Load", "config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	s := c.Storage
	switch {
	case s.PageSize < minPageSize:
		return dberror.Errorf(dberror.ErrInvalidConfig, "page_size %d is below %d", s.PageSize, minPageSize)
	case s.BufferPoolPages < 1:
		return dberror.Errorf(dberror.ErrInvalidConfig, "buffer_pool_pages must be positive, got %d", s.BufferPoolPages)
	case s.LockTimeout <= 0:
		return dberror.Errorf(dberror.ErrInvalidConfig, "lock_timeout must be positive, got %s", s.LockTimeout)
	case s.LockRetryInterval <= 0:
		return dberror.Errorf(dberror.ErrInvalidConfig, "lock_retry_interval must be positive, got %s", s.LockRetryInterval)
	case c.Metrics.Enabled && c.Metrics.ListenAddr == "":
		return dberror.Errorf(dberror.ErrInvalidConfig, "metrics enabled without listen_addr")
	}
	return nil
}
