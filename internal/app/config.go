package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ModsPath is the root directory containing one subdirectory per mod.
	ModsPath string

	LogFormat   string
	LogLevel    string
	MetricsPort int
	Watch       bool
	ScanWorkers int
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ModsPath == "" {
		return nil, errors.New("ModsPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
