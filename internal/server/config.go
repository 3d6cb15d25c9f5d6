package server

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the relay daemon configuration, loaded from a TOML file.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string
	// DataDir holds the relay database.
	DataDir string
	// LogLevel is one of the go-logging level names.
	LogLevel string
}

// DefaultConfig returns a config suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		DataDir:  ".",
		LogLevel: "INFO",
	}
}

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: Listen must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	return nil
}

// DatabasePath returns the bbolt database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "parlor.db")
}
