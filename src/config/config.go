package config

import (
	"fmt"
	"os"

	"market-depth/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Feed configuration
	switch c.Feed.Mode {
	case "simulation", "binance":
	case "":
		return fmt.Errorf("feed mode cannot be empty")
	default:
		return fmt.Errorf("unsupported feed mode: %s", c.Feed.Mode)
	}
	if len(c.Feed.Instruments) == 0 {
		return fmt.Errorf("at least one instrument must be configured")
	}
	for i, ins := range c.Feed.Instruments {
		if models.NormalizeInstrument(ins) == "" {
			return fmt.Errorf("instrument %d cannot be blank", i)
		}
	}
	if c.Feed.UpdateIntervalMs < 0 {
		return fmt.Errorf("update interval cannot be negative")
	}
	if c.Feed.SnapshotIntervalSec < 0 {
		return fmt.Errorf("snapshot interval cannot be negative")
	}

	// Validate Storage configuration
	if c.Storage.Enabled {
		if c.Storage.DBType == "" {
			return fmt.Errorf("database type cannot be empty when storage is enabled")
		}
		if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	}

	// Validate Network configuration
	if c.Network.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Hub configuration
	if c.Hub.ClientQueueSize < 0 {
		return fmt.Errorf("client queue size cannot be negative")
	}
	switch c.Hub.OverflowPolicy {
	case "", "drop_newest", "drop_oldest", "disconnect":
	default:
		return fmt.Errorf("unsupported overflow policy: %s", c.Hub.OverflowPolicy)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
