package config

import (
	"fmt"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if c.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		return fmt.Errorf("embedding.timeout_seconds must be positive, got %d", c.Embedding.TimeoutSeconds)
	}

	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.VectorWeight+c.Search.KeywordWeight == 0 {
		return fmt.Errorf("at least one search weight must be positive")
	}

	if c.Gateway.Enabled {
		if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
			return fmt.Errorf("gateway.port must be in range 1-65535, got %d", c.Gateway.Port)
		}
		if c.Gateway.SharedSecret == "" {
			return fmt.Errorf("gateway.shared_secret is required when the gateway is enabled")
		}
	}

	if c.Logging.Level != "" && !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
