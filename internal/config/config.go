package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the main mnemo configuration
type Config struct {
	// Data directory (database, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Embedding provider
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Search
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Note import
	Import ImportConfig `json:"import" mapstructure:"import"`

	// Gateway
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Maintenance
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// StoreConfig holds database settings
type StoreConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// EmbeddingConfig binds the store to one embedding identity
type EmbeddingConfig struct {
	Provider       string `json:"provider" mapstructure:"provider"` // openai
	Model          string `json:"model" mapstructure:"model"`
	Dimension      int    `json:"dimension" mapstructure:"dimension"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// SearchConfig tunes the hybrid ranking
type SearchConfig struct {
	VectorWeight  float64 `json:"vector_weight" mapstructure:"vector_weight"`
	KeywordWeight float64 `json:"keyword_weight" mapstructure:"keyword_weight"`
}

// ImportConfig configures the note-file importer
type ImportConfig struct {
	Dir     string `json:"dir" mapstructure:"dir"`
	Project string `json:"project" mapstructure:"project"`
}

// GatewayConfig configures the RPC gateway
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// MaintenanceConfig configures scheduled store maintenance
type MaintenanceConfig struct {
	Schedule string `json:"schedule" mapstructure:"schedule"` // cron expression
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	MaxSizeMB int    `json:"max_size_mb" mapstructure:"max_size_mb"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir: dataDir,
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "memories.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			Dimension:      1536,
			TimeoutSeconds: 30,
		},
		Search: SearchConfig{
			VectorWeight:  0.7,
			KeywordWeight: 0.3,
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Port:    8791,
		},
		Maintenance: MaintenanceConfig{
			Schedule: "@hourly",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
			MaxSizeMB: 100,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mnemo")
	}
	return filepath.Join(home, ".mnemo")
}

// Save writes the configuration to a file as indented JSON
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
