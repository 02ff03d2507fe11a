/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/devapps/pkg/logger"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the devapps configuration
type Config struct {
	DataDir  string        `yaml:"data_dir"`  // Framed files written by the service
	StoreDir string        `yaml:"store_dir"` // Record store
	Port     int           `yaml:"port"`
	Bind     string        `yaml:"bind"`
	Security Security      `yaml:"security"`
	Stream   Stream        `yaml:"stream"`
	Convert  Convert       `yaml:"convert"`
	Logging  logger.Config `yaml:"logging"`
}

// Security contains security-related configuration
type Security struct {
	APIKey string `yaml:"api_key"` // Empty disables authentication
}

// Stream contains container file settings
type Stream struct {
	CompressionLevel int `yaml:"compression_level"` // 0 selects the gzip default
	BufferSize       int `yaml:"buffer_size"`
}

// Convert contains TSV ingest settings
type Convert struct {
	MaxErrorRate float64 `yaml:"max_error_rate"`
	DotRename    bool    `yaml:"dot_rename"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./data/files",
		StoreDir: "./data/store",
		Port:     8080,
		Bind:     "127.0.0.1",
		Stream: Stream{
			BufferSize: 64 * 1024,
		},
		Convert: Convert{
			MaxErrorRate: 0.01,
		},
		Logging: logger.DefaultConfig(),
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	if c.StoreDir == "" {
		return fmt.Errorf("%w: store_dir is required", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if l := c.Stream.CompressionLevel; l != 0 && (l < gzip.HuffmanOnly || l > gzip.BestCompression) {
		return fmt.Errorf("%w: compression_level %d out of range", ErrInvalidConfig, l)
	}
	if c.Stream.BufferSize < 0 {
		return fmt.Errorf("%w: buffer_size must not be negative", ErrInvalidConfig)
	}
	if r := c.Convert.MaxErrorRate; r < 0 || r > 1 {
		return fmt.Errorf("%w: max_error_rate %v must be within [0, 1]", ErrInvalidConfig, r)
	}
	return nil
}

// LoadConfig loads configuration from the specified path. Keys missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = filepath.Join(dataDir, "files")
		config.StoreDir = filepath.Join(dataDir, "store")
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./devapps.yaml"
	}

	return filepath.Join(homeDir, ".config", "devapps", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
