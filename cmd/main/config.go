package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

// GenerateConfig holds the corpus and walk settings shared by the CLI and the API.
type GenerateConfig struct {
	SourcePath string `json:"source_path" toml:"source_path"`
	NGram      int    `json:"n_gram" toml:"n_gram"`
	MaxLength  int    `json:"max_length" toml:"max_length"`
	Seed       uint64 `json:"seed" toml:"seed"`
}

// APIKey grants its scopes to requests bearing the key whose SHA-256 is Hash.
// The raw key is never stored.
type APIKey struct {
	Hash        string   `json:"hash" toml:"hash"`
	Scopes      []string `json:"scopes" toml:"scopes"`
	Description string   `json:"description" toml:"description"`
}

// ServerConfig holds the configuration for logging, history and the HTTP API.
type ServerConfig struct {
	Addr                string   `json:"addr" toml:"addr"`
	LogLevel            string   `json:"log_level" toml:"log_level"`
	HistoryEnabled      bool     `json:"history_enabled" toml:"history_enabled"`
	HistoryDatabasePath string   `json:"history_database_path" toml:"history_database_path"`
	MaxBodyBytes        int64    `json:"max_body_bytes" toml:"max_body_bytes"`
	GenerateTimeoutSec  int      `json:"generate_timeout_sec" toml:"generate_timeout_sec"`
	APIKeys             []APIKey `json:"api_keys,omitempty" toml:"api_keys,omitempty"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Generate *GenerateConfig `json:"generate_config" toml:"generate"`
	Server   *ServerConfig   `json:"server_config" toml:"server"`
}

// DefaultGenerateConfig creates a generation configuration with default values.
func DefaultGenerateConfig() *GenerateConfig {
	return &GenerateConfig{
		SourcePath: "",
		NGram:      2,
		MaxLength:  0,
		Seed:       0,
	}
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:                "127.0.0.1:7280",
		LogLevel:            "info",
		HistoryEnabled:      true,
		HistoryDatabasePath: "./data/chainwalk_history.db",
		MaxBodyBytes:        8 << 20,
		GenerateTimeoutSec:  10,
	}
}

// DefaultConfig returns a Config with every section populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Generate: DefaultGenerateConfig(),
		Server:   DefaultServerConfig(),
	}
}

// Validate rejects settings the core would refuse anyway, before it is invoked.
func (c *Config) Validate() error {
	if c.Generate.NGram < 1 {
		return fmt.Errorf("n_gram must be >= 1, got %d", c.Generate.NGram)
	}
	if c.Generate.MaxLength < 0 {
		return fmt.Errorf("max_length must be >= 0, got %d", c.Generate.MaxLength)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be > 0")
	}
	if c.Server.GenerateTimeoutSec < 0 {
		return fmt.Errorf("generate_timeout_sec must be >= 0")
	}
	if _, err := parseLogLevel(c.Server.LogLevel); err != nil {
		return err
	}
	for i, key := range c.Server.APIKeys {
		if len(key.Hash) != sha256HexLen {
			return fmt.Errorf("api_keys[%d]: hash must be %d hex characters", i, sha256HexLen)
		}
		if _, err := hex.DecodeString(key.Hash); err != nil {
			return fmt.Errorf("api_keys[%d]: hash is not hex: %w", i, err)
		}
		if len(key.Scopes) == 0 {
			return fmt.Errorf("api_keys[%d]: at least one scope is required", i)
		}
		for _, scope := range key.Scopes {
			if _, ok := knownScopes[scope]; !ok {
				return fmt.Errorf("api_keys[%d]: unknown scope %q", i, scope)
			}
		}
	}
	return nil
}

const sha256HexLen = 64

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig reads the configuration from the file at the given path. The
// format follows the extension: .toml is TOML, anything else is JSON. A missing
// file is not an error; the defaults are returned. Sections absent from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isTOML(path) {
		if _, err = toml.Decode(string(file), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Generate == nil {
		config.Generate = DefaultGenerateConfig()
	}
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	return config, nil
}

// encodeConfig renders config in the format implied by path.
func encodeConfig(path string, config *Config) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(config, "", "  ")
}

// SaveConfig atomically writes config to path.
func SaveConfig(path string, config *Config) error {
	data, err := encodeConfig(path, config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to path unless a file
// already exists there. It reports whether a file was created.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat config: %w", err)
	}
	if err := SaveConfig(path, DefaultConfig()); err != nil {
		return false, err
	}
	return true, nil
}

// ConfigManager handles thread-safe access to the configuration of a running server.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
}

// NewConfigManager wraps an already loaded config.
func NewConfigManager(path string, config *Config) *ConfigManager {
	return &ConfigManager{
		config:     config,
		configPath: path,
	}
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	generate := *cm.config.Generate
	server := *cm.config.Server
	server.APIKeys = cloneAPIKeys(server.APIKeys)
	return Config{Generate: &generate, Server: &server}
}

// Update validates the configuration, saves it to disk, and makes it current.
// Server settings such as the address take effect on the next restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	if newConfig.Generate == nil || newConfig.Server == nil {
		return fmt.Errorf("both generate_config and server_config are required")
	}
	if err := newConfig.Validate(); err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := SaveConfig(cm.configPath, &newConfig); err != nil {
		return err
	}
	*cm.config = newConfig
	return nil
}

func cloneAPIKeys(keys []APIKey) []APIKey {
	if keys == nil {
		return nil
	}
	cloned := make([]APIKey, len(keys))
	for i, key := range keys {
		key.Scopes = slices.Clone(key.Scopes)
		cloned[i] = key
	}
	return cloned
}
