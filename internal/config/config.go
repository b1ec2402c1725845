// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".counsel/configs"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.json"
)

// Load reads configuration from ~/.counsel/configs/config.json
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configPath)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return loadFromDefaults(v)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromPath loads configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.tls.enabled", false)

	// Auth defaults
	v.SetDefault("auth.type", "local")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	homeDir, _ := os.UserHomeDir()
	v.SetDefault("database.sqlite_path", filepath.Join(homeDir, ".counsel/db/counsel.db"))

	// Security defaults
	v.SetDefault("security.token_ttl_hours", 24)

	// Rate-limit defaults match the built-in policies
	v.SetDefault("limits.auth.max_requests", 5)
	v.SetDefault("limits.auth.window_seconds", 15*60)
	v.SetDefault("limits.api.max_requests", 60)
	v.SetDefault("limits.api.window_seconds", 60)
	v.SetDefault("limits.password_reset.max_requests", 3)
	v.SetDefault("limits.password_reset.window_seconds", 60*60)

	// Memory defaults
	v.SetDefault("memory.backend", "db")
	v.SetDefault("memory.file_path", filepath.Join(homeDir, ".counsel/memory.yaml"))

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", filepath.Join(homeDir, ".counsel/archive"))
	v.SetDefault("archive.default_branch", "main")
}

// loadFromDefaults creates a config from default values
func loadFromDefaults(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Auth.Type != "" && cfg.Auth.Type != "local" && cfg.Auth.Type != "accessing_user" {
		return fmt.Errorf("auth.type must be 'local' or 'accessing_user', got '%s'", cfg.Auth.Type)
	}
	if cfg.Auth.Type == "" {
		cfg.Auth.Type = "local"
	}

	if cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		return fmt.Errorf("database.type must be 'sqlite' or 'postgres', got '%s'", cfg.Database.Type)
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required when type is 'sqlite'")
	}
	if cfg.Database.Type == "postgres" && cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required when type is 'postgres'")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Security.TokenTTL < 1 {
		return fmt.Errorf("security.token_ttl_hours must be at least 1, got %d", cfg.Security.TokenTTL)
	}

	for name, limit := range map[string]LimitConfig{
		"limits.auth":           cfg.Limits.Auth,
		"limits.api":            cfg.Limits.API,
		"limits.password_reset": cfg.Limits.PasswordReset,
	} {
		if limit.MaxRequests < 1 {
			return fmt.Errorf("%s.max_requests must be at least 1, got %d", name, limit.MaxRequests)
		}
		if limit.WindowSeconds < 1 {
			return fmt.Errorf("%s.window_seconds must be at least 1, got %d", name, limit.WindowSeconds)
		}
	}

	if !IsValidMemoryBackend(cfg.Memory.Backend) {
		return fmt.Errorf("memory.backend must be one of %v, got '%s'", ValidMemoryBackends(), cfg.Memory.Backend)
	}
	if cfg.Memory.Backend == MemoryBackendFile && cfg.Memory.FilePath == "" {
		return fmt.Errorf("memory.file_path is required when backend is 'file'")
	}

	if cfg.Archive.Enabled && cfg.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when archive is enabled")
	}
	if cfg.Archive.DefaultBranch == "" {
		cfg.Archive.DefaultBranch = "main"
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, ".counsel/db/counsel.db"),
		},
		Auth: AuthConfig{
			Type: "local",
		},
		Security: SecurityConfig{
			TokenTTL: 24,
		},
		Limits: LimitsConfig{
			Auth:          LimitConfig{MaxRequests: 5, WindowSeconds: 15 * 60},
			API:           LimitConfig{MaxRequests: 60, WindowSeconds: 60},
			PasswordReset: LimitConfig{MaxRequests: 3, WindowSeconds: 60 * 60},
		},
		Memory: MemoryConfig{
			Backend:  MemoryBackendDB,
			FilePath: filepath.Join(homeDir, ".counsel/memory.yaml"),
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Path:          filepath.Join(homeDir, ".counsel/archive"),
			DefaultBranch: "main",
		},
	}
}
