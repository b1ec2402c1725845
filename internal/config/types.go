// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"time"

	"github.com/counselkit/counsel-mcp/internal/ratelimit"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	TLS  struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// AuthConfig holds authentication type configuration
type AuthConfig struct {
	Type string `mapstructure:"type"` // "local" or "accessing_user"
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"` // For at-rest profile encryption
	TokenTTL      int    `mapstructure:"token_ttl_hours"`
}

// LimitConfig holds a single rate-limit policy override
type LimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// LimitsConfig holds per-policy rate-limit settings
type LimitsConfig struct {
	Auth          LimitConfig `mapstructure:"auth"`
	API           LimitConfig `mapstructure:"api"`
	PasswordReset LimitConfig `mapstructure:"password_reset"`
}

// MemoryConfig holds assistant memory storage settings
type MemoryConfig struct {
	Backend  string `mapstructure:"backend"` // "db", "file" or "memory"
	FilePath string `mapstructure:"file_path"`
}

// ArchiveConfig holds profile snapshot archive settings
type ArchiveConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	DefaultBranch string `mapstructure:"default_branch"`
}

// MemoryBackends defines valid memory backend values
const (
	MemoryBackendDB     = "db"
	MemoryBackendFile   = "file"
	MemoryBackendMemory = "memory"
)

// ValidMemoryBackends returns all valid memory backend values
func ValidMemoryBackends() []string {
	return []string{
		MemoryBackendDB,
		MemoryBackendFile,
		MemoryBackendMemory,
	}
}

// isValidType is a generic helper to check if a type is in a list of valid types
func isValidType(aType string, validTypes []string) bool {
	for _, valid := range validTypes {
		if aType == valid {
			return true
		}
	}
	return false
}

// IsValidMemoryBackend checks if a backend is valid
func IsValidMemoryBackend(backend string) bool {
	return isValidType(backend, ValidMemoryBackends())
}

// RateLimitConfig converts a policy override into limiter configuration,
// using the base policy for any field left at zero.
func (l LimitConfig) RateLimitConfig(base ratelimit.Config) ratelimit.Config {
	cfg := base
	if l.MaxRequests > 0 {
		cfg.MaxRequests = l.MaxRequests
	}
	if l.WindowSeconds > 0 {
		cfg.Window = time.Duration(l.WindowSeconds) * time.Second
	}
	return cfg
}
