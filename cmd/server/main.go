// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/counselkit/counsel-mcp/internal/archive"
	"github.com/counselkit/counsel-mcp/internal/assistant"
	"github.com/counselkit/counsel-mcp/internal/auth"
	"github.com/counselkit/counsel-mcp/internal/clock"
	"github.com/counselkit/counsel-mcp/internal/config"
	"github.com/counselkit/counsel-mcp/internal/crypto"
	"github.com/counselkit/counsel-mcp/internal/database"
	"github.com/counselkit/counsel-mcp/internal/ratelimit"
	"github.com/counselkit/counsel-mcp/internal/server"
	"github.com/counselkit/counsel-mcp/internal/store"
	"github.com/counselkit/counsel-mcp/internal/tools"
	"github.com/counselkit/counsel-mcp/pkg/scheduler"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Version is set at build time via ldflags (e.g. goreleaser -X main.Version={{.Version}}).
var Version string

func main() {
	// CRITICAL: MCP servers must ONLY output JSON-RPC to stdout
	// Redirect all logging to stderr
	log.SetOutput(os.Stderr)

	httpMode := flag.Bool("http", false, "Run in HTTP server mode (default: stdio for MCP)")
	withAccessingUser := flag.Bool("with-accessinguser", false, "Use ACCESSING_USER env var for user identity (stdio mode only)")
	dbType := flag.String("db-type", "", "Database type (sqlite or postgres)")
	dbPath := flag.String("db-path", "", "Database path (for sqlite)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (for postgres)")
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Server port (HTTP mode only)")
	memoryBackend := flag.String("memory-backend", "", "Memory storage backend (db, file or memory)")
	memoryFile := flag.String("memory-file", "", "Memory file path (file backend only)")
	enableArchive := flag.Bool("archive", false, "Enable the git-backed profile archive")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Counsel MCP Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Server Mode:\n")
		fmt.Fprintf(os.Stderr, "  %s                          Start MCP server (stdio) using system user (whoami)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --with-accessinguser     Start MCP server (stdio) using ACCESSING_USER env var\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --http                   Start HTTP server with local authentication\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DB_TYPE            Database type (sqlite or postgres)\n")
		fmt.Fprintf(os.Stderr, "  DB_PATH            SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  DB_DSN             PostgreSQL connection string\n")
		fmt.Fprintf(os.Stderr, "  PORT               Server port (HTTP mode only)\n")
		fmt.Fprintf(os.Stderr, "  ENCRYPTION_KEY     Encryption key for stored profiles\n")
		fmt.Fprintf(os.Stderr, "  ACCESSING_USER     Username (required with --with-accessinguser)\n")
	}

	flag.Parse()

	if *withAccessingUser && *httpMode {
		log.Fatal("ERROR: --with-accessinguser can only be used with stdio mode (not --http)")
	}

	log.Println("Starting Counsel MCP Server...")

	// Load configuration
	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			log.Printf("Warning: Failed to load config from %s: %v", *configPath, err)
			log.Println("Using defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Printf("Loaded configuration from %s", *configPath)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			log.Printf("Warning: Failed to load default config: %v", err)
			log.Println("Using built-in defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Printf("Loaded configuration from ~/.counsel/configs/config.json")
		}
	}

	applyEnvOverrides(cfg)
	applyCLIOverrides(cfg, *dbType, *dbPath, *dbDSN, *port, *memoryBackend, *memoryFile, *enableArchive)

	log.Printf("Configuration: database=%s memory=%s", cfg.Database.Type, cfg.Memory.Backend)

	// Connect system database
	dbCfg := &database.Config{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
		LogLevel:    logger.Silent, // CRITICAL: Silence GORM stdout output for MCP
	}

	db, err := database.Connect(dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	log.Printf("Connected to database: %s", cfg.Database.Type)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	if err := database.CreateIndexes(db); err != nil {
		log.Printf("Warning: Failed to create indexes: %v", err)
	}

	// Assemble memory storage and the assistant manager
	clk := clock.System()
	kv, err := buildStore(cfg, db)
	if err != nil {
		log.Fatalf("Failed to open memory store: %v", err)
	}

	var manager *assistant.Manager
	if key := getEncryptionKey(cfg); key != nil {
		manager = assistant.NewEncryptedManager(kv, clk, key)
		log.Println("Profile encryption enabled")
	} else {
		manager = assistant.NewManager(kv, clk)
	}

	toolCtx := tools.NewToolContext(manager, clk)
	if cfg.Archive.Enabled {
		a, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("Failed to open profile archive: %v", err)
		}
		toolCtx.WithArchive(a)
		log.Printf("Profile archive enabled at %s", cfg.Archive.Path)
	}

	mcpServer, err := server.NewMCPServer(cfg, db, toolCtx)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	if *httpMode {
		log.Println("Running in HTTP server mode")
		runHTTPMode(cfg, db, kv, clk, mcpServer)
	} else {
		if *withAccessingUser {
			log.Println("Running in stdio mode (MCP) with ACCESSING_USER authentication")
		} else {
			log.Println("Running in stdio mode (MCP)")
		}
		runStdioMode(cfg, db, mcpServer, *withAccessingUser)
	}
}

// buildStore opens the key-value store backing assistant memory
func buildStore(cfg *config.Config, db *gorm.DB) (store.Store, error) {
	switch cfg.Memory.Backend {
	case config.MemoryBackendFile:
		return store.OpenFileStore(cfg.Memory.FilePath)
	case config.MemoryBackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return store.NewGormStore(db), nil
	}
}

// getEncryptionKey parses the configured key, or returns nil when profiles
// should be stored unencrypted.
func getEncryptionKey(cfg *config.Config) []byte {
	if cfg.Security.EncryptionKey == "" {
		return nil
	}
	key, err := crypto.StringToKey(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalf("Invalid encryption key in configuration: %v", err)
	}
	return key
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *config.Config) {
	if dbType := getEnv("DB_TYPE", "COUNSEL_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from ENV: %s", dbType)
	}

	if dbPath := getEnv("DB_PATH", "COUNSEL_DB_PATH"); dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from ENV")
	}

	if dbDSN := getEnv("DB_DSN", "COUNSEL_DB_DSN"); dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from ENV (hidden)")
	}

	if portStr := getEnv("PORT", "COUNSEL_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
			log.Printf("Port from ENV: %d", port)
		}
	}

	if key := getEnv("ENCRYPTION_KEY", "COUNSEL_ENCRYPTION_KEY"); key != "" {
		cfg.Security.EncryptionKey = key
		log.Printf("Encryption key from ENV (hidden)")
	}
}

// applyCLIOverrides applies command-line flag overrides to configuration
func applyCLIOverrides(cfg *config.Config, dbType, dbPath, dbDSN string, port int, memoryBackend, memoryFile string, enableArchive bool) {
	if dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from CLI: %s", dbType)
	}

	if dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from CLI")
	}

	if dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from CLI (hidden)")
	}

	if port > 0 {
		cfg.Server.Port = port
		log.Printf("Port from CLI: %d", port)
	}

	if memoryBackend != "" {
		if !config.IsValidMemoryBackend(memoryBackend) {
			log.Fatalf("Invalid memory backend: %s", memoryBackend)
		}
		cfg.Memory.Backend = memoryBackend
		log.Printf("Memory backend from CLI: %s", memoryBackend)
	}

	if memoryFile != "" {
		cfg.Memory.FilePath = memoryFile
		log.Printf("Memory file path from CLI")
	}

	if enableArchive {
		cfg.Archive.Enabled = true
		log.Printf("Profile archive enabled from CLI")
	}
}

// getEnv tries multiple environment variable names and returns the first non-empty value
func getEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// runStdioMode runs the server in stdio mode for MCP clients
func runStdioMode(cfg *config.Config, db *gorm.DB, mcpServer *server.MCPServer, useAccessingUser bool) {
	var localAuth *auth.LocalAuthenticator
	if useAccessingUser {
		localAuth = auth.NewLocalAuthenticatorWithAccessingUser(mcpServer.GetTokenManager())
	} else {
		localAuth = auth.NewLocalAuthenticator(mcpServer.GetTokenManager())
	}

	user, _, err := localAuth.Authenticate(db)
	if err != nil {
		log.Fatalf("Failed to authenticate user: %v", err)
	}
	log.Printf("Local user authenticated: %s (ID: %d)", user.Username, user.ID)

	if err := mcpServer.RegisterToolsForUser(fmt.Sprintf("user-%d", user.ID)); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	log.Println("MCP server ready (stdio mode) - 4 tools registered")

	if err := mcpserver.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

// runHTTPMode runs the server in HTTP mode
func runHTTPMode(cfg *config.Config, db *gorm.DB, kv store.Store, clk clock.Clock, mcpServer *server.MCPServer) {
	localAuth := auth.NewLocalAuthenticator(mcpServer.GetTokenManager())
	username, _ := localAuth.GetLocalUsername()
	log.Printf("Local authentication initialized (system user: %s)", username)

	// Auth and password-reset budgets persist in the shared store. The API
	// budget is hot-path, so it runs in process with periodic eviction.
	authLimiter, err := ratelimit.New(cfg.Limits.Auth.RateLimitConfig(ratelimit.AuthPolicy), kv, clk)
	if err != nil {
		log.Fatalf("Failed to create auth limiter: %v", err)
	}
	resetLimiter, err := ratelimit.New(cfg.Limits.PasswordReset.RateLimitConfig(ratelimit.PasswordResetPolicy), kv, clk)
	if err != nil {
		log.Fatalf("Failed to create password-reset limiter: %v", err)
	}
	apiLimiter, err := ratelimit.NewMemoryLimiter(cfg.Limits.API.RateLimitConfig(ratelimit.APIPolicy), clk)
	if err != nil {
		log.Fatalf("Failed to create API limiter: %v", err)
	}
	apiLimiter.StartSweeper(time.Minute)
	defer apiLimiter.Stop()

	httpServer := server.NewHTTPServer(mcpServer, localAuth, server.Limiters{
		Auth:          authLimiter,
		API:           apiLimiter,
		PasswordReset: resetLimiter,
	})

	mux := http.NewServeMux()
	httpServer.RegisterRoutes(mux)

	// Purge expired tokens hourly
	sched := scheduler.NewScheduler(mcpServer.GetTokenManager(), 60)
	sched.Start()
	defer sched.Stop()
	log.Println("Token maintenance scheduler started (interval: 60 minutes)")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("HTTP server starting on %s", addr)

	if cfg.Server.TLS.Enabled {
		log.Println("TLS enabled")
		if err := http.ListenAndServeTLS(addr, cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, mux); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	} else {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}
}
