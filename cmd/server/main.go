// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/memvault/memvault/internal/auth"
	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/database"
	"github.com/memvault/memvault/internal/embeddings"
	"github.com/memvault/memvault/internal/retention"
	"github.com/memvault/memvault/internal/server"
	"github.com/memvault/memvault/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

// Version is set at build time via ldflags (e.g. -X main.Version={{.Version}}).
var Version string

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	// Define command-line flags
	dbType := flag.String("db-type", "", "Database type (sqlite or postgres)")
	dbPath := flag.String("db-path", "", "Database path (for sqlite)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (for postgres)")
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Server port")
	historyLimit := flag.Int("history-limit", 0, "Chat messages kept per (user, memory) pair")
	jwtSecret := flag.String("jwt-secret", "", "Identity provider JWT signing secret (alternative to env var)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Memvault Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DB_TYPE          Database type (sqlite or postgres)\n")
		fmt.Fprintf(os.Stderr, "  DB_PATH          SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  DB_DSN           PostgreSQL connection string\n")
		fmt.Fprintf(os.Stderr, "  PORT             Server port\n")
		fmt.Fprintf(os.Stderr, "  JWT_SECRET       Identity provider JWT signing secret\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY   Embedding provider API key (relevance search)\n")
		fmt.Fprintf(os.Stderr, "  HISTORY_LIMIT    Chat messages kept per (user, memory) pair\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL        Log level (debug, info, warn, error)\n")
	}

	flag.Parse()

	log.Println("Starting Memvault server...")

	// Load configuration
	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			log.Warnf("Failed to load config from %s: %v", *configPath, err)
			log.Println("Using defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Printf("Loaded configuration from %s", *configPath)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			log.Warnf("Failed to load default config: %v", err)
			log.Println("Using built-in defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Println("Loaded configuration from ~/.memvault/configs/config.json")
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg, log)

	// Apply CLI flag overrides (highest priority)
	applyCLIOverrides(cfg, *dbType, *dbPath, *dbDSN, *port, *historyLimit, *jwtSecret, log)

	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("No JWT secret configured; set auth.jwt_secret or JWT_SECRET")
	}

	log.Printf("Configuration: database=%s history_limit=%d", cfg.Database.Type, cfg.Retention.HistoryLimit)

	// Connect to database and run migrations
	dbCfg := &database.Config{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
		LogLevel:    logger.Silent,
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

	if err := embeddings.Migrate(db); err != nil {
		log.Fatalf("Failed to run embeddings migrations: %v", err)
	}

	log.Println("Database migrations completed")

	if err := database.CreateIndexes(db); err != nil {
		log.Warnf("Failed to create indexes: %v", err)
	}

	// Wire the core: retention enforcer, relevance search, store,
	// identity verification
	enforcer := retention.NewEnforcer(db, cfg.Retention.HistoryLimit, log)

	var search *embeddings.Service
	if cfg.Search.Enabled {
		client := embeddings.NewOpenAIClient(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.Model, cfg.Search.Dimensions)
		search = embeddings.NewService(db, client, cfg.Search.Model, cfg.Search.Dimensions, log)
		log.Printf("Relevance search enabled: model=%s", cfg.Search.Model)
	}

	st := store.New(db, enforcer, search, log)

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize token verification: %v", err)
	}

	httpServer := server.NewHTTPServer(st, verifier, log)

	mux := http.NewServeMux()
	httpServer.RegisterRoutes(mux)

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

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *config.Config, log *logrus.Logger) {
	// Database type
	if dbType := getEnv("DB_TYPE", "MEMVAULT_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from ENV: %s", dbType)
	}

	// Database path (SQLite)
	if dbPath := getEnv("DB_PATH", "MEMVAULT_DB_PATH"); dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Println("Database path from ENV")
	}

	// Database DSN (Postgres)
	if dbDSN := getEnv("DB_DSN", "MEMVAULT_DB_DSN"); dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Println("Database DSN from ENV (hidden)")
	}

	// Server port
	if portStr := getEnv("PORT", "MEMVAULT_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
			log.Printf("Port from ENV: %d", port)
		}
	}

	// JWT secret
	if secret := getEnv("JWT_SECRET", "MEMVAULT_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
		log.Println("JWT secret from ENV (hidden)")
	}

	// History limit
	if limitStr := getEnv("HISTORY_LIMIT", "MEMVAULT_HISTORY_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.Retention.HistoryLimit = limit
			log.Printf("History limit from ENV: %d", limit)
		}
	}

	// Embedding provider API key
	if key := getEnv("OPENAI_API_KEY", "MEMVAULT_SEARCH_API_KEY"); key != "" {
		cfg.Search.APIKey = key
		log.Println("Search API key from ENV (hidden)")
	}

	// Log level
	if level := getEnv("LOG_LEVEL", "MEMVAULT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// applyCLIOverrides applies command-line flag overrides to configuration
func applyCLIOverrides(cfg *config.Config, dbType, dbPath, dbDSN string, port, historyLimit int, jwtSecret string, log *logrus.Logger) {
	if dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from CLI: %s", dbType)
	}

	if dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Println("Database path from CLI")
	}

	if dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Println("Database DSN from CLI (hidden)")
	}

	if port > 0 {
		cfg.Server.Port = port
		log.Printf("Port from CLI: %d", port)
	}

	if historyLimit > 0 {
		cfg.Retention.HistoryLimit = historyLimit
		log.Printf("History limit from CLI: %d", historyLimit)
	}

	if jwtSecret != "" {
		cfg.Auth.JWTSecret = jwtSecret
		log.Println("JWT secret from CLI (hidden)")
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
