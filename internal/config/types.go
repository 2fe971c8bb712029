// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Retention RetentionConfig `mapstructure:"retention"`
	Search    SearchConfig    `mapstructure:"search"`
	Log       LogConfig       `mapstructure:"log"`
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

// AuthConfig holds identity provider verification settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // Shared secret of the identity provider
}

// RetentionConfig holds chat transcript retention settings
type RetentionConfig struct {
	HistoryLimit int `mapstructure:"history_limit"` // Messages kept per (user, memory)
}

// SearchConfig holds relevance search settings. When disabled, records
// are stored without embeddings and chat sends return no context.
type SearchConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BaseURL    string `mapstructure:"base_url"`   // OpenAI-compatible endpoint
	APIKey     string `mapstructure:"api_key"`    // Embedding provider API key
	Model      string `mapstructure:"model"`      // Embedding model name
	Dimensions int    `mapstructure:"dimensions"` // Embedding vector size
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"` // "debug", "info", "warn", "error"
}
