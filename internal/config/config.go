// Package config loads record-collection settings from a YAML file with
// ${VAR} expansion, then applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file at the
// default path is not an error.
const DefaultPath = "record-collection.yaml"

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects the backend. URL is a PostgreSQL connection string
// for postgres, or a file path for sqlite.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CatalogConfig holds credentials for the external search sources. A
// source without credentials is disabled.
type CatalogConfig struct {
	SpotifyClientID     string `yaml:"spotify_client_id"`
	SpotifyClientSecret string `yaml:"spotify_client_secret"`
	LastFMAPIKey        string `yaml:"lastfm_api_key"`
	DiscogsToken        string `yaml:"discogs_token"`
	SearchLimit         int    `yaml:"search_limit"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: "127.0.0.1:8080"},
		Database: DatabaseConfig{Driver: "sqlite", URL: "record-collection.db"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Logging:  LoggingConfig{Level: "info", Format: "pretty"},
		Catalog:  CatalogConfig{SearchLimit: 10},
	}
}

// Load reads path over the defaults, expands ${VAR} references, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		// run on defaults and environment
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} with its value. Unset variables become empty.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"HTTP_ADDR", &cfg.Server.Addr},
		{"DATABASE_DRIVER", &cfg.Database.Driver},
		{"DATABASE_URL", &cfg.Database.URL},
		{"JWT_SECRET", &cfg.Auth.JWTSecret},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"LOG_FORMAT", &cfg.Logging.Format},
		{"SPOTIFY_ID", &cfg.Catalog.SpotifyClientID},
		{"SPOTIFY_SECRET", &cfg.Catalog.SpotifyClientSecret},
		{"LASTFM_API_KEY", &cfg.Catalog.LastFMAPIKey},
		{"DISCOGS_TOKEN", &cfg.Catalog.DiscogsToken},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// minSecretLen is the shortest accepted HS256 secret, in bytes.
const minSecretLen = 32

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if len(c.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes (set JWT_SECRET)", minSecretLen)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Catalog.SearchLimit <= 0 {
		c.Catalog.SearchLimit = Default().Catalog.SearchLimit
	}
	return nil
}

// SpotifyEnabled reports whether Spotify search credentials are set.
func (c CatalogConfig) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
