// Package config loads pipeline configuration from a TOML file with
// environment variable overrides and embedded defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config holds all configuration for the pipeline.
type Config struct {
	API        APIConfig        `toml:"api"`
	Storage    StorageConfig    `toml:"storage"`
	Queries    QueryConfig      `toml:"queries"`
	DeadLetter DeadLetterConfig `toml:"dead_letter"`
	Server     ServerConfig     `toml:"server"`
}

// APIConfig holds settings for the upstream HTTP API.
type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// StorageConfig selects and configures the analytical store backend.
type StorageConfig struct {
	Type        string `toml:"type"` // "sqlite", "postgres"
	Path        string `toml:"path"`
	PostgresURI string `toml:"postgres_uri"`
}

// QueryConfig holds tunables for the fixed analytical queries.
type QueryConfig struct {
	TopN int `toml:"top_n"`
}

// DeadLetterConfig configures the archive for rejected documents.
type DeadLetterConfig struct {
	Path            string `toml:"path"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// ServerConfig holds settings for the read-only query API server.
type ServerConfig struct {
	Port int `toml:"port"`
}

// Duration wraps time.Duration so values can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns a Config populated from the embedded example file.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	applyEnv(&cfg)
	return &cfg
}

// Load reads a TOML configuration file on top of the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Timeout.Duration = getEnvDuration("API_TIMEOUT", cfg.API.Timeout.Duration)
	cfg.Storage.Type = getEnv("STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.Path = getEnv("STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.PostgresURI = getEnv("POSTGRES_URI", cfg.Storage.PostgresURI)
	cfg.Queries.TopN = getEnvInt("QUERY_TOP_N", cfg.Queries.TopN)
	cfg.DeadLetter.Path = getEnv("DEAD_LETTER_PATH", cfg.DeadLetter.Path)
	cfg.DeadLetter.MongoURI = getEnv("MONGODB_URI", cfg.DeadLetter.MongoURI)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
