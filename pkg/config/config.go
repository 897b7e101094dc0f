package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the dedup engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets
// (database password) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8085"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Deduplication tuning knobs
	Dedup DedupConfig `yaml:"dedup"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"dedup"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"dedup_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// DedupConfig holds deduplication engine tuning.
type DedupConfig struct {
	// MaxCandidates caps the raw candidate set before scoring. The cap
	// trades recall for latency, so it is configuration rather than a
	// hard-coded constant.
	MaxCandidates int `yaml:"max_candidates" env:"DEDUP_MAX_CANDIDATES" env-default:"50"`

	// NameSimilarityThreshold is the minimum edit-distance similarity for a
	// name to count as a fuzzy match.
	NameSimilarityThreshold float64 `yaml:"name_similarity_threshold" env:"DEDUP_NAME_SIMILARITY_THRESHOLD" env-default:"0.6"`
}

// URL builds a pgx-compatible connection string.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// Load reads config.yaml if present, then applies environment overrides.
func Load(version string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	cfg.Version = version

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Dedup.MaxCandidates <= 0 {
		return fmt.Errorf("dedup.max_candidates must be positive, got %d", c.Dedup.MaxCandidates)
	}
	if c.Dedup.NameSimilarityThreshold <= 0 || c.Dedup.NameSimilarityThreshold >= 1 {
		return fmt.Errorf("dedup.name_similarity_threshold must be in (0, 1), got %g", c.Dedup.NameSimilarityThreshold)
	}
	return nil
}
