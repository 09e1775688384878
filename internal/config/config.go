// ABOUTME: Configuration loading and parsing for courier-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete courier-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Pairing  PairingConfig  `yaml:"pairing"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// PairingConfig holds pairing code and device token lifetimes
type PairingConfig struct {
	CodeTTL  time.Duration `yaml:"-"`
	TokenTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	CodeTTLRaw  string `yaml:"code_ttl"`
	TokenTTLRaw string `yaml:"token_ttl"`
}

// IngestConfig holds message pipeline tuning
type IngestConfig struct {
	DedupeTTL    time.Duration `yaml:"-"`
	LogRetention time.Duration `yaml:"-"`

	DedupeSize int `yaml:"dedupe_size"`

	// Raw string values for YAML unmarshaling
	DedupeTTLRaw    string `yaml:"dedupe_ttl"`
	LogRetentionRaw string `yaml:"log_retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// maxCodeTTL caps how long a pairing code may stay redeemable. Codes are
// written down and typed across devices, so their window stays short.
const maxCodeTTL = 5 * time.Minute

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Pairing.CodeTTL < 0 {
		return fmt.Errorf("pairing.code_ttl must not be negative")
	}
	if c.Pairing.CodeTTL > maxCodeTTL {
		return fmt.Errorf("pairing.code_ttl must not exceed %s", maxCodeTTL)
	}
	if c.Pairing.TokenTTL < 0 {
		return fmt.Errorf("pairing.token_ttl must not be negative")
	}
	if c.Ingest.DedupeSize < 0 {
		return fmt.Errorf("ingest.dedupe_size must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"pairing.code_ttl", cfg.Pairing.CodeTTLRaw, &cfg.Pairing.CodeTTL},
		{"pairing.token_ttl", cfg.Pairing.TokenTTLRaw, &cfg.Pairing.TokenTTL},
		{"ingest.dedupe_ttl", cfg.Ingest.DedupeTTLRaw, &cfg.Ingest.DedupeTTL},
		{"ingest.log_retention", cfg.Ingest.LogRetentionRaw, &cfg.Ingest.LogRetention},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
