// Package config loads caseguard settings from defaults, an optional YAML
// file named by CASEGUARD_CONFIG, and the environment, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server and CLI configuration.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// DatabaseURL is a postgres:// DSN or a SQLite path. Empty keeps
	// tallies in memory.
	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`

	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	OpenAIModel       string        `yaml:"openai_model"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	NoteMin int `yaml:"note_min"`
	NoteMax int `yaml:"note_max"`

	// AccessRegistry is a CSV source URI, or "sql" to read access_grants.
	AccessRegistry string        `yaml:"access_registry"`
	AccessTTL      time.Duration `yaml:"access_ttl"`

	// AdvisoryPolicy is a source URI for a custom advisory pack. Empty
	// selects the embedded default.
	AdvisoryPolicy string `yaml:"advisory_policy"`

	JWTSecret    string `yaml:"jwt_secret"`
	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCClientID string `yaml:"oidc_client_id"`

	RateRPS   float64 `yaml:"rate_rps"`
	RateBurst int     `yaml:"rate_burst"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTELEnabled  bool   `yaml:"otel_enabled"`

	CORSOrigins []string `yaml:"cors_origins"`

	S3Region              string `yaml:"s3_region"`
	S3Endpoint            string `yaml:"s3_endpoint"`
	AzureConnectionString string `yaml:"azure_connection_string"`
}

// AccessRegistrySQL selects the SQL grant table.
const AccessRegistrySQL = "sql"

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:              "8080",
		LogLevel:          "INFO",
		OpenAIBaseURL:     "https://api.openai.com/v1",
		OpenAIModel:       "gpt-4.1-mini",
		GenerationTimeout: 30 * time.Second,
		NoteMin:           5,
		NoteMax:           3000,
		AccessRegistry:    "https://docs.google.com/spreadsheets/d/1NA4S23i9t_q9D40EaedCvuuoN2EJdnGpDbtQnhM86_M/export?format=csv&gid=0",
		AccessTTL:         5 * time.Minute,
		RateRPS:           2,
		RateBurst:         10,
		OTLPEndpoint:      "localhost:4317",
		CORSOrigins:       []string{"*"},
	}
}

// Load builds the configuration.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CASEGUARD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.Overlay(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay applies a YAML document on top of c. Unknown keys are rejected.
func (c *Config) Overlay(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_ADDR", &c.RedisAddr)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	str("OPENAI_MODEL", &c.OpenAIModel)
	str("CASEGUARD_ACCESS_REGISTRY", &c.AccessRegistry)
	str("CASEGUARD_ADVISORY_POLICY", &c.AdvisoryPolicy)
	str("CASEGUARD_JWT_SECRET", &c.JWTSecret)
	str("CASEGUARD_OIDC_ISSUER", &c.OIDCIssuer)
	str("CASEGUARD_OIDC_CLIENT_ID", &c.OIDCClientID)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint)
	str("AWS_REGION", &c.S3Region)
	str("CASEGUARD_S3_ENDPOINT", &c.S3Endpoint)
	str("AZURE_STORAGE_CONNECTION_STRING", &c.AzureConnectionString)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.OTELEnabled = v == "true" || v == "1"
	}

	for key, dst := range map[string]*time.Duration{
		"CASEGUARD_GENERATION_TIMEOUT": &c.GenerationTimeout,
		"CASEGUARD_ACCESS_TTL":         &c.AccessTTL,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = d
		}
	}
	for key, dst := range map[string]*int{
		"CASEGUARD_NOTE_MIN":   &c.NoteMin,
		"CASEGUARD_NOTE_MAX":   &c.NoteMax,
		"CASEGUARD_RATE_BURST": &c.RateBurst,
	} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("CASEGUARD_RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: CASEGUARD_RATE_RPS: %w", err)
		}
		c.RateRPS = f
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.NoteMin < 1 || c.NoteMax < c.NoteMin {
		return fmt.Errorf("config: invalid note bounds %d..%d", c.NoteMin, c.NoteMax)
	}
	if c.RateRPS <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("config: rate limit must be positive (rps %v, burst %d)", c.RateRPS, c.RateBurst)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("config: generation timeout must be positive")
	}
	if c.AccessTTL < 0 {
		return fmt.Errorf("config: access ttl must not be negative")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: invalid port %q", c.Port)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
