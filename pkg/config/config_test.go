package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusforward/caseguard/pkg/config"
)

var envKeys = []string{
	"CASEGUARD_CONFIG", "PORT", "LOG_LEVEL", "DATABASE_URL", "REDIS_ADDR",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "CASEGUARD_GENERATION_TIMEOUT",
	"CASEGUARD_NOTE_MIN", "CASEGUARD_NOTE_MAX", "CASEGUARD_ACCESS_REGISTRY", "CASEGUARD_ACCESS_TTL",
	"CASEGUARD_ADVISORY_POLICY", "CASEGUARD_JWT_SECRET", "CASEGUARD_OIDC_ISSUER",
	"CASEGUARD_OIDC_CLIENT_ID", "CASEGUARD_RATE_RPS", "CASEGUARD_RATE_BURST",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENABLED", "CORS_ORIGINS",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gpt-4.1-mini", cfg.OpenAIModel)
	assert.Equal(t, 5, cfg.NoteMin)
	assert.Equal(t, 3000, cfg.NoteMax)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.Contains(t, cfg.AccessRegistry, "format=csv")
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.OTELEnabled)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_Overrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://caseguard@db:5432/caseguard")
	t.Setenv("CASEGUARD_NOTE_MAX", "5000")
	t.Setenv("CASEGUARD_GENERATION_TIMEOUT", "12s")
	t.Setenv("CASEGUARD_RATE_RPS", "0.5")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "postgres://caseguard@db:5432/caseguard", cfg.DatabaseURL)
	assert.Equal(t, 5000, cfg.NoteMax)
	assert.Equal(t, 12*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 0.5, cfg.RateRPS)
	assert.True(t, cfg.OTELEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_FileThenEnv(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "caseguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7070"
openai_model: gpt-4.1
access_registry: sql
access_ttl: 1m
note_max: 2000
`), 0o600))
	t.Setenv("CASEGUARD_CONFIG", path)
	t.Setenv("CASEGUARD_NOTE_MAX", "2500")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "gpt-4.1", cfg.OpenAIModel)
	assert.Equal(t, config.AccessRegistrySQL, cfg.AccessRegistry)
	assert.Equal(t, time.Minute, cfg.AccessTTL)
	assert.Equal(t, 2500, cfg.NoteMax, "environment overrides the file")
	assert.Equal(t, 5, cfg.NoteMin, "defaults survive the overlay")
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]map[string]string{
		"bad duration": {"CASEGUARD_GENERATION_TIMEOUT": "soon"},
		"bad int":      {"CASEGUARD_NOTE_MIN": "five"},
		"bad bounds":   {"CASEGUARD_NOTE_MIN": "100", "CASEGUARD_NOTE_MAX": "10"},
		"bad rate":     {"CASEGUARD_RATE_RPS": "-1"},
		"bad port":     {"PORT": "http"},
		"missing file": {"CASEGUARD_CONFIG": "/nonexistent/caseguard.yaml"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestOverlay_RejectsUnknownKeys(t *testing.T) {
	cfg := config.Default()
	assert.Error(t, cfg.Overlay([]byte("prot: 80\n")))
	assert.NoError(t, cfg.Overlay(nil))
}
