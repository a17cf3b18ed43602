package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "SUPABASE_URL", "SUPABASE_KEY", "DATABASE_URL", "WEBAPP_URL",
	"VERCEL_URL", "WEBHOOK_URL", "BOT_MODE", "SERVER_PORT", "STORE_TIMEOUT", "STATIC_DIR",
	"DAILY_SUMMARY", "LOG_LEVEL", "API_RATE_LIMIT", "API_RATE_BURST", "TRUST_PROXY",
}

// cleanEnv runs the test from an empty directory with every known variable unset.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	chdir(t, t.TempDir())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, "./data/lunchbot.db", cfg.DatabaseURL)
	assert.Equal(t, defaultWebAppURL, cfg.WebAppURL)
	assert.Equal(t, defaultWebAppURL, cfg.WebhookURL)
	assert.Equal(t, ModeWebhook, cfg.BotMode)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.True(t, cfg.DailySummary)
	assert.False(t, cfg.UseSupabase())
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.False(t, cfg.TrustProxy)
}

func TestLoadRequiresToken(t *testing.T) {
	cleanEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadVercelFallback(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "x")
	t.Setenv("VERCEL_URL", "lunch-abc.vercel.app")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://lunch-abc.vercel.app", cfg.WebAppURL)
}

func TestLoadExplicitValues(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "x")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_KEY", "key")
	t.Setenv("WEBAPP_URL", "https://lunch.example.com/")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com")
	t.Setenv("BOT_MODE", "Polling")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("DAILY_SUMMARY", "false")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UseSupabase())
	assert.Equal(t, "https://lunch.example.com", cfg.WebAppURL)
	assert.Equal(t, "https://hooks.example.com", cfg.WebhookURL)
	assert.Equal(t, ModePolling, cfg.BotMode)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
	assert.False(t, cfg.DailySummary)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"BOT_MODE":       "carrier-pigeon",
		"STORE_TIMEOUT":  "soon",
		"DAILY_SUMMARY":  "maybe",
		"API_RATE_BURST": "0",
		"TRUST_PROXY":    "sometimes",
		"SUPABASE_URL":   "https://proj.supabase.co",
	} {
		t.Run(key, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv("TELEGRAM_BOT_TOKEN", "x")
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	cleanEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("TELEGRAM_BOT_TOKEN=from-file\nSERVER_PORT=9090\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TelegramToken)
	assert.Equal(t, "9090", cfg.ServerPort)
}
