package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Engine.BaseURL = ""
	cfg.Server.Port = 99999
	cfg.Ledger.MaxTrades = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "engine: base_url")
	assert.Contains(t, err.Error(), "server: port")
	assert.Contains(t, err.Error(), "ledger: max_trades")
}

func TestValidate_TelegramPairing(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "123:abc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram_token and telegram_chat_id")
}

func TestValidate_DisabledSectionsSkipped(t *testing.T) {
	cfg := Defaults()
	// Invalid values in disabled sections must not fail validation.
	cfg.Postgres.Enabled = false
	cfg.Postgres.Host = ""
	cfg.S3.Enabled = false
	cfg.S3.Bucket = ""

	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "monitor"
log_level = "debug"

[engine]
base_url = "https://engine.example.com"
ws_url = "wss://engine.example.com/ws/stream"
watchlist_refresh = "45s"

[ledger]
max_trades = 8
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("COPILOT_ENGINE_API_KEY", "sekrit")
	t.Setenv("COPILOT_SERVER_PORT", "9100")
	t.Setenv("COPILOT_SERVER_CORS_ORIGINS", "https://dash.example.com, https://alt.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://engine.example.com", cfg.Engine.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Engine.WatchlistRefresh.Duration)
	assert.Equal(t, 8, cfg.Ledger.MaxTrades)

	// Env wins over file and defaults.
	assert.Equal(t, "sekrit", cfg.Engine.ApiKey)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://dash.example.com", "https://alt.example.com"}, cfg.Server.CORSOrigins)

	// Untouched defaults survive the merge.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	require.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.ApiKey = "engine-key"
	cfg.Redis.Password = "hunter2"
	cfg.Notify.DiscordWebhookURL = "https://discord.com/api/webhooks/x"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Engine.ApiKey)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Notify.DiscordWebhookURL)

	// Original untouched.
	assert.Equal(t, "engine-key", cfg.Engine.ApiKey)

	// Slice copies are independent.
	red.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}
