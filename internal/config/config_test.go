package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{EnvConfigPath, EnvUnleashURL, EnvClientKey, EnvNatsURL} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Path)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config")
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.toml", `
[unleash]
url = "https://unleash.example.com/api/frontend"
client_key = "secret"
app_name = "web"
environment = "production"
refresh_interval = "15s"

[unleash.headers]
X-Tenant = "acme"

[context]
user_id = "u1"

[context.properties]
plan = "pro"

[nats]
url = "nats://nats:4222"

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "https://unleash.example.com/api/frontend", cfg.URL)
	assert.Equal(t, "secret", cfg.ClientKey)
	assert.Equal(t, "web", cfg.AppName)
	assert.Equal(t, "web", cfg.NatsName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 15*time.Second, cfg.RefreshInterval)
	assert.Equal(t, map[string]string{"X-Tenant": "acme"}, cfg.Headers)
	assert.Equal(t, "u1", cfg.Context.UserID)
	assert.Equal(t, "pro", cfg.Context.Properties["plan"])
	assert.Equal(t, "nats://nats:4222", cfg.NatsURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	client := cfg.ClientConfig()
	assert.Equal(t, cfg.URL, client.URL)
	assert.Equal(t, 15*time.Second, client.RefreshInterval)
	assert.True(t, client.Context.Equal(cfg.EvaluationContext()))
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.yaml", `
unleash:
  url: https://unleash.example.com/api/frontend
  client_key: secret
  disable_refresh: true
context:
  session_id: s1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.ClientKey)
	assert.True(t, cfg.DisableRefresh)
	assert.Equal(t, "s1", cfg.Context.SessionID)
	assert.Equal(t, defaultAppName, cfg.AppName)
}

func TestLoad_JSONC(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.jsonc", `{
  // frontend token, not an admin token
  "unleash": {
    "url": "https://unleash.example.com/api/frontend",
    "client_key": "secret",
  },
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.ClientKey)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeFile(t, "config.toml", `
[unleash]
url = "https://file.example.com"
client_key = "from-file"
`)

	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvUnleashURL, "https://env.example.com")
	t.Setenv(EnvClientKey, "from-env")
	t.Setenv(EnvNatsURL, "nats://env:4222")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "https://env.example.com", cfg.URL)
	assert.Equal(t, "from-env", cfg.ClientKey)
	assert.Equal(t, "nats://env:4222", cfg.NatsURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)

	tests := map[string]string{
		"bad interval":      "[unleash]\nrefresh_interval = \"soon\"\n",
		"negative interval": "[unleash]\nrefresh_interval = \"-1s\"\n",
		"bad level":         "[log]\nlevel = \"loud\"\n",
		"bad toml":          "[unleash\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.toml", content))
			require.Error(t, err)
		})
	}
}
