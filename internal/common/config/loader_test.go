package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
app:
  name: "loanbot"
database:
  postgres:
    host: "localhost"
    database: "loanbot"
    user: "loanbot"
  redis:
    address: "localhost:6379"
executor:
  base_url: "https://portal.example.com"
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 1800, cfg.Session.InactivityTTL)
	assert.Equal(t, 60, cfg.Scheduler.PollInterval)
	assert.Equal(t, 20, cfg.Scheduler.BatchSize)
	assert.Equal(t, 5, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 600, cfg.Scheduler.StaleClaimAge)
	assert.Equal(t, 45000, cfg.Executor.Timeout)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10000, cfg.Gateway.Timeout)
}

func TestLoadFromFile_ExplicitValuesKept(t *testing.T) {
	cfg, err := LoadFromFile(writeConfigFile(t, minimalConfig+`
scheduler:
  poll_interval: 15
  max_retries: 3
`))
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Scheduler.PollInterval)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	// Untouched fields still get defaults.
	assert.Equal(t, 20, cfg.Scheduler.BatchSize)
}

func TestLoadFromFile_MissingRequiredField(t *testing.T) {
	_, err := LoadFromFile(writeConfigFile(t, `
database:
  postgres:
    host: "localhost"
    database: "loanbot"
    user: "loanbot"
  redis:
    address: "localhost:6379"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor.base_url")
}

func TestLoadFromFile_EnvSecretFallback(t *testing.T) {
	t.Setenv("GATEWAY_TOKEN", "tok-from-env")
	t.Setenv("PORTAL_API_KEY", "key-from-env")

	cfg, err := LoadFromFile(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "tok-from-env", cfg.Gateway.Token)
	assert.Equal(t, "key-from-env", cfg.Executor.APIKey)
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, Database: "loanbot",
		User: "app", Password: "secret", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=loanbot sslmode=disable", p.GetDSN())
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, 45*time.Second, GetDuration(45000))
	assert.Equal(t, 30*time.Minute, GetSeconds(1800))
}
