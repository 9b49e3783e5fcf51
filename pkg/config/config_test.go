package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExchangeDefaults(t *testing.T) {
	cfg, err := LoadExchange()
	require.NoError(t, err)

	assert.Equal(t, 8070, cfg.Port)
	assert.Equal(t, "@every 5m", cfg.AuditSchedule)
	assert.Equal(t, 5, cfg.RepairMaxRetries)
	assert.Equal(t, 10*time.Second, cfg.RepairBackoff)
	assert.Equal(t, "postgres", cfg.Database.Host)
	assert.Equal(t, "bookswap", cfg.Database.Name)
}

func TestLoadExchangeFromEnv(t *testing.T) {
	t.Setenv("EXCHANGE_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "exchange")
	t.Setenv("REPAIR_BACKOFF", "1m")

	cfg, err := LoadExchange()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, time.Minute, cfg.RepairBackoff)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	assert.Contains(t, cfg.Database.DSN(), "dbname=exchange")
}

func TestLoadGatewayRequiresSecret(t *testing.T) {
	os.Unsetenv("JWT_SECRET")
	_, err := LoadGateway()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "secret")
	cfg, err := LoadGateway()
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "http://localhost:8070", cfg.ExchangeServiceURL)
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BOOKSWAP_DOTENV_CHECK=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BOOKSWAP_DOTENV_CHECK") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("BOOKSWAP_DOTENV_CHECK"))
}
