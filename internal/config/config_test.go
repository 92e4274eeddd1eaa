package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/pix")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_TOKEN", "admin")
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("GATEWAY_CLIENT_ID", "client")
	t.Setenv("GATEWAY_CLIENT_SECRET", "client-secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 3, cfg.LedgerMaxRetries)
	assert.Equal(t, "log", cfg.OutboxBroker)
	assert.True(t, cfg.AffiliateCommissionPercent.Equal(decimal.RequireFromString("0.10")))
	assert.Equal(t, time.Hour, cfg.DepositExpiration())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_DotEnvFile(t *testing.T) {
	setRequired(t)
	os.Unsetenv("PORT")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9999\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "percent above one", env: map[string]string{"AFFILIATE_COMMISSION_PERCENT": "1.5"}},
		{name: "negative percent", env: map[string]string{"AFFILIATE_COMMISSION_PERCENT": "-0.1"}},
		{name: "kafka without brokers", env: map[string]string{"OUTBOX_BROKER": "kafka"}},
		{name: "rabbitmq without url", env: map[string]string{"OUTBOX_BROKER": "rabbitmq"}},
		{name: "empty redis url", env: map[string]string{"REDIS_URL": ""}},
		{name: "unknown broker", env: map[string]string{"OUTBOX_BROKER": "pigeon"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
