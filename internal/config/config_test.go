//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "file", cfg.Catalog.Source)
	assert.Equal(t, "sandbox", cfg.Payment.Provider)
	assert.Equal(t, 30*time.Second, cfg.Payment.ChargeTimeout)
	assert.Equal(t, uint32(5), cfg.Payment.Breaker.ConsecutiveFailures)
	assert.Equal(t, 16, cfg.Workers.Concurrency)
	assert.Equal(t, 64, cfg.Workers.Queue)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
}

func TestConfig_IdempotencyLockTTL(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  request_timeout: 60s\npayment:\n  charge_timeout: 30s\n  persist_timeout: 10s\n"))
	require.NoError(t, err)

	// a request queued for the whole request timeout still holds its key
	// through the charge and the persist that follow
	assert.Equal(t, 100*time.Second, cfg.IdempotencyLockTTL())
	assert.GreaterOrEqual(t, cfg.IdempotencyLockTTL(), cfg.Server.RequestTimeout+cfg.Payment.PersistTimeout)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("CARD_API_KEY", "sk_test_123")
	doc := `
payment:
  provider: card
  charge_timeout: 5s
  card:
    base_url: https://pay.example.com
    api_key: ${CARD_API_KEY}
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", cfg.Payment.Card.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Payment.ChargeTimeout)
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"unknown provider":       "payment:\n  provider: bitcoin\n",
		"card without key":       "payment:\n  provider: card\n  card:\n    base_url: http://x\n",
		"postgres without url":   "catalog:\n  source: postgres\n",
		"unknown catalog source": "catalog:\n  source: s3\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Runtime.Dev)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"), false)
	assert.Error(t, err)
}
