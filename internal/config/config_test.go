package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ap_test")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DB_STATEMENT_TIMEOUT", "")
	t.Setenv("MATCH_TX_RETRIES", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.DBStatementTimeout)
	assert.Equal(t, 3, cfg.TxRetries)
	assert.Equal(t, "info", cfg.GetLoggerConfig().Level)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ap_test")
	t.Setenv("DB_STATEMENT_TIMEOUT", "5s")
	t.Setenv("MATCH_TX_RETRIES", "7")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.DBStatementTimeout)
	assert.Equal(t, 7, cfg.TxRetries)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Error(t, cfg.RequireJWTSecret())
}
