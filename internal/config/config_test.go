package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/backup"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALLOWANCE_PASSPHRASE", "letmein")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "allowance.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.TxRetries)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "allowance", cfg.AMQPExchange)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Empty(t, cfg.AMQPURL)
	assert.False(t, cfg.TrustProxy)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ALLOWANCE_PORT", "9090")
	t.Setenv("ALLOWANCE_TX_RETRIES", "5")
	t.Setenv("ALLOWANCE_CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("ALLOWANCE_TIMEZONE", "UTC")
	t.Setenv("ALLOWANCE_S3_BUCKET", "snaps")
	t.Setenv("ALLOWANCE_TRUST_PROXY", "true")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5, cfg.TxRetries)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "UTC", cfg.Location().String())
	assert.Equal(t, "snaps", cfg.Backup().S3.Bucket)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadIgnoresBadInt(t *testing.T) {
	t.Setenv("ALLOWANCE_TX_RETRIES", "lots")
	assert.Equal(t, 3, Load().TxRetries)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{
		Port:        "99999",
		DBPath:      "allowance.db",
		TxRetries:   3,
		LogLevel:    "verbose",
		Timezone:    "Mars/Olympus",
		CORSOrigins: []string{"*"},
		AMQPURL:     "http://broker",
		S3:          backup.S3Config{Bucket: "snaps"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid port 99999")
	assert.Contains(t, msg, "invalid log level 'verbose'")
	assert.Contains(t, msg, "invalid timezone 'Mars/Olympus'")
	assert.Contains(t, msg, "ALLOWANCE_PASSPHRASE is required")
	assert.Contains(t, msg, "must be 'amqp' or 'amqps'")
	assert.Contains(t, msg, "access key and secret key are required")
	assert.Contains(t, msg, "ALLOWANCE_BACKUP_PASSPHRASE is required")
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/Special"}
	assert.Equal(t, time.Local, cfg.Location())
}
