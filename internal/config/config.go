package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/allowance/internal/backup"
)

type Config struct {
	// HTTP server
	Port        string
	CORSOrigins []string
	// TrustProxy takes client addresses from X-Real-IP and X-Forwarded-For.
	// Only enable it behind a reverse proxy that sets those headers.
	TrustProxy bool

	// Database
	DBPath    string
	TxRetries int

	LogLevel string
	Timezone string

	// Admin passphrase checked on /api/admin routes.
	Passphrase string

	// AMQP event publishing, disabled when the URL is empty.
	AMQPURL      string
	AMQPExchange string

	// Encrypted snapshots, disabled unless the bucket, keys and passphrase are set.
	S3               backup.S3Config
	BackupPassphrase string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("ALLOWANCE_PORT", "8080"),
		CORSOrigins: getEnvList("ALLOWANCE_CORS_ORIGINS", []string{"*"}),
		TrustProxy:  getEnvBool("ALLOWANCE_TRUST_PROXY", false),

		DBPath:    getEnv("ALLOWANCE_DB_PATH", "allowance.db"),
		TxRetries: getEnvInt("ALLOWANCE_TX_RETRIES", 3),

		LogLevel: getEnv("ALLOWANCE_LOG_LEVEL", "info"),
		Timezone: getEnv("ALLOWANCE_TIMEZONE", "Local"),

		Passphrase: os.Getenv("ALLOWANCE_PASSPHRASE"),

		AMQPURL:      getEnv("ALLOWANCE_AMQP_URL", ""),
		AMQPExchange: getEnv("ALLOWANCE_AMQP_EXCHANGE", "allowance"),

		S3: backup.S3Config{
			Endpoint:  getEnv("ALLOWANCE_S3_ENDPOINT", ""),
			Bucket:    getEnv("ALLOWANCE_S3_BUCKET", ""),
			Region:    getEnv("ALLOWANCE_S3_REGION", "us-east-1"),
			AccessKey: getEnv("ALLOWANCE_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("ALLOWANCE_S3_SECRET_KEY", ""),
		},
		BackupPassphrase: getEnv("ALLOWANCE_BACKUP_PASSPHRASE", ""),
	}
}

// Location resolves Timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) Backup() backup.Config {
	return backup.Config{S3: c.S3, Passphrase: c.BackupPassphrase}
}

// Validate returns every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	}

	if c.TxRetries < 0 || c.TxRetries > 20 {
		errs = append(errs, fmt.Sprintf("invalid transaction retries %d: must be between 0 and 20", c.TxRetries))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.Passphrase == "" {
		errs = append(errs, "ALLOWANCE_PASSPHRASE is required")
	}

	if len(c.CORSOrigins) == 0 {
		errs = append(errs, "at least one CORS origin is required")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.S3.Bucket != "" {
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, "S3 access key and secret key are required when a bucket is set")
		}
		if c.BackupPassphrase == "" {
			errs = append(errs, "ALLOWANCE_BACKUP_PASSPHRASE is required when a bucket is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
