package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrMissingSecret indicates no process secret was configured.
var ErrMissingSecret = errors.New("process secret not configured")

// minSecretBytes is the smallest decoded secret accepted.
const minSecretBytes = 16

// Config carries every tunable of the messaging pipeline.
type Config struct {
	// DatabaseURL is the Postgres connection string for row storage.
	DatabaseURL string `yaml:"database_url"`
	// RedisAddr is the host:port of the realtime pub/sub broker.
	RedisAddr string `yaml:"redis_addr"`
	// RedisPassword is optional broker auth.
	RedisPassword string `yaml:"redis_password"`
	// PushEndpoint is the notification relay URL; empty disables push.
	PushEndpoint string `yaml:"push_endpoint"`
	// OutboxPath is the local directory for the offline queue store.
	OutboxPath string `yaml:"outbox_path"`
	// ProcessSecretHex is the hex-encoded key-derivation secret. Required.
	ProcessSecretHex string `yaml:"process_secret"`

	MessageCacheTTL time.Duration `yaml:"message_cache_ttl"`
	PhotoURLTTL     time.Duration `yaml:"photo_url_ttl"`

	ReconnectAfter       time.Duration `yaml:"reconnect_after"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	TypingDebounce       time.Duration `yaml:"typing_debounce"`

	QueueMaxRetries int `yaml:"queue_max_retries"`
	MessageWindow   int `yaml:"message_window"`
}

// defaults mirrors the per-package constants so a bare config file still
// produces the documented behavior.
func defaults() *Config {
	return &Config{
		RedisAddr:            "localhost:6379",
		OutboxPath:           "outbox",
		MessageCacheTTL:      30 * time.Second,
		PhotoURLTTL:          10 * time.Minute,
		ReconnectAfter:       2 * time.Second,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    30 * time.Second,
		TypingDebounce:       2 * time.Second,
		QueueMaxRetries:      3,
		MessageWindow:        50,
	}
}

// Load builds the configuration: code defaults, then the YAML file at
// path (skipped when path is empty or the file is absent), then
// environment variables. A .env file in the working directory is folded
// into the environment first. The process secret is validated last.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"error":    err.Error(),
		}).Warn("Skipping unreadable .env file")
	}

	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
			}).Debug("No config file, using defaults")
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays KINDRED_* environment variables onto the config.
func (c *Config) applyEnv() {
	overlayString(&c.DatabaseURL, "KINDRED_DATABASE_URL")
	overlayString(&c.RedisAddr, "KINDRED_REDIS_ADDR")
	overlayString(&c.RedisPassword, "KINDRED_REDIS_PASSWORD")
	overlayString(&c.PushEndpoint, "KINDRED_PUSH_ENDPOINT")
	overlayString(&c.OutboxPath, "KINDRED_OUTBOX_PATH")
	overlayString(&c.ProcessSecretHex, "KINDRED_PROCESS_SECRET")

	overlayDuration(&c.MessageCacheTTL, "KINDRED_MESSAGE_CACHE_TTL")
	overlayDuration(&c.PhotoURLTTL, "KINDRED_PHOTO_URL_TTL")
	overlayDuration(&c.ReconnectAfter, "KINDRED_RECONNECT_AFTER")
	overlayDuration(&c.HeartbeatInterval, "KINDRED_HEARTBEAT_INTERVAL")
	overlayDuration(&c.TypingDebounce, "KINDRED_TYPING_DEBOUNCE")

	overlayInt(&c.MaxReconnectAttempts, "KINDRED_MAX_RECONNECT_ATTEMPTS")
	overlayInt(&c.QueueMaxRetries, "KINDRED_QUEUE_MAX_RETRIES")
	overlayInt(&c.MessageWindow, "KINDRED_MESSAGE_WINDOW")
}

func overlayString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "applyEnv",
			"key":      key,
			"value":    v,
		}).Warn("Ignoring unparsable duration override")
		return
	}
	*dst = d
}

func overlayInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "applyEnv",
			"key":      key,
			"value":    v,
		}).Warn("Ignoring unparsable integer override")
		return
	}
	*dst = n
}

func (c *Config) validate() error {
	if c.ProcessSecretHex == "" {
		return ErrMissingSecret
	}
	secret, err := hex.DecodeString(c.ProcessSecretHex)
	if err != nil {
		return fmt.Errorf("decode process secret: %w", err)
	}
	if len(secret) < minSecretBytes {
		return fmt.Errorf("process secret too short: %d bytes, need at least %d", len(secret), minSecretBytes)
	}
	return nil
}

// ProcessSecret returns the decoded key-derivation secret. Load has
// already validated it, so failure here means the config was mutated.
func (c *Config) ProcessSecret() ([]byte, error) {
	secret, err := hex.DecodeString(c.ProcessSecretHex)
	if err != nil {
		return nil, fmt.Errorf("decode process secret: %w", err)
	}
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("process secret too short: %d bytes", len(secret))
	}
	return secret, nil
}
