package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "000102030405060708090a0b0c0d0e0f"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kindred.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KINDRED_PROCESS_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.MessageCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.PhotoURLTTL)
	assert.Equal(t, 2*time.Second, cfg.ReconnectAfter)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 3, cfg.QueueMaxRetries)
	assert.Equal(t, 50, cfg.MessageWindow)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	t.Setenv("KINDRED_PROCESS_SECRET", testSecret)
	path := writeConfig(t, `
redis_addr: redis.internal:6380
message_cache_ttl: 45s
queue_max_retries: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, 45*time.Second, cfg.MessageCacheTTL)
	assert.Equal(t, 7, cfg.QueueMaxRetries)
	assert.Equal(t, 50, cfg.MessageWindow, "untouched keys keep defaults")
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("KINDRED_PROCESS_SECRET", testSecret)
	t.Setenv("KINDRED_REDIS_ADDR", "redis.env:6381")
	t.Setenv("KINDRED_MESSAGE_WINDOW", "25")
	t.Setenv("KINDRED_TYPING_DEBOUNCE", "750ms")
	path := writeConfig(t, "redis_addr: redis.file:6380\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.env:6381", cfg.RedisAddr)
	assert.Equal(t, 25, cfg.MessageWindow)
	assert.Equal(t, 750*time.Millisecond, cfg.TypingDebounce)
}

func TestBadEnvOverrideIgnored(t *testing.T) {
	t.Setenv("KINDRED_PROCESS_SECRET", testSecret)
	t.Setenv("KINDRED_MESSAGE_WINDOW", "many")
	t.Setenv("KINDRED_HEARTBEAT_INTERVAL", "soon")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MessageWindow)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("KINDRED_PROCESS_SECRET", testSecret)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestSecretValidation(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		ok     bool
	}{
		{"valid 16 bytes", testSecret, true},
		{"missing", "", false},
		{"not hex", "zz0102", false},
		{"too short", "0001020304", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KINDRED_PROCESS_SECRET", tt.secret)
			_, err := Load("")
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestProcessSecretDecodes(t *testing.T) {
	t.Setenv("KINDRED_PROCESS_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	secret, err := cfg.ProcessSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 16)
	assert.Equal(t, byte(0x0f), secret[15])
}
