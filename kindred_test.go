package kindred

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindredapp/kindred/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("KINDRED_PROCESS_SECRET", "000102030405060708090a0b0c0d0e0f")
	t.Setenv("KINDRED_OUTBOX_PATH", filepath.Join(t.TempDir(), "outbox"))

	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewClientValidation(t *testing.T) {
	cfg := testConfig(t)

	_, err := NewClient("", cfg)
	assert.Error(t, err)

	_, err = NewClient("u1", nil)
	assert.Error(t, err)

	bad := *cfg
	bad.ProcessSecretHex = "not-hex"
	_, err = NewClient("u1", &bad)
	assert.Error(t, err)
}

func TestNewClientWiresSubsystems(t *testing.T) {
	cfg := testConfig(t)

	client, err := NewClient("u1", cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.NotNil(t, client.codec)
	assert.NotNil(t, client.manager)
	assert.NotNil(t, client.gateway)
	assert.NotNil(t, client.outbox)
}

func TestNewClientWithoutPushEndpoint(t *testing.T) {
	cfg := testConfig(t)
	assert.Empty(t, cfg.PushEndpoint)

	client, err := NewClient("u1", cfg)
	require.NoError(t, err)
	client.Close()
}
