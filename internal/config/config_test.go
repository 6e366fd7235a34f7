package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.True(t, cfg.Gateway.Local)
	assert.Equal(t, 60*time.Second, cfg.Generation.WatchdogInterval)
	assert.Equal(t, []string{"key-1"}, cfg.Proxy.Keys)
	assert.Contains(t, cfg.Proxy.UpstreamEndpoint, "generativelanguage.googleapis.com")
}

func TestLoad_KeyRotationOrder(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "first")
	t.Setenv("GEMINI_API_KEY3", "third")
	t.Setenv("GEMINI_API_KEY10", "tenth")

	cfg, err := Load()
	require.NoError(t, err)

	// Unset slots collapse; configured keys keep their numeric order.
	assert.Equal(t, []string{"first", "third", "tenth"}, cfg.Proxy.Keys)
}

func TestLoad_NoKeysFails(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoad_HostedRequiresGatewayKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key-1")
	t.Setenv("GATEWAY_LOCAL", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.apikey")

	t.Setenv("GATEWAY_API_KEY", "bearer-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Gateway.Local)
	assert.Equal(t, "bearer-key", cfg.Gateway.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key-1")
	t.Setenv("PORT", "8081")
	t.Setenv("GENERATION_INTER_DAY_DELAY", "500ms")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Generation.InterDayDelay)
	assert.Equal(t, "console", cfg.Logging.Format)
}
