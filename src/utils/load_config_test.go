package utils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigurationRequiresToken(t *testing.T) {
	t.Setenv("DC_BOT_TOKEN", "")
	os.Unsetenv("DC_BOT_TOKEN")
	_, err := LoadConfiguration()
	assert.Error(t, err)
}

func TestLoadConfigurationReadsEnv(t *testing.T) {
	t.Setenv("DC_BOT_TOKEN", "tok")
	t.Setenv("DC_APPLICATION_ID", "app")
	t.Setenv("DC_GATEWAY_ADDRESS", "wss://gateway.example")

	cfg, err := LoadConfiguration()
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.DiscordBotToken)
	assert.Equal(t, "app", cfg.DiscordAppsID)
	assert.Equal(t, "wss://gateway.example", cfg.DiscordGateway)
	assert.Empty(t, cfg.DiscordPublicKey)
}
