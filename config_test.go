package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, cfg.validate())

	cfg = testConfig()
	cfg.tlsCert = "/tmp/cert.pem"
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.port = 0
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.totalRounds = 0
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.roundDuration = 0
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.minPlayers = 1
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.maxPlayers = maxRoomSize + 1
	assert.Error(t, cfg.validate())
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "/tmp/cert.pem"
	cfg.tlsKey = "/tmp/key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestCmdFlagDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 15, cfg.totalRounds)
	assert.Equal(t, time.Second, cfg.roundDuration)
	assert.Equal(t, 5*time.Second, cfg.disconnectGrace)
	assert.Equal(t, maxRoomSize, cfg.maxPlayers)
	assert.Equal(t, 2, cfg.minPlayers)
	assert.NoError(t, cfg.validate())
}

func TestCmdFlagOverrides(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "9090",
		"--rounds", "5",
		"--round-duration", "750ms",
		"--max-players", "4",
	}))

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 5, cfg.totalRounds)
	assert.Equal(t, 750*time.Millisecond, cfg.roundDuration)
	assert.Equal(t, 4, cfg.maxPlayers)
}
