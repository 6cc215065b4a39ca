package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "08:30", cfg.LateThreshold)
	assert.Empty(t, cfg.RoomCode)
	assert.Nil(t, cfg.RedisRelays)
	assert.Nil(t, cfg.MQTTRelays)
	assert.Equal(t, 3*time.Second, cfg.RelayTimeout)
}

func TestListEnvSplitsAndTrims(t *testing.T) {
	t.Setenv("RELAY_REDIS_ADDRS", "relay-a:6379, relay-b:6379 ,,relay-c:6379")
	cfg := Load()
	assert.Equal(t, []string{"relay-a:6379", "relay-b:6379", "relay-c:6379"}, cfg.RedisRelays)
}

func TestDurationEnvFallsBackOnGarbage(t *testing.T) {
	t.Setenv("RELAY_TIMEOUT", "soon")
	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.RelayTimeout)
}
