package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "5432", cfg.Database.Port)

	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Second, cfg.Cache.RefreshInterval)
	assert.Equal(t, 0.75, cfg.Cache.RefreshThreshold)
	assert.Equal(t, int64(3), cfg.Cache.AccessThreshold)
	assert.Equal(t, 5*time.Second, cfg.Cache.FlushInterval)
	assert.Equal(t, 10, cfg.Cache.FlushBatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("REFRESH_THRESHOLD", "0.5")
	t.Setenv("ACCESS_THRESHOLD", "10")
	t.Setenv("FLUSH_BATCH_SIZE", "50")
	t.Setenv("REDIS_DB", "4")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 0.5, cfg.Cache.RefreshThreshold)
	assert.Equal(t, int64(10), cfg.Cache.AccessThreshold)
	assert.Equal(t, 50, cfg.Cache.FlushBatchSize)
	assert.Equal(t, 4, cfg.Redis.DB)
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("FLUSH_BATCH_SIZE", "many")
	t.Setenv("REFRESH_THRESHOLD", "most")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Cache.FlushBatchSize)
	assert.Equal(t, 0.75, cfg.Cache.RefreshThreshold)
}
