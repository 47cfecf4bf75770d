package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.True(t, cfg.Store.WriteBehind)
	assert.Equal(t, 2*time.Second, cfg.Store.FlushInterval)
	assert.Equal(t, 5*time.Minute, cfg.Room.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Room.PresenceTimeout)
	assert.Equal(t, 1000, cfg.Room.OpLogRetention)
	assert.Equal(t, 1024, cfg.Analysis.CacheSize)
	assert.Equal(t, 5*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 50, cfg.Analysis.MaxFuncLines)
	assert.Equal(t, 60*time.Second, cfg.Assist.Timeout)
	assert.Equal(t, 2, cfg.Assist.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codecollab.toml")
	content := `
[server]
addr = ":9090"

[store]
backend = "postgres"
database_url = "postgres://localhost/test"

[room]
idle_timeout = "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/test", cfg.Store.DatabaseURL)
	assert.Equal(t, time.Minute, cfg.Room.IdleTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000, cfg.Room.OpLogRetention)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CODECOLLAB_SERVER_ADDR", ":7070")
	t.Setenv("CODECOLLAB_STORE_BACKEND", "redis")
	t.Setenv("CODECOLLAB_ASSIST_PROVIDER", "ollama")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "ollama", cfg.Assist.Provider)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Validate(valid()))
	})

	t.Run("postgres needs a database url", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Backend = "postgres"
		assert.Error(t, Validate(cfg))
		cfg.Store.DatabaseURL = "postgres://localhost/db"
		assert.NoError(t, Validate(cfg))
	})

	t.Run("redis needs a redis url", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Backend = "redis"
		assert.Error(t, Validate(cfg))
		cfg.Store.RedisURL = "redis://localhost:6379/0"
		assert.NoError(t, Validate(cfg))
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Backend = "etcd"
		assert.Error(t, Validate(cfg))
	})

	t.Run("openai needs an api key", func(t *testing.T) {
		cfg := valid()
		cfg.Assist.Provider = "openai"
		assert.Error(t, Validate(cfg))
		cfg.Assist.APIKey = "sk-test"
		assert.NoError(t, Validate(cfg))
	})

	t.Run("negative retention", func(t *testing.T) {
		cfg := valid()
		cfg.Room.OpLogRetention = -1
		assert.Error(t, Validate(cfg))
	})
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codecollab.toml")

	require.NoError(t, Init(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "ollama", cfg.Assist.Provider)

	// Refuses to overwrite.
	assert.Error(t, Init(path))
}
