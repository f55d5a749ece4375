package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pollex.nl/lazyload/internal/config"
	"pollex.nl/lazyload/internal/database"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "lazyload.db", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5*time.Second, cfg.Database.PingTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazyload.yaml")
	err := os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://localhost/lazyload
  ping_timeout: 2s
log:
  level: debug
`), 0o600)
	require.NoError(t, err)

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)

		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "postgres://localhost/lazyload", cfg.Database.DSN)
		assert.Equal(t, 2*time.Second, cfg.Database.PingTimeout)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 2, cfg.Database.MaxIdleConns)
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv("LAZYLOAD_DATABASE__DSN", "postgres://db/other")
		t.Setenv("LAZYLOAD_DATABASE__MAX_OPEN_CONNS", "3")

		cfg, err := config.Load(path, nil)
		require.NoError(t, err)

		assert.Equal(t, "postgres://db/other", cfg.Database.DSN)
		assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	})

	t.Run("overrides over environment", func(t *testing.T) {
		t.Setenv("LAZYLOAD_DATABASE__DSN", "postgres://db/other")

		cfg, err := config.Load(path, map[string]any{"database.dsn": "postgres://flag/dsn"})
		require.NoError(t, err)

		assert.Equal(t, "postgres://flag/dsn", cfg.Database.DSN)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		_, err := config.Load("", map[string]any{"database.driver": "oracle"})
		assert.ErrorIs(t, err, database.ErrUnknownDriver)
	})

	t.Run("empty dsn", func(t *testing.T) {
		_, err := config.Load("", map[string]any{"database.dsn": ""})
		assert.ErrorIs(t, err, config.ErrInvalid)
	})

	t.Run("bad log settings are all reported", func(t *testing.T) {
		_, err := config.Load("", map[string]any{"log.level": "loud", "log.format": "xml"})
		require.ErrorIs(t, err, config.ErrInvalid)
		assert.Contains(t, err.Error(), "log.level")
		assert.Contains(t, err.Error(), "log.format")
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := config.Log{Level: "warn", Format: "json"}.Logger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
