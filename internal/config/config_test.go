package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "scooply", cfg.Name)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, int64(99), cfg.Cart.MaxItemQuantity)
	assert.Equal(t, int64(8<<20), cfg.Media.MaxUploadSize)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
}

func TestLoadAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scooply.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":9000"
	cfg.Database.Path = "/tmp/x.db"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", loaded.Server.Addr)
	assert.Equal(t, "/tmp/x.db", loaded.Database.Path)
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scooply.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	// Untouched sections keep defaults
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY sets AI key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gm-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gm-key", cfg.AI.APIKey)
	})

	t.Run("PLATFORM_URL and service key", func(t *testing.T) {
		t.Setenv("PLATFORM_URL", "https://platform.example")
		t.Setenv("PLATFORM_SERVICE_KEY", "srv-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "https://platform.example", cfg.Platform.BaseURL)
		assert.Equal(t, "srv-key", cfg.Platform.ServiceRoleKey)
	})

	t.Run("SCOOPLY_DB overrides database path", func(t *testing.T) {
		t.Setenv("SCOOPLY_DB", "/data/alt.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/data/alt.db", cfg.Database.Path)
	})
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20*time.Second, cfg.GetDownloadTimeout())
	assert.Equal(t, 720*time.Hour, cfg.GetGuestCartTTL())

	cfg.AI.DownloadTimeout = "garbage"
	assert.Equal(t, 20*time.Second, cfg.GetDownloadTimeout(), "bad duration falls back")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	t.Run("missing AI key when enabled", func(t *testing.T) {
		c := DefaultConfig()
		c.AI.Enabled = true
		c.AI.APIKey = ""
		assert.Error(t, c.Validate())
	})

	t.Run("AI disabled needs no key", func(t *testing.T) {
		c := DefaultConfig()
		c.AI.Enabled = false
		assert.NoError(t, c.Validate())
	})

	t.Run("missing database path", func(t *testing.T) {
		c := DefaultConfig()
		c.AI.Enabled = false
		c.Database.Path = ""
		assert.Error(t, c.Validate())
	})
}
