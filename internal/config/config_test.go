package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("first run writes defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "calnorm", "config.yaml")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, UITerminal, cfg.UI)
		assert.Equal(t, filepath.Join(dir, "calnorm", "rules.yaml"), cfg.RulesPath)
		assert.Equal(t, "Name des Events", cfg.Labels.TitleName)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("partial config is normalized", func(t *testing.T) {
		path := writeTempConfig(t, "ui: web\nlabels:\n  title_name: Event name\nfeed:\n  url: https://example.com/cal.ics\n  output: out.ics\n")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, UIWeb, cfg.UI)
		assert.Equal(t, "Event name", cfg.Labels.TitleName)
		assert.Equal(t, "Beschreibung des Events", cfg.Labels.TitleDescription)
		assert.Equal(t, "*/30 * * * *", cfg.Feed.Schedule)
		assert.Equal(t, filepath.Join(filepath.Dir(path), "out.ics"), cfg.Feed.Output)
		assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	})

	t.Run("absolute paths are kept", func(t *testing.T) {
		path := writeTempConfig(t, "rules_path: /var/lib/calnorm/rules.yaml\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/calnorm/rules.yaml", cfg.RulesPath)
	})

	t.Run("unknown ui falls back to tui", func(t *testing.T) {
		cfg, err := Load(writeTempConfig(t, "ui: gtk\n"))
		require.NoError(t, err)
		assert.Equal(t, UITerminal, cfg.UI)
	})

	t.Run("half-configured basic auth is disabled", func(t *testing.T) {
		cfg, err := Load(writeTempConfig(t, "basic_auth:\n  username: me\n"))
		require.NoError(t, err)
		assert.Nil(t, cfg.BasicAuth)
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		_, err := Load(writeTempConfig(t, "ui: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.Feed.URL = "https://example.com/cal.ics"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.BasicAuth, loaded.BasicAuth)
	assert.Equal(t, cfg.Feed.URL, loaded.Feed.URL)
}
