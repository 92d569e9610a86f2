package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/live", cfg.Broadcast.Path)
	assert.Equal(t, 64, cfg.Cache.LookupSize)
	assert.True(t, cfg.Import.NormalizeNames)
	assert.Empty(t, cfg.Webhooks)
}

func TestFromYAMLKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := FromYAML([]byte(`
log:
  level: debug
webhooks:
  - url: https://results.example.org/hook
    events: [incident.decided]
    enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	require.Len(t, cfg.Webhooks, 1)
	assert.False(t, cfg.Webhooks[0].Active())
	assert.Equal(t, []string{"incident.decided"}, cfg.Webhooks[0].Events)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]string{
		"driver":       "database:\n  driver: oracle\n",
		"postgres dsn": "database:\n  driver: postgres\n",
		"log level":    "log:\n  level: loud\n",
		"cache":        "cache:\n  lookup_size: -1\n",
		"path":         "broadcast:\n  path: live\n",
		"webhook url":  "webhooks:\n  - url: ftp://example.org\n",
		"webhook evt":  "webhooks:\n  - url: http://example.org\n    events: ['']\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.ErrorContains(t, err, "rl init")

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("cache:\n  lookup_size: 8\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Cache.LookupSize)
	assert.Equal(t, dir, cfg.DB(dir).Workspace)
}
