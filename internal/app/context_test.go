package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raceline/internal/config"
	"raceline/internal/contract"
	"raceline/internal/repo"
)

func TestInitWritesConfigOnce(t *testing.T) {
	dir := t.TempDir()
	wrote, err := Init(dir)
	require.NoError(t, err)
	assert.True(t, wrote)

	require.NoError(t, os.WriteFile(config.Path(dir), []byte("log:\n  level: debug\n"), 0o644))
	wrote, err = Init(dir)
	require.NoError(t, err)
	assert.False(t, wrote)

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestResolveConfigAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ResolveConfig(dir, Overrides{LogLevel: "warn", LogJSON: true})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	_, err = ResolveConfig(dir, Overrides{LogLevel: "loud"})
	assert.Error(t, err)

	_, err = ResolveConfig(dir, Overrides{Driver: "postgres"})
	assert.Error(t, err, "postgres without a dsn")
}

func TestOpenMigratesAndServesEngine(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a, err := Open(ctx, dir, Overrides{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	assert.Nil(t, a.Hub)

	c, err := a.Engine.CreateCompetition(ctx, contract.Attributes{
		"name":       "Pierra Menta",
		"place":      "Arêches-Beaufort",
		"country":    "FRA",
		"start_date": "2025-03-12",
		"end_date":   "2025-03-15",
	}, 0)
	require.NoError(t, err)

	n, err := a.Engine.Repos.Competitions.Count(ctx, repo.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := a.Engine.Repos.Events.Latest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, c.ID(), latest[0].EntityID)
}

func TestOpenLiveAttachesHub(t *testing.T) {
	a, err := Open(context.Background(), t.TempDir(), Overrides{Live: true})
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Hub)
	assert.Equal(t, 0, a.Hub.ClientCount())
}
