package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raceline/internal/db"
)

func TestMigrateSeedsAndIsIdempotent(t *testing.T) {
	h, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, Migrate(h))
	require.NoError(t, Migrate(h))

	v, err := Version(h)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	var roles, raceTypes, templates int
	require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM roles`).Scan(&roles))
	require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM race_types`).Scan(&raceTypes))
	require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM location_templates`).Scan(&templates))
	assert.Equal(t, 6, roles)
	assert.Equal(t, 5, raceTypes)
	assert.Equal(t, 8, templates)
}

func TestEveryDialectHasTheSameMigrations(t *testing.T) {
	lite, err := loadMigrations(db.SQLite)
	require.NoError(t, err)
	pg, err := loadMigrations(db.Postgres)
	require.NoError(t, err)
	require.Equal(t, len(lite), len(pg))
	for i := range lite {
		assert.Equal(t, lite[i].Name, pg[i].Name)
	}
}
