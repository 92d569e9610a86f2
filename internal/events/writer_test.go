package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raceline/internal/db"
	"raceline/internal/migrate"
)

func TestAppendWritesInsideTheCallersTransaction(t *testing.T) {
	h, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, migrate.Migrate(h))

	w := Writer{Dialect: h.Dialect, Now: func() time.Time { return time.Date(2025, 2, 1, 10, 0, 0, 123, time.UTC) }}
	ctx := context.Background()

	err = h.InTx(ctx, func(tx *sql.Tx) error {
		require.NoError(t, w.Append(ctx, tx, RaceCreated, "race", 3, 0, EventPayload{"name": "Sprint"}))
		return sql.ErrTxDone
	})
	require.Error(t, err)

	var n int
	require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, h.InTx(ctx, func(tx *sql.Tx) error {
		return w.Append(ctx, tx, RaceCreated, "race", 3, 0, nil)
	}))
	var ts, payload string
	var actor sql.NullInt64
	require.NoError(t, h.DB.QueryRow(`SELECT ts, actor_id, payload_json FROM events`).Scan(&ts, &actor, &payload))
	assert.Equal(t, "2025-02-01T10:00:00Z", ts)
	assert.False(t, actor.Valid)
	assert.Equal(t, "{}", payload)
}
