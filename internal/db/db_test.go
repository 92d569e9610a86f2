package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM races WHERE competition_id=? AND name<>'?' AND status IN (?,?)`
	assert.Equal(t, q, Rebind(SQLite, q))
	assert.Equal(t,
		`SELECT id FROM races WHERE competition_id=$1 AND name<>'?' AND status IN ($2,$3)`,
		Rebind(Postgres, q))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	d, err = ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func openTemp(t *testing.T) Handle {
	t.Helper()
	h, err := Open(Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	_, err = h.DB.Exec(`
CREATE TABLE parents(id INTEGER PRIMARY KEY);
CREATE TABLE children(
  id INTEGER PRIMARY KEY,
  parent_id INTEGER NOT NULL REFERENCES parents(id),
  code TEXT NOT NULL UNIQUE,
  qty INTEGER NOT NULL CHECK (qty >= 0)
);
INSERT INTO parents(id) VALUES (1);`)
	require.NoError(t, err)
	return h
}

func TestOpenCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	h, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.DB.Ping())
	assert.Equal(t, filepath.Join(dir, ".raceline", "raceline.db"), Path(dir))
	assert.FileExists(t, Path(dir))
}

func TestClassifySQLiteConstraints(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()
	_, err := h.DB.ExecContext(ctx, `INSERT INTO children(parent_id, code, qty) VALUES (1, 'a', 1)`)
	require.NoError(t, err)

	cases := map[ConstraintKind]string{
		Unique:     `INSERT INTO children(parent_id, code, qty) VALUES (1, 'a', 1)`,
		ForeignKey: `INSERT INTO children(parent_id, code, qty) VALUES (99, 'b', 1)`,
		NotNull:    `INSERT INTO children(parent_id, code, qty) VALUES (1, NULL, 1)`,
		Check:      `INSERT INTO children(parent_id, code, qty) VALUES (1, 'c', -1)`,
	}
	for want, stmt := range cases {
		_, err := h.DB.ExecContext(ctx, stmt)
		require.Error(t, err, stmt)
		kind, ok := ClassifyConstraint(err)
		assert.True(t, ok, stmt)
		assert.Equal(t, want, kind, stmt)
	}

	_, ok := ClassifyConstraint(errors.New("disk I/O error"))
	assert.False(t, ok)
	_, ok = ClassifyConstraint(nil)
	assert.False(t, ok)
}

func TestClassifyPostgresCodes(t *testing.T) {
	kind, ok := ClassifyConstraint(&pgconn.PgError{Code: "23505"})
	assert.True(t, ok)
	assert.Equal(t, Unique, kind)
	kind, ok = ClassifyConstraint(&pgconn.PgError{Code: "23P01"})
	assert.True(t, ok)
	assert.Equal(t, Constraint, kind)
	_, ok = ClassifyConstraint(&pgconn.PgError{Code: "57014"})
	assert.False(t, ok)
}

func TestInTxRollsBackOnError(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()
	boom := errors.New("boom")
	err := h.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO children(parent_id, code, qty) VALUES (1, 'x', 1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM children`).Scan(&n))
	assert.Equal(t, 0, n)

	require.NoError(t, h.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO children(parent_id, code, qty) VALUES (1, 'y', 1)`)
		return err
	}))
	require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM children`).Scan(&n))
	assert.Equal(t, 1, n)
}
