package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	defaultDBName = "raceline.db"
	workspaceDir  = ".raceline"
)

// Dialect selects SQL placeholder style and migrations.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case "", SQLite:
		return SQLite, nil
	case Postgres, "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unknown database driver %q", s)
}

type Config struct {
	Workspace string
	Driver    string
	DSN       string
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Handle is an open database together with its dialect.
type Handle struct {
	DB      *sql.DB
	Dialect Dialect
}

func (h Handle) Close() error { return h.DB.Close() }

// Rebind rewrites ? placeholders for the handle's dialect.
func (h Handle) Rebind(query string) string { return Rebind(h.Dialect, query) }

// InTx runs fn inside one transaction, committing only when fn succeeds.
func (h Handle) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Rebind turns ? placeholders into $1..$n for Postgres. Question marks inside
// single-quoted literals are left alone.
func Rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, defaultDBName)
}

// EnsureWorkspace creates workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens SQLite (default, inside the workspace) or Postgres via pgx.
func Open(cfg Config) (Handle, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return Handle{}, err
	}
	if dialect == Postgres {
		if strings.TrimSpace(cfg.DSN) == "" {
			return Handle{}, errors.New("postgres driver requires a dsn")
		}
		conn, err := sql.Open("pgx", strings.TrimSpace(cfg.DSN))
		if err != nil {
			return Handle{}, err
		}
		if err := conn.Ping(); err != nil {
			_ = conn.Close()
			return Handle{}, err
		}
		return Handle{DB: conn, Dialect: Postgres}, nil
	}
	dsn := cfg.DSN
	if dsn == "" {
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return Handle{}, err
		}
		dsn = SQLiteDSN(dbPath(cfg.Workspace))
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return Handle{}, err
	}
	return Handle{DB: conn, Dialect: SQLite}, nil
}

// SQLiteDSN enables foreign keys and WAL with a busy timeout.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}

// ConstraintKind names the storage constraint a write violated.
type ConstraintKind string

const (
	Unique     ConstraintKind = "unique"
	ForeignKey ConstraintKind = "foreign_key"
	NotNull    ConstraintKind = "not_null"
	Check      ConstraintKind = "check"
	Constraint ConstraintKind = "constraint"
)

var pgConstraintCodes = map[string]ConstraintKind{
	"23505": Unique,
	"23503": ForeignKey,
	"23502": NotNull,
	"23514": Check,
}

// ClassifyConstraint reports whether err is a constraint violation raised by
// either driver, and which kind.
func ClassifyConstraint(err error) (ConstraintKind, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if kind, ok := pgConstraintCodes[pgErr.Code]; ok {
			return kind, true
		}
		if strings.HasPrefix(pgErr.Code, "23") {
			return Constraint, true
		}
		return "", false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return Unique, true
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ForeignKey, true
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return NotNull, true
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return Check, true
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return Constraint, true
		}
	}
	return "", false
}
