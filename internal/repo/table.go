package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"raceline/internal/db"
	"raceline/internal/domain"
)

// tableSpec describes how one entity is read: the default-scope joins, the
// criteria allowlist and the full/summary projections with their builders.
type tableSpec[F, S any] struct {
	entity      string
	table       string
	from        string
	id          string
	columns     map[string]string
	full        []string
	summary     []string
	order       string
	scanFull    func(scanner) (F, error)
	scanSummary func(scanner) (S, error)
}

// Table is the shared read surface of every repository. F is the full
// record, S the summary record.
type Table[F, S any] struct {
	q       db.Querier
	dialect db.Dialect
	spec    *tableSpec[F, S]
	log     *zap.SugaredLogger
	now     func() time.Time
	cache   *lru.Cache[int64, F]
	// Reads go through the cache only outside transactions.
	cacheReads bool
}

func newTable[F, S any](q db.Querier, d db.Dialect, opts Options, spec *tableSpec[F, S]) Table[F, S] {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return Table[F, S]{q: q, dialect: d, spec: spec, log: log, now: now}
}

func (t Table[F, S]) stamp() time.Time {
	return t.now().UTC().Truncate(time.Second)
}

func (t *Table[F, S]) withCache(size int) error {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[int64, F](size)
	if err != nil {
		return err
	}
	t.cache = c
	t.cacheReads = true
	return nil
}

// with rebinds the table to q. Bound to a transaction the cache is still
// invalidated on writes but never read.
func (t Table[F, S]) with(q db.Querier) Table[F, S] {
	t.q = q
	_, inTx := q.(*sql.Tx)
	t.cacheReads = t.cache != nil && !inTx
	return t
}

func (t Table[F, S]) rebind(query string) string { return db.Rebind(t.dialect, query) }

func (t Table[F, S]) invalidate(id int64) {
	if t.cache != nil {
		t.cache.Remove(id)
	}
}

// Find returns the full record with id; ok is false when there is none.
func (t Table[F, S]) Find(ctx context.Context, id int64) (F, bool, error) {
	if t.cacheReads {
		if f, ok := t.cache.Get(id); ok {
			return f, true, nil
		}
	}
	f, ok, err := t.findOne(ctx, "find", t.spec.id+"=?", id)
	if ok && t.cacheReads {
		t.cache.Add(id, f)
	}
	return f, ok, err
}

// MustFind is Find with a missing row reported as ErrNotFound.
func (t Table[F, S]) MustFind(ctx context.Context, id int64) (F, error) {
	f, ok, err := t.Find(ctx, id)
	if err != nil {
		return f, err
	}
	if !ok {
		return f, fmt.Errorf("%s %d: %w", t.spec.entity, id, ErrNotFound)
	}
	return f, nil
}

// FindBy returns the first full record matching c in default order.
func (t Table[F, S]) FindBy(ctx context.Context, c Criteria) (F, bool, error) {
	var zero F
	where, args, err := c.build(t.spec.columns)
	if err != nil {
		return zero, false, err
	}
	return t.findOne(ctx, "find_by", where, args...)
}

func (t Table[F, S]) findOne(ctx context.Context, op, where string, args ...any) (F, bool, error) {
	var zero F
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT 1",
		strings.Join(t.spec.full, ", "), t.spec.from, where, t.spec.order)
	f, err := t.spec.scanFull(t.q.QueryRowContext(ctx, t.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, t.readErr(op, err, args)
	}
	return f, true, nil
}

// All returns every row as a summary.
func (t Table[F, S]) All(ctx context.Context) ([]S, error) {
	return t.Where(ctx, nil)
}

// Where returns the summaries of rows matching c.
func (t Table[F, S]) Where(ctx context.Context, c Criteria) ([]S, error) {
	where, args, err := c.build(t.spec.columns)
	if err != nil {
		return nil, err
	}
	return t.selectSummaries(ctx, "where", where, "", args...)
}

// Many returns the summaries of the rows with the given ids.
func (t Table[F, S]) Many(ctx context.Context, ids []int64) ([]S, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	where := fmt.Sprintf("%s IN (%s)", t.spec.id, placeholders(len(ids)))
	return t.selectSummaries(ctx, "many", where, "", args...)
}

func (t Table[F, S]) selectSummaries(ctx context.Context, op, where, order string, args ...any) ([]S, error) {
	if order == "" {
		order = t.spec.order
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(t.spec.summary, ", "), t.spec.from, where, order)
	rows, err := t.q.QueryContext(ctx, t.rebind(query), args...)
	if err != nil {
		return nil, wrapErr(t.spec.entity+"."+op, err)
	}
	defer rows.Close()
	var out []S
	for rows.Next() {
		s, err := t.spec.scanSummary(rows)
		if err != nil {
			return nil, t.readErr(op, err, args)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(t.spec.entity+"."+op, err)
	}
	return out, nil
}

// Count returns how many rows match c.
func (t Table[F, S]) Count(ctx context.Context, c Criteria) (int, error) {
	where, args, err := c.build(t.spec.columns)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.spec.from, where)
	var n int
	if err := t.q.QueryRowContext(ctx, t.rebind(query), args...).Scan(&n); err != nil {
		return 0, wrapErr(t.spec.entity+".count", err)
	}
	return n, nil
}

func (t Table[F, S]) Exists(ctx context.Context, c Criteria) (bool, error) {
	where, args, err := c.build(t.spec.columns)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", t.spec.from, where)
	var one int
	err = t.q.QueryRowContext(ctx, t.rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapErr(t.spec.entity+".exists", err)
	}
	return true, nil
}

// Pluck returns the raw values of fields for every row matching c.
func (t Table[F, S]) Pluck(ctx context.Context, c Criteria, fields ...string) ([][]any, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("pluck %s: no fields", t.spec.entity)
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		col, ok := t.spec.columns[f]
		if !ok {
			return nil, fmt.Errorf("unknown pluck field %q", f)
		}
		cols[i] = col
	}
	where, args, err := c.build(t.spec.columns)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(cols, ", "), t.spec.from, where, t.spec.order)
	rows, err := t.q.QueryContext(ctx, t.rebind(query), args...)
	if err != nil {
		return nil, wrapErr(t.spec.entity+".pluck", err)
	}
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapErr(t.spec.entity+".pluck", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(t.spec.entity+".pluck", err)
	}
	return out, nil
}

// Delete removes the row with id and reports whether there was one.
func (t Table[F, S]) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := t.q.ExecContext(ctx, t.rebind(fmt.Sprintf("DELETE FROM %s WHERE id=?", t.spec.table)), id)
	if err != nil {
		return false, wrapErr(t.spec.entity+".delete", err)
	}
	t.invalidate(id)
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(t.spec.entity+".delete", err)
	}
	return n > 0, nil
}

func (t Table[F, S]) insert(ctx context.Context, cols []string, args []any) (int64, error) {
	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s) RETURNING id",
		t.spec.table, strings.Join(cols, ", "), placeholders(len(cols)))
	var id int64
	if err := t.q.QueryRowContext(ctx, t.rebind(query), args...).Scan(&id); err != nil {
		return 0, wrapErr(t.spec.entity+".create", err)
	}
	return id, nil
}

func (t Table[F, S]) update(ctx context.Context, id int64, a assignments) error {
	if a.empty() {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id=?", t.spec.table, strings.Join(a.cols, ", "))
	res, err := t.q.ExecContext(ctx, t.rebind(query), append(a.args, id)...)
	t.invalidate(id)
	if err != nil {
		return wrapErr(t.spec.entity+".update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(t.spec.entity+".update", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", t.spec.entity, id, ErrNotFound)
	}
	return nil
}

// readErr logs rows that no longer satisfy their record invariants; they
// surface as *domain.ConstructionError, never as a half-built record.
func (t Table[F, S]) readErr(op string, err error, args []any) error {
	var ce *domain.ConstructionError
	if errors.As(err, &ce) {
		t.log.Errorw("stored row failed construction", "entity", t.spec.entity, "op", op, "args", args, "error", err)
		return err
	}
	return wrapErr(t.spec.entity+"."+op, err)
}
