// Package repo is the only code that talks to the database. Reads build
// immutable domain records: single-row reads return the full record, multi-row
// reads always return summaries.
package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"raceline/internal/db"
	"raceline/internal/types"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")
	ErrStorage    = errors.New("storage failure")
)

// ConstraintError is a write rejected by a storage constraint. It is
// recoverable: the caller gets no record, but knows which constraint failed.
type ConstraintError struct {
	Op   string
	Kind db.ConstraintKind
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s constraint: %v", e.Op, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error        { return e.Err }
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// StorageError is any other driver failure. It is never retried here.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string        { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func wrapErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var ce *ConstraintError
	var se *StorageError
	if errors.As(err, &ce) || errors.As(err, &se) {
		return err
	}
	if kind, ok := db.ClassifyConstraint(err); ok {
		return &ConstraintError{Op: op, Kind: kind, Err: err}
	}
	return &StorageError{Op: op, Err: err}
}

// Criteria is a set of equality conditions. A nil value matches NULL and a
// slice matches any of its elements.
type Criteria map[string]any

func (c Criteria) build(columns map[string]string) (string, []any, error) {
	if len(c) == 0 {
		return "1=1", nil, nil
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	clauses := make([]string, 0, len(keys))
	var args []any
	for _, k := range keys {
		col, ok := columns[k]
		if !ok {
			return "", nil, fmt.Errorf("unknown criteria field %q", k)
		}
		v := c[k]
		rv := reflect.ValueOf(v)
		switch {
		case v == nil:
			clauses = append(clauses, col+" IS NULL")
		case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8:
			if rv.Len() == 0 {
				clauses = append(clauses, "1=0")
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, placeholders(rv.Len())))
			for i := 0; i < rv.Len(); i++ {
				args = append(args, arg(rv.Index(i).Interface()))
			}
		default:
			clauses = append(clauses, col+"=?")
			args = append(args, arg(v))
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// arg lowers named scalar types and times to plain driver values.
func arg(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return types.FormatTime(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

type scanner interface {
	Scan(dest ...any) error
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return types.FormatTime(t)
}

type storedTime struct {
	src sql.NullString
	dst *time.Time
}

// decodeTimes parses scanned TEXT timestamps into their destinations.
func decodeTimes(fields ...*storedTime) error {
	for _, f := range fields {
		if !f.src.Valid {
			continue
		}
		t, err := types.ParseStoredTime(f.src.String)
		if err != nil {
			return fmt.Errorf("stored time %q: %w", f.src.String, err)
		}
		*f.dst = t
	}
	return nil
}

func timeInto(dst *time.Time) *storedTime {
	return &storedTime{dst: dst}
}

// assignments collects the SET list of a partial update.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(col string, v any) {
	a.cols = append(a.cols, col+"=?")
	a.args = append(a.args, v)
}

func (a *assignments) empty() bool { return len(a.cols) == 0 }
