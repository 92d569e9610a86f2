package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"raceline/internal/db"
	"raceline/internal/domain"
)

// Events reads the change log. Rows are written by events.Writer inside the
// transaction of each mutation.
type Events struct {
	q       db.Querier
	dialect db.Dialect
}

func (r Events) With(q db.Querier) Events {
	r.q = q
	return r
}

// EventsAfter returns events with ids greater than cursor in ascending order,
// optionally restricted to one entity kind.
func (r Events) EventsAfter(ctx context.Context, limit int, cursor int64, entityKind string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE %s ORDER BY id ASC LIMIT ?`,
		strings.Join(clauses, " AND "))
	args = append(args, limit)
	return r.query(ctx, query, args...)
}

// Latest returns the limit most recent events, newest first.
func (r Events) Latest(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx, `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events ORDER BY id DESC LIMIT ?`, limit)
}

// ForEntity returns the history of one record, oldest first.
func (r Events) ForEntity(ctx context.Context, entityKind string, entityID int64) ([]domain.Event, error) {
	return r.query(ctx, `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE entity_kind=? AND entity_id=? ORDER BY id ASC`,
		entityKind, entityID)
}

// LatestEventID returns the most recent event id, 0 on an empty log.
func (r Events) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, wrapErr("event.latest_id", err)
	}
	return id, nil
}

func (r Events) query(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.q.QueryContext(ctx, db.Rebind(r.dialect, query), args...)
	if err != nil {
		return nil, wrapErr("event.query", err)
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID, actorID sql.NullInt64
		ts := timeInto(&e.TS)
		if err := rows.Scan(&e.ID, &ts.src, &e.Type, &e.EntityKind, &entityID, &actorID, &e.Payload); err != nil {
			return nil, wrapErr("event.scan", err)
		}
		if err := decodeTimes(ts); err != nil {
			return nil, wrapErr("event.scan", err)
		}
		e.EntityID = entityID.Int64
		e.ActorID = actorID.Int64
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("event.query", err)
	}
	return res, nil
}
