package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"raceline/internal/db"
	"raceline/internal/types"
)

// Event types. Every mutation appends exactly one.
const (
	CompetitionCreated   = "competition.created"
	CompetitionUpdated   = "competition.updated"
	RaceCreated          = "race.created"
	RaceUpdated          = "race.updated"
	RaceStatusChanged    = "race.status_changed"
	LocationCreated      = "location.created"
	LocationsReordered   = "location.reordered"
	AthleteCreated       = "athlete.created"
	ParticipationCreated = "participation.created"
	UserCreated          = "user.created"
	ReportCreated        = "report.created"
	ReportDeleted        = "report.deleted"
	IncidentCreated      = "incident.created"
	IncidentUpdated      = "incident.updated"
	IncidentOfficialized = "incident.officialized"
	IncidentDecided      = "incident.decided"
	IncidentDeleted      = "incident.deleted"
)

type Writer struct {
	Dialect db.Dialect
	Now     func() time.Time
}

type EventPayload map[string]any

// Append writes one event with q, which should be the transaction of the
// mutation it records. Zero entity and actor ids are stored as NULL.
func (w Writer) Append(ctx context.Context, q db.Querier, evtType, entityKind string, entityID, actorID int64, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := types.FormatTime(w.Now())
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = q.ExecContext(ctx, db.Rebind(w.Dialect, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`),
		ts, evtType, entityKind, nullableID(entityID), nullableID(actorID), string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
