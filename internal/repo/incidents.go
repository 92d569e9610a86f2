package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/types"
)

type Reports struct {
	Table[domain.Report, domain.ReportSummary]
}

var reportSpec = &tableSpec[domain.Report, domain.ReportSummary]{
	entity: "report",
	table:  "reports",
	from:   "reports rp",
	id:     "rp.id",
	columns: map[string]string{
		"id":               "rp.id",
		"uuid":             "rp.uuid",
		"race_id":          "rp.race_id",
		"incident_id":      "rp.incident_id",
		"user_id":          "rp.user_id",
		"race_location_id": "rp.race_location_id",
		"bib_number":       "rp.bib_number",
	},
	full: []string{
		"rp.id", "rp.uuid", "rp.race_id", "rp.incident_id", "rp.user_id", "rp.race_location_id",
		"rp.bib_number", "rp.description", "rp.video_url", "rp.created_at",
	},
	summary: []string{"rp.id", "rp.race_id", "rp.incident_id", "rp.bib_number", "rp.created_at"},
	order:   "rp.created_at, rp.id",
	scanFull: func(s scanner) (domain.Report, error) {
		var a domain.ReportAttrs
		var incident, location sql.NullInt64
		var video sql.NullString
		created := timeInto(&a.CreatedAt)
		if err := s.Scan(&a.ID, &a.UUID, &a.RaceID, &incident, &a.UserID, &location,
			&a.BibNumber, &a.Description, &video, &created.src); err != nil {
			return domain.Report{}, err
		}
		if err := decodeTimes(created); err != nil {
			return domain.Report{}, err
		}
		a.IncidentID = incident.Int64
		a.RaceLocationID = location.Int64
		a.VideoURL = video.String
		return domain.NewReport(a)
	},
	scanSummary: func(s scanner) (domain.ReportSummary, error) {
		var a domain.ReportSummaryAttrs
		var incident sql.NullInt64
		created := timeInto(&a.CreatedAt)
		if err := s.Scan(&a.ID, &a.RaceID, &incident, &a.BibNumber, &created.src); err != nil {
			return domain.ReportSummary{}, err
		}
		if err := decodeTimes(created); err != nil {
			return domain.ReportSummary{}, err
		}
		a.IncidentID = incident.Int64
		return domain.NewReportSummary(a)
	},
}

type ReportInput struct {
	UUID           types.UUID      `mapstructure:"uuid"`
	RaceID         int64           `mapstructure:"race_id"`
	IncidentID     int64           `mapstructure:"incident_id"`
	UserID         int64           `mapstructure:"user_id"`
	RaceLocationID int64           `mapstructure:"race_location_id"`
	BibNumber      types.BibNumber `mapstructure:"bib_number"`
	Description    string          `mapstructure:"description"`
	VideoURL       string          `mapstructure:"video_url"`
}

func (r Reports) With(q db.Querier) Reports { return Reports{r.with(q)} }

func (r Reports) Create(ctx context.Context, in ReportInput) (domain.Report, error) {
	if in.UUID == "" {
		in.UUID = types.NewUUID()
	}
	id, err := r.insert(ctx,
		[]string{"uuid", "race_id", "incident_id", "user_id", "race_location_id", "bib_number", "description", "video_url", "created_at"},
		[]any{string(in.UUID), in.RaceID, nullableID(in.IncidentID), in.UserID, nullableID(in.RaceLocationID),
			in.BibNumber.Int(), in.Description, nullable(in.VideoURL), types.FormatTime(r.stamp())})
	if err != nil {
		return domain.Report{}, err
	}
	return r.MustFind(ctx, id)
}

// Link attaches the reports to incidentID. The first report that does not
// belong to raceID stops the loop with ErrNotFound; the caller's transaction
// undoes the links already written.
func (r Reports) Link(ctx context.Context, raceID, incidentID int64, reportIDs []int64) error {
	stmt := r.rebind(`UPDATE reports SET incident_id=? WHERE id=? AND race_id=?`)
	for _, id := range reportIDs {
		res, err := r.q.ExecContext(ctx, stmt, incidentID, id, raceID)
		if err != nil {
			return wrapErr("report.link", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapErr("report.link", err)
		}
		if n == 0 {
			return fmt.Errorf("report %d of race %d: %w", id, raceID, ErrNotFound)
		}
	}
	return nil
}

func (r Reports) ByRace(ctx context.Context, raceID int64) ([]domain.ReportSummary, error) {
	return r.Where(ctx, Criteria{"race_id": raceID})
}

func (r Reports) ByIncident(ctx context.Context, incidentID int64) ([]domain.ReportSummary, error) {
	return r.Where(ctx, Criteria{"incident_id": incidentID})
}

// Unlinked lists the reports of raceID not yet attached to an incident.
func (r Reports) Unlinked(ctx context.Context, raceID int64) ([]domain.ReportSummary, error) {
	return r.Where(ctx, Criteria{"race_id": raceID, "incident_id": nil})
}

func (r Reports) Methods() Methods {
	return tableMethods(Methods{
		"ByRace":     Many,
		"ByIncident": Many,
		"Unlinked":   Many,
	})
}

type Incidents struct {
	Table[domain.Incident, domain.IncidentSummary]
}

var incidentSpec = &tableSpec[domain.Incident, domain.IncidentSummary]{
	entity: "incident",
	table:  "incidents",
	from:   "incidents i",
	id:     "i.id",
	columns: map[string]string{
		"id":               "i.id",
		"uuid":             "i.uuid",
		"race_id":          "i.race_id",
		"race_location_id": "i.race_location_id",
		"status":           "i.status",
		"decision":         "i.decision",
	},
	full: []string{
		"i.id", "i.uuid", "i.race_id", "i.race_location_id", "i.status", "i.decision", "i.description",
		"i.decision_notes", "i.penalty_seconds", "i.officialized_by_user_id", "i.officialized_at",
		"i.decided_by_user_id", "i.decided_at", "i.created_at", "i.updated_at",
	},
	summary: []string{"i.id", "i.race_id", "i.status", "i.decision", "i.created_at"},
	order:   "i.created_at, i.id",
	scanFull: func(s scanner) (domain.Incident, error) {
		var a domain.IncidentAttrs
		var location, officializedBy, decidedBy sql.NullInt64
		var notes sql.NullString
		officializedAt, decidedAt := timeInto(&a.OfficializedAt), timeInto(&a.DecidedAt)
		created, updated := timeInto(&a.CreatedAt), timeInto(&a.UpdatedAt)
		if err := s.Scan(&a.ID, &a.UUID, &a.RaceID, &location, &a.Status, &a.Decision, &a.Description,
			&notes, &a.PenaltySeconds, &officializedBy, &officializedAt.src,
			&decidedBy, &decidedAt.src, &created.src, &updated.src); err != nil {
			return domain.Incident{}, err
		}
		if err := decodeTimes(officializedAt, decidedAt, created, updated); err != nil {
			return domain.Incident{}, err
		}
		a.RaceLocationID = location.Int64
		a.DecisionNotes = notes.String
		a.OfficializedByUserID = officializedBy.Int64
		a.DecidedByUserID = decidedBy.Int64
		return domain.NewIncident(a)
	},
	scanSummary: func(s scanner) (domain.IncidentSummary, error) {
		var a domain.IncidentSummaryAttrs
		created := timeInto(&a.CreatedAt)
		if err := s.Scan(&a.ID, &a.RaceID, &a.Status, &a.Decision, &created.src); err != nil {
			return domain.IncidentSummary{}, err
		}
		if err := decodeTimes(created); err != nil {
			return domain.IncidentSummary{}, err
		}
		return domain.NewIncidentSummary(a)
	},
}

type IncidentInput struct {
	UUID           types.UUID `mapstructure:"uuid"`
	RaceID         int64      `mapstructure:"race_id"`
	RaceLocationID int64      `mapstructure:"race_location_id"`
	Description    string     `mapstructure:"description"`
}

// IncidentUpdate is a partial update; nil fields are left alone. Zero ids
// and times clear the column.
type IncidentUpdate struct {
	RaceLocationID       *int64                `mapstructure:"race_location_id"`
	Status               *types.IncidentStatus `mapstructure:"status"`
	Decision             *types.Decision       `mapstructure:"decision"`
	Description          *string               `mapstructure:"description"`
	DecisionNotes        *string               `mapstructure:"decision_notes"`
	PenaltySeconds       *int                  `mapstructure:"penalty_seconds"`
	OfficializedByUserID *int64                `mapstructure:"officialized_by_user_id"`
	OfficializedAt       *time.Time            `mapstructure:"officialized_at"`
	DecidedByUserID      *int64                `mapstructure:"decided_by_user_id"`
	DecidedAt            *time.Time            `mapstructure:"decided_at"`
}

// IncidentChanges is the update that turns the stored incident into inc.
func IncidentChanges(inc domain.Incident) IncidentUpdate {
	a := inc.Attrs()
	return IncidentUpdate{
		RaceLocationID:       &a.RaceLocationID,
		Status:               &a.Status,
		Decision:             &a.Decision,
		Description:          &a.Description,
		DecisionNotes:        &a.DecisionNotes,
		PenaltySeconds:       &a.PenaltySeconds,
		OfficializedByUserID: &a.OfficializedByUserID,
		OfficializedAt:       &a.OfficializedAt,
		DecidedByUserID:      &a.DecidedByUserID,
		DecidedAt:            &a.DecidedAt,
	}
}

func (r Incidents) With(q db.Querier) Incidents { return Incidents{r.with(q)} }

func (r Incidents) Create(ctx context.Context, in IncidentInput) (domain.Incident, error) {
	if in.UUID == "" {
		in.UUID = types.NewUUID()
	}
	now := types.FormatTime(r.stamp())
	id, err := r.insert(ctx,
		[]string{"uuid", "race_id", "race_location_id", "status", "decision", "description", "penalty_seconds", "created_at", "updated_at"},
		[]any{string(in.UUID), in.RaceID, nullableID(in.RaceLocationID), string(types.IncidentUnofficial),
			string(types.DecisionPending), in.Description, 0, now, now})
	if err != nil {
		return domain.Incident{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Incidents) Update(ctx context.Context, id int64, in IncidentUpdate) (domain.Incident, error) {
	var a assignments
	if in.RaceLocationID != nil {
		a.set("race_location_id", nullableID(*in.RaceLocationID))
	}
	if in.Status != nil {
		a.set("status", string(*in.Status))
	}
	if in.Decision != nil {
		a.set("decision", string(*in.Decision))
	}
	if in.Description != nil {
		a.set("description", *in.Description)
	}
	if in.DecisionNotes != nil {
		a.set("decision_notes", nullable(*in.DecisionNotes))
	}
	if in.PenaltySeconds != nil {
		a.set("penalty_seconds", *in.PenaltySeconds)
	}
	if in.OfficializedByUserID != nil {
		a.set("officialized_by_user_id", nullableID(*in.OfficializedByUserID))
	}
	if in.OfficializedAt != nil {
		a.set("officialized_at", nullableTime(*in.OfficializedAt))
	}
	if in.DecidedByUserID != nil {
		a.set("decided_by_user_id", nullableID(*in.DecidedByUserID))
	}
	if in.DecidedAt != nil {
		a.set("decided_at", nullableTime(*in.DecidedAt))
	}
	if !a.empty() {
		a.set("updated_at", types.FormatTime(r.stamp()))
	}
	if err := r.update(ctx, id, a); err != nil {
		return domain.Incident{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Incidents) ByRace(ctx context.Context, raceID int64) ([]domain.IncidentSummary, error) {
	return r.Where(ctx, Criteria{"race_id": raceID})
}

// Pending lists the incidents of raceID still awaiting a decision.
func (r Incidents) Pending(ctx context.Context, raceID int64) ([]domain.IncidentSummary, error) {
	return r.Where(ctx, Criteria{"race_id": raceID, "decision": types.DecisionPending})
}

func (r Incidents) FindByUUID(ctx context.Context, uuid types.UUID) (domain.Incident, bool, error) {
	return r.FindBy(ctx, Criteria{"uuid": uuid})
}

func (r Incidents) Methods() Methods {
	return tableMethods(Methods{
		"ByRace":     Many,
		"Pending":    Many,
		"FindByUUID": One,
	})
}
