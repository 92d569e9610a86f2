package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"raceline/internal/types"
)

type ReportAttrs struct {
	ID             int64           `json:"id" mapstructure:"id"`
	UUID           types.UUID      `json:"uuid" mapstructure:"uuid"`
	RaceID         int64           `json:"race_id" mapstructure:"race_id"`
	IncidentID     int64           `json:"incident_id,omitempty" mapstructure:"incident_id"`
	UserID         int64           `json:"user_id" mapstructure:"user_id"`
	RaceLocationID int64           `json:"race_location_id,omitempty" mapstructure:"race_location_id"`
	BibNumber      types.BibNumber `json:"bib_number" mapstructure:"bib_number"`
	Description    string          `json:"description" mapstructure:"description"`
	VideoURL       string          `json:"video_url,omitempty" mapstructure:"video_url"`
	CreatedAt      time.Time       `json:"created_at" mapstructure:"created_at"`
}

type Report struct{ a ReportAttrs }

func NewReport(a ReportAttrs) (Report, error) {
	c := newChecker("report")
	c.id("id", a.ID)
	checkUUID(c, "uuid", a.UUID)
	c.id("race_id", a.RaceID)
	c.optionalID("incident_id", a.IncidentID)
	c.id("user_id", a.UserID)
	c.optionalID("race_location_id", a.RaceLocationID)
	checkBib(c, "bib_number", a.BibNumber)
	c.text("description", a.Description, MaxText)
	c.optionalText("video_url", a.VideoURL, MaxURL)
	c.timestamp("created_at", a.CreatedAt)
	if err := c.err(); err != nil {
		return Report{}, err
	}
	return Report{a: a}, nil
}

func (r Report) ID() int64                    { return r.a.ID }
func (r Report) UUID() types.UUID             { return r.a.UUID }
func (r Report) RaceID() int64                { return r.a.RaceID }
func (r Report) IncidentID() int64            { return r.a.IncidentID }
func (r Report) UserID() int64                { return r.a.UserID }
func (r Report) RaceLocationID() int64        { return r.a.RaceLocationID }
func (r Report) BibNumber() types.BibNumber   { return r.a.BibNumber }
func (r Report) Description() string          { return r.a.Description }
func (r Report) VideoURL() string             { return r.a.VideoURL }
func (r Report) CreatedAt() time.Time         { return r.a.CreatedAt }
func (r Report) Attrs() ReportAttrs           { return r.a }
func (r Report) MarshalJSON() ([]byte, error) { return json.Marshal(r.a) }

// IsLinked reports whether the report has been attached to an incident.
func (r Report) IsLinked() bool   { return r.a.IncidentID > 0 }
func (r Report) HasVideo() bool   { return r.a.VideoURL != "" }
func (r Report) BibLabel() string { return r.a.BibNumber.Padded(BibLabelWidth) }

func (r Report) Summary() ReportSummary {
	return ReportSummary{a: ReportSummaryAttrs{
		ID:         r.a.ID,
		RaceID:     r.a.RaceID,
		IncidentID: r.a.IncidentID,
		BibNumber:  r.a.BibNumber,
		CreatedAt:  r.a.CreatedAt,
	}}
}

type ReportSummaryAttrs struct {
	ID         int64           `json:"id" mapstructure:"id"`
	RaceID     int64           `json:"race_id" mapstructure:"race_id"`
	IncidentID int64           `json:"incident_id,omitempty" mapstructure:"incident_id"`
	BibNumber  types.BibNumber `json:"bib_number" mapstructure:"bib_number"`
	CreatedAt  time.Time       `json:"created_at" mapstructure:"created_at"`
}

type ReportSummary struct{ a ReportSummaryAttrs }

func NewReportSummary(a ReportSummaryAttrs) (ReportSummary, error) {
	c := newChecker("report summary")
	c.id("id", a.ID)
	c.id("race_id", a.RaceID)
	c.optionalID("incident_id", a.IncidentID)
	checkBib(c, "bib_number", a.BibNumber)
	c.timestamp("created_at", a.CreatedAt)
	if err := c.err(); err != nil {
		return ReportSummary{}, err
	}
	return ReportSummary{a: a}, nil
}

func (r ReportSummary) ID() int64                    { return r.a.ID }
func (r ReportSummary) RaceID() int64                { return r.a.RaceID }
func (r ReportSummary) IncidentID() int64            { return r.a.IncidentID }
func (r ReportSummary) BibNumber() types.BibNumber   { return r.a.BibNumber }
func (r ReportSummary) CreatedAt() time.Time         { return r.a.CreatedAt }
func (r ReportSummary) Attrs() ReportSummaryAttrs    { return r.a }
func (r ReportSummary) MarshalJSON() ([]byte, error) { return json.Marshal(r.a) }
func (r ReportSummary) IsLinked() bool               { return r.a.IncidentID > 0 }

// IncidentAttrs carries an incident row. Status and decision are independent
// axes: the decision leaves pending only once the status is official.
type IncidentAttrs struct {
	ID                   int64                `json:"id" mapstructure:"id"`
	UUID                 types.UUID           `json:"uuid" mapstructure:"uuid"`
	RaceID               int64                `json:"race_id" mapstructure:"race_id"`
	RaceLocationID       int64                `json:"race_location_id,omitempty" mapstructure:"race_location_id"`
	Status               types.IncidentStatus `json:"status" mapstructure:"status"`
	Decision             types.Decision       `json:"decision" mapstructure:"decision"`
	Description          string               `json:"description" mapstructure:"description"`
	DecisionNotes        string               `json:"decision_notes,omitempty" mapstructure:"decision_notes"`
	PenaltySeconds       int                  `json:"penalty_seconds,omitempty" mapstructure:"penalty_seconds"`
	OfficializedByUserID int64                `json:"officialized_by_user_id,omitempty" mapstructure:"officialized_by_user_id"`
	OfficializedAt       time.Time            `json:"officialized_at,omitzero" mapstructure:"officialized_at"`
	DecidedByUserID      int64                `json:"decided_by_user_id,omitempty" mapstructure:"decided_by_user_id"`
	DecidedAt            time.Time            `json:"decided_at,omitzero" mapstructure:"decided_at"`
	CreatedAt            time.Time            `json:"created_at" mapstructure:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at" mapstructure:"updated_at"`
}

type Incident struct{ a IncidentAttrs }

func NewIncident(a IncidentAttrs) (Incident, error) {
	c := newChecker("incident")
	c.id("id", a.ID)
	checkUUID(c, "uuid", a.UUID)
	c.id("race_id", a.RaceID)
	c.optionalID("race_location_id", a.RaceLocationID)
	c.enum("status", a.Status.Valid(), a.Status)
	c.enum("decision", a.Decision.Valid(), a.Decision)
	c.text("description", a.Description, MaxText)
	c.optionalText("decision_notes", a.DecisionNotes, MaxText)
	c.nonNegative("penalty_seconds", a.PenaltySeconds)
	c.optionalID("officialized_by_user_id", a.OfficializedByUserID)
	c.optionalID("decided_by_user_id", a.DecidedByUserID)
	c.timestamp("created_at", a.CreatedAt)
	c.timestamp("updated_at", a.UpdatedAt)
	if a.Decision.Resolved() {
		if a.Status != types.IncidentOfficial {
			c.fail("decision", "may only leave pending once the incident is official")
		}
		if a.DecidedByUserID == 0 {
			c.fail("decided_by_user_id", "must be present once a decision is taken")
		}
		if a.DecidedAt.IsZero() {
			c.fail("decided_at", "must be present once a decision is taken")
		}
	}
	if !a.DecidedAt.IsZero() && !a.OfficializedAt.IsZero() && a.DecidedAt.Before(a.OfficializedAt) {
		c.fail("decided_at", "must not precede officialized_at")
	}
	if err := c.err(); err != nil {
		return Incident{}, err
	}
	return Incident{a: a}, nil
}

func (i Incident) ID() int64                    { return i.a.ID }
func (i Incident) UUID() types.UUID             { return i.a.UUID }
func (i Incident) RaceID() int64                { return i.a.RaceID }
func (i Incident) RaceLocationID() int64        { return i.a.RaceLocationID }
func (i Incident) Status() types.IncidentStatus { return i.a.Status }
func (i Incident) Decision() types.Decision     { return i.a.Decision }
func (i Incident) Description() string          { return i.a.Description }
func (i Incident) DecisionNotes() string        { return i.a.DecisionNotes }
func (i Incident) PenaltySeconds() int          { return i.a.PenaltySeconds }
func (i Incident) OfficializedByUserID() int64  { return i.a.OfficializedByUserID }
func (i Incident) OfficializedAt() time.Time    { return i.a.OfficializedAt }
func (i Incident) DecidedByUserID() int64       { return i.a.DecidedByUserID }
func (i Incident) DecidedAt() time.Time         { return i.a.DecidedAt }
func (i Incident) CreatedAt() time.Time         { return i.a.CreatedAt }
func (i Incident) UpdatedAt() time.Time         { return i.a.UpdatedAt }
func (i Incident) Attrs() IncidentAttrs         { return i.a }
func (i Incident) MarshalJSON() ([]byte, error) { return json.Marshal(i.a) }
func (i Incident) IsOfficial() bool             { return i.a.Status == types.IncidentOfficial }
func (i Incident) IsPending() bool              { return i.a.Decision == types.DecisionPending }
func (i Incident) HasPenalty() bool             { return i.a.PenaltySeconds > 0 }
func (i Incident) CanDecide() bool              { return i.IsOfficial() && i.IsPending() }

// CanTransitionTo reports whether the status axis may move to status.
func (i Incident) CanTransitionTo(status types.IncidentStatus) bool {
	return incidentStatusAxis.can(string(i.a.Status), string(status))
}

// CanDecideTo reports whether decision may be recorded now.
func (i Incident) CanDecideTo(decision types.Decision) bool {
	return i.IsOfficial() && decisionAxis.can(string(i.a.Decision), string(decision))
}

// Officialize returns the incident moved to official by actorID at the given time.
func (i Incident) Officialize(actorID int64, at time.Time) (Incident, error) {
	if err := CheckIncidentStatus(i.a.Status, types.IncidentOfficial); err != nil {
		return i, err
	}
	at = at.UTC().Truncate(time.Second)
	next := i.a
	next.Status = types.IncidentOfficial
	next.OfficializedByUserID = actorID
	next.OfficializedAt = at
	next.UpdatedAt = at
	return NewIncident(next)
}

// DecisionInput is what a decision records on an incident.
type DecisionInput struct {
	Decision       types.Decision
	Notes          string
	PenaltySeconds int
	ActorID        int64
	At             time.Time
}

// Decide returns the incident with the decision recorded.
func (i Incident) Decide(in DecisionInput) (Incident, error) {
	if !i.IsOfficial() {
		return i, fmt.Errorf("%w: decision requires an official incident", ErrInvalidTransition)
	}
	if err := CheckDecision(i.a.Decision, in.Decision); err != nil {
		return i, err
	}
	at := in.At.UTC().Truncate(time.Second)
	next := i.a
	next.Decision = in.Decision
	next.DecisionNotes = in.Notes
	next.PenaltySeconds = in.PenaltySeconds
	next.DecidedByUserID = in.ActorID
	next.DecidedAt = at
	next.UpdatedAt = at
	return NewIncident(next)
}

func (i Incident) Summary() IncidentSummary {
	return IncidentSummary{a: IncidentSummaryAttrs{
		ID:        i.a.ID,
		RaceID:    i.a.RaceID,
		Status:    i.a.Status,
		Decision:  i.a.Decision,
		CreatedAt: i.a.CreatedAt,
	}}
}

type IncidentSummaryAttrs struct {
	ID        int64                `json:"id" mapstructure:"id"`
	RaceID    int64                `json:"race_id" mapstructure:"race_id"`
	Status    types.IncidentStatus `json:"status" mapstructure:"status"`
	Decision  types.Decision       `json:"decision" mapstructure:"decision"`
	CreatedAt time.Time            `json:"created_at" mapstructure:"created_at"`
}

type IncidentSummary struct{ a IncidentSummaryAttrs }

func NewIncidentSummary(a IncidentSummaryAttrs) (IncidentSummary, error) {
	c := newChecker("incident summary")
	c.id("id", a.ID)
	c.id("race_id", a.RaceID)
	c.enum("status", a.Status.Valid(), a.Status)
	c.enum("decision", a.Decision.Valid(), a.Decision)
	if a.Decision.Resolved() && a.Status != types.IncidentOfficial {
		c.fail("decision", "may only leave pending once the incident is official")
	}
	c.timestamp("created_at", a.CreatedAt)
	if err := c.err(); err != nil {
		return IncidentSummary{}, err
	}
	return IncidentSummary{a: a}, nil
}

func (i IncidentSummary) ID() int64                    { return i.a.ID }
func (i IncidentSummary) RaceID() int64                { return i.a.RaceID }
func (i IncidentSummary) Status() types.IncidentStatus { return i.a.Status }
func (i IncidentSummary) Decision() types.Decision     { return i.a.Decision }
func (i IncidentSummary) CreatedAt() time.Time         { return i.a.CreatedAt }
func (i IncidentSummary) Attrs() IncidentSummaryAttrs  { return i.a }
func (i IncidentSummary) MarshalJSON() ([]byte, error) { return json.Marshal(i.a) }
func (i IncidentSummary) IsOfficial() bool             { return i.a.Status == types.IncidentOfficial }
func (i IncidentSummary) IsPending() bool              { return i.a.Decision == types.DecisionPending }
