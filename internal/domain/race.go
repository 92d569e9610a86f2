package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"raceline/internal/types"
)

type RaceTypeAttrs struct {
	ID          int64  `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

type RaceType struct{ a RaceTypeAttrs }

func NewRaceType(a RaceTypeAttrs) (RaceType, error) {
	c := newChecker("race type")
	c.id("id", a.ID)
	c.text("name", a.Name, MaxShortName)
	if err := c.err(); err != nil {
		return RaceType{}, err
	}
	return RaceType{a: a}, nil
}

func (r RaceType) ID() int64                    { return r.a.ID }
func (r RaceType) Name() string                 { return r.a.Name }
func (r RaceType) Description() string          { return r.a.Description }
func (r RaceType) Attrs() RaceTypeAttrs         { return r.a }
func (r RaceType) MarshalJSON() ([]byte, error) { return json.Marshal(r.a) }

func (r RaceType) Summary() RaceTypeSummary {
	return RaceTypeSummary{a: RaceTypeSummaryAttrs{ID: r.a.ID, Name: r.a.Name}}
}

type RaceTypeSummaryAttrs struct {
	ID   int64  `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

type RaceTypeSummary struct{ a RaceTypeSummaryAttrs }

func NewRaceTypeSummary(a RaceTypeSummaryAttrs) (RaceTypeSummary, error) {
	if _, err := NewRaceType(RaceTypeAttrs{ID: a.ID, Name: a.Name}); err != nil {
		return RaceTypeSummary{}, err
	}
	return RaceTypeSummary{a: a}, nil
}

func (r RaceTypeSummary) ID() int64                    { return r.a.ID }
func (r RaceTypeSummary) Name() string                 { return r.a.Name }
func (r RaceTypeSummary) Attrs() RaceTypeSummaryAttrs  { return r.a }
func (r RaceTypeSummary) MarshalJSON() ([]byte, error) { return json.Marshal(r.a) }

// RaceAttrs carries a race row. RaceTypeName comes from the race_types join.
type RaceAttrs struct {
	ID             int64                `json:"id" mapstructure:"id"`
	CompetitionID  int64                `json:"competition_id" mapstructure:"competition_id"`
	RaceTypeID     int64                `json:"race_type_id" mapstructure:"race_type_id"`
	RaceTypeName   string               `json:"race_type_name" mapstructure:"race_type_name"`
	Name           string               `json:"name" mapstructure:"name"`
	StageType      types.StageType      `json:"stage_type" mapstructure:"stage_type"`
	HeatNumber     int                  `json:"heat_number,omitempty" mapstructure:"heat_number"`
	GenderCategory types.GenderCategory `json:"gender_category" mapstructure:"gender_category"`
	Status         types.RaceStatus     `json:"status" mapstructure:"status"`
	Position       int                  `json:"position" mapstructure:"position"`
	ScheduledAt    time.Time            `json:"scheduled_at,omitzero" mapstructure:"scheduled_at"`
	CreatedAt      time.Time            `json:"created_at" mapstructure:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" mapstructure:"updated_at"`
}

type Race struct{ a RaceAttrs }

func NewRace(a RaceAttrs) (Race, error) {
	c := newChecker("race")
	c.id("id", a.ID)
	c.id("competition_id", a.CompetitionID)
	c.id("race_type_id", a.RaceTypeID)
	checkRaceFields(c, a.Name, a.StageType, a.HeatNumber, a.GenderCategory, a.Status, a.Position)
	c.timestamp("created_at", a.CreatedAt)
	c.timestamp("updated_at", a.UpdatedAt)
	if err := c.err(); err != nil {
		return Race{}, err
	}
	return Race{a: a}, nil
}

func checkRaceFields(c *checker, name string, stage types.StageType, heat int, category types.GenderCategory, status types.RaceStatus, position int) {
	c.text("name", name, MaxName)
	c.enum("stage_type", stage.Valid(), stage)
	c.nonNegative("heat_number", heat)
	c.enum("gender_category", category.Valid(), category)
	c.enum("status", status.Valid(), status)
	c.nonNegative("position", position)
}

func (r Race) ID() int64                            { return r.a.ID }
func (r Race) CompetitionID() int64                 { return r.a.CompetitionID }
func (r Race) RaceTypeID() int64                    { return r.a.RaceTypeID }
func (r Race) RaceTypeName() string                 { return r.a.RaceTypeName }
func (r Race) Name() string                         { return r.a.Name }
func (r Race) StageType() types.StageType           { return r.a.StageType }
func (r Race) HeatNumber() int                      { return r.a.HeatNumber }
func (r Race) GenderCategory() types.GenderCategory { return r.a.GenderCategory }
func (r Race) Status() types.RaceStatus             { return r.a.Status }
func (r Race) Position() int                        { return r.a.Position }
func (r Race) ScheduledAt() time.Time               { return r.a.ScheduledAt }
func (r Race) CreatedAt() time.Time                 { return r.a.CreatedAt }
func (r Race) UpdatedAt() time.Time                 { return r.a.UpdatedAt }
func (r Race) Attrs() RaceAttrs                     { return r.a }
func (r Race) MarshalJSON() ([]byte, error)         { return json.Marshal(r.a) }

// StageName is the stage type, followed by the heat number when there is one.
func (r Race) StageName() string { return stageName(r.a.StageType, r.a.HeatNumber) }

func stageName(stage types.StageType, heat int) string {
	if heat > 0 {
		return fmt.Sprintf("%s %d", stage, heat)
	}
	return string(stage)
}

// IsActive reports whether the race is running.
func (r Race) IsActive() bool { return r.a.Status == types.RaceInProgress }

func (r Race) IsCancelled() bool { return r.a.Status == types.RaceCancelled }

func (r Race) CanTransitionTo(status types.RaceStatus) bool {
	return raceStatusAxis.can(string(r.a.Status), string(status))
}

// WithStatus returns a copy of the race in status, stamped at.
func (r Race) WithStatus(status types.RaceStatus, at time.Time) (Race, error) {
	if err := CheckRaceStatus(r.a.Status, status); err != nil {
		return r, err
	}
	next := r.a
	next.Status = status
	next.UpdatedAt = at.UTC().Truncate(time.Second)
	return Race{a: next}, nil
}

func (r Race) Summary() RaceSummary {
	return RaceSummary{a: RaceSummaryAttrs{
		ID:             r.a.ID,
		CompetitionID:  r.a.CompetitionID,
		RaceTypeName:   r.a.RaceTypeName,
		Name:           r.a.Name,
		StageType:      r.a.StageType,
		HeatNumber:     r.a.HeatNumber,
		GenderCategory: r.a.GenderCategory,
		Status:         r.a.Status,
		Position:       r.a.Position,
	}}
}

type RaceSummaryAttrs struct {
	ID             int64                `json:"id" mapstructure:"id"`
	CompetitionID  int64                `json:"competition_id" mapstructure:"competition_id"`
	RaceTypeName   string               `json:"race_type_name" mapstructure:"race_type_name"`
	Name           string               `json:"name" mapstructure:"name"`
	StageType      types.StageType      `json:"stage_type" mapstructure:"stage_type"`
	HeatNumber     int                  `json:"heat_number,omitempty" mapstructure:"heat_number"`
	GenderCategory types.GenderCategory `json:"gender_category" mapstructure:"gender_category"`
	Status         types.RaceStatus     `json:"status" mapstructure:"status"`
	Position       int                  `json:"position" mapstructure:"position"`
}

type RaceSummary struct{ a RaceSummaryAttrs }

func NewRaceSummary(a RaceSummaryAttrs) (RaceSummary, error) {
	c := newChecker("race summary")
	c.id("id", a.ID)
	c.id("competition_id", a.CompetitionID)
	checkRaceFields(c, a.Name, a.StageType, a.HeatNumber, a.GenderCategory, a.Status, a.Position)
	if err := c.err(); err != nil {
		return RaceSummary{}, err
	}
	return RaceSummary{a: a}, nil
}

func (r RaceSummary) ID() int64                            { return r.a.ID }
func (r RaceSummary) CompetitionID() int64                 { return r.a.CompetitionID }
func (r RaceSummary) RaceTypeName() string                 { return r.a.RaceTypeName }
func (r RaceSummary) Name() string                         { return r.a.Name }
func (r RaceSummary) StageType() types.StageType           { return r.a.StageType }
func (r RaceSummary) HeatNumber() int                      { return r.a.HeatNumber }
func (r RaceSummary) GenderCategory() types.GenderCategory { return r.a.GenderCategory }
func (r RaceSummary) Status() types.RaceStatus             { return r.a.Status }
func (r RaceSummary) Position() int                        { return r.a.Position }
func (r RaceSummary) Attrs() RaceSummaryAttrs              { return r.a }
func (r RaceSummary) MarshalJSON() ([]byte, error)         { return json.Marshal(r.a) }
func (r RaceSummary) StageName() string                    { return stageName(r.a.StageType, r.a.HeatNumber) }
func (r RaceSummary) IsActive() bool                       { return r.a.Status == types.RaceInProgress }

type LocationTemplateAttrs struct {
	ID            int64               `json:"id" mapstructure:"id"`
	RaceTypeID    int64               `json:"race_type_id" mapstructure:"race_type_id"`
	Name          string              `json:"name" mapstructure:"name"`
	CourseSegment types.CourseSegment `json:"course_segment" mapstructure:"course_segment"`
	DisplayOrder  int                 `json:"display_order" mapstructure:"display_order"`
}

type LocationTemplate struct{ a LocationTemplateAttrs }

func NewLocationTemplate(a LocationTemplateAttrs) (LocationTemplate, error) {
	c := newChecker("location template")
	c.id("id", a.ID)
	c.id("race_type_id", a.RaceTypeID)
	checkLocationFields(c, a.Name, a.CourseSegment, a.DisplayOrder)
	if err := c.err(); err != nil {
		return LocationTemplate{}, err
	}
	return LocationTemplate{a: a}, nil
}

func checkLocationFields(c *checker, name string, segment types.CourseSegment, order int) {
	c.text("name", name, MaxName)
	c.enum("course_segment", segment.Valid(), segment)
	c.nonNegative("display_order", order)
}

func (t LocationTemplate) ID() int64                          { return t.a.ID }
func (t LocationTemplate) RaceTypeID() int64                  { return t.a.RaceTypeID }
func (t LocationTemplate) Name() string                       { return t.a.Name }
func (t LocationTemplate) CourseSegment() types.CourseSegment { return t.a.CourseSegment }
func (t LocationTemplate) DisplayOrder() int                  { return t.a.DisplayOrder }
func (t LocationTemplate) Attrs() LocationTemplateAttrs       { return t.a }
func (t LocationTemplate) MarshalJSON() ([]byte, error)       { return json.Marshal(t.a) }

func (t LocationTemplate) Summary() LocationTemplateSummary {
	return LocationTemplateSummary{a: LocationTemplateSummaryAttrs{
		ID:            t.a.ID,
		Name:          t.a.Name,
		CourseSegment: t.a.CourseSegment,
		DisplayOrder:  t.a.DisplayOrder,
	}}
}

type LocationTemplateSummaryAttrs struct {
	ID            int64               `json:"id" mapstructure:"id"`
	Name          string              `json:"name" mapstructure:"name"`
	CourseSegment types.CourseSegment `json:"course_segment" mapstructure:"course_segment"`
	DisplayOrder  int                 `json:"display_order" mapstructure:"display_order"`
}

type LocationTemplateSummary struct{ a LocationTemplateSummaryAttrs }

func NewLocationTemplateSummary(a LocationTemplateSummaryAttrs) (LocationTemplateSummary, error) {
	c := newChecker("location template summary")
	c.id("id", a.ID)
	checkLocationFields(c, a.Name, a.CourseSegment, a.DisplayOrder)
	if err := c.err(); err != nil {
		return LocationTemplateSummary{}, err
	}
	return LocationTemplateSummary{a: a}, nil
}

func (t LocationTemplateSummary) ID() int64                           { return t.a.ID }
func (t LocationTemplateSummary) Name() string                        { return t.a.Name }
func (t LocationTemplateSummary) CourseSegment() types.CourseSegment  { return t.a.CourseSegment }
func (t LocationTemplateSummary) DisplayOrder() int                   { return t.a.DisplayOrder }
func (t LocationTemplateSummary) Attrs() LocationTemplateSummaryAttrs { return t.a }
func (t LocationTemplateSummary) MarshalJSON() ([]byte, error)        { return json.Marshal(t.a) }

type LocationAttrs struct {
	ID            int64               `json:"id" mapstructure:"id"`
	RaceID        int64               `json:"race_id" mapstructure:"race_id"`
	Name          string              `json:"name" mapstructure:"name"`
	CourseSegment types.CourseSegment `json:"course_segment" mapstructure:"course_segment"`
	DisplayOrder  int                 `json:"display_order" mapstructure:"display_order"`
	Description   string              `json:"description,omitempty" mapstructure:"description"`
}

type Location struct{ a LocationAttrs }

func NewLocation(a LocationAttrs) (Location, error) {
	c := newChecker("location")
	c.id("id", a.ID)
	c.id("race_id", a.RaceID)
	checkLocationFields(c, a.Name, a.CourseSegment, a.DisplayOrder)
	c.optionalText("description", a.Description, MaxText)
	if err := c.err(); err != nil {
		return Location{}, err
	}
	return Location{a: a}, nil
}

func (l Location) ID() int64                          { return l.a.ID }
func (l Location) RaceID() int64                      { return l.a.RaceID }
func (l Location) Name() string                       { return l.a.Name }
func (l Location) CourseSegment() types.CourseSegment { return l.a.CourseSegment }
func (l Location) DisplayOrder() int                  { return l.a.DisplayOrder }
func (l Location) Description() string                { return l.a.Description }
func (l Location) Attrs() LocationAttrs               { return l.a }
func (l Location) MarshalJSON() ([]byte, error)       { return json.Marshal(l.a) }

// IsTerminal reports whether the location sits at either end of the course.
func (l Location) IsTerminal() bool {
	return l.a.CourseSegment == types.SegmentStart || l.a.CourseSegment == types.SegmentFinish
}

func (l Location) Summary() LocationSummary {
	return LocationSummary{a: LocationSummaryAttrs{
		ID:            l.a.ID,
		RaceID:        l.a.RaceID,
		Name:          l.a.Name,
		CourseSegment: l.a.CourseSegment,
		DisplayOrder:  l.a.DisplayOrder,
	}}
}

type LocationSummaryAttrs struct {
	ID            int64               `json:"id" mapstructure:"id"`
	RaceID        int64               `json:"race_id" mapstructure:"race_id"`
	Name          string              `json:"name" mapstructure:"name"`
	CourseSegment types.CourseSegment `json:"course_segment" mapstructure:"course_segment"`
	DisplayOrder  int                 `json:"display_order" mapstructure:"display_order"`
}

type LocationSummary struct{ a LocationSummaryAttrs }

func NewLocationSummary(a LocationSummaryAttrs) (LocationSummary, error) {
	c := newChecker("location summary")
	c.id("id", a.ID)
	c.id("race_id", a.RaceID)
	checkLocationFields(c, a.Name, a.CourseSegment, a.DisplayOrder)
	if err := c.err(); err != nil {
		return LocationSummary{}, err
	}
	return LocationSummary{a: a}, nil
}

func (l LocationSummary) ID() int64                          { return l.a.ID }
func (l LocationSummary) RaceID() int64                      { return l.a.RaceID }
func (l LocationSummary) Name() string                       { return l.a.Name }
func (l LocationSummary) CourseSegment() types.CourseSegment { return l.a.CourseSegment }
func (l LocationSummary) DisplayOrder() int                  { return l.a.DisplayOrder }
func (l LocationSummary) Attrs() LocationSummaryAttrs        { return l.a }
func (l LocationSummary) MarshalJSON() ([]byte, error)       { return json.Marshal(l.a) }
