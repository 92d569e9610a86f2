package repo

import (
	"context"
	"database/sql"
	"time"

	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/types"
)

type RaceTypes struct {
	Table[domain.RaceType, domain.RaceTypeSummary]
}

var raceTypeSpec = &tableSpec[domain.RaceType, domain.RaceTypeSummary]{
	entity: "race type",
	table:  "race_types",
	from:   "race_types rt",
	id:     "rt.id",
	columns: map[string]string{
		"id":   "rt.id",
		"name": "rt.name",
	},
	full:    []string{"rt.id", "rt.name", "rt.description"},
	summary: []string{"rt.id", "rt.name"},
	order:   "rt.id",
	scanFull: func(s scanner) (domain.RaceType, error) {
		var a domain.RaceTypeAttrs
		var desc sql.NullString
		if err := s.Scan(&a.ID, &a.Name, &desc); err != nil {
			return domain.RaceType{}, err
		}
		a.Description = desc.String
		return domain.NewRaceType(a)
	},
	scanSummary: func(s scanner) (domain.RaceTypeSummary, error) {
		var a domain.RaceTypeSummaryAttrs
		if err := s.Scan(&a.ID, &a.Name); err != nil {
			return domain.RaceTypeSummary{}, err
		}
		return domain.NewRaceTypeSummary(a)
	},
}

func (r RaceTypes) With(q db.Querier) RaceTypes { return RaceTypes{r.with(q)} }

func (r RaceTypes) FindByName(ctx context.Context, name string) (domain.RaceType, bool, error) {
	return r.FindBy(ctx, Criteria{"name": name})
}

func (r RaceTypes) Methods() Methods {
	return tableMethods(Methods{"FindByName": One})
}

type LocationTemplates struct {
	Table[domain.LocationTemplate, domain.LocationTemplateSummary]
}

var locationTemplateSpec = &tableSpec[domain.LocationTemplate, domain.LocationTemplateSummary]{
	entity: "location template",
	table:  "location_templates",
	from:   "location_templates lt",
	id:     "lt.id",
	columns: map[string]string{
		"id":             "lt.id",
		"race_type_id":   "lt.race_type_id",
		"name":           "lt.name",
		"course_segment": "lt.course_segment",
	},
	full:    []string{"lt.id", "lt.race_type_id", "lt.name", "lt.course_segment", "lt.display_order"},
	summary: []string{"lt.id", "lt.name", "lt.course_segment", "lt.display_order"},
	order:   "lt.race_type_id, lt.display_order, lt.id",
	scanFull: func(s scanner) (domain.LocationTemplate, error) {
		var a domain.LocationTemplateAttrs
		if err := s.Scan(&a.ID, &a.RaceTypeID, &a.Name, &a.CourseSegment, &a.DisplayOrder); err != nil {
			return domain.LocationTemplate{}, err
		}
		return domain.NewLocationTemplate(a)
	},
	scanSummary: func(s scanner) (domain.LocationTemplateSummary, error) {
		var a domain.LocationTemplateSummaryAttrs
		if err := s.Scan(&a.ID, &a.Name, &a.CourseSegment, &a.DisplayOrder); err != nil {
			return domain.LocationTemplateSummary{}, err
		}
		return domain.NewLocationTemplateSummary(a)
	},
}

func (r LocationTemplates) With(q db.Querier) LocationTemplates {
	return LocationTemplates{r.with(q)}
}

func (r LocationTemplates) ByRaceType(ctx context.Context, raceTypeID int64) ([]domain.LocationTemplateSummary, error) {
	return r.Where(ctx, Criteria{"race_type_id": raceTypeID})
}

func (r LocationTemplates) Methods() Methods {
	return tableMethods(Methods{"ByRaceType": Many})
}

type Races struct {
	Table[domain.Race, domain.RaceSummary]
}

var raceSpec = &tableSpec[domain.Race, domain.RaceSummary]{
	entity: "race",
	table:  "races",
	from:   "races r JOIN race_types rt ON rt.id = r.race_type_id",
	id:     "r.id",
	columns: map[string]string{
		"id":              "r.id",
		"competition_id":  "r.competition_id",
		"race_type_id":    "r.race_type_id",
		"race_type_name":  "rt.name",
		"name":            "r.name",
		"stage_type":      "r.stage_type",
		"heat_number":     "r.heat_number",
		"gender_category": "r.gender_category",
		"status":          "r.status",
		"position":        "r.position",
	},
	full: []string{
		"r.id", "r.competition_id", "r.race_type_id", "rt.name", "r.name", "r.stage_type",
		"r.heat_number", "r.gender_category", "r.status", "r.position", "r.scheduled_at",
		"r.created_at", "r.updated_at",
	},
	summary: []string{
		"r.id", "r.competition_id", "rt.name", "r.name", "r.stage_type", "r.heat_number",
		"r.gender_category", "r.status", "r.position",
	},
	order: "r.competition_id, r.race_type_id, r.position, r.id",
	scanFull: func(s scanner) (domain.Race, error) {
		var a domain.RaceAttrs
		var heat sql.NullInt64
		scheduled := timeInto(&a.ScheduledAt)
		created, updated := timeInto(&a.CreatedAt), timeInto(&a.UpdatedAt)
		if err := s.Scan(&a.ID, &a.CompetitionID, &a.RaceTypeID, &a.RaceTypeName, &a.Name, &a.StageType,
			&heat, &a.GenderCategory, &a.Status, &a.Position, &scheduled.src,
			&created.src, &updated.src); err != nil {
			return domain.Race{}, err
		}
		if err := decodeTimes(scheduled, created, updated); err != nil {
			return domain.Race{}, err
		}
		a.HeatNumber = int(heat.Int64)
		return domain.NewRace(a)
	},
	scanSummary: func(s scanner) (domain.RaceSummary, error) {
		var a domain.RaceSummaryAttrs
		var heat sql.NullInt64
		if err := s.Scan(&a.ID, &a.CompetitionID, &a.RaceTypeName, &a.Name, &a.StageType, &heat,
			&a.GenderCategory, &a.Status, &a.Position); err != nil {
			return domain.RaceSummary{}, err
		}
		a.HeatNumber = int(heat.Int64)
		return domain.NewRaceSummary(a)
	},
}

type RaceInput struct {
	CompetitionID  int64                `mapstructure:"competition_id"`
	RaceTypeID     int64                `mapstructure:"race_type_id"`
	Name           string               `mapstructure:"name"`
	StageType      types.StageType      `mapstructure:"stage_type"`
	HeatNumber     int                  `mapstructure:"heat_number"`
	GenderCategory types.GenderCategory `mapstructure:"gender_category"`
	Status         types.RaceStatus     `mapstructure:"status"`
	Position       int                  `mapstructure:"position"`
	ScheduledAt    time.Time            `mapstructure:"scheduled_at"`
}

type RaceUpdate struct {
	Name           *string               `mapstructure:"name"`
	StageType      *types.StageType      `mapstructure:"stage_type"`
	HeatNumber     *int                  `mapstructure:"heat_number"`
	GenderCategory *types.GenderCategory `mapstructure:"gender_category"`
	Status         *types.RaceStatus     `mapstructure:"status"`
	Position       *int                  `mapstructure:"position"`
	ScheduledAt    *time.Time            `mapstructure:"scheduled_at"`
}

func (r Races) With(q db.Querier) Races { return Races{r.with(q)} }

func (r Races) Create(ctx context.Context, in RaceInput) (domain.Race, error) {
	if in.Status == "" {
		in.Status = types.RaceScheduled
	}
	now := types.FormatTime(r.stamp())
	id, err := r.insert(ctx,
		[]string{"competition_id", "race_type_id", "name", "stage_type", "heat_number", "gender_category",
			"status", "position", "scheduled_at", "created_at", "updated_at"},
		[]any{in.CompetitionID, in.RaceTypeID, in.Name, string(in.StageType), nullableInt(in.HeatNumber),
			string(in.GenderCategory), string(in.Status), in.Position, nullableTime(in.ScheduledAt), now, now})
	if err != nil {
		return domain.Race{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Races) Update(ctx context.Context, id int64, in RaceUpdate) (domain.Race, error) {
	var a assignments
	if in.Name != nil {
		a.set("name", *in.Name)
	}
	if in.StageType != nil {
		a.set("stage_type", string(*in.StageType))
	}
	if in.HeatNumber != nil {
		a.set("heat_number", nullableInt(*in.HeatNumber))
	}
	if in.GenderCategory != nil {
		a.set("gender_category", string(*in.GenderCategory))
	}
	if in.Status != nil {
		a.set("status", string(*in.Status))
	}
	if in.Position != nil {
		a.set("position", *in.Position)
	}
	if in.ScheduledAt != nil {
		a.set("scheduled_at", nullableTime(*in.ScheduledAt))
	}
	if !a.empty() {
		a.set("updated_at", types.FormatTime(r.stamp()))
	}
	if err := r.update(ctx, id, a); err != nil {
		return domain.Race{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Races) ByCompetition(ctx context.Context, competitionID int64) ([]domain.RaceSummary, error) {
	return r.Where(ctx, Criteria{"competition_id": competitionID})
}

func (r Races) Active(ctx context.Context) ([]domain.RaceSummary, error) {
	return r.Where(ctx, Criteria{"status": types.RaceInProgress})
}

// NextPosition is the position a new race of raceTypeID takes within its
// competition: one past the highest, 0 for the first.
func (r Races) NextPosition(ctx context.Context, competitionID, raceTypeID int64) (int, error) {
	var max sql.NullInt64
	err := r.q.QueryRowContext(ctx, r.rebind(`SELECT MAX(position) FROM races WHERE competition_id=? AND race_type_id=?`),
		competitionID, raceTypeID).Scan(&max)
	if err != nil {
		return 0, wrapErr("race.next_position", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func (r Races) Methods() Methods {
	return tableMethods(Methods{
		"ByCompetition": Many,
		"Active":        Many,
	})
}
