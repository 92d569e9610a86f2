package repo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/types"
)

type Locations struct {
	Table[domain.Location, domain.LocationSummary]
}

var locationSpec = &tableSpec[domain.Location, domain.LocationSummary]{
	entity: "location",
	table:  "race_locations",
	from:   "race_locations l",
	id:     "l.id",
	columns: map[string]string{
		"id":             "l.id",
		"race_id":        "l.race_id",
		"name":           "l.name",
		"course_segment": "l.course_segment",
		"display_order":  "l.display_order",
	},
	full:    []string{"l.id", "l.race_id", "l.name", "l.course_segment", "l.display_order", "l.description"},
	summary: []string{"l.id", "l.race_id", "l.name", "l.course_segment", "l.display_order"},
	order:   "l.race_id, l.display_order, l.id",
	scanFull: func(s scanner) (domain.Location, error) {
		var a domain.LocationAttrs
		var desc sql.NullString
		if err := s.Scan(&a.ID, &a.RaceID, &a.Name, &a.CourseSegment, &a.DisplayOrder, &desc); err != nil {
			return domain.Location{}, err
		}
		a.Description = desc.String
		return domain.NewLocation(a)
	},
	scanSummary: func(s scanner) (domain.LocationSummary, error) {
		var a domain.LocationSummaryAttrs
		if err := s.Scan(&a.ID, &a.RaceID, &a.Name, &a.CourseSegment, &a.DisplayOrder); err != nil {
			return domain.LocationSummary{}, err
		}
		return domain.NewLocationSummary(a)
	},
}

type LocationInput struct {
	RaceID        int64               `mapstructure:"race_id"`
	Name          string              `mapstructure:"name"`
	CourseSegment types.CourseSegment `mapstructure:"course_segment"`
	DisplayOrder  int                 `mapstructure:"display_order"`
	Description   string              `mapstructure:"description"`
}

func (r Locations) With(q db.Querier) Locations { return Locations{r.with(q)} }

func (r Locations) Create(ctx context.Context, in LocationInput) (domain.Location, error) {
	id, err := r.insert(ctx,
		[]string{"race_id", "name", "course_segment", "display_order", "description"},
		[]any{in.RaceID, in.Name, string(in.CourseSegment), in.DisplayOrder, nullable(in.Description)})
	if err != nil {
		return domain.Location{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Locations) ByRace(ctx context.Context, raceID int64) ([]domain.LocationSummary, error) {
	return r.Where(ctx, Criteria{"race_id": raceID})
}

// Reorder sets display_order for every location in positions. Each id must
// belong to raceID; the first one that does not aborts the whole reorder.
// Bound to a *sql.DB it opens its own transaction, bound to a *sql.Tx the
// caller owns commit and rollback.
func (r Locations) Reorder(ctx context.Context, raceID int64, positions map[int64]int) error {
	if sqlDB, ok := r.q.(*sql.DB); ok {
		h := db.Handle{DB: sqlDB, Dialect: r.dialect}
		return h.InTx(ctx, func(tx *sql.Tx) error {
			return r.With(tx).Reorder(ctx, raceID, positions)
		})
	}
	ids := make([]int64, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	stmt := r.rebind(`UPDATE race_locations SET display_order=? WHERE id=? AND race_id=?`)
	for _, id := range ids {
		res, err := r.q.ExecContext(ctx, stmt, positions[id], id, raceID)
		if err != nil {
			return wrapErr("location.reorder", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapErr("location.reorder", err)
		}
		if n == 0 {
			return fmt.Errorf("location %d of race %d: %w", id, raceID, ErrNotFound)
		}
	}
	return nil
}

// CopyTemplates instantiates the location templates of raceTypeID on raceID,
// keeping their names, segments and display order.
func (r Locations) CopyTemplates(ctx context.Context, raceID, raceTypeID int64) ([]domain.LocationSummary, error) {
	_, err := r.q.ExecContext(ctx, r.rebind(`INSERT INTO race_locations(race_id, name, course_segment, display_order)
SELECT ?, name, course_segment, display_order FROM location_templates WHERE race_type_id=? ORDER BY display_order, id`),
		raceID, raceTypeID)
	if err != nil {
		return nil, wrapErr("location.copy_templates", err)
	}
	return r.ByRace(ctx, raceID)
}

func (r Locations) Methods() Methods {
	return tableMethods(Methods{
		"ByRace":        Many,
		"CopyTemplates": Many,
	})
}
