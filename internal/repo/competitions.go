package repo

import (
	"context"
	"database/sql"
	"time"

	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/types"
)

type Competitions struct {
	Table[domain.Competition, domain.CompetitionSummary]
}

var competitionSpec = &tableSpec[domain.Competition, domain.CompetitionSummary]{
	entity: "competition",
	table:  "competitions",
	from:   "competitions c",
	id:     "c.id",
	columns: map[string]string{
		"id":         "c.id",
		"name":       "c.name",
		"place":      "c.place",
		"country":    "c.country",
		"start_date": "c.start_date",
		"end_date":   "c.end_date",
	},
	full: []string{
		"c.id", "c.name", "c.place", "c.country", "c.start_date", "c.end_date",
		"c.description", "c.webpage_url", "c.created_at", "c.updated_at",
	},
	summary: []string{"c.id", "c.name", "c.place", "c.country", "c.start_date", "c.end_date"},
	order:   "c.start_date, c.id",
	scanFull: func(s scanner) (domain.Competition, error) {
		var a domain.CompetitionAttrs
		var desc, url sql.NullString
		start, end := timeInto(&a.StartDate), timeInto(&a.EndDate)
		created, updated := timeInto(&a.CreatedAt), timeInto(&a.UpdatedAt)
		if err := s.Scan(&a.ID, &a.Name, &a.Place, &a.Country, &start.src, &end.src,
			&desc, &url, &created.src, &updated.src); err != nil {
			return domain.Competition{}, err
		}
		if err := decodeTimes(start, end, created, updated); err != nil {
			return domain.Competition{}, err
		}
		a.Description = desc.String
		a.WebpageURL = url.String
		return domain.NewCompetition(a)
	},
	scanSummary: func(s scanner) (domain.CompetitionSummary, error) {
		var a domain.CompetitionSummaryAttrs
		start, end := timeInto(&a.StartDate), timeInto(&a.EndDate)
		if err := s.Scan(&a.ID, &a.Name, &a.Place, &a.Country, &start.src, &end.src); err != nil {
			return domain.CompetitionSummary{}, err
		}
		if err := decodeTimes(start, end); err != nil {
			return domain.CompetitionSummary{}, err
		}
		return domain.NewCompetitionSummary(a)
	},
}

type CompetitionInput struct {
	Name        string            `mapstructure:"name"`
	Place       string            `mapstructure:"place"`
	Country     types.CountryCode `mapstructure:"country"`
	StartDate   time.Time         `mapstructure:"start_date"`
	EndDate     time.Time         `mapstructure:"end_date"`
	Description string            `mapstructure:"description"`
	WebpageURL  string            `mapstructure:"webpage_url"`
}

type CompetitionUpdate struct {
	Name        *string            `mapstructure:"name"`
	Place       *string            `mapstructure:"place"`
	Country     *types.CountryCode `mapstructure:"country"`
	StartDate   *time.Time         `mapstructure:"start_date"`
	EndDate     *time.Time         `mapstructure:"end_date"`
	Description *string            `mapstructure:"description"`
	WebpageURL  *string            `mapstructure:"webpage_url"`
}

func (r Competitions) With(q db.Querier) Competitions { return Competitions{r.with(q)} }

func (r Competitions) Create(ctx context.Context, in CompetitionInput) (domain.Competition, error) {
	now := types.FormatTime(r.stamp())
	id, err := r.insert(ctx,
		[]string{"name", "place", "country", "start_date", "end_date", "description", "webpage_url", "created_at", "updated_at"},
		[]any{in.Name, in.Place, string(in.Country), types.FormatTime(in.StartDate), types.FormatTime(in.EndDate),
			nullable(in.Description), nullable(in.WebpageURL), now, now})
	if err != nil {
		return domain.Competition{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Competitions) Update(ctx context.Context, id int64, in CompetitionUpdate) (domain.Competition, error) {
	var a assignments
	if in.Name != nil {
		a.set("name", *in.Name)
	}
	if in.Place != nil {
		a.set("place", *in.Place)
	}
	if in.Country != nil {
		a.set("country", string(*in.Country))
	}
	if in.StartDate != nil {
		a.set("start_date", types.FormatTime(*in.StartDate))
	}
	if in.EndDate != nil {
		a.set("end_date", types.FormatTime(*in.EndDate))
	}
	if in.Description != nil {
		a.set("description", nullable(*in.Description))
	}
	if in.WebpageURL != nil {
		a.set("webpage_url", nullable(*in.WebpageURL))
	}
	if !a.empty() {
		a.set("updated_at", types.FormatTime(r.stamp()))
	}
	if err := r.update(ctx, id, a); err != nil {
		return domain.Competition{}, err
	}
	return r.MustFind(ctx, id)
}

// Ongoing lists the competitions whose days include at.
func (r Competitions) Ongoing(ctx context.Context, at time.Time) ([]domain.CompetitionSummary, error) {
	day := at.UTC().Truncate(24 * time.Hour)
	return r.selectSummaries(ctx, "ongoing", "c.start_date <= ? AND c.end_date >= ?", "",
		types.FormatTime(at), types.FormatTime(day))
}

func (r Competitions) Methods() Methods {
	return tableMethods(Methods{"Ongoing": Many})
}
