package repo

import (
	"context"
	"database/sql"

	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/types"
)

type Athletes struct {
	Table[domain.Athlete, domain.AthleteSummary]
}

var athleteSpec = &tableSpec[domain.Athlete, domain.AthleteSummary]{
	entity: "athlete",
	table:  "athletes",
	from:   "athletes a",
	id:     "a.id",
	columns: map[string]string{
		"id":             "a.id",
		"first_name":     "a.first_name",
		"last_name":      "a.last_name",
		"gender":         "a.gender",
		"country":        "a.country",
		"license_number": "a.license_number",
	},
	full:    []string{"a.id", "a.first_name", "a.last_name", "a.gender", "a.country", "a.license_number", "a.created_at"},
	summary: []string{"a.id", "a.first_name", "a.last_name", "a.country"},
	order:   "a.last_name, a.first_name, a.id",
	scanFull: func(s scanner) (domain.Athlete, error) {
		var a domain.AthleteAttrs
		var license sql.NullString
		created := timeInto(&a.CreatedAt)
		if err := s.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Gender, &a.Country, &license, &created.src); err != nil {
			return domain.Athlete{}, err
		}
		if err := decodeTimes(created); err != nil {
			return domain.Athlete{}, err
		}
		a.LicenseNumber = license.String
		return domain.NewAthlete(a)
	},
	scanSummary: func(s scanner) (domain.AthleteSummary, error) {
		var a domain.AthleteSummaryAttrs
		if err := s.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Country); err != nil {
			return domain.AthleteSummary{}, err
		}
		return domain.NewAthleteSummary(a)
	},
}

type AthleteInput struct {
	FirstName     string            `mapstructure:"first_name"`
	LastName      string            `mapstructure:"last_name"`
	Gender        types.Gender      `mapstructure:"gender"`
	Country       types.CountryCode `mapstructure:"country"`
	LicenseNumber string            `mapstructure:"license_number"`
}

func (r Athletes) With(q db.Querier) Athletes { return Athletes{r.with(q)} }

func (r Athletes) Create(ctx context.Context, in AthleteInput) (domain.Athlete, error) {
	id, err := r.insert(ctx,
		[]string{"first_name", "last_name", "gender", "country", "license_number", "created_at"},
		[]any{in.FirstName, in.LastName, string(in.Gender), string(in.Country), nullable(in.LicenseNumber),
			types.FormatTime(r.stamp())})
	if err != nil {
		return domain.Athlete{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Athletes) FindByLicense(ctx context.Context, license string) (domain.Athlete, bool, error) {
	return r.FindBy(ctx, Criteria{"license_number": license})
}

// FindByIdentity matches an athlete on name and country, for imports that
// carry no license number.
func (r Athletes) FindByIdentity(ctx context.Context, first, last string, country types.CountryCode) (domain.Athlete, bool, error) {
	return r.FindBy(ctx, Criteria{"first_name": first, "last_name": last, "country": country})
}

// Resolve returns the athlete in already stored, or creates it.
func (r Athletes) Resolve(ctx context.Context, in AthleteInput) (domain.Athlete, error) {
	var (
		found domain.Athlete
		ok    bool
		err   error
	)
	if in.LicenseNumber != "" {
		found, ok, err = r.FindByLicense(ctx, in.LicenseNumber)
	} else {
		found, ok, err = r.FindByIdentity(ctx, in.FirstName, in.LastName, in.Country)
	}
	if err != nil {
		return domain.Athlete{}, err
	}
	if ok {
		return found, nil
	}
	return r.Create(ctx, in)
}

func (r Athletes) ByCountry(ctx context.Context, country types.CountryCode) ([]domain.AthleteSummary, error) {
	return r.Where(ctx, Criteria{"country": country})
}

func (r Athletes) Methods() Methods {
	return tableMethods(Methods{
		"FindByLicense":  One,
		"FindByIdentity": One,
		"Resolve":        One,
		"ByCountry":      Many,
	})
}

type Participations struct {
	Table[domain.Participation, domain.ParticipationSummary]
}

var participationSpec = &tableSpec[domain.Participation, domain.ParticipationSummary]{
	entity: "participation",
	table:  "race_participations",
	from:   "race_participations p JOIN athletes a ON a.id = p.athlete_id",
	id:     "p.id",
	columns: map[string]string{
		"id":              "p.id",
		"race_id":         "p.race_id",
		"athlete_id":      "p.athlete_id",
		"bib_number":      "p.bib_number",
		"athlete_country": "a.country",
	},
	full: []string{
		"p.id", "p.race_id", "p.athlete_id", "p.bib_number",
		"a.first_name", "a.last_name", "a.country", "p.created_at",
	},
	summary: []string{"p.id", "p.race_id", "p.bib_number", "a.last_name", "a.country"},
	order:   "p.race_id, p.bib_number",
	scanFull: func(s scanner) (domain.Participation, error) {
		var a domain.ParticipationAttrs
		created := timeInto(&a.CreatedAt)
		if err := s.Scan(&a.ID, &a.RaceID, &a.AthleteID, &a.BibNumber,
			&a.AthleteFirstName, &a.AthleteLastName, &a.AthleteCountry, &created.src); err != nil {
			return domain.Participation{}, err
		}
		if err := decodeTimes(created); err != nil {
			return domain.Participation{}, err
		}
		return domain.NewParticipation(a)
	},
	scanSummary: func(s scanner) (domain.ParticipationSummary, error) {
		var a domain.ParticipationSummaryAttrs
		if err := s.Scan(&a.ID, &a.RaceID, &a.BibNumber, &a.AthleteLastName, &a.AthleteCountry); err != nil {
			return domain.ParticipationSummary{}, err
		}
		return domain.NewParticipationSummary(a)
	},
}

type ParticipationInput struct {
	RaceID    int64           `mapstructure:"race_id"`
	AthleteID int64           `mapstructure:"athlete_id"`
	BibNumber types.BibNumber `mapstructure:"bib_number"`
}

func (r Participations) With(q db.Querier) Participations { return Participations{r.with(q)} }

func (r Participations) Create(ctx context.Context, in ParticipationInput) (domain.Participation, error) {
	id, err := r.insert(ctx,
		[]string{"race_id", "athlete_id", "bib_number", "created_at"},
		[]any{in.RaceID, in.AthleteID, in.BibNumber.Int(), types.FormatTime(r.stamp())})
	if err != nil {
		return domain.Participation{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Participations) ByRace(ctx context.Context, raceID int64) ([]domain.ParticipationSummary, error) {
	return r.Where(ctx, Criteria{"race_id": raceID})
}

func (r Participations) FindByBib(ctx context.Context, raceID int64, bib types.BibNumber) (domain.Participation, bool, error) {
	return r.FindBy(ctx, Criteria{"race_id": raceID, "bib_number": bib})
}

// BibTaken reports whether bib is already assigned in raceID.
func (r Participations) BibTaken(ctx context.Context, raceID int64, bib types.BibNumber) (bool, error) {
	return r.Exists(ctx, Criteria{"race_id": raceID, "bib_number": bib})
}

func (r Participations) Methods() Methods {
	return tableMethods(Methods{
		"ByRace":    Many,
		"FindByBib": One,
	})
}
