package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"raceline/internal/contract"
	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/events"
	"raceline/internal/repo"
	"raceline/internal/types"
)

type ImportFailure struct {
	Row      int             `json:"row"`
	Bib      types.BibNumber `json:"bib_number,omitempty"`
	Messages []string        `json:"messages"`
}

// ImportResult reports a bulk import. Rows are numbered from 1.
type ImportResult struct {
	RaceID   int64                  `json:"race_id"`
	Imported []domain.Participation `json:"imported"`
	Failures []ImportFailure        `json:"failures"`
}

type importRow struct {
	BibNumber         types.BibNumber `mapstructure:"bib_number"`
	repo.AthleteInput `mapstructure:",squash"`
}

// rowRejected is a per-row refusal that does not stop the import.
type rowRejected struct{ msg string }

func (r rowRejected) Error() string { return r.msg }

func (e Engine) CreateAthlete(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Athlete, error) {
	var in repo.AthleteInput
	if _, err := e.validate(ctx, contract.CreateAthlete(e.Repos.Lookup), attrs, &in); err != nil {
		return domain.Athlete{}, err
	}
	in = e.normalizeAthlete(in)
	var out domain.Athlete
	err := e.write(ctx, "athlete.create", func(s *scope) error {
		a, err := s.repos.Athletes.Create(ctx, in)
		if err != nil {
			return err
		}
		out = a
		return s.record(events.AthleteCreated, "athlete", a.ID(), actorID, a, events.EventPayload{
			"country": a.Country(),
		})
	})
	return out, err
}

// ImportAthletes enters a list of athletes into a race. Each row is validated
// and written on its own: a bad row, a bib repeated within the list or a bib
// already taken in the race is reported in Failures and the other rows still
// go in. Only an invalid envelope or a storage failure returns an error.
func (e Engine) ImportAthletes(ctx context.Context, attrs contract.Attributes, actorID int64) (ImportResult, error) {
	res := contract.ImportAthletes(e.Repos.Lookup).Call(ctx, attrs)
	var envelope []contract.Violation
	for _, v := range res.Violations {
		if !strings.HasPrefix(v.Field, "athletes.") {
			envelope = append(envelope, v)
		}
	}
	if len(envelope) > 0 {
		return ImportResult{}, &contract.ValidationError{Contract: res.Contract, Violations: envelope}
	}
	raceID, _ := contract.ID(attrs["race_id"])
	rowsV, _ := contract.Rows(attrs["athletes"])
	rows := rowsV.([]contract.Attributes)
	duplicates := contract.DuplicateRows(res)

	out := ImportResult{RaceID: raceID.(int64), Imported: []domain.Participation{}, Failures: []ImportFailure{}}
	rowContract := contract.ImportAthleteRow()
	for i, raw := range rows {
		bib, _ := types.ParseBibNumber(raw["bib_number"])
		fail := func(msgs ...string) {
			out.Failures = append(out.Failures, ImportFailure{Row: i + 1, Bib: bib, Messages: msgs})
			e.Log.Infow("import row rejected", "race_id", out.RaceID, "row", i+1, "bib", bib, "reasons", msgs)
		}
		if msgs, dup := duplicates[i]; dup {
			fail(msgs...)
			continue
		}
		var row importRow
		if _, err := e.validate(ctx, rowContract, raw, &row); err != nil {
			var verr *contract.ValidationError
			if errors.As(err, &verr) {
				fail(violationMessages(verr.Violations)...)
				continue
			}
			return out, err
		}
		row.AthleteInput = e.normalizeAthlete(row.AthleteInput)
		p, err := e.importRow(ctx, out.RaceID, row, actorID)
		var rejected rowRejected
		switch {
		case err == nil:
			out.Imported = append(out.Imported, p)
		case errors.As(err, &rejected):
			fail(rejected.msg)
		case errors.Is(err, repo.ErrConstraint):
			fail(constraintMessage(err, out.RaceID))
		default:
			return out, err
		}
	}
	return out, nil
}

func (e Engine) importRow(ctx context.Context, raceID int64, row importRow, actorID int64) (domain.Participation, error) {
	var out domain.Participation
	err := e.write(ctx, "athlete.import", func(s *scope) error {
		taken, err := s.repos.Participations.BibTaken(ctx, raceID, row.BibNumber)
		if err != nil {
			return err
		}
		if taken {
			return rowRejected{fmt.Sprintf("bib number %d is already taken in race %d", row.BibNumber, raceID)}
		}
		a, err := s.repos.Athletes.Resolve(ctx, row.AthleteInput)
		if err != nil {
			return err
		}
		p, err := s.repos.Participations.Create(ctx, repo.ParticipationInput{
			RaceID: raceID, AthleteID: a.ID(), BibNumber: row.BibNumber,
		})
		if err != nil {
			return err
		}
		out = p
		return s.record(events.ParticipationCreated, "participation", p.ID(), actorID, p, events.EventPayload{
			"race_id": raceID, "athlete_id": a.ID(), "bib_number": p.BibNumber(),
		})
	})
	return out, err
}

func violationMessages(vs []contract.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Field+" "+v.Message)
	}
	return out
}

func constraintMessage(err error, raceID int64) string {
	var ce *repo.ConstraintError
	if errors.As(err, &ce) && ce.Kind == db.Unique {
		return fmt.Sprintf("athlete is already entered in race %d", raceID)
	}
	return err.Error()
}

// normalizeAthlete collapses whitespace, title-cases the first name and
// upper-cases the last name, as start lists print them. A name whose printed
// form outgrows domain.MaxShortName ("ß" upper-cases to "SS") is kept as given.
func (e Engine) normalizeAthlete(in repo.AthleteInput) repo.AthleteInput {
	if e.Config == nil || !e.Config.Import.NormalizeNames {
		return in
	}
	in.FirstName = fitName(in.FirstName, cases.Title(language.Und).String(strings.Join(strings.Fields(in.FirstName), " ")))
	in.LastName = fitName(in.LastName, cases.Upper(language.Und).String(strings.Join(strings.Fields(in.LastName), " ")))
	return in
}

func fitName(given, printed string) string {
	if utf8.RuneCountInString(printed) > domain.MaxShortName {
		return given
	}
	return printed
}
