package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"raceline/internal/contract"
	"raceline/internal/db"
)

type Options struct {
	// CacheSize bounds the id caches of Roles and RaceTypes; 0 disables them.
	CacheSize int
	Now       func() time.Time
	Log       *zap.SugaredLogger
}

// Repos bundles every repository over one connection or transaction.
type Repos struct {
	Roles             Roles
	Users             Users
	Competitions      Competitions
	RaceTypes         RaceTypes
	LocationTemplates LocationTemplates
	Races             Races
	Locations         Locations
	Athletes          Athletes
	Participations    Participations
	Reports           Reports
	Incidents         Incidents
	Events            Events
	Lookup            Lookup
}

func New(h db.Handle, opts Options) (Repos, error) {
	q, d := db.Querier(h.DB), h.Dialect
	r := Repos{
		Roles:             Roles{newTable(q, d, opts, roleSpec)},
		Users:             Users{newTable(q, d, opts, userSpec)},
		Competitions:      Competitions{newTable(q, d, opts, competitionSpec)},
		RaceTypes:         RaceTypes{newTable(q, d, opts, raceTypeSpec)},
		LocationTemplates: LocationTemplates{newTable(q, d, opts, locationTemplateSpec)},
		Races:             Races{newTable(q, d, opts, raceSpec)},
		Locations:         Locations{newTable(q, d, opts, locationSpec)},
		Athletes:          Athletes{newTable(q, d, opts, athleteSpec)},
		Participations:    Participations{newTable(q, d, opts, participationSpec)},
		Reports:           Reports{newTable(q, d, opts, reportSpec)},
		Incidents:         Incidents{newTable(q, d, opts, incidentSpec)},
		Events:            Events{q: q, dialect: d},
		Lookup:            Lookup{q: q, dialect: d},
	}
	if err := r.Roles.withCache(opts.CacheSize); err != nil {
		return Repos{}, err
	}
	if err := r.RaceTypes.withCache(opts.CacheSize); err != nil {
		return Repos{}, err
	}
	return r, nil
}

// With rebinds every repository to q, typically a *sql.Tx.
func (r Repos) With(q db.Querier) Repos {
	return Repos{
		Roles:             r.Roles.With(q),
		Users:             r.Users.With(q),
		Competitions:      r.Competitions.With(q),
		RaceTypes:         r.RaceTypes.With(q),
		LocationTemplates: r.LocationTemplates.With(q),
		Races:             r.Races.With(q),
		Locations:         r.Locations.With(q),
		Athletes:          r.Athletes.With(q),
		Participations:    r.Participations.With(q),
		Reports:           r.Reports.With(q),
		Incidents:         r.Incidents.With(q),
		Events:            r.Events.With(q),
		Lookup:            r.Lookup.With(q),
	}
}

var referenceTables = map[contract.Reference]string{
	contract.RefRole:        "roles",
	contract.RefUser:        "users",
	contract.RefCompetition: "competitions",
	contract.RefRaceType:    "race_types",
	contract.RefRace:        "races",
	contract.RefLocation:    "race_locations",
	contract.RefAthlete:     "athletes",
	contract.RefReport:      "reports",
	contract.RefIncident:    "incidents",
}

// Lookup answers contract existence checks against the referenced tables.
type Lookup struct {
	q       db.Querier
	dialect db.Dialect
}

var _ contract.Lookup = Lookup{}

func (l Lookup) With(q db.Querier) Lookup {
	l.q = q
	return l
}

func (l Lookup) Exists(ctx context.Context, ref contract.Reference, id int64) (bool, error) {
	table, ok := referenceTables[ref]
	if !ok {
		return false, fmt.Errorf("unknown reference %q", ref)
	}
	var one int
	err := l.q.QueryRowContext(ctx, db.Rebind(l.dialect, fmt.Sprintf(`SELECT 1 FROM %s WHERE id=?`, table)), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapErr("lookup."+string(ref), err)
	}
	return true, nil
}
