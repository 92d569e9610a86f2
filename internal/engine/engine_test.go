package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"raceline/internal/broadcast"
	"raceline/internal/config"
	"raceline/internal/contract"
	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/engine"
	"raceline/internal/events"
	"raceline/internal/migrate"
	"raceline/internal/repo"
	"raceline/internal/types"
)

const (
	sprintTypeID   = 2
	verticalTypeID = 3

	roleNationalReferee = 2
	roleJuryPresident   = 4
	roleRefereeManager  = 5
)

var fixedNow = time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	Engine   engine.Engine
	Recorder *broadcast.Recorder
	Ctx      context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	rec := &broadcast.Recorder{}
	eng, err := engine.New(conn, config.Default(), engine.Options{
		Broadcast: rec,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	eng.BcryptCost = bcrypt.MinCost
	return testEnv{Engine: eng, Recorder: rec, Ctx: context.Background()}
}

func (e testEnv) competition(t *testing.T) domain.Competition {
	t.Helper()
	c, err := e.Engine.CreateCompetition(e.Ctx, contract.Attributes{
		"name":       "World Cup Verbier",
		"place":      "Verbier",
		"country":    "SUI",
		"start_date": "2025-02-01",
		"end_date":   "2025-02-03",
	}, 0)
	require.NoError(t, err)
	return c
}

func (e testEnv) race(t *testing.T, competitionID, raceTypeID int64) domain.Race {
	t.Helper()
	r, err := e.Engine.CreateRace(e.Ctx, contract.Attributes{
		"competition_id":  competitionID,
		"race_type_id":    raceTypeID,
		"name":            "Sprint Women",
		"stage_type":      "Qualification",
		"gender_category": "W",
	}, 0)
	require.NoError(t, err)
	return r
}

func (e testEnv) user(t *testing.T, name string, roleID, actorID int64) domain.User {
	t.Helper()
	u, err := e.Engine.CreateUser(e.Ctx, contract.Attributes{
		"name":     name,
		"email":    name + "@ismf.org",
		"role_id":  roleID,
		"password": "correct horse",
	}, actorID)
	require.NoError(t, err)
	return u
}

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Errors()
}

func TestCreateRaceAppendsPositionAndCopiesTemplates(t *testing.T) {
	env := newTestEnv(t)
	c := env.competition(t)

	first := env.race(t, c.ID(), sprintTypeID)
	second := env.race(t, c.ID(), sprintTypeID)
	vertical := env.race(t, c.ID(), verticalTypeID)

	assert.Equal(t, 0, first.Position())
	assert.Equal(t, 1, second.Position())
	assert.Equal(t, 0, vertical.Position(), "positions count per race type")
	assert.Equal(t, types.RaceScheduled, first.Status())
	assert.Equal(t, "Sprint", first.RaceTypeName())

	locs, err := env.Engine.Repos.Locations.ByRace(env.Ctx, first.ID())
	require.NoError(t, err)
	require.Len(t, locs, 6)
	assert.Equal(t, types.SegmentStart, locs[0].CourseSegment())
	assert.Equal(t, types.SegmentFinish, locs[5].CourseSegment())

	locs, err = env.Engine.Repos.Locations.ByRace(env.Ctx, vertical.ID())
	require.NoError(t, err)
	assert.Len(t, locs, 2)

	assert.Equal(t, []string{events.CompetitionCreated, events.RaceCreated, events.RaceCreated, events.RaceCreated}, env.Recorder.Types())
	changes := env.Recorder.Changes()
	assert.Equal(t, first.ID(), changes[1].EntityID)
	assert.Equal(t, fixedNow, changes[1].At)
}

func TestCreateRaceRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateRace(env.Ctx, contract.Attributes{
		"competition_id":  999,
		"race_type_id":    sprintTypeID,
		"stage_type":      "Heat",
		"gender_category": "Z",
	}, 0)
	fields := validationFields(t, err)
	assert.Contains(t, fields, "competition_id")
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "gender_category")
	assert.Contains(t, fields, "heat_number")

	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasKind(contract.ReferentialIntegrity))

	n, err := env.Engine.Repos.Races.Count(env.Ctx, repo.Criteria{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, env.Recorder.Types())
	latest, err := env.Engine.Repos.Events.LatestEventID(env.Ctx)
	require.NoError(t, err)
	assert.Zero(t, latest)
}

func TestUpdateCompetitionChecksDatesAgainstStoredRecord(t *testing.T) {
	env := newTestEnv(t)
	c := env.competition(t)

	_, err := env.Engine.UpdateCompetition(env.Ctx, contract.Attributes{"id": c.ID(), "end_date": "2025-01-15"}, 0)
	assert.Contains(t, validationFields(t, err), "end_date")

	updated, err := env.Engine.UpdateCompetition(env.Ctx, contract.Attributes{"id": c.ID(), "place": "Verbier VS"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Verbier VS", updated.Place())
	assert.Equal(t, c.EndDate(), updated.EndDate())

	_, err = env.Engine.UpdateCompetition(env.Ctx, contract.Attributes{"id": 42}, 0)
	assert.Contains(t, validationFields(t, err), "id")
}

func TestRaceStatusFollowsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	referee := env.user(t, "referee", roleNationalReferee, manager.ID())
	r := env.race(t, env.competition(t).ID(), sprintTypeID)

	_, err := env.Engine.UpdateRaceStatus(env.Ctx, r.ID(), types.RaceInProgress, referee.ID())
	assert.ErrorIs(t, err, domain.ErrNotAllowed)

	r, err = env.Engine.UpdateRaceStatus(env.Ctx, r.ID(), types.RaceInProgress, manager.ID())
	require.NoError(t, err)
	assert.Equal(t, types.RaceInProgress, r.Status())

	_, err = env.Engine.UpdateRaceStatus(env.Ctx, r.ID(), types.RaceScheduled, manager.ID())
	assert.Contains(t, validationFields(t, err), "status")

	same, err := env.Engine.UpdateRaceStatus(env.Ctx, r.ID(), types.RaceInProgress, 0)
	require.NoError(t, err)
	assert.Equal(t, types.RaceInProgress, same.Status())

	evts, err := env.Engine.Repos.Events.ForEntity(env.Ctx, "race", r.ID())
	require.NoError(t, err)
	var statusEvents int
	for _, e := range evts {
		if e.Type == events.RaceStatusChanged {
			statusEvents++
		}
	}
	assert.Equal(t, 1, statusEvents)
}

func TestCompletedRaceReopensAndCancelledRaceStays(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	c := env.competition(t)
	r := env.race(t, c.ID(), sprintTypeID)

	for _, st := range []types.RaceStatus{types.RaceInProgress, types.RaceCompleted, types.RaceInProgress} {
		var err error
		r, err = env.Engine.UpdateRaceStatus(env.Ctx, r.ID(), st, manager.ID())
		require.NoError(t, err, st)
	}
	assert.Equal(t, types.RaceInProgress, r.Status())

	other := env.race(t, c.ID(), sprintTypeID)
	_, err := env.Engine.UpdateRaceStatus(env.Ctx, other.ID(), types.RaceCancelled, manager.ID())
	require.NoError(t, err)
	for _, st := range []types.RaceStatus{types.RaceScheduled, types.RaceInProgress, types.RaceCompleted} {
		_, err = env.Engine.UpdateRaceStatus(env.Ctx, other.ID(), st, manager.ID())
		assert.Contains(t, validationFields(t, err), "status", st)
	}
	stored, err := env.Engine.Repos.Races.MustFind(env.Ctx, other.ID())
	require.NoError(t, err)
	assert.Equal(t, types.RaceCancelled, stored.Status())
}

func TestImportAthletesKeepsGoodRows(t *testing.T) {
	env := newTestEnv(t)
	r := env.race(t, env.competition(t).ID(), sprintTypeID)

	_, err := env.Engine.ImportAthletes(env.Ctx, contract.Attributes{
		"race_id": r.ID(),
		"athletes": []map[string]any{
			{"bib_number": 7, "first_name": "Emily", "last_name": "Harrop", "gender": "W", "country": "GBR"},
		},
	}, 0)
	require.NoError(t, err)

	res, err := env.Engine.ImportAthletes(env.Ctx, contract.Attributes{
		"race_id": r.ID(),
		"athletes": []map[string]any{
			{"bib_number": 1, "first_name": "  axelle ", "last_name": "gachet  mollaret", "gender": "w", "country": "FRA", "license_number": "FRA-001"},
			{"bib_number": "1", "first_name": "Marianna", "last_name": "Jagercikova", "gender": "W", "country": "SVK"},
			{"bib_number": 3, "first_name": "Tove", "last_name": "Alexandersson", "gender": "W", "country": "XXX"},
			{"bib_number": 7, "first_name": "Caroline", "last_name": "Ulrich", "gender": "W", "country": "SUI"},
			{"bib_number": 12, "first_name": "Alba", "last_name": "De Silvestro", "gender": "W", "country": "ITA"},
		},
	}, 0)
	require.NoError(t, err)

	require.Len(t, res.Imported, 2)
	assert.Equal(t, "Axelle", res.Imported[0].AthleteFirstName())
	assert.Equal(t, "GACHET MOLLARET", res.Imported[0].AthleteLastName())
	assert.Equal(t, types.BibNumber(12), res.Imported[1].BibNumber())

	require.Len(t, res.Failures, 3)
	assert.Equal(t, 2, res.Failures[0].Row)
	assert.Contains(t, res.Failures[0].Messages[0], "already used by row 1")
	assert.Equal(t, 3, res.Failures[1].Row)
	assert.Contains(t, res.Failures[1].Messages[0], "country")
	assert.Equal(t, 4, res.Failures[2].Row)
	assert.Equal(t, types.BibNumber(7), res.Failures[2].Bib)
	assert.Contains(t, res.Failures[2].Messages[0], "already taken")

	entered, err := env.Engine.Repos.Participations.ByRace(env.Ctx, r.ID())
	require.NoError(t, err)
	assert.Len(t, entered, 3)

	_, err = env.Engine.ImportAthletes(env.Ctx, contract.Attributes{"race_id": r.ID(), "athletes": []map[string]any{}}, 0)
	assert.Contains(t, validationFields(t, err), "athletes")
}

func TestImportAthletesReusesKnownAthlete(t *testing.T) {
	env := newTestEnv(t)
	c := env.competition(t)
	qualification := env.race(t, c.ID(), sprintTypeID)
	final := env.race(t, c.ID(), sprintTypeID)
	row := map[string]any{"bib_number": 5, "first_name": "Thibault", "last_name": "Anselmet", "gender": "M", "country": "FRA", "license_number": "FRA-123"}

	for _, r := range []domain.Race{qualification, final} {
		res, err := env.Engine.ImportAthletes(env.Ctx, contract.Attributes{"race_id": r.ID(), "athletes": []map[string]any{row}}, 0)
		require.NoError(t, err)
		require.Len(t, res.Imported, 1)
	}
	n, err := env.Engine.Repos.Athletes.Count(env.Ctx, repo.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReorderLocationsIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	c := env.competition(t)
	mine := env.race(t, c.ID(), sprintTypeID)
	other := env.race(t, c.ID(), sprintTypeID)

	locs, err := env.Engine.Repos.Locations.ByRace(env.Ctx, mine.ID())
	require.NoError(t, err)
	foreign, err := env.Engine.Repos.Locations.ByRace(env.Ctx, other.ID())
	require.NoError(t, err)

	_, err = env.Engine.ReorderLocations(env.Ctx, contract.Attributes{
		"race_id":   mine.ID(),
		"positions": map[int64]int{locs[0].ID(): 5, locs[5].ID(): 0, foreign[0].ID(): 9},
	}, 0)
	assert.Contains(t, validationFields(t, err), "positions")

	after, err := env.Engine.Repos.Locations.ByRace(env.Ctx, mine.ID())
	require.NoError(t, err)
	assert.Equal(t, locs, after)

	_, err = env.Engine.ReorderLocations(env.Ctx, contract.Attributes{
		"race_id":   mine.ID(),
		"positions": map[int64]int{locs[0].ID(): 1, locs[1].ID(): 1},
	}, 0)
	assert.Contains(t, validationFields(t, err), "positions")

	reordered, err := env.Engine.ReorderLocations(env.Ctx, contract.Attributes{
		"race_id":   mine.ID(),
		"positions": map[int64]int{locs[0].ID(): 5, locs[5].ID(): 0},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, locs[5].ID(), reordered[0].ID())
	assert.Equal(t, locs[0].ID(), reordered[5].ID())
	assert.Equal(t, events.LocationsReordered, env.Recorder.Types()[len(env.Recorder.Types())-1])
}

func TestCreateLocationAppendsAfterExisting(t *testing.T) {
	env := newTestEnv(t)
	r := env.race(t, env.competition(t).ID(), verticalTypeID)
	l, err := env.Engine.CreateLocation(env.Ctx, contract.Attributes{
		"race_id": r.ID(), "name": "Mid station", "course_segment": "uphill",
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, l.DisplayOrder())
}

func TestIncidentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	referee := env.user(t, "referee", roleNationalReferee, manager.ID())
	jury := env.user(t, "jury", roleJuryPresident, manager.ID())
	r := env.race(t, env.competition(t).ID(), sprintTypeID)
	locs, err := env.Engine.Repos.Locations.ByRace(env.Ctx, r.ID())
	require.NoError(t, err)

	rep, err := env.Engine.CreateReport(env.Ctx, contract.Attributes{
		"race_id":          r.ID(),
		"user_id":          referee.ID(),
		"race_location_id": locs[3].ID(),
		"bib_number":       "012",
		"description":      "Skins not removed before leaving the transition zone",
	})
	require.NoError(t, err)
	assert.Equal(t, "012", rep.BibLabel())

	inc, err := env.Engine.CreateIncident(env.Ctx, contract.Attributes{
		"race_id":          r.ID(),
		"race_location_id": locs[3].ID(),
		"description":      "Transition rule breach, bib 12",
		"report_ids":       []int64{rep.ID()},
	}, referee.ID())
	require.NoError(t, err)
	assert.Equal(t, types.IncidentUnofficial, inc.Status())
	assert.Equal(t, types.DecisionPending, inc.Decision())

	linked, err := env.Engine.Repos.Reports.ByIncident(env.Ctx, inc.ID())
	require.NoError(t, err)
	require.Len(t, linked, 1)

	_, err = env.Engine.DecideIncident(env.Ctx, contract.Attributes{"id": inc.ID(), "decision": "approved"}, jury.ID())
	assert.ErrorIs(t, err, domain.ErrNotAllowed, "decision before officialisation")

	_, err = env.Engine.OfficializeIncident(env.Ctx, inc.ID(), referee.ID())
	assert.ErrorIs(t, err, domain.ErrNotAllowed)

	inc, err = env.Engine.OfficializeIncident(env.Ctx, inc.ID(), jury.ID())
	require.NoError(t, err)
	assert.True(t, inc.IsOfficial())
	assert.Equal(t, jury.ID(), inc.OfficializedByUserID())
	assert.Equal(t, fixedNow, inc.OfficializedAt())

	_, err = env.Engine.DecideIncident(env.Ctx, contract.Attributes{"id": inc.ID(), "decision": "pending"}, jury.ID())
	assert.Contains(t, validationFields(t, err), "decision")

	inc, err = env.Engine.DecideIncident(env.Ctx, contract.Attributes{
		"id": inc.ID(), "decision": "approved", "penalty_seconds": 60, "decision_notes": "One minute penalty",
	}, jury.ID())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionApproved, inc.Decision())
	assert.Equal(t, 60, inc.PenaltySeconds())
	assert.Equal(t, jury.ID(), inc.DecidedByUserID())

	_, err = env.Engine.DecideIncident(env.Ctx, contract.Attributes{"id": inc.ID(), "decision": "rejected"}, jury.ID())
	assert.ErrorIs(t, err, domain.ErrNotAllowed)
	err = env.Engine.DeleteIncident(env.Ctx, inc.ID(), manager.ID())
	assert.ErrorIs(t, err, domain.ErrNotAllowed)
	err = env.Engine.DeleteReport(env.Ctx, rep.ID(), referee.ID())
	assert.ErrorIs(t, err, domain.ErrNotAllowed, "linked report")

	assert.Equal(t, []string{
		events.ReportCreated, events.IncidentCreated, events.IncidentOfficialized, events.IncidentDecided,
	}, env.Recorder.Types()[len(env.Recorder.Types())-4:])

	logged, err := env.Engine.Repos.Events.ForEntity(env.Ctx, "incident", inc.ID())
	require.NoError(t, err)
	assert.Len(t, logged, 3)
}

func TestCreateIncidentWithForeignReportWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	c := env.competition(t)
	mine := env.race(t, c.ID(), sprintTypeID)
	other := env.race(t, c.ID(), sprintTypeID)
	rep, err := env.Engine.CreateReport(env.Ctx, contract.Attributes{
		"race_id": other.ID(), "user_id": manager.ID(), "bib_number": 4, "description": "Missed gate",
	})
	require.NoError(t, err)
	before := len(env.Recorder.Types())

	_, err = env.Engine.CreateIncident(env.Ctx, contract.Attributes{
		"race_id": mine.ID(), "description": "Missed gate", "report_ids": []int64{rep.ID()},
	}, manager.ID())
	assert.Contains(t, validationFields(t, err), "report_ids")

	n, err := env.Engine.Repos.Incidents.Count(env.Ctx, repo.Criteria{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, env.Recorder.Types(), before)
}

func TestUpdateIncidentRefusesStampsWithoutTheirAxis(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	r := env.race(t, env.competition(t).ID(), sprintTypeID)
	inc, err := env.Engine.CreateIncident(env.Ctx, contract.Attributes{
		"race_id": r.ID(), "description": "Missed gate",
	}, manager.ID())
	require.NoError(t, err)

	_, err = env.Engine.UpdateIncident(env.Ctx, contract.Attributes{
		"id": inc.ID(), "officialized_at": "2025-02-01T10:00:00Z",
		"decided_by_user_id": manager.ID(), "decided_at": "2025-02-01T11:00:00Z",
	}, manager.ID())
	fields := validationFields(t, err)
	assert.Contains(t, fields, "officialized_at")
	assert.Contains(t, fields, "decided_by_user_id")
	assert.Contains(t, fields, "decided_at")

	stored, err := env.Engine.Repos.Incidents.MustFind(env.Ctx, inc.ID())
	require.NoError(t, err)
	assert.True(t, stored.OfficializedAt().IsZero())
	assert.True(t, stored.DecidedAt().IsZero())
	assert.Zero(t, stored.DecidedByUserID())

	updated, err := env.Engine.UpdateIncident(env.Ctx, contract.Attributes{
		"id": inc.ID(), "status": "official", "decision": "approved", "penalty_seconds": 60,
		"decided_by_user_id": manager.ID(),
	}, manager.ID())
	require.NoError(t, err)
	assert.Equal(t, manager.ID(), updated.DecidedByUserID())
	assert.True(t, fixedNow.Equal(updated.DecidedAt()))
}

func TestDeleteIncidentUnlinksReports(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	r := env.race(t, env.competition(t).ID(), sprintTypeID)
	rep, err := env.Engine.CreateReport(env.Ctx, contract.Attributes{
		"race_id": r.ID(), "user_id": manager.ID(), "bib_number": 4, "description": "Missed gate",
	})
	require.NoError(t, err)
	inc, err := env.Engine.CreateIncident(env.Ctx, contract.Attributes{
		"race_id": r.ID(), "description": "Missed gate", "report_ids": []int64{rep.ID()},
	}, manager.ID())
	require.NoError(t, err)

	require.NoError(t, env.Engine.DeleteIncident(env.Ctx, inc.ID(), manager.ID()))
	_, found, err := env.Engine.Repos.Incidents.Find(env.Ctx, inc.ID())
	require.NoError(t, err)
	assert.False(t, found)

	rep, err = env.Engine.Repos.Reports.MustFind(env.Ctx, rep.ID())
	require.NoError(t, err)
	assert.False(t, rep.IsLinked())

	require.NoError(t, env.Engine.DeleteReport(env.Ctx, rep.ID(), manager.ID()))
	err = env.Engine.DeleteReport(env.Ctx, rep.ID(), manager.ID())
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUsersAndAuthentication(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	assert.NotEmpty(t, manager.UUID())
	assert.NotEqual(t, "correct horse", manager.PasswordDigest())

	_, err := env.Engine.CreateUser(env.Ctx, contract.Attributes{
		"name": "intruder", "email": "intruder@example.org", "role_id": roleRefereeManager, "password": "correct horse",
	}, 0)
	assert.ErrorIs(t, err, domain.ErrNotAllowed)

	_, err = env.Engine.CreateUser(env.Ctx, contract.Attributes{
		"name": "again", "email": "MANAGER@ismf.org", "role_id": roleNationalReferee, "password": "correct horse",
	}, manager.ID())
	assert.Contains(t, validationFields(t, err), "email")

	u, err := env.Engine.Authenticate(env.Ctx, "manager@ismf.org", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, manager.ID(), u.ID())

	_, err = env.Engine.Authenticate(env.Ctx, "manager@ismf.org", "wrong horse")
	assert.ErrorIs(t, err, engine.ErrInvalidCredentials)
	_, err = env.Engine.Authenticate(env.Ctx, "nobody@ismf.org", "correct horse")
	assert.ErrorIs(t, err, engine.ErrInvalidCredentials)
	_, err = env.Engine.Authenticate(env.Ctx, "not-an-email", "x")
	var verr *contract.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLongestAcceptedTextIsStoredAndReadBack(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, "manager", roleRefereeManager, 0)
	long := func(s string, n int) string { return strings.Repeat(s, n) }
	url := "https://ismf.org/" + long("a", domain.MaxURL-len("https://ismf.org/"))

	c, err := env.Engine.CreateCompetition(env.Ctx, contract.Attributes{
		"name":        long("ø", domain.MaxName),
		"place":       long("ü", domain.MaxName),
		"country":     "NOR",
		"start_date":  "2025-02-01",
		"end_date":    "2025-02-03",
		"description": long("é", domain.MaxText),
		"webpage_url": url,
	}, manager.ID())
	require.NoError(t, err)
	c, err = env.Engine.Repos.Competitions.MustFind(env.Ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, long("ø", domain.MaxName), c.Name())
	assert.Equal(t, url, c.WebpageURL())

	r, err := env.Engine.CreateRace(env.Ctx, contract.Attributes{
		"competition_id": c.ID(), "race_type_id": sprintTypeID, "name": long("é", domain.MaxName),
		"stage_type": "Qualification", "gender_category": "W",
	}, manager.ID())
	require.NoError(t, err)
	r, err = env.Engine.Repos.Races.MustFind(env.Ctx, r.ID())
	require.NoError(t, err)
	assert.Equal(t, long("é", domain.MaxName), r.Name())

	l, err := env.Engine.CreateLocation(env.Ctx, contract.Attributes{
		"race_id": r.ID(), "name": long("à", domain.MaxName), "course_segment": "uphill",
		"description": long("x", domain.MaxText),
	}, manager.ID())
	require.NoError(t, err)
	l, err = env.Engine.Repos.Locations.MustFind(env.Ctx, l.ID())
	require.NoError(t, err)
	assert.Equal(t, long("x", domain.MaxText), l.Description())

	a, err := env.Engine.CreateAthlete(env.Ctx, contract.Attributes{
		"first_name": long("é", domain.MaxShortName), "last_name": long("ß", domain.MaxShortName),
		"gender": "W", "country": "ITA", "license_number": long("9", domain.MaxLicense),
	}, manager.ID())
	require.NoError(t, err)
	a, err = env.Engine.Repos.Athletes.MustFind(env.Ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "É"+long("é", domain.MaxShortName-1), a.FirstName())
	assert.Equal(t, long("ß", domain.MaxShortName), a.LastName(), "upper-casing would outgrow the limit")

	rep, err := env.Engine.CreateReport(env.Ctx, contract.Attributes{
		"race_id": r.ID(), "user_id": manager.ID(), "bib_number": 7, "description": long("ç", domain.MaxText),
	})
	require.NoError(t, err)
	rep, err = env.Engine.Repos.Reports.MustFind(env.Ctx, rep.ID())
	require.NoError(t, err)
	assert.Equal(t, long("ç", domain.MaxText), rep.Description())

	inc, err := env.Engine.CreateIncident(env.Ctx, contract.Attributes{
		"race_id": r.ID(), "description": long("ñ", domain.MaxText), "report_ids": []int64{rep.ID()},
	}, manager.ID())
	require.NoError(t, err)
	inc, err = env.Engine.Repos.Incidents.MustFind(env.Ctx, inc.ID())
	require.NoError(t, err)
	assert.Equal(t, long("ñ", domain.MaxText), inc.Description())

	_, err = env.Engine.CreateUser(env.Ctx, contract.Attributes{
		"name": "long", "email": "long@ismf.org", "role_id": roleNationalReferee, "password": long("é", 40),
	}, manager.ID())
	assert.Contains(t, validationFields(t, err), "password", "bcrypt takes at most 72 bytes")
}
