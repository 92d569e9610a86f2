package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raceline/internal/types"
)

var t0 = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

func validIncidentAttrs() IncidentAttrs {
	return IncidentAttrs{
		ID:          10,
		UUID:        "3f2504e0-4f89-41d3-9a0c-0305e82c3301",
		RaceID:      1,
		Status:      types.IncidentUnofficial,
		Decision:    types.DecisionPending,
		Description: "Skins not removed in transition zone",
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

func validRaceAttrs() RaceAttrs {
	return RaceAttrs{
		ID:             1,
		CompetitionID:  1,
		RaceTypeID:     3,
		RaceTypeName:   "Sprint",
		Name:           "Sprint Final",
		StageType:      types.StageFinal,
		GenderCategory: types.CategoryWomen,
		Status:         types.RaceScheduled,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

func user(role types.RoleName) User {
	u, err := NewUser(UserAttrs{
		ID:             7,
		UUID:           "0b7c2a6e-5d0e-4c35-9b1f-9f0d1f5c1e2a",
		Name:           "Jury",
		Email:          "jury@ismf.org",
		RoleID:         1,
		RoleName:       role,
		PasswordDigest: "$2a$10$abc",
		CreatedAt:      t0,
		UpdatedAt:      t0,
	})
	if err != nil {
		panic(err)
	}
	return u
}

func TestConstructionAggregatesEveryField(t *testing.T) {
	_, err := NewRace(RaceAttrs{
		ID:             1,
		CompetitionID:  1,
		RaceTypeID:     0,
		Name:           " ",
		StageType:      "NotAStage",
		GenderCategory: types.CategoryMixed,
		Status:         types.RaceScheduled,
		Position:       -1,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	})
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "race", ce.Entity)
	for _, field := range []string{"race_type_id", "name", "stage_type", "position"} {
		assert.Contains(t, ce.Fields, field)
	}
	assert.Len(t, ce.Fields, 4)
	assert.Contains(t, err.Error(), "stage_type")
}

func TestEnumClosure(t *testing.T) {
	a := validIncidentAttrs()
	a.Status = "draft"
	_, err := NewIncident(a)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Fields, "status")

	a = validIncidentAttrs()
	a.Decision = "maybe"
	_, err = NewIncident(a)
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Fields, "decision")

	_, err = NewRole(RoleAttrs{ID: 1, Name: "admin"})
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Fields, "name")
}

func TestIncidentDecisionRequiresOfficialStatus(t *testing.T) {
	a := validIncidentAttrs()
	a.Decision = types.DecisionApproved
	_, err := NewIncident(a)
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Fields, "decision")
	assert.Contains(t, ce.Fields, "decided_by_user_id")
	assert.Contains(t, ce.Fields, "decided_at")
}

func TestIncidentTransitions(t *testing.T) {
	inc, err := NewIncident(validIncidentAttrs())
	require.NoError(t, err)
	assert.False(t, inc.IsOfficial())
	assert.True(t, inc.IsPending())
	assert.True(t, inc.CanTransitionTo(types.IncidentOfficial))
	assert.False(t, inc.CanDecide())
	assert.False(t, inc.CanDecideTo(types.DecisionApproved))

	_, err = inc.Decide(DecisionInput{Decision: types.DecisionApproved, ActorID: 7, At: t0})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	official, err := inc.Officialize(7, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, official.IsOfficial())
	assert.False(t, inc.IsOfficial(), "original record must not change")
	assert.Equal(t, int64(7), official.OfficializedByUserID())
	assert.False(t, official.CanTransitionTo(types.IncidentUnofficial))
	assert.False(t, official.CanTransitionTo(types.IncidentOfficial))

	_, err = official.Officialize(7, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, CheckIncidentStatus(types.IncidentOfficial, types.IncidentUnofficial), ErrInvalidTransition)

	decided, err := official.Decide(DecisionInput{
		Decision:       types.DecisionApproved,
		Notes:          "30s penalty",
		PenaltySeconds: 30,
		ActorID:        7,
		At:             t0.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionApproved, decided.Decision())
	assert.True(t, decided.HasPenalty())
	assert.False(t, decided.CanDecide())

	_, err = decided.Decide(DecisionInput{Decision: types.DecisionRejected, ActorID: 7, At: t0.Add(3 * time.Minute)})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = official.Decide(DecisionInput{Decision: types.DecisionApproved, ActorID: 7, At: t0})
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce, "decided_at before officialized_at")
	assert.Contains(t, ce.Fields, "decided_at")
}

func TestRaceStatusMachine(t *testing.T) {
	race, err := NewRace(validRaceAttrs())
	require.NoError(t, err)
	assert.Equal(t, "Final", race.StageName())
	assert.False(t, race.IsActive())
	assert.True(t, race.CanTransitionTo(types.RaceInProgress))
	assert.False(t, race.CanTransitionTo(types.RaceCompleted))

	running, err := race.WithStatus(types.RaceInProgress, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, running.IsActive())
	assert.Equal(t, types.RaceScheduled, race.Status())

	_, err = running.WithStatus(types.RaceScheduled, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done, err := running.WithStatus(types.RaceCompleted, t0.Add(2*time.Hour))
	require.NoError(t, err)
	reopened, err := done.WithStatus(types.RaceInProgress, t0.Add(3*time.Hour))
	require.NoError(t, err, "a completed race can be reopened")
	assert.True(t, reopened.IsActive())

	m := RaceStatusMachine(types.RaceCompleted)
	assert.True(t, m.Can(EventReopen))
	assert.False(t, m.Can(EventStart))

	cancelled := RaceStatusMachine(types.RaceCancelled)
	assert.Equal(t, "cancelled", cancelled.Current())
	for _, ev := range []string{EventStart, EventComplete, EventCancel, EventReopen} {
		assert.False(t, cancelled.Can(ev), ev)
	}
	for _, to := range []types.RaceStatus{types.RaceScheduled, types.RaceInProgress, types.RaceCompleted} {
		assert.ErrorIs(t, CheckRaceStatus(types.RaceCancelled, to), ErrInvalidTransition, to)
	}
}

func TestStageNameWithHeat(t *testing.T) {
	a := validRaceAttrs()
	a.StageType = types.StageHeat
	a.HeatNumber = 2
	race, err := NewRace(a)
	require.NoError(t, err)
	assert.Equal(t, "Heat 2", race.StageName())
	assert.Equal(t, "Heat 2", race.Summary().StageName())
}

func TestPredicates(t *testing.T) {
	p, err := NewParticipation(ParticipationAttrs{
		ID: 1, RaceID: 1, AthleteID: 4, BibNumber: 7,
		AthleteFirstName: "Axelle", AthleteLastName: "Gachet", AthleteCountry: "FRA",
		CreatedAt: t0,
	})
	require.NoError(t, err)
	assert.Equal(t, "007", p.BibLabel())
	assert.Equal(t, "GACHET Axelle", p.AthleteDisplayName())
	assert.True(t, p.BibNumber().Equal(7))

	comp, err := NewCompetition(CompetitionAttrs{
		ID: 1, Name: "World Cup", Place: "Val Martello", Country: "ITA",
		StartDate: time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC),
		CreatedAt: t0, UpdatedAt: t0,
	})
	require.NoError(t, err)
	assert.True(t, comp.IsOngoing(time.Date(2025, 2, 16, 23, 0, 0, 0, time.UTC)))
	assert.False(t, comp.IsOngoing(time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC)))
	assert.False(t, comp.IsOngoing(time.Date(2025, 2, 13, 23, 59, 0, 0, time.UTC)))

	assert.True(t, user(types.RoleNationalReferee).IsReferee())
	assert.False(t, user(types.RoleBroadcast).IsReferee())
}

func TestCompetitionDates(t *testing.T) {
	_, err := NewCompetition(CompetitionAttrs{
		ID: 1, Name: "World Cup", Place: "Val Martello", Country: "ITA",
		StartDate: time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		CreatedAt: t0, UpdatedAt: t0,
	})
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"must not precede start_date"}, ce.Fields["end_date"])
}

func TestRules(t *testing.T) {
	inc, err := NewIncident(validIncidentAttrs())
	require.NoError(t, err)

	assert.True(t, CanOfficialize(inc, user(types.RoleJuryPresident)).Allowed)
	assert.True(t, CanOfficialize(inc, user(types.RoleInternationalReferee)).Allowed)
	g := CanOfficialize(inc, user(types.RoleNationalReferee))
	assert.False(t, g.Allowed)
	assert.ErrorIs(t, g.Err(), ErrNotAllowed)

	assert.False(t, CanDecide(inc, user(types.RoleJuryPresident), types.DecisionApproved).Allowed)
	official, err := inc.Officialize(7, t0)
	require.NoError(t, err)
	assert.False(t, CanOfficialize(official, user(types.RoleJuryPresident)).Allowed)
	assert.True(t, CanDecide(official, user(types.RoleJuryPresident), types.DecisionApproved).Allowed)
	assert.False(t, CanDecide(official, user(types.RoleJuryPresident), types.DecisionPending).Allowed)
	assert.False(t, CanDecide(official, user(types.RoleInternationalReferee), types.DecisionApproved).Allowed)

	race, err := NewRace(validRaceAttrs())
	require.NoError(t, err)
	assert.True(t, CanFileReport(user(types.RoleNationalReferee), race).Allowed)
	assert.False(t, CanFileReport(user(types.RoleBroadcast), race).Allowed)
	cancelled, err := race.WithStatus(types.RaceCancelled, t0)
	require.NoError(t, err)
	assert.False(t, CanFileReport(user(types.RoleNationalReferee), cancelled).Allowed)

	assert.True(t, CanManageUsers(user(types.RoleRefereeManager)).Allowed)
	assert.False(t, CanManageUsers(user(types.RoleJuryPresident)).Allowed)
	assert.True(t, CanEditRace(user(types.RoleJuryPresident)).Allowed)
	assert.False(t, CanEditRace(user(types.RoleVAROperator)).Allowed)
}

func TestDeleteRules(t *testing.T) {
	inc, err := NewIncident(validIncidentAttrs())
	require.NoError(t, err)
	assert.True(t, CanDeleteIncident(inc, user(types.RoleRefereeManager)).Allowed)
	assert.False(t, CanDeleteIncident(inc, user(types.RoleInternationalReferee)).Allowed)
	official, err := inc.Officialize(7, t0)
	require.NoError(t, err)
	decided, err := official.Decide(DecisionInput{Decision: types.DecisionRejected, ActorID: 7, At: t0})
	require.NoError(t, err)
	assert.False(t, CanDeleteIncident(decided, user(types.RoleRefereeManager)).Allowed)

	rep, err := NewReport(ReportAttrs{
		ID: 3, UUID: "9a1c7c1e-2b3d-4e5f-8a9b-0c1d2e3f4a5b", RaceID: 1, UserID: 7,
		BibNumber: 12, Description: "Missed gate", CreatedAt: t0,
	})
	require.NoError(t, err)
	assert.True(t, CanDeleteReport(rep, user(types.RoleNationalReferee)).Allowed, "author")
	other := user(types.RoleNationalReferee).Attrs()
	other.ID = 8
	stranger, err := NewUser(other)
	require.NoError(t, err)
	assert.False(t, CanDeleteReport(rep, stranger).Allowed)

	linked := rep.Attrs()
	linked.IncidentID = 10
	rep, err = NewReport(linked)
	require.NoError(t, err)
	assert.False(t, CanDeleteReport(rep, user(types.RoleRefereeManager)).Allowed)
}

func TestMarshalHidesDigestAndZeroTimes(t *testing.T) {
	raw, err := json.Marshal(user(types.RoleJuryPresident))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.Contains(t, string(raw), `"role_name":"jury_president"`)

	inc, err := NewIncident(validIncidentAttrs())
	require.NoError(t, err)
	raw, err = json.Marshal(inc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "officialized_at")
	assert.Contains(t, string(raw), `"status":"unofficial"`)
}

func jsonFields(t reflect.Type) map[string]reflect.Type {
	out := map[string]reflect.Type{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			name = strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		}
		out[name] = f.Type
	}
	return out
}

func TestSummaryIsStrictSubsetOfFull(t *testing.T) {
	pairs := []struct {
		full, summary any
	}{
		{RoleAttrs{}, RoleSummaryAttrs{}},
		{UserAttrs{}, UserSummaryAttrs{}},
		{CompetitionAttrs{}, CompetitionSummaryAttrs{}},
		{RaceTypeAttrs{}, RaceTypeSummaryAttrs{}},
		{LocationTemplateAttrs{}, LocationTemplateSummaryAttrs{}},
		{RaceAttrs{}, RaceSummaryAttrs{}},
		{LocationAttrs{}, LocationSummaryAttrs{}},
		{AthleteAttrs{}, AthleteSummaryAttrs{}},
		{ParticipationAttrs{}, ParticipationSummaryAttrs{}},
		{ReportAttrs{}, ReportSummaryAttrs{}},
		{IncidentAttrs{}, IncidentSummaryAttrs{}},
	}
	for _, p := range pairs {
		full := jsonFields(reflect.TypeOf(p.full))
		summary := jsonFields(reflect.TypeOf(p.summary))
		name := reflect.TypeOf(p.summary).Name()
		for field, typ := range summary {
			fullType, ok := full[field]
			if assert.True(t, ok, "%s.%s missing from full record", name, field) {
				assert.Equal(t, fullType, typ, "%s.%s", name, field)
			}
		}
		assert.Less(t, len(summary), len(full), name)
	}
}

func TestConstructionErrorIsNotTransition(t *testing.T) {
	_, err := NewRaceType(RaceTypeAttrs{})
	assert.False(t, errors.Is(err, ErrInvalidTransition))
	var ce *ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Fields, 2)
}
