package contract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raceline/internal/domain"
	"raceline/internal/types"
)

type fakeLookup struct {
	rows map[Reference]map[int64]bool
	err  error
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{rows: map[Reference]map[int64]bool{}}
}

func (f *fakeLookup) with(ref Reference, ids ...int64) *fakeLookup {
	if f.rows[ref] == nil {
		f.rows[ref] = map[int64]bool{}
	}
	for _, id := range ids {
		f.rows[ref][id] = true
	}
	return f
}

func (f *fakeLookup) Exists(_ context.Context, ref Reference, id int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.rows[ref][id], nil
}

func raceLookup() *fakeLookup {
	return newFakeLookup().with(RefCompetition, 1).with(RefRaceType, 3).with(RefRace, 1)
}

func TestCreateRaceValid(t *testing.T) {
	res := CreateRace(raceLookup()).Call(context.Background(), Attributes{
		"name":            "Sprint Final",
		"stage_type":      "Final",
		"heat_number":     nil,
		"competition_id":  1,
		"race_type_id":    "3",
		"gender_category": "W",
	})
	require.True(t, res.Valid(), "%v", res.Errors())
	assert.Equal(t, types.StageFinal, res.Values["stage_type"])
	assert.Equal(t, int64(3), res.Values["race_type_id"])
	assert.False(t, res.Values.Has("heat_number"))

	var in struct {
		CompetitionID  int64                `mapstructure:"competition_id"`
		RaceTypeID     int64                `mapstructure:"race_type_id"`
		Name           string               `mapstructure:"name"`
		StageType      types.StageType      `mapstructure:"stage_type"`
		HeatNumber     int                  `mapstructure:"heat_number"`
		GenderCategory types.GenderCategory `mapstructure:"gender_category"`
	}
	require.NoError(t, res.Decode(&in))
	assert.Equal(t, "Sprint Final", in.Name)
	assert.Equal(t, types.CategoryWomen, in.GenderCategory)
	assert.Equal(t, 0, in.HeatNumber)
}

func TestCreateRaceInvalidStage(t *testing.T) {
	res := CreateRace(raceLookup()).Call(context.Background(), Attributes{
		"name":            "Sprint Final",
		"stage_type":      "NotAStage",
		"competition_id":  1,
		"race_type_id":    3,
		"gender_category": "W",
	})
	require.False(t, res.Valid())
	errs := res.Errors()
	assert.Contains(t, errs, "stage_type")
	assert.Len(t, errs, 1)
	assert.Nil(t, res.Values)

	var verr *ValidationError
	require.ErrorAs(t, res.Err(), &verr)
	assert.True(t, verr.HasKind(FieldValidation))
	assert.Error(t, res.Decode(&struct{}{}))
}

func TestValidationAggregatesIndependentErrors(t *testing.T) {
	res := CreateCompetition(nil).Call(context.Background(), Attributes{
		"name":       "",
		"place":      "Val Martello",
		"country":    "XYZ",
		"start_date": "someday",
		"end_date":   "2025-02-16",
	})
	errs := res.Errors()
	assert.Len(t, errs, 3)
	assert.Equal(t, []string{"must be filled"}, errs["name"])
	assert.Contains(t, errs, "country")
	assert.Contains(t, errs, "start_date")
}

func TestCrossFieldRulesRunOnlyOnValidFields(t *testing.T) {
	c := CreateCompetition(nil)
	res := c.Call(context.Background(), Attributes{
		"name": "World Cup", "place": "Val Martello", "country": "ITA",
		"start_date": "2025-02-16", "end_date": "2025-02-14",
	})
	require.False(t, res.Valid())
	require.Len(t, res.Violations, 1)
	assert.Equal(t, CrossFieldRule, res.Violations[0].Kind)
	assert.Equal(t, "end_date", res.Violations[0].Field)

	res = c.Call(context.Background(), Attributes{
		"name": "World Cup", "place": "Val Martello", "country": "ITA",
		"start_date": "bad", "end_date": "2025-02-14",
	})
	require.Len(t, res.Violations, 1)
	assert.Equal(t, FieldValidation, res.Violations[0].Kind)
}

func TestReferencesUseLookup(t *testing.T) {
	res := CreateRace(newFakeLookup()).Call(context.Background(), Attributes{
		"name": "Individual", "stage_type": "Final", "competition_id": 1,
		"race_type_id": 3, "gender_category": "M",
	})
	require.False(t, res.Valid())
	assert.Equal(t, ReferentialIntegrity, res.Violations[0].Kind)
	assert.Contains(t, res.Errors(), "competition_id")
	assert.Contains(t, res.Errors(), "race_type_id")

	broken := raceLookup()
	broken.err = errors.New("connection reset")
	res = CreateRace(broken).Call(context.Background(), Attributes{
		"name": "Individual", "stage_type": "Final", "competition_id": 1,
		"race_type_id": 3, "gender_category": "M",
	})
	require.False(t, res.Valid())
	assert.Contains(t, res.Errors()["competition_id"][0], "cannot be verified")
}

func TestHeatStageNeedsHeatNumber(t *testing.T) {
	res := CreateRace(raceLookup()).Call(context.Background(), Attributes{
		"name": "Sprint Heat", "stage_type": "Heat", "competition_id": 1,
		"race_type_id": 3, "gender_category": "M",
	})
	assert.Contains(t, res.Errors(), "heat_number")
}

func TestImportAthletesFlagsDuplicateBibs(t *testing.T) {
	res := ImportAthletes(raceLookup()).Call(context.Background(), Attributes{
		"race_id": 1,
		"athletes": []any{
			map[string]any{"bib_number": 1, "first_name": "Axelle", "last_name": "Gachet", "gender": "W", "country": "FRA"},
			map[string]any{"bib_number": "1", "first_name": "Emily", "last_name": "Harrop", "gender": "W", "country": "FRA"},
		},
	})
	require.False(t, res.Valid())
	dups := DuplicateRows(res)
	require.Len(t, dups, 1)
	assert.Contains(t, dups[1][0], "bib number 1")

	row := ImportAthleteRow().Call(context.Background(), Attributes{
		"bib_number": "42", "first_name": "Robert", "last_name": "Antonioli", "gender": "m", "country": "ita",
	})
	require.True(t, row.Valid(), "%v", row.Errors())
	assert.Equal(t, types.BibNumber(42), row.Values["bib_number"])
	assert.Equal(t, types.GenderMen, row.Values["gender"])
	assert.Equal(t, types.CountryCode("ITA"), row.Values["country"])
}

func TestReorderLocationsPositions(t *testing.T) {
	c := ReorderLocations(raceLookup())
	res := c.Call(context.Background(), Attributes{
		"race_id":   1,
		"positions": map[string]any{"11": 0, "12": 1, "13": 2},
	})
	require.True(t, res.Valid(), "%v", res.Errors())
	assert.Equal(t, map[int64]int{11: 0, 12: 1, 13: 2}, res.Values["positions"])

	res = c.Call(context.Background(), Attributes{
		"race_id":   1,
		"positions": map[int64]int{11: 0, 12: 0},
	})
	assert.Contains(t, res.Errors(), "positions")
}

func TestCreateUserPasswordConfirmation(t *testing.T) {
	c := CreateUser(newFakeLookup().with(RefRole, 4))
	res := c.Call(context.Background(), Attributes{
		"name": "Jury", "email": "Jury@ISMF.org", "role_id": 4,
		"password": "correct horse", "password_confirmation": "correct hose",
	})
	assert.Contains(t, res.Errors(), "password_confirmation")

	res = c.Call(context.Background(), Attributes{
		"name": "Jury", "email": "Jury@ISMF.org", "role_id": 4, "password": "short",
	})
	assert.Contains(t, res.Errors(), "password")
}

func incident(t *testing.T, status types.IncidentStatus) domain.Incident {
	t.Helper()
	at := time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)
	a := domain.IncidentAttrs{
		ID: 5, UUID: "3f2504e0-4f89-41d3-9a0c-0305e82c3301", RaceID: 1,
		Status: status, Decision: types.DecisionPending, Description: "Missed gate",
		CreatedAt: at, UpdatedAt: at,
	}
	if status == types.IncidentOfficial {
		a.OfficializedByUserID = 2
		a.OfficializedAt = at.Add(time.Hour)
	}
	inc, err := domain.NewIncident(a)
	require.NoError(t, err)
	return inc
}

func incidentLookup() *fakeLookup {
	return newFakeLookup().with(RefIncident, 5).with(RefUser, 2)
}

func TestUpdateIncidentForbidsUnofficialAgain(t *testing.T) {
	c := UpdateIncident(incidentLookup(), incident(t, types.IncidentOfficial))
	res := c.Call(context.Background(), Attributes{"id": 5, "status": "unofficial"})
	require.False(t, res.Valid())
	assert.Equal(t, CrossFieldRule, res.Violations[0].Kind)
	assert.Contains(t, res.Errors(), "status")
}

func TestUpdateIncidentDecisionNeedsOfficialStatus(t *testing.T) {
	c := UpdateIncident(incidentLookup(), incident(t, types.IncidentUnofficial))
	res := c.Call(context.Background(), Attributes{"id": 5, "decision": "approved", "decided_by_user_id": 2})
	assert.Equal(t, []string{"may only leave pending once the incident is official"}, res.Errors()["decision"])

	res = c.Call(context.Background(), Attributes{
		"id": 5, "status": "official", "decision": "approved", "decided_by_user_id": 2,
	})
	assert.True(t, res.Valid(), "%v", res.Errors())
}

func TestUpdateIncidentDecisionFields(t *testing.T) {
	c := UpdateIncident(incidentLookup(), incident(t, types.IncidentOfficial))
	res := c.Call(context.Background(), Attributes{"id": 5, "decision": "rejected"})
	assert.Contains(t, res.Errors(), "decided_by_user_id")

	res = c.Call(context.Background(), Attributes{
		"id": 5, "decision": "rejected", "decided_by_user_id": 2, "decided_at": "2025-02-14T09:30:00Z",
	})
	assert.Equal(t, []string{"must not precede officialized_at"}, res.Errors()["decided_at"])
}

func TestUpdateIncidentStampsFollowTheirAxis(t *testing.T) {
	c := UpdateIncident(incidentLookup(), incident(t, types.IncidentUnofficial))
	res := c.Call(context.Background(), Attributes{
		"id": 5, "officialized_at": "2025-02-14T10:00:00Z",
		"decided_by_user_id": 2, "decided_at": "2025-02-14T11:00:00Z",
	})
	require.False(t, res.Valid())
	errs := res.Errors()
	assert.Equal(t, []string{"may only be set on an official incident"}, errs["officialized_at"])
	assert.Equal(t, []string{"may only be set once the incident is decided"}, errs["decided_by_user_id"])
	assert.Equal(t, []string{"may only be set once the incident is decided"}, errs["decided_at"])

	res = c.Call(context.Background(), Attributes{"id": 5, "status": "official", "officialized_at": "2025-02-14T10:00:00Z"})
	assert.True(t, res.Valid(), "%v", res.Errors())

	official := UpdateIncident(incidentLookup(), incident(t, types.IncidentOfficial))
	res = official.Call(context.Background(), Attributes{"id": 5, "officialized_at": "2025-02-14T10:30:00Z"})
	assert.True(t, res.Valid(), "correcting the stamp of an official incident: %v", res.Errors())
	res = official.Call(context.Background(), Attributes{"id": 5, "decided_at": "2025-02-14T11:00:00Z"})
	assert.Contains(t, res.Errors(), "decided_at")
}

func TestDecideIncident(t *testing.T) {
	c := DecideIncident(incidentLookup())
	res := c.Call(context.Background(), Attributes{"id": 5, "decision": "pending"})
	assert.Contains(t, res.Errors(), "decision")

	res = c.Call(context.Background(), Attributes{"id": 5, "decision": "no_action"})
	require.True(t, res.Valid())
	assert.Equal(t, 0, res.Values["penalty_seconds"])
}
