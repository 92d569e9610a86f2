package contract

import (
	"fmt"
	"sort"
	"time"

	"raceline/internal/domain"
	"raceline/internal/types"
)

const (
	maxName        = domain.MaxName
	maxPersonName  = domain.MaxShortName
	maxText        = domain.MaxText
	maxURL         = domain.MaxURL
	maxLicense     = domain.MaxLicense
	minPassword    = domain.MinPassword
	maxHeatNumber  = domain.MaxHeatNumber
	maxPenaltySecs = domain.MaxPenalty
)

var (
	country        = Enum(types.ParseCountryCode)
	stageType      = Enum(types.ParseStageType)
	genderCategory = Enum(types.ParseGenderCategory)
	gender         = Enum(types.ParseGender)
	courseSegment  = Enum(types.ParseCourseSegment)
	raceStatus     = Enum(types.ParseRaceStatus)
	incidentStatus = Enum(types.ParseIncidentStatus)
	decision       = Enum(types.ParseDecision)
)

func violation(field, format string, args ...any) Violation {
	return Violation{Field: field, Kind: CrossFieldRule, Message: fmt.Sprintf(format, args...)}
}

func timeValue(v Values, field string, fallback time.Time) time.Time {
	if t, ok := v[field].(time.Time); ok {
		return t
	}
	return fallback
}

func datesInOrder(start, end time.Time) []Violation {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return []Violation{violation("end_date", "must not precede start_date")}
	}
	return nil
}

func competitionFields(required bool) []Field {
	field := Optional
	if required {
		field = Required
	}
	return []Field{
		field("name", String, MaxLen(maxName)),
		field("place", String, MaxLen(maxName)),
		field("country", country),
		field("start_date", Date),
		field("end_date", Date),
		Optional("description", String, MaxLen(maxText)),
		Optional("webpage_url", String, MaxLen(maxURL), WebURL()),
	}
}

func CreateCompetition(lookup Lookup) Contract {
	return Contract{
		Name:   "create_competition",
		Lookup: lookup,
		Fields: competitionFields(true),
		Rules: []Rule{{
			Name:  "dates_in_order",
			Needs: []string{"start_date", "end_date"},
			Check: func(v Values) []Violation {
				return datesInOrder(timeValue(v, "start_date", time.Time{}), timeValue(v, "end_date", time.Time{}))
			},
		}},
	}
}

// UpdateCompetition is built against the stored record so a partial update is
// checked against the dates it leaves in place.
func UpdateCompetition(lookup Lookup, current domain.Competition) Contract {
	fields := append([]Field{Required("id", ID).References(RefCompetition)}, competitionFields(false)...)
	return Contract{
		Name:   "update_competition",
		Lookup: lookup,
		Fields: fields,
		Rules: []Rule{{
			Name:  "dates_in_order",
			Needs: []string{"start_date", "end_date"},
			Check: func(v Values) []Violation {
				return datesInOrder(timeValue(v, "start_date", current.StartDate()), timeValue(v, "end_date", current.EndDate()))
			},
		}},
	}
}

func heatNumberRule(current types.StageType, currentHeat int) Rule {
	return Rule{
		Name:  "heat_number_for_heats",
		Needs: []string{"stage_type", "heat_number"},
		Check: func(v Values) []Violation {
			stage := current
			if s, ok := v["stage_type"].(types.StageType); ok {
				stage = s
			}
			heat := currentHeat
			if h, ok := v["heat_number"].(int); ok {
				heat = h
			}
			if stage == types.StageHeat && heat == 0 {
				return []Violation{violation("heat_number", "must be filled for %s stages", types.StageHeat)}
			}
			return nil
		},
	}
}

func CreateRace(lookup Lookup) Contract {
	return Contract{
		Name:   "create_race",
		Lookup: lookup,
		Fields: []Field{
			Required("competition_id", ID).References(RefCompetition),
			Required("race_type_id", ID).References(RefRaceType),
			Required("name", String, MaxLen(maxName)),
			Required("stage_type", stageType),
			Optional("heat_number", Int, Between(1, maxHeatNumber)),
			Required("gender_category", genderCategory),
			Optional("scheduled_at", DateTime),
		},
		Rules: []Rule{heatNumberRule("", 0)},
	}
}

// UpdateRace is built against the stored race: a status change must follow
// the race lifecycle.
func UpdateRace(lookup Lookup, current domain.Race) Contract {
	return Contract{
		Name:   "update_race",
		Lookup: lookup,
		Fields: []Field{
			Required("id", ID).References(RefRace),
			Optional("name", String, MaxLen(maxName)),
			Optional("stage_type", stageType),
			Optional("heat_number", Int, Between(1, maxHeatNumber)),
			Optional("gender_category", genderCategory),
			Optional("status", raceStatus),
			Optional("scheduled_at", DateTime),
		},
		Rules: []Rule{
			heatNumberRule(current.StageType(), current.HeatNumber()),
			{
				Name:  "race_status_transition",
				Needs: []string{"status"},
				Check: func(v Values) []Violation {
					next, ok := v["status"].(types.RaceStatus)
					if !ok || next == current.Status() {
						return nil
					}
					if !current.CanTransitionTo(next) {
						return []Violation{violation("status", "cannot move from %s to %s", current.Status(), next)}
					}
					return nil
				},
			},
		},
	}
}

func CreateLocation(lookup Lookup) Contract {
	return Contract{
		Name:   "create_location",
		Lookup: lookup,
		Fields: []Field{
			Required("race_id", ID).References(RefRace),
			Required("name", String, MaxLen(maxName)),
			Required("course_segment", courseSegment),
			Optional("display_order", Int, NonNegative()),
			Optional("description", String, MaxLen(maxText)),
		},
	}
}

// ReorderLocations takes positions as location id -> display order. Ownership
// of each location is enforced by the repository write.
func ReorderLocations(lookup Lookup) Contract {
	return Contract{
		Name:   "reorder_locations",
		Lookup: lookup,
		Fields: []Field{
			Required("race_id", ID).References(RefRace),
			Required("positions", Positions, MinItems(1)),
		},
		Rules: []Rule{{
			Name:  "positions_distinct",
			Needs: []string{"positions"},
			Check: func(v Values) []Violation {
				positions, _ := v["positions"].(map[int64]int)
				seen := map[int]int64{}
				var out []Violation
				for _, id := range sortedIDs(positions) {
					pos := positions[id]
					if pos < 0 {
						out = append(out, violation("positions", "position of location %d must not be negative", id))
						continue
					}
					if other, dup := seen[pos]; dup {
						out = append(out, violation("positions", "locations %d and %d share position %d", other, id, pos))
						continue
					}
					seen[pos] = id
				}
				return out
			},
		}},
	}
}

func sortedIDs(m map[int64]int) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func athleteFields() []Field {
	return []Field{
		Required("first_name", String, MaxLen(maxPersonName)),
		Required("last_name", String, MaxLen(maxPersonName)),
		Required("gender", gender),
		Required("country", country),
		Optional("license_number", String, MaxLen(maxLicense)),
	}
}

func CreateAthlete(lookup Lookup) Contract {
	return Contract{Name: "create_athlete", Lookup: lookup, Fields: athleteFields()}
}

// ImportAthleteRow validates one row of a bulk import.
func ImportAthleteRow() Contract {
	return Contract{
		Name:   "import_athlete_row",
		Fields: append([]Field{Required("bib_number", Bib)}, athleteFields()...),
	}
}

// RowField names a field of row i of a bulk import.
func RowField(i int, field string) string {
	return fmt.Sprintf("athletes.%d.%s", i, field)
}

// ImportAthletes checks the envelope of a bulk import and flags rows whose bib
// number repeats an earlier row. Rows are validated one by one by the caller
// with ImportAthleteRow, so one bad row never rejects the others.
func ImportAthletes(lookup Lookup) Contract {
	return Contract{
		Name:   "import_athletes",
		Lookup: lookup,
		Fields: []Field{
			Required("race_id", ID).References(RefRace),
			Required("athletes", Rows, MinItems(1)),
		},
		Rules: []Rule{{
			Name:  "unique_bib_numbers",
			Needs: []string{"athletes"},
			Check: func(v Values) []Violation {
				rows, _ := v["athletes"].([]Attributes)
				first := map[types.BibNumber]int{}
				var out []Violation
				for i, row := range rows {
					bib, err := types.ParseBibNumber(row["bib_number"])
					if err != nil {
						continue
					}
					if j, dup := first[bib]; dup {
						out = append(out, violation(RowField(i, "bib_number"), "bib number %d is already used by row %d", bib, j+1))
						continue
					}
					first[bib] = i
				}
				return out
			},
		}},
	}
}

// DuplicateRows returns the row indexes flagged by the unique bib rule.
func DuplicateRows(res Result) map[int][]string {
	out := map[int][]string{}
	for _, viol := range res.Violations {
		var i int
		var field string
		if n, _ := fmt.Sscanf(viol.Field, "athletes.%d.%s", &i, &field); n == 2 {
			out[i] = append(out[i], viol.Message)
		}
	}
	return out
}

func CreateUser(lookup Lookup) Contract {
	return Contract{
		Name:   "create_user",
		Lookup: lookup,
		Fields: []Field{
			Required("name", String, MaxLen(maxName)),
			Required("email", Email),
			Required("role_id", ID).References(RefRole),
			Required("password", String, MinLen(minPassword), MaxBytes(domain.MaxPasswordBytes)),
			Optional("password_confirmation", String),
		},
		Rules: []Rule{{
			Name:  "password_confirmed",
			Needs: []string{"password", "password_confirmation"},
			Check: func(v Values) []Violation {
				confirm, ok := v["password_confirmation"].(string)
				if ok && confirm != v["password"] {
					return []Violation{violation("password_confirmation", "does not match password")}
				}
				return nil
			},
		}},
	}
}

func AuthenticateUser() Contract {
	return Contract{
		Name: "authenticate_user",
		Fields: []Field{
			Required("email", Email),
			Required("password", String, MaxBytes(domain.MaxPasswordBytes)),
		},
	}
}

func CreateReport(lookup Lookup) Contract {
	return Contract{
		Name:   "create_report",
		Lookup: lookup,
		Fields: []Field{
			Required("race_id", ID).References(RefRace),
			Required("user_id", ID).References(RefUser),
			Optional("race_location_id", ID).References(RefLocation),
			Optional("incident_id", ID).References(RefIncident),
			Required("bib_number", Bib),
			Required("description", String, MaxLen(maxText)),
			Optional("video_url", String, MaxLen(maxURL), WebURL()),
		},
	}
}

func CreateIncident(lookup Lookup) Contract {
	return Contract{
		Name:   "create_incident",
		Lookup: lookup,
		Fields: []Field{
			Required("race_id", ID).References(RefRace),
			Optional("race_location_id", ID).References(RefLocation),
			Required("description", String, MaxLen(maxText)),
			Optional("report_ids", IDList).References(RefReport),
		},
	}
}

// UpdateIncident is built against the stored incident. The status axis only
// moves forward and the decision leaves pending only on an official incident.
// Officialisation and decision stamps follow their axis: they are accepted only
// when the incident is, or becomes in the same update, official or decided.
func UpdateIncident(lookup Lookup, current domain.Incident) Contract {
	return Contract{
		Name:   "update_incident",
		Lookup: lookup,
		Fields: []Field{
			Required("id", ID).References(RefIncident),
			Optional("race_location_id", ID).References(RefLocation),
			Optional("description", String, MaxLen(maxText)),
			Optional("status", incidentStatus),
			Optional("decision", decision),
			Optional("decision_notes", String, MaxLen(maxText)),
			Optional("penalty_seconds", Int, Between(0, maxPenaltySecs)),
			Optional("officialized_at", DateTime),
			Optional("decided_by_user_id", ID).References(RefUser),
			Optional("decided_at", DateTime),
		},
		Rules: []Rule{
			{
				Name:  "status_forward_only",
				Needs: []string{"status"},
				Check: func(v Values) []Violation {
					next, ok := v["status"].(types.IncidentStatus)
					if !ok || next == current.Status() || current.CanTransitionTo(next) {
						return nil
					}
					return []Violation{violation("status", "cannot move from %s back to %s", current.Status(), next)}
				},
			},
			{
				Name:  "decision_after_official",
				Needs: []string{"status", "decision"},
				Check: func(v Values) []Violation {
					next, ok := v["decision"].(types.Decision)
					if !ok || next == current.Decision() {
						return nil
					}
					status := current.Status()
					if s, ok := v["status"].(types.IncidentStatus); ok {
						status = s
					}
					if next.Resolved() && status != types.IncidentOfficial {
						return []Violation{violation("decision", "may only leave pending once the incident is official")}
					}
					if err := domain.CheckDecision(current.Decision(), next); err != nil {
						return []Violation{violation("decision", "cannot change from %s to %s", current.Decision(), next)}
					}
					return nil
				},
			},
			{
				Name:  "decided_by_present",
				Needs: []string{"decision", "decided_by_user_id"},
				Check: func(v Values) []Violation {
					d := current.Decision()
					if next, ok := v["decision"].(types.Decision); ok {
						d = next
					}
					if !d.Resolved() || v.Has("decided_by_user_id") || current.DecidedByUserID() > 0 {
						return nil
					}
					return []Violation{violation("decided_by_user_id", "must be filled once decision is %s", d)}
				},
			},
			{
				Name:  "officialized_at_needs_official",
				Needs: []string{"status", "officialized_at"},
				Check: func(v Values) []Violation {
					status := current.Status()
					if s, ok := v["status"].(types.IncidentStatus); ok {
						status = s
					}
					if v.Has("officialized_at") && status != types.IncidentOfficial {
						return []Violation{violation("officialized_at", "may only be set on an official incident")}
					}
					return nil
				},
			},
			{
				Name:  "decided_fields_need_decision",
				Needs: []string{"decision", "decided_by_user_id", "decided_at"},
				Check: func(v Values) []Violation {
					d := current.Decision()
					if next, ok := v["decision"].(types.Decision); ok {
						d = next
					}
					if d.Resolved() {
						return nil
					}
					var out []Violation
					for _, name := range []string{"decided_by_user_id", "decided_at"} {
						if v.Has(name) {
							out = append(out, violation(name, "may only be set once the incident is decided"))
						}
					}
					return out
				},
			},
			{
				Name:  "decided_after_officialized",
				Needs: []string{"officialized_at", "decided_at"},
				Check: func(v Values) []Violation {
					officialized := timeValue(v, "officialized_at", current.OfficializedAt())
					decided := timeValue(v, "decided_at", current.DecidedAt())
					if !officialized.IsZero() && !decided.IsZero() && decided.Before(officialized) {
						return []Violation{violation("decided_at", "must not precede officialized_at")}
					}
					return nil
				},
			},
		},
	}
}

// DecideIncident records a decision on an official incident.
func DecideIncident(lookup Lookup) Contract {
	return Contract{
		Name:   "decide_incident",
		Lookup: lookup,
		Fields: []Field{
			Required("id", ID).References(RefIncident),
			Required("decision", decision),
			Optional("decision_notes", String, MaxLen(maxText)),
			Optional("penalty_seconds", Int, Between(0, maxPenaltySecs)).WithDefault(0),
		},
		Rules: []Rule{{
			Name:  "decision_resolves",
			Needs: []string{"decision"},
			Check: func(v Values) []Violation {
				if d, ok := v["decision"].(types.Decision); ok && !d.Resolved() {
					return []Violation{violation("decision", "must resolve the incident")}
				}
				return nil
			},
		}},
	}
}
