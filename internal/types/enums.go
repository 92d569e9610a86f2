package types

import (
	"slices"
	"strings"
)

// enum is a closed, named value set.
type enum[T ~string] struct {
	name   string
	values []T
	fold   bool
}

func (e enum[T]) contains(v T) bool {
	return slices.Contains(e.values, v)
}

func (e enum[T]) parse(v any) (T, error) {
	var zero T
	var s string
	switch t := v.(type) {
	case T:
		s = string(t)
	default:
		str, ok := asString(v)
		if !ok {
			return zero, newError(NotInEnum, v, "must be one of %s", e.list())
		}
		s = str
	}
	s = strings.TrimSpace(s)
	if e.fold {
		for _, candidate := range e.values {
			if strings.EqualFold(string(candidate), s) {
				return candidate, nil
			}
		}
	} else if e.contains(T(s)) {
		return T(s), nil
	}
	return zero, newError(NotInEnum, v, "must be one of %s", e.list())
}

func (e enum[T]) list() string {
	parts := make([]string, len(e.values))
	for i, v := range e.values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// RoleName is the closed set of user roles.
type RoleName string

const (
	RoleVAROperator          RoleName = "var_operator"
	RoleNationalReferee      RoleName = "national_referee"
	RoleInternationalReferee RoleName = "international_referee"
	RoleJuryPresident        RoleName = "jury_president"
	RoleRefereeManager       RoleName = "referee_manager"
	RoleBroadcast            RoleName = "broadcast"
)

var roleNames = enum[RoleName]{name: "role", values: []RoleName{
	RoleVAROperator, RoleNationalReferee, RoleInternationalReferee,
	RoleJuryPresident, RoleRefereeManager, RoleBroadcast,
}}

func ParseRoleName(v any) (RoleName, error) { return roleNames.parse(v) }
func (r RoleName) Valid() bool              { return roleNames.contains(r) }
func RoleNames() []RoleName                 { return slices.Clone(roleNames.values) }

// IncidentStatus is the status axis of an incident.
type IncidentStatus string

const (
	IncidentUnofficial IncidentStatus = "unofficial"
	IncidentOfficial   IncidentStatus = "official"
)

var incidentStatuses = enum[IncidentStatus]{name: "incident status", values: []IncidentStatus{
	IncidentUnofficial, IncidentOfficial,
}}

func ParseIncidentStatus(v any) (IncidentStatus, error) { return incidentStatuses.parse(v) }
func (s IncidentStatus) Valid() bool                    { return incidentStatuses.contains(s) }

// Decision is the decision axis of an incident, independent of its status.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionNoAction Decision = "no_action"
)

var decisions = enum[Decision]{name: "decision", values: []Decision{
	DecisionPending, DecisionApproved, DecisionRejected, DecisionNoAction,
}}

func ParseDecision(v any) (Decision, error) { return decisions.parse(v) }
func (d Decision) Valid() bool              { return decisions.contains(d) }
func (d Decision) Resolved() bool           { return d.Valid() && d != DecisionPending }

// RaceStatus is the lifecycle of a race.
type RaceStatus string

const (
	RaceScheduled  RaceStatus = "scheduled"
	RaceInProgress RaceStatus = "in_progress"
	RaceCompleted  RaceStatus = "completed"
	RaceCancelled  RaceStatus = "cancelled"
)

var raceStatuses = enum[RaceStatus]{name: "race status", values: []RaceStatus{
	RaceScheduled, RaceInProgress, RaceCompleted, RaceCancelled,
}}

func ParseRaceStatus(v any) (RaceStatus, error) { return raceStatuses.parse(v) }
func (s RaceStatus) Valid() bool                { return raceStatuses.contains(s) }

// StageType is the stage of a race within its race type.
type StageType string

const (
	StageQualification StageType = "Qualification"
	StageHeat          StageType = "Heat"
	StageQuarterfinal  StageType = "Quarterfinal"
	StageSemifinal     StageType = "Semifinal"
	StageFinal         StageType = "Final"
)

var stageTypes = enum[StageType]{name: "stage type", values: []StageType{
	StageQualification, StageHeat, StageQuarterfinal, StageSemifinal, StageFinal,
}}

func ParseStageType(v any) (StageType, error) { return stageTypes.parse(v) }
func (s StageType) Valid() bool               { return stageTypes.contains(s) }

// Gender of an athlete.
type Gender string

const (
	GenderMen   Gender = "M"
	GenderWomen Gender = "W"
)

var genders = enum[Gender]{name: "gender", fold: true, values: []Gender{GenderMen, GenderWomen}}

func ParseGender(v any) (Gender, error) { return genders.parse(v) }
func (g Gender) Valid() bool            { return genders.contains(g) }

// GenderCategory of a race; X is mixed.
type GenderCategory string

const (
	CategoryMen   GenderCategory = "M"
	CategoryWomen GenderCategory = "W"
	CategoryMixed GenderCategory = "X"
)

var genderCategories = enum[GenderCategory]{name: "gender category", fold: true, values: []GenderCategory{
	CategoryMen, CategoryWomen, CategoryMixed,
}}

func ParseGenderCategory(v any) (GenderCategory, error) { return genderCategories.parse(v) }
func (g GenderCategory) Valid() bool                    { return genderCategories.contains(g) }

// Admits reports whether an athlete of gender g may start in category c.
func (c GenderCategory) Admits(g Gender) bool {
	return c == CategoryMixed || string(c) == string(g)
}

// CourseSegment classifies a location on the course.
type CourseSegment string

const (
	SegmentStart      CourseSegment = "start"
	SegmentUphill     CourseSegment = "uphill"
	SegmentBootpack   CourseSegment = "bootpack"
	SegmentTransition CourseSegment = "transition"
	SegmentDownhill   CourseSegment = "downhill"
	SegmentFinish     CourseSegment = "finish"
)

var courseSegments = enum[CourseSegment]{name: "course segment", values: []CourseSegment{
	SegmentStart, SegmentUphill, SegmentBootpack, SegmentTransition, SegmentDownhill, SegmentFinish,
}}

func ParseCourseSegment(v any) (CourseSegment, error) { return courseSegments.parse(v) }
func (s CourseSegment) Valid() bool                   { return courseSegments.contains(s) }
