package domain

import (
	"fmt"

	"raceline/internal/types"
)

// Guard is the outcome of a business rule.
type Guard struct {
	Allowed bool
	Reason  string
}

// Err converts a refused guard into an error.
func (g Guard) Err() error {
	if g.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotAllowed, g.Reason)
}

func allow() Guard { return Guard{Allowed: true} }

func deny(format string, args ...any) Guard {
	return Guard{Reason: fmt.Sprintf(format, args...)}
}

var (
	officializingRoles = []types.RoleName{types.RoleJuryPresident, types.RoleInternationalReferee, types.RoleRefereeManager}
	decidingRoles      = []types.RoleName{types.RoleJuryPresident, types.RoleRefereeManager}
)

// CanOfficialize: the actor is jury president, international referee or
// referee manager, and the incident is still unofficial.
func CanOfficialize(incident Incident, actor User) Guard {
	if !actor.HasRole(officializingRoles...) {
		return deny("role %s may not officialize incidents", actor.RoleName())
	}
	if !incident.CanTransitionTo(types.IncidentOfficial) {
		return deny("incident %d is already %s", incident.ID(), incident.Status())
	}
	return allow()
}

// CanDecide: the actor is jury president or referee manager, the incident is
// official with a pending decision, and decision is not pending itself.
func CanDecide(incident Incident, actor User, decision types.Decision) Guard {
	if !actor.HasRole(decidingRoles...) {
		return deny("role %s may not decide incidents", actor.RoleName())
	}
	if !incident.IsOfficial() {
		return deny("incident %d must be official before a decision", incident.ID())
	}
	if !incident.IsPending() {
		return deny("incident %d is already decided (%s)", incident.ID(), incident.Decision())
	}
	if !decision.Resolved() {
		return deny("decision %q does not resolve the incident", decision)
	}
	return allow()
}

// CanFileReport: any referee may report on a race that was not cancelled.
func CanFileReport(actor User, race Race) Guard {
	if !actor.IsReferee() {
		return deny("role %s may not file reports", actor.RoleName())
	}
	if race.IsCancelled() {
		return deny("race %d is cancelled", race.ID())
	}
	return allow()
}

func CanEditRace(actor User) Guard {
	if !actor.HasRole(types.RoleRefereeManager, types.RoleJuryPresident) {
		return deny("role %s may not edit races", actor.RoleName())
	}
	return allow()
}

func CanManageUsers(actor User) Guard {
	if !actor.HasRole(types.RoleRefereeManager) {
		return deny("role %s may not manage users", actor.RoleName())
	}
	return allow()
}

// CanDeleteIncident: jury president or referee manager, and only while the
// decision is pending.
func CanDeleteIncident(incident Incident, actor User) Guard {
	if !actor.HasRole(decidingRoles...) {
		return deny("role %s may not delete incidents", actor.RoleName())
	}
	if !incident.IsPending() {
		return deny("incident %d is decided (%s)", incident.ID(), incident.Decision())
	}
	return allow()
}

// CanDeleteReport: the author or a referee manager, while the report is not
// attached to an incident.
func CanDeleteReport(report Report, actor User) Guard {
	if report.UserID() != actor.ID() && !actor.HasRole(types.RoleRefereeManager) {
		return deny("user %d may not delete report %d", actor.ID(), report.ID())
	}
	if report.IsLinked() {
		return deny("report %d is attached to incident %d", report.ID(), report.IncidentID())
	}
	return allow()
}
