package engine

import (
	"context"
	"errors"

	"raceline/internal/contract"
	"raceline/internal/domain"
	"raceline/internal/events"
	"raceline/internal/repo"
	"raceline/internal/types"
)

type newIncident struct {
	repo.IncidentInput `mapstructure:",squash"`
	ReportIDs          []int64 `mapstructure:"report_ids"`
}

type decision struct {
	ID             int64          `mapstructure:"id"`
	Decision       types.Decision `mapstructure:"decision"`
	Notes          string         `mapstructure:"decision_notes"`
	PenaltySeconds int            `mapstructure:"penalty_seconds"`
}

// CreateReport files a report by its author, the user_id of attrs. Location
// and incident, when given, must belong to the same race.
func (e Engine) CreateReport(ctx context.Context, attrs contract.Attributes) (domain.Report, error) {
	var in repo.ReportInput
	if _, err := e.validate(ctx, contract.CreateReport(e.Repos.Lookup), attrs, &in); err != nil {
		return domain.Report{}, err
	}
	var out domain.Report
	err := e.write(ctx, "report.create", func(s *scope) error {
		actor, err := s.actor(in.UserID)
		if err != nil {
			return err
		}
		race, err := s.repos.Races.MustFind(ctx, in.RaceID)
		if err != nil {
			return err
		}
		if err := domain.CanFileReport(actor, race).Err(); err != nil {
			return err
		}
		if err := s.sameRace("create_report", race.ID(), in.RaceLocationID, in.IncidentID); err != nil {
			return err
		}
		r, err := s.repos.Reports.Create(ctx, in)
		if err != nil {
			return err
		}
		out = r
		return s.record(events.ReportCreated, "report", r.ID(), actor.ID(), r, events.EventPayload{
			"race_id": r.RaceID(), "bib_number": r.BibNumber(), "incident_id": r.IncidentID(),
		})
	})
	return out, err
}

// CreateIncident opens an unofficial, pending incident and attaches the
// listed reports to it. A report from another race fails the whole write.
func (e Engine) CreateIncident(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Incident, error) {
	var in newIncident
	if _, err := e.validate(ctx, contract.CreateIncident(e.Repos.Lookup), attrs, &in); err != nil {
		return domain.Incident{}, err
	}
	var out domain.Incident
	err := e.write(ctx, "incident.create", func(s *scope) error {
		if err := s.sameRace("create_incident", in.RaceID, in.RaceLocationID, 0); err != nil {
			return err
		}
		inc, err := s.repos.Incidents.Create(ctx, in.IncidentInput)
		if err != nil {
			return err
		}
		if err := s.repos.Reports.Link(ctx, in.RaceID, inc.ID(), in.ReportIDs); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return invalid("create_incident", "report_ids", contract.ReferentialIntegrity, "%s", err.Error())
			}
			return err
		}
		out = inc
		return s.record(events.IncidentCreated, "incident", inc.ID(), actorID, inc, events.EventPayload{
			"race_id": inc.RaceID(), "report_ids": in.ReportIDs,
		})
	})
	return out, err
}

// UpdateIncident applies a partial update. Moving the status or the decision
// goes through the same guards as OfficializeIncident and DecideIncident, and
// the acting user is recorded when attrs do not name one.
func (e Engine) UpdateIncident(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Incident, error) {
	id, err := currentID("update_incident", attrs)
	if err != nil {
		return domain.Incident{}, err
	}
	current, ok, err := e.Repos.Incidents.Find(ctx, id)
	if err != nil {
		return domain.Incident{}, err
	}
	if !ok {
		return domain.Incident{}, invalid("update_incident", "id", contract.ReferentialIntegrity, "incident %d does not exist", id)
	}
	var in repo.IncidentUpdate
	values, err := e.validate(ctx, contract.UpdateIncident(e.Repos.Lookup, current), attrs, &in)
	if err != nil {
		return domain.Incident{}, err
	}
	statusChange := in.Status != nil && *in.Status != current.Status()
	decisionChange := in.Decision != nil && *in.Decision != current.Decision()
	var out domain.Incident
	err = e.write(ctx, "incident.update", func(s *scope) error {
		if in.RaceLocationID != nil {
			if err := s.sameRace("update_incident", current.RaceID(), *in.RaceLocationID, 0); err != nil {
				return err
			}
		}
		next := current
		if statusChange || decisionChange {
			actor, err := s.actor(actorID)
			if err != nil {
				return err
			}
			if statusChange {
				if err := domain.CanOfficialize(current, actor).Err(); err != nil {
					return err
				}
				if next, err = current.Officialize(actor.ID(), s.at); err != nil {
					return err
				}
				if in.OfficializedByUserID == nil {
					uid := actor.ID()
					in.OfficializedByUserID = &uid
				}
				if in.OfficializedAt == nil {
					in.OfficializedAt = &s.at
				}
			}
			if decisionChange {
				if err := domain.CanDecide(next, actor, *in.Decision).Err(); err != nil {
					return err
				}
				if in.DecidedByUserID == nil {
					uid := actor.ID()
					in.DecidedByUserID = &uid
				}
				if in.DecidedAt == nil {
					in.DecidedAt = &s.at
				}
			}
		}
		inc, err := s.repos.Incidents.Update(ctx, id, in)
		if err != nil {
			return err
		}
		out = inc
		return s.record(events.IncidentUpdated, "incident", inc.ID(), actorID, inc, events.EventPayload{
			"fields": changedFields(values),
		})
	})
	return out, err
}

// OfficializeIncident moves an unofficial incident to official on behalf of
// a jury president, international referee or referee manager.
func (e Engine) OfficializeIncident(ctx context.Context, incidentID, actorID int64) (domain.Incident, error) {
	var out domain.Incident
	err := e.write(ctx, "incident.officialize", func(s *scope) error {
		inc, err := s.repos.Incidents.MustFind(ctx, incidentID)
		if err != nil {
			return err
		}
		actor, err := s.actor(actorID)
		if err != nil {
			return err
		}
		if err := domain.CanOfficialize(inc, actor).Err(); err != nil {
			return err
		}
		next, err := inc.Officialize(actor.ID(), s.at)
		if err != nil {
			return err
		}
		saved, err := s.repos.Incidents.Update(ctx, inc.ID(), repo.IncidentChanges(next))
		if err != nil {
			return err
		}
		out = saved
		return s.record(events.IncidentOfficialized, "incident", saved.ID(), actor.ID(), saved, events.EventPayload{
			"race_id": saved.RaceID(),
		})
	})
	return out, err
}

// DecideIncident records the jury decision on an official incident. attrs
// carry id, decision and optionally decision_notes and penalty_seconds.
func (e Engine) DecideIncident(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Incident, error) {
	var in decision
	if _, err := e.validate(ctx, contract.DecideIncident(e.Repos.Lookup), attrs, &in); err != nil {
		return domain.Incident{}, err
	}
	var out domain.Incident
	err := e.write(ctx, "incident.decide", func(s *scope) error {
		inc, err := s.repos.Incidents.MustFind(ctx, in.ID)
		if err != nil {
			return err
		}
		actor, err := s.actor(actorID)
		if err != nil {
			return err
		}
		if err := domain.CanDecide(inc, actor, in.Decision).Err(); err != nil {
			return err
		}
		next, err := inc.Decide(domain.DecisionInput{
			Decision:       in.Decision,
			Notes:          in.Notes,
			PenaltySeconds: in.PenaltySeconds,
			ActorID:        actor.ID(),
			At:             s.at,
		})
		if err != nil {
			return err
		}
		saved, err := s.repos.Incidents.Update(ctx, inc.ID(), repo.IncidentChanges(next))
		if err != nil {
			return err
		}
		out = saved
		return s.record(events.IncidentDecided, "incident", saved.ID(), actor.ID(), saved, events.EventPayload{
			"race_id": saved.RaceID(), "decision": saved.Decision(), "penalty_seconds": saved.PenaltySeconds(),
		})
	})
	return out, err
}

// DeleteIncident removes an undecided incident. Its reports stay, unlinked.
func (e Engine) DeleteIncident(ctx context.Context, incidentID, actorID int64) error {
	return e.write(ctx, "incident.delete", func(s *scope) error {
		inc, err := s.repos.Incidents.MustFind(ctx, incidentID)
		if err != nil {
			return err
		}
		actor, err := s.actor(actorID)
		if err != nil {
			return err
		}
		if err := domain.CanDeleteIncident(inc, actor).Err(); err != nil {
			return err
		}
		if _, err := s.repos.Incidents.Delete(ctx, inc.ID()); err != nil {
			return err
		}
		return s.record(events.IncidentDeleted, "incident", inc.ID(), actor.ID(), inc, events.EventPayload{
			"race_id": inc.RaceID(),
		})
	})
}

// DeleteReport removes a report that is not attached to an incident.
func (e Engine) DeleteReport(ctx context.Context, reportID, actorID int64) error {
	return e.write(ctx, "report.delete", func(s *scope) error {
		rep, err := s.repos.Reports.MustFind(ctx, reportID)
		if err != nil {
			return err
		}
		actor, err := s.actor(actorID)
		if err != nil {
			return err
		}
		if err := domain.CanDeleteReport(rep, actor).Err(); err != nil {
			return err
		}
		if _, err := s.repos.Reports.Delete(ctx, rep.ID()); err != nil {
			return err
		}
		return s.record(events.ReportDeleted, "report", rep.ID(), actor.ID(), rep, events.EventPayload{
			"race_id": rep.RaceID(),
		})
	})
}

// sameRace checks that an optional location and incident belong to raceID.
func (s *scope) sameRace(name string, raceID, locationID, incidentID int64) error {
	if locationID > 0 {
		l, err := s.repos.Locations.MustFind(s.ctx, locationID)
		if err != nil {
			return err
		}
		if l.RaceID() != raceID {
			return invalid(name, "race_location_id", contract.CrossFieldRule, "location %d belongs to race %d", locationID, l.RaceID())
		}
	}
	if incidentID > 0 {
		inc, err := s.repos.Incidents.MustFind(s.ctx, incidentID)
		if err != nil {
			return err
		}
		if inc.RaceID() != raceID {
			return invalid(name, "incident_id", contract.CrossFieldRule, "incident %d belongs to race %d", incidentID, inc.RaceID())
		}
	}
	return nil
}
