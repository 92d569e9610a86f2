package engine

import (
	"context"
	"errors"
	"sort"

	"raceline/internal/contract"
	"raceline/internal/domain"
	"raceline/internal/events"
	"raceline/internal/repo"
	"raceline/internal/types"
)

func (e Engine) CreateCompetition(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Competition, error) {
	var in repo.CompetitionInput
	if _, err := e.validate(ctx, contract.CreateCompetition(e.Repos.Lookup), attrs, &in); err != nil {
		return domain.Competition{}, err
	}
	var out domain.Competition
	err := e.write(ctx, "competition.create", func(s *scope) error {
		c, err := s.repos.Competitions.Create(ctx, in)
		if err != nil {
			return err
		}
		out = c
		return s.record(events.CompetitionCreated, "competition", c.ID(), actorID, c, events.EventPayload{
			"name": c.Name(), "country": c.Country(),
		})
	})
	return out, err
}

// UpdateCompetition applies a partial update; attrs must carry the id.
func (e Engine) UpdateCompetition(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Competition, error) {
	id, err := currentID("update_competition", attrs)
	if err != nil {
		return domain.Competition{}, err
	}
	current, ok, err := e.Repos.Competitions.Find(ctx, id)
	if err != nil {
		return domain.Competition{}, err
	}
	if !ok {
		return domain.Competition{}, invalid("update_competition", "id", contract.ReferentialIntegrity, "competition %d does not exist", id)
	}
	var in repo.CompetitionUpdate
	values, err := e.validate(ctx, contract.UpdateCompetition(e.Repos.Lookup, current), attrs, &in)
	if err != nil {
		return domain.Competition{}, err
	}
	var out domain.Competition
	err = e.write(ctx, "competition.update", func(s *scope) error {
		c, err := s.repos.Competitions.Update(ctx, id, in)
		if err != nil {
			return err
		}
		out = c
		return s.record(events.CompetitionUpdated, "competition", c.ID(), actorID, c, events.EventPayload{
			"fields": changedFields(values),
		})
	})
	return out, err
}

// CreateRace appends the race after the existing races of the same type in
// the competition and instantiates the race type's location templates. The
// race and its locations are written together or not at all.
func (e Engine) CreateRace(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Race, error) {
	var in repo.RaceInput
	if _, err := e.validate(ctx, contract.CreateRace(e.Repos.Lookup), attrs, &in); err != nil {
		return domain.Race{}, err
	}
	in.Status = types.RaceScheduled
	var out domain.Race
	err := e.write(ctx, "race.create", func(s *scope) error {
		pos, err := s.repos.Races.NextPosition(ctx, in.CompetitionID, in.RaceTypeID)
		if err != nil {
			return err
		}
		in.Position = pos
		r, err := s.repos.Races.Create(ctx, in)
		if err != nil {
			return err
		}
		locations, err := s.repos.Locations.CopyTemplates(ctx, r.ID(), r.RaceTypeID())
		if err != nil {
			return err
		}
		out = r
		return s.record(events.RaceCreated, "race", r.ID(), actorID, r, events.EventPayload{
			"competition_id": r.CompetitionID(),
			"race_type":      r.RaceTypeName(),
			"position":       r.Position(),
			"locations":      len(locations),
		})
	})
	return out, err
}

// UpdateRace applies a partial update. A status change must follow the race
// lifecycle and needs a jury president or referee manager.
func (e Engine) UpdateRace(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Race, error) {
	id, err := currentID("update_race", attrs)
	if err != nil {
		return domain.Race{}, err
	}
	current, ok, err := e.Repos.Races.Find(ctx, id)
	if err != nil {
		return domain.Race{}, err
	}
	if !ok {
		return domain.Race{}, invalid("update_race", "id", contract.ReferentialIntegrity, "race %d does not exist", id)
	}
	var in repo.RaceUpdate
	values, err := e.validate(ctx, contract.UpdateRace(e.Repos.Lookup, current), attrs, &in)
	if err != nil {
		return domain.Race{}, err
	}
	statusChange := in.Status != nil && *in.Status != current.Status()
	if in.Status != nil && !statusChange {
		in.Status = nil
	}
	var out domain.Race
	err = e.write(ctx, "race.update", func(s *scope) error {
		if statusChange {
			actor, err := s.actor(actorID)
			if err != nil {
				return err
			}
			if err := domain.CanEditRace(actor).Err(); err != nil {
				return err
			}
			if _, err := current.WithStatus(*in.Status, s.at); err != nil {
				return err
			}
		}
		r, err := s.repos.Races.Update(ctx, id, in)
		if err != nil {
			return err
		}
		out = r
		if statusChange {
			return s.record(events.RaceStatusChanged, "race", r.ID(), actorID, r, events.EventPayload{
				"from": current.Status(), "to": r.Status(),
			})
		}
		return s.record(events.RaceUpdated, "race", r.ID(), actorID, r, events.EventPayload{
			"fields": changedFields(values),
		})
	})
	return out, err
}

// UpdateRaceStatus moves a race along its lifecycle. Asking for the status
// the race already has is a no-op.
func (e Engine) UpdateRaceStatus(ctx context.Context, raceID int64, status types.RaceStatus, actorID int64) (domain.Race, error) {
	current, ok, err := e.Repos.Races.Find(ctx, raceID)
	if err != nil {
		return domain.Race{}, err
	}
	if ok && current.Status() == status {
		return current, nil
	}
	return e.UpdateRace(ctx, contract.Attributes{"id": raceID, "status": string(status)}, actorID)
}

// CreateLocation adds a location to a race. Without a display order it goes
// after the existing ones.
func (e Engine) CreateLocation(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.Location, error) {
	var in repo.LocationInput
	values, err := e.validate(ctx, contract.CreateLocation(e.Repos.Lookup), attrs, &in)
	if err != nil {
		return domain.Location{}, err
	}
	var out domain.Location
	err = e.write(ctx, "location.create", func(s *scope) error {
		if !values.Has("display_order") {
			existing, err := s.repos.Locations.ByRace(ctx, in.RaceID)
			if err != nil {
				return err
			}
			for _, l := range existing {
				if l.DisplayOrder() >= in.DisplayOrder {
					in.DisplayOrder = l.DisplayOrder() + 1
				}
			}
		}
		l, err := s.repos.Locations.Create(ctx, in)
		if err != nil {
			return err
		}
		out = l
		return s.record(events.LocationCreated, "location", l.ID(), actorID, l, events.EventPayload{
			"race_id": l.RaceID(), "display_order": l.DisplayOrder(),
		})
	})
	return out, err
}

// ReorderLocations sets the display order of a race's locations. A location
// of another race fails the whole reorder and nothing moves.
func (e Engine) ReorderLocations(ctx context.Context, attrs contract.Attributes, actorID int64) ([]domain.LocationSummary, error) {
	values, err := e.validate(ctx, contract.ReorderLocations(e.Repos.Lookup), attrs, nil)
	if err != nil {
		return nil, err
	}
	raceID := values["race_id"].(int64)
	positions := values["positions"].(map[int64]int)
	var out []domain.LocationSummary
	err = e.write(ctx, "location.reorder", func(s *scope) error {
		if err := s.repos.Locations.Reorder(ctx, raceID, positions); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return invalid("reorder_locations", "positions", contract.ReferentialIntegrity, "%s", err.Error())
			}
			return err
		}
		list, err := s.repos.Locations.ByRace(ctx, raceID)
		if err != nil {
			return err
		}
		out = list
		return s.record(events.LocationsReordered, "race", raceID, actorID, list, events.EventPayload{
			"positions": len(positions),
		})
	})
	return out, err
}

// changedFields lists the fields an update carried, id excluded.
func changedFields(v contract.Values) []string {
	out := make([]string, 0, len(v))
	for k := range v {
		if k != "id" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
