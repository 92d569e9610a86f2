package domain

import (
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"raceline/internal/types"
)

// Transition events of the three status axes.
const (
	EventOfficialize = "officialize"

	EventApprove  = "approve"
	EventReject   = "reject"
	EventNoAction = "no_action"

	EventStart    = "start"
	EventComplete = "complete"
	EventCancel   = "cancel"
	EventReopen   = "reopen"
)

var (
	// ErrInvalidTransition is wrapped by every refused status change.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotAllowed is wrapped by every refused Guard.
	ErrNotAllowed = errors.New("not allowed")
)

// transitions describes one status axis. A target state maps back to every
// event that enters it.
type transitions struct {
	name   string
	events fsm.Events
	byDst  map[string][]string
}

func newTransitions(name string, events fsm.Events) transitions {
	byDst := make(map[string][]string, len(events))
	for _, ev := range events {
		byDst[ev.Dst] = append(byDst[ev.Dst], ev.Name)
	}
	return transitions{name: name, events: events, byDst: byDst}
}

// machine builds a fresh fsm positioned at current. Machines are never shared:
// records are immutable and each check starts from the record's own state.
func (t transitions) machine(current string) *fsm.FSM {
	return fsm.NewFSM(current, t.events, fsm.Callbacks{})
}

func (t transitions) can(from, to string) bool {
	m := t.machine(from)
	for _, ev := range t.byDst[to] {
		if m.Can(ev) {
			return true
		}
	}
	return false
}

func (t transitions) check(from, to string) error {
	if t.can(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, t.name, from, to)
}

var incidentStatusAxis = newTransitions("incident status", fsm.Events{
	{Name: EventOfficialize, Src: []string{string(types.IncidentUnofficial)}, Dst: string(types.IncidentOfficial)},
})

var decisionAxis = newTransitions("decision", fsm.Events{
	{Name: EventApprove, Src: []string{string(types.DecisionPending)}, Dst: string(types.DecisionApproved)},
	{Name: EventReject, Src: []string{string(types.DecisionPending)}, Dst: string(types.DecisionRejected)},
	{Name: EventNoAction, Src: []string{string(types.DecisionPending)}, Dst: string(types.DecisionNoAction)},
})

var raceStatusAxis = newTransitions("race status", fsm.Events{
	{Name: EventStart, Src: []string{string(types.RaceScheduled)}, Dst: string(types.RaceInProgress)},
	{Name: EventComplete, Src: []string{string(types.RaceInProgress)}, Dst: string(types.RaceCompleted)},
	{Name: EventCancel, Src: []string{string(types.RaceScheduled), string(types.RaceInProgress)}, Dst: string(types.RaceCancelled)},
	{Name: EventReopen, Src: []string{string(types.RaceCompleted)}, Dst: string(types.RaceInProgress)},
})

// IncidentStatusMachine returns a machine for the status axis positioned at current.
func IncidentStatusMachine(current types.IncidentStatus) *fsm.FSM {
	return incidentStatusAxis.machine(string(current))
}

// DecisionMachine returns a machine for the decision axis positioned at current.
func DecisionMachine(current types.Decision) *fsm.FSM {
	return decisionAxis.machine(string(current))
}

// RaceStatusMachine returns a machine for the race lifecycle positioned at current.
func RaceStatusMachine(current types.RaceStatus) *fsm.FSM {
	return raceStatusAxis.machine(string(current))
}

// CheckIncidentStatus returns an error unless from -> to is an allowed move.
func CheckIncidentStatus(from, to types.IncidentStatus) error {
	return incidentStatusAxis.check(string(from), string(to))
}

// CheckDecision returns an error unless from -> to is an allowed move on the
// decision axis alone; the status precondition lives on Incident.
func CheckDecision(from, to types.Decision) error {
	return decisionAxis.check(string(from), string(to))
}

// CheckRaceStatus returns an error unless from -> to is an allowed move.
func CheckRaceStatus(from, to types.RaceStatus) error {
	return raceStatusAxis.check(string(from), string(to))
}
