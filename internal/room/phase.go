package room

import (
	"party-rooms/internal/game"
)

// Trigger names why a phase advance happened.
type Trigger string

const (
	TriggerAllSubmitted Trigger = "all_submitted"
	TriggerDeadline     Trigger = "deadline"
	TriggerHostForced   Trigger = "host_forced"
)

// PhaseEnded is the terminal pseudo-phase after the last round completes.
const PhaseEnded = "ended"

// Machine drives a game's ordered phase sequence. Phases advance strictly
// forward; reaching the end of the sequence either loops back to loopStart
// for the next round or terminates. Every advance bumps a monotonic version
// so late timer or grace callbacks scheduled against an older phase are
// detectable as stale, even across round loops that revisit the same phase
// name.
type Machine struct {
	phases    []game.PhaseSpec
	rounds    int
	loopStart int
	idx       int
	round     int
	version   int64
	done      bool
}

func NewMachine(phases []game.PhaseSpec, rounds, loopStart int) *Machine {
	if rounds <= 0 {
		rounds = 1
	}
	if loopStart < 0 || loopStart >= len(phases) {
		loopStart = 0
	}
	return &Machine{
		phases:    phases,
		rounds:    rounds,
		loopStart: loopStart,
		round:     1,
		version:   1,
	}
}

// NewMachineAt rebuilds a machine at a recorded position (snapshot restore).
func NewMachineAt(phases []game.PhaseSpec, rounds, loopStart, idx, round int, version int64, done bool) *Machine {
	m := NewMachine(phases, rounds, loopStart)
	if idx >= 0 && idx < len(phases) {
		m.idx = idx
	}
	if round >= 1 {
		m.round = round
	}
	if version > m.version {
		m.version = version
	}
	m.done = done
	return m
}

func (m *Machine) Current() game.PhaseSpec {
	if m.done {
		return game.PhaseSpec{Name: PhaseEnded}
	}
	return m.phases[m.idx]
}

func (m *Machine) Index() int     { return m.idx }
func (m *Machine) Round() int     { return m.round }
func (m *Machine) Version() int64 { return m.version }
func (m *Machine) Terminal() bool { return m.done }

// Accept checks an action type against the current phase's accepted set.
// Domain validation stays with the game policy.
func (m *Machine) Accept(actionType string) error {
	if m.done {
		return ErrPhaseMismatch
	}
	if !m.Current().AcceptsAction(actionType) {
		return ErrPhaseMismatch
	}
	return nil
}

// Advance moves to the next phase. The second return reports that a new
// round began. Advancing a terminal machine is an invariant violation.
func (m *Machine) Advance(trigger Trigger) (game.PhaseSpec, bool, error) {
	if m.done {
		return game.PhaseSpec{}, false, ErrInvalidTransition
	}
	m.version++
	if m.idx+1 < len(m.phases) {
		m.idx++
		return m.phases[m.idx], false, nil
	}
	if m.round < m.rounds {
		m.round++
		m.idx = m.loopStart
		return m.phases[m.idx], true, nil
	}
	m.done = true
	return game.PhaseSpec{Name: PhaseEnded}, false, nil
}
