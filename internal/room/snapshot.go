package room

import (
	"encoding/json"
	"time"

	"party-rooms/internal/event"
	"party-rooms/internal/game"
)

// PlayerSnapshot is one roster entry inside a Snapshot.
type PlayerSnapshot struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     game.Role `json:"role"`
	Status   Status    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
	Cursor   int64     `json:"cursor"`
}

// Snapshot is a room's full state: enough to serve as the snapshot event for
// clients too far behind the replay window, and to rebuild a coordinator
// that behaves identically afterwards.
type Snapshot struct {
	Code         string           `json:"code"`
	GameType     string           `json:"game_type"`
	Players      []PlayerSnapshot `json:"players"`
	PhaseIndex   int              `json:"phase_index"`
	Phase        string           `json:"phase"`
	Round        int              `json:"round"`
	PhaseVersion int64            `json:"phase_version"`
	Ended        bool             `json:"ended"`
	Seq          int64            `json:"seq"`
	Submitted    []string         `json:"submitted,omitempty"`
	PolicyState  json.RawMessage  `json:"policy_state"`
	TakenAt      time.Time        `json:"taken_at"`
}

func (c *Coordinator) buildSnapshot() Snapshot {
	players := make([]PlayerSnapshot, 0, len(c.registry.order))
	for _, p := range c.registry.Players() {
		players = append(players, PlayerSnapshot{
			ID:       p.ID,
			Name:     p.Name,
			Role:     p.Role,
			Status:   p.Status,
			JoinedAt: p.JoinedAt,
			Cursor:   p.cursor,
		})
	}
	var submitted []string
	for id := range c.submitted {
		submitted = append(submitted, id)
	}
	state, err := c.policy.MarshalState()
	if err != nil {
		state = nil
	}
	return Snapshot{
		Code:         c.code,
		GameType:     c.gameType,
		Players:      players,
		PhaseIndex:   c.machine.Index(),
		Phase:        c.machine.Current().Name,
		Round:        c.machine.Round(),
		PhaseVersion: c.machine.Version(),
		Ended:        c.machine.Terminal(),
		Seq:          c.log.Head(),
		Submitted:    submitted,
		PolicyState:  state,
		TakenAt:      time.Now(),
	}
}

// Restore rebuilds a coordinator from a snapshot. Every previously connected
// player comes back as disconnected, since their transports did not survive,
// and the current phase gets a fresh full-duration timer.
func Restore(snap Snapshot, policy game.Policy, settings Settings, observer Observer) (*Coordinator, error) {
	if len(snap.PolicyState) > 0 {
		if err := policy.UnmarshalState(snap.PolicyState); err != nil {
			return nil, err
		}
	}
	c := newCoordinator(snap.Code, snap.GameType, policy, settings, observer)
	c.machine = NewMachineAt(
		policy.Phases(), policy.Rounds(), policy.LoopStart(),
		snap.PhaseIndex, snap.Round, snap.PhaseVersion, snap.Ended,
	)
	c.log = event.NewLogAt(snap.Code, settings.ReplayWindow, snap.Seq)
	c.ended = snap.Ended

	for _, ps := range snap.Players {
		status := ps.Status
		if status == StatusConnected {
			status = StatusDisconnected
		}
		p := &Player{
			ID:       ps.ID,
			Name:     ps.Name,
			Role:     ps.Role,
			Status:   status,
			JoinedAt: ps.JoinedAt,
			cursor:   ps.Cursor,
		}
		c.registry.players[p.ID] = p
		c.registry.order = append(c.registry.order, p.ID)
		if status == StatusDisconnected {
			// Nobody is wired up yet; give every limbo player a fresh
			// grace window instead of blocking all-submitted forever.
			playerID, graceSeq := p.ID, p.graceSeq
			time.AfterFunc(c.settings.ReconnectGrace, func() {
				c.post(command{kind: cmdGrace, playerID: playerID, graceSeq: graceSeq})
			})
		}
	}
	for _, id := range snap.Submitted {
		c.submitted[id] = true
	}

	if !c.machine.Terminal() {
		if cur := c.machine.Current(); cur.Duration > 0 {
			c.scheduleTimer(cur.Duration)
		}
	}
	c.updateInfo()
	go c.run()
	return c, nil
}
