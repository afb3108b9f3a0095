package game

import (
	"encoding/json"
	"fmt"
	"sort"
)

// checkboxPolicy is the checkbox race: every player gets the same grid of
// boxes and races to check them all before the deadline.
type checkboxPolicy struct {
	cfg  Config
	grid int

	boards   map[string][]bool
	display  map[string][]bool
	finished []string
	totals   map[string]int
	awarded  map[int]bool
}

func newCheckbox(cfg Config) *checkboxPolicy {
	grid := cfg.GridSize
	if grid <= 0 {
		grid = 25
	}
	return &checkboxPolicy{
		cfg:     cfg,
		grid:    grid,
		boards:  map[string][]bool{},
		display: map[string][]bool{},
		totals:  map[string]int{},
		awarded: map[int]bool{},
	}
}

func (p *checkboxPolicy) Type() string { return TypeCheckbox }

func (p *checkboxPolicy) Phases() []PhaseSpec {
	return []PhaseSpec{
		{Name: "waiting", MinPlayers: p.cfg.MinPlayers},
		{Name: "race", Duration: p.cfg.SubmitDeadline, Accepts: []string{"check"}, AllSubmit: true},
		{Name: "results", Duration: p.cfg.RevealDeadline},
	}
}

func (p *checkboxPolicy) Rounds() int    { return p.cfg.Rounds }
func (p *checkboxPolicy) LoopStart() int { return 1 }

func (p *checkboxPolicy) EnterPhase(phase string, round int) {
	if phase == "race" {
		p.boards = map[string][]bool{}
		p.display = map[string][]bool{}
		p.finished = nil
	}
}

func (p *checkboxPolicy) PhasePayload(phase string, round int) any {
	if phase == "race" {
		return map[string]any{"grid_size": p.grid}
	}
	return nil
}

type checkPayload struct {
	Index int `json:"index"`
}

func (p *checkboxPolicy) Apply(phase string, round int, act Action) (Outcome, error) {
	var req checkPayload
	if err := json.Unmarshal(act.Payload, &req); err != nil {
		return Outcome{}, fmt.Errorf("%w: bad_payload", ErrValidationFailed)
	}
	if req.Index < 0 || req.Index >= p.grid {
		return Outcome{}, fmt.Errorf("%w: index_out_of_range", ErrValidationFailed)
	}

	boards := p.boards
	if act.Role == RoleSpectator {
		boards = p.display
	}
	board := boards[act.Player]
	if board == nil {
		board = make([]bool, p.grid)
		boards[act.Player] = board
	}
	if board[req.Index] {
		return Outcome{}, fmt.Errorf("%w: already_checked", ErrValidationFailed)
	}
	board[req.Index] = true

	checked := countChecked(board)
	out := Outcome{Events: []Derived{{
		Type: "box_checked",
		Payload: map[string]any{
			"player":  act.Player,
			"index":   req.Index,
			"checked": checked,
		},
	}}}
	if act.Role != RoleSpectator && checked == p.grid {
		p.finished = append(p.finished, act.Player)
		out.Submitted = true
		out.Events = append(out.Events, Derived{
			Type:    "board_completed",
			Payload: map[string]any{"player": act.Player, "place": len(p.finished)},
		})
	}
	return out, nil
}

func (p *checkboxPolicy) RoundResult(round int) any {
	type standing struct {
		Player    string `json:"player"`
		Checked   int    `json:"checked"`
		Completed bool   `json:"completed"`
	}
	standings := make([]standing, 0, len(p.boards))
	best := 0
	for player, board := range p.boards {
		n := countChecked(board)
		standings = append(standings, standing{Player: player, Checked: n, Completed: n == p.grid})
		if n > best {
			best = n
		}
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Checked != standings[j].Checked {
			return standings[i].Checked > standings[j].Checked
		}
		return standings[i].Player < standings[j].Player
	})

	var winners []string
	if len(p.finished) > 0 {
		winners = []string{p.finished[0]}
	} else if best > 0 {
		for _, s := range standings {
			if s.Checked == best {
				winners = append(winners, s.Player)
			}
		}
	}
	if !p.awarded[round] {
		p.awarded[round] = true
		for _, w := range winners {
			p.totals[w]++
		}
	}

	spectators := map[string]int{}
	for player, board := range p.display {
		spectators[player] = countChecked(board)
	}
	return map[string]any{
		"round":      round,
		"grid_size":  p.grid,
		"standings":  standings,
		"winners":    winners,
		"spectators": spectators,
	}
}

func (p *checkboxPolicy) FinalResult() any {
	return finalTotals(p.totals)
}

type checkboxState struct {
	Boards   map[string][]bool `json:"boards"`
	Display  map[string][]bool `json:"display"`
	Finished []string          `json:"finished"`
	Totals   map[string]int    `json:"totals"`
	Awarded  map[int]bool      `json:"awarded"`
}

func (p *checkboxPolicy) MarshalState() ([]byte, error) {
	return json.Marshal(checkboxState{
		Boards:   p.boards,
		Display:  p.display,
		Finished: p.finished,
		Totals:   p.totals,
		Awarded:  p.awarded,
	})
}

func (p *checkboxPolicy) UnmarshalState(data []byte) error {
	var st checkboxState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	p.boards = orMap(st.Boards)
	p.display = orMap(st.Display)
	p.finished = st.Finished
	p.totals = orMap(st.Totals)
	p.awarded = orMap(st.Awarded)
	return nil
}

func countChecked(board []bool) int {
	n := 0
	for _, c := range board {
		if c {
			n++
		}
	}
	return n
}
