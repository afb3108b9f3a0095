package game

import (
	"encoding/json"
	"fmt"
)

// predictPolicy is the two-choice prediction vote: everyone picks a side,
// and at reveal the smaller side scores. A re-vote before the deadline
// replaces the earlier pick.
type predictPolicy struct {
	cfg       Config
	questions []VoteQuestion

	votes   map[string]int
	display map[string]int
	totals  map[string]int
	awarded map[int]bool
}

func newPredict(cfg Config, questions []VoteQuestion) *predictPolicy {
	if len(questions) == 0 {
		questions = seedQuestions
	}
	return &predictPolicy{
		cfg:       cfg,
		questions: questions,
		votes:     map[string]int{},
		display:   map[string]int{},
		totals:    map[string]int{},
		awarded:   map[int]bool{},
	}
}

func (p *predictPolicy) Type() string { return TypePredict }

func (p *predictPolicy) Phases() []PhaseSpec {
	return []PhaseSpec{
		{Name: "waiting", MinPlayers: p.cfg.MinPlayers},
		{Name: "vote", Duration: p.cfg.SubmitDeadline, Accepts: []string{"vote"}, AllSubmit: true},
		{Name: "reveal", Duration: p.cfg.RevealDeadline},
	}
}

func (p *predictPolicy) Rounds() int    { return p.cfg.Rounds }
func (p *predictPolicy) LoopStart() int { return 1 }

func (p *predictPolicy) question(round int) VoteQuestion {
	return p.questions[(round-1)%len(p.questions)]
}

func (p *predictPolicy) EnterPhase(phase string, round int) {
	if phase == "vote" {
		p.votes = map[string]int{}
		p.display = map[string]int{}
	}
}

func (p *predictPolicy) PhasePayload(phase string, round int) any {
	if phase == "vote" {
		q := p.question(round)
		return map[string]any{"question": q.Text, "choices": q.Choices}
	}
	return nil
}

type votePayload struct {
	Choice int `json:"choice"`
}

func (p *predictPolicy) Apply(phase string, round int, act Action) (Outcome, error) {
	var req votePayload
	if err := json.Unmarshal(act.Payload, &req); err != nil {
		return Outcome{}, fmt.Errorf("%w: bad_payload", ErrValidationFailed)
	}
	if req.Choice != 0 && req.Choice != 1 {
		return Outcome{}, fmt.Errorf("%w: invalid_choice", ErrValidationFailed)
	}

	if act.Role == RoleSpectator {
		p.display[act.Player] = req.Choice
	} else {
		p.votes[act.Player] = req.Choice
	}

	// Vote counts stay hidden until reveal; only the turnout is public.
	return Outcome{
		Events: []Derived{{
			Type:    "vote_cast",
			Payload: map[string]any{"player": act.Player, "voted": len(p.votes)},
		}},
		Submitted: act.Role != RoleSpectator,
	}, nil
}

func (p *predictPolicy) RoundResult(round int) any {
	q := p.question(round)
	counts := [2]int{}
	for _, choice := range p.votes {
		counts[choice]++
	}

	var winningSide int
	tie := counts[0] == counts[1]
	if counts[0] < counts[1] && counts[0] > 0 {
		winningSide = 0
	} else if counts[1] < counts[0] && counts[1] > 0 {
		winningSide = 1
	} else if !tie {
		// One side is empty; the occupied side carries the round.
		if counts[0] > 0 {
			winningSide = 0
		} else {
			winningSide = 1
		}
	}

	var winners []string
	for player, choice := range p.votes {
		if tie || choice == winningSide {
			winners = append(winners, player)
		}
	}
	if !p.awarded[round] {
		p.awarded[round] = true
		for _, w := range winners {
			p.totals[w]++
		}
	}

	return map[string]any{
		"round":    round,
		"question": q.Text,
		"choices":  q.Choices,
		"counts":   counts,
		"tie":      tie,
		"winners":  winners,
		"votes":    p.votes,
	}
}

func (p *predictPolicy) FinalResult() any {
	return finalTotals(p.totals)
}

type predictState struct {
	Votes   map[string]int `json:"votes"`
	Display map[string]int `json:"display"`
	Totals  map[string]int `json:"totals"`
	Awarded map[int]bool   `json:"awarded"`
}

func (p *predictPolicy) MarshalState() ([]byte, error) {
	return json.Marshal(predictState{
		Votes:   p.votes,
		Display: p.display,
		Totals:  p.totals,
		Awarded: p.awarded,
	})
}

func (p *predictPolicy) UnmarshalState(data []byte) error {
	var st predictState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	p.votes = orMap(st.Votes)
	p.display = orMap(st.Display)
	p.totals = orMap(st.Totals)
	p.awarded = orMap(st.Awarded)
	return nil
}
