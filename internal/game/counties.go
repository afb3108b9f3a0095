package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// countiesPolicy is the county-naming celebration: players shout out as many
// distinct counties as they can before the deadline. There is no required
// submission, so the naming phase only ever ends by deadline or host force.
type countiesPolicy struct {
	cfg   Config
	valid map[string]string

	named   map[string]map[string]bool
	display map[string]map[string]bool
	totals  map[string]int
	awarded map[int]bool
}

func newCounties(cfg Config, counties []string) *countiesPolicy {
	if len(counties) == 0 {
		counties = seedCounties
	}
	valid := make(map[string]string, len(counties))
	for _, c := range counties {
		valid[normalizeCounty(c)] = c
	}
	return &countiesPolicy{
		cfg:     cfg,
		valid:   valid,
		named:   map[string]map[string]bool{},
		display: map[string]map[string]bool{},
		totals:  map[string]int{},
		awarded: map[int]bool{},
	}
}

func (p *countiesPolicy) Type() string { return TypeCounties }

func (p *countiesPolicy) Phases() []PhaseSpec {
	return []PhaseSpec{
		{Name: "waiting", MinPlayers: p.cfg.MinPlayers},
		{Name: "naming", Duration: p.cfg.SubmitDeadline, Accepts: []string{"name_county"}},
		{Name: "reveal", Duration: p.cfg.RevealDeadline},
	}
}

func (p *countiesPolicy) Rounds() int    { return p.cfg.Rounds }
func (p *countiesPolicy) LoopStart() int { return 1 }

func (p *countiesPolicy) EnterPhase(phase string, round int) {
	if phase == "naming" {
		p.named = map[string]map[string]bool{}
		p.display = map[string]map[string]bool{}
	}
}

func (p *countiesPolicy) PhasePayload(phase string, round int) any { return nil }

type namePayload struct {
	Name string `json:"name"`
}

func (p *countiesPolicy) Apply(phase string, round int, act Action) (Outcome, error) {
	var req namePayload
	if err := json.Unmarshal(act.Payload, &req); err != nil {
		return Outcome{}, fmt.Errorf("%w: bad_payload", ErrValidationFailed)
	}
	key := normalizeCounty(req.Name)
	canonical, ok := p.valid[key]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: unknown_county", ErrValidationFailed)
	}

	sets := p.named
	if act.Role == RoleSpectator {
		sets = p.display
	}
	set := sets[act.Player]
	if set == nil {
		set = map[string]bool{}
		sets[act.Player] = set
	}
	if set[key] {
		return Outcome{}, fmt.Errorf("%w: already_named", ErrValidationFailed)
	}
	set[key] = true

	return Outcome{Events: []Derived{{
		Type: "county_named",
		Payload: map[string]any{
			"player": act.Player,
			"county": canonical,
			"count":  len(set),
		},
	}}}, nil
}

func (p *countiesPolicy) RoundResult(round int) any {
	type standing struct {
		Player string `json:"player"`
		Named  int    `json:"named"`
	}
	standings := make([]standing, 0, len(p.named))
	best := 0
	for player, set := range p.named {
		standings = append(standings, standing{Player: player, Named: len(set)})
		if len(set) > best {
			best = len(set)
		}
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Named != standings[j].Named {
			return standings[i].Named > standings[j].Named
		}
		return standings[i].Player < standings[j].Player
	})
	var winners []string
	for _, s := range standings {
		if s.Named == best && best > 0 {
			winners = append(winners, s.Player)
		}
	}
	if !p.awarded[round] {
		p.awarded[round] = true
		for _, w := range winners {
			p.totals[w]++
		}
	}

	spectators := map[string]int{}
	for player, set := range p.display {
		spectators[player] = len(set)
	}
	return map[string]any{
		"round":      round,
		"standings":  standings,
		"winners":    winners,
		"spectators": spectators,
	}
}

func (p *countiesPolicy) FinalResult() any {
	return finalTotals(p.totals)
}

type countiesState struct {
	Named   map[string]map[string]bool `json:"named"`
	Display map[string]map[string]bool `json:"display"`
	Totals  map[string]int             `json:"totals"`
	Awarded map[int]bool               `json:"awarded"`
}

func (p *countiesPolicy) MarshalState() ([]byte, error) {
	return json.Marshal(countiesState{
		Named:   p.named,
		Display: p.display,
		Totals:  p.totals,
		Awarded: p.awarded,
	})
}

func (p *countiesPolicy) UnmarshalState(data []byte) error {
	var st countiesState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	p.named = orMap(st.Named)
	p.display = orMap(st.Display)
	p.totals = orMap(st.Totals)
	p.awarded = orMap(st.Awarded)
	return nil
}

func normalizeCounty(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimSuffix(s, " county")
	return s
}
