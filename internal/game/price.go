package game

import (
	"encoding/json"
	"fmt"
	"sort"
)

// pricePolicy is the price guessing contest: each round presents one catalog
// item and the closest guess takes the round. Ties split the round.
type pricePolicy struct {
	cfg   Config
	items []PriceItem

	guesses map[string]int64
	display map[string]int64
	totals  map[string]int
	awarded map[int]bool
}

func newPrice(cfg Config, items []PriceItem) *pricePolicy {
	if len(items) == 0 {
		items = seedPriceItems
	}
	return &pricePolicy{
		cfg:     cfg,
		items:   items,
		guesses: map[string]int64{},
		display: map[string]int64{},
		totals:  map[string]int{},
		awarded: map[int]bool{},
	}
}

func (p *pricePolicy) Type() string { return TypePrice }

func (p *pricePolicy) Phases() []PhaseSpec {
	return []PhaseSpec{
		{Name: "waiting", MinPlayers: p.cfg.MinPlayers},
		{Name: "guess", Duration: p.cfg.SubmitDeadline, Accepts: []string{"guess"}, AllSubmit: true},
		{Name: "reveal", Duration: p.cfg.RevealDeadline},
	}
}

func (p *pricePolicy) Rounds() int    { return p.cfg.Rounds }
func (p *pricePolicy) LoopStart() int { return 1 }

func (p *pricePolicy) item(round int) PriceItem {
	return p.items[(round-1)%len(p.items)]
}

func (p *pricePolicy) EnterPhase(phase string, round int) {
	if phase == "guess" {
		p.guesses = map[string]int64{}
		p.display = map[string]int64{}
	}
}

func (p *pricePolicy) PhasePayload(phase string, round int) any {
	if phase == "guess" {
		it := p.item(round)
		// The actual price stays server-side until reveal.
		return map[string]any{"item": it.Name, "image_url": it.ImageURL}
	}
	return nil
}

type guessPayload struct {
	PriceCents int64 `json:"price_cents"`
}

func (p *pricePolicy) Apply(phase string, round int, act Action) (Outcome, error) {
	var req guessPayload
	if err := json.Unmarshal(act.Payload, &req); err != nil {
		return Outcome{}, fmt.Errorf("%w: bad_payload", ErrValidationFailed)
	}
	if req.PriceCents <= 0 {
		return Outcome{}, fmt.Errorf("%w: invalid_price", ErrValidationFailed)
	}

	if act.Role == RoleSpectator {
		p.display[act.Player] = req.PriceCents
	} else {
		p.guesses[act.Player] = req.PriceCents
	}

	return Outcome{
		Events: []Derived{{
			Type:    "guess_locked",
			Payload: map[string]any{"player": act.Player, "guessed": len(p.guesses)},
		}},
		Submitted: act.Role != RoleSpectator,
	}, nil
}

func (p *pricePolicy) RoundResult(round int) any {
	it := p.item(round)
	type guess struct {
		Player     string `json:"player"`
		PriceCents int64  `json:"price_cents"`
		Diff       int64  `json:"diff"`
	}
	guesses := make([]guess, 0, len(p.guesses))
	var bestDiff int64 = -1
	for player, cents := range p.guesses {
		diff := cents - it.PriceCents
		if diff < 0 {
			diff = -diff
		}
		guesses = append(guesses, guess{Player: player, PriceCents: cents, Diff: diff})
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
		}
	}
	sort.Slice(guesses, func(i, j int) bool {
		if guesses[i].Diff != guesses[j].Diff {
			return guesses[i].Diff < guesses[j].Diff
		}
		return guesses[i].Player < guesses[j].Player
	})
	var winners []string
	for _, g := range guesses {
		if g.Diff == bestDiff {
			winners = append(winners, g.Player)
		}
	}
	if !p.awarded[round] {
		p.awarded[round] = true
		for _, w := range winners {
			p.totals[w]++
		}
	}

	return map[string]any{
		"round":       round,
		"item":        it.Name,
		"price_cents": it.PriceCents,
		"guesses":     guesses,
		"winners":     winners,
		"spectators":  p.display,
	}
}

func (p *pricePolicy) FinalResult() any {
	return finalTotals(p.totals)
}

type priceState struct {
	Guesses map[string]int64 `json:"guesses"`
	Display map[string]int64 `json:"display"`
	Totals  map[string]int   `json:"totals"`
	Awarded map[int]bool     `json:"awarded"`
}

func (p *pricePolicy) MarshalState() ([]byte, error) {
	return json.Marshal(priceState{
		Guesses: p.guesses,
		Display: p.display,
		Totals:  p.totals,
		Awarded: p.awarded,
	})
}

func (p *pricePolicy) UnmarshalState(data []byte) error {
	var st priceState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	p.guesses = orMap(st.Guesses)
	p.display = orMap(st.Display)
	p.totals = orMap(st.Totals)
	p.awarded = orMap(st.Awarded)
	return nil
}
