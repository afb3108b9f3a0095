package game

import (
	"encoding/json"
	"testing"
)

func lockGuess(t *testing.T, p Policy, player string, role Role, cents int64) (Outcome, error) {
	t.Helper()
	payload, _ := json.Marshal(map[string]int64{"price_cents": cents})
	return p.Apply("guess", 1, Action{Player: player, Role: role, Type: "guess", Payload: payload})
}

func TestPriceClosestGuessWins(t *testing.T) {
	items := []PriceItem{{Name: "Kettle", PriceCents: 3000}}
	p := newPrice(Config{Rounds: 1}, items)
	p.EnterPhase("guess", 1)

	if _, err := lockGuess(t, p, "near", RolePlayer, 2900); err != nil {
		t.Fatalf("near guess: %v", err)
	}
	if _, err := lockGuess(t, p, "far", RolePlayer, 9000); err != nil {
		t.Fatalf("far guess: %v", err)
	}

	result := p.RoundResult(1).(map[string]any)
	winners := result["winners"].([]string)
	if len(winners) != 1 || winners[0] != "near" {
		t.Fatalf("winners = %v, want [near]", winners)
	}
	if result["price_cents"].(int64) != 3000 {
		t.Fatalf("price_cents = %v, want 3000", result["price_cents"])
	}
}

func TestPriceTieSplitsRound(t *testing.T) {
	items := []PriceItem{{Name: "Kettle", PriceCents: 3000}}
	p := newPrice(Config{Rounds: 1}, items)
	p.EnterPhase("guess", 1)

	if _, err := lockGuess(t, p, "over", RolePlayer, 3100); err != nil {
		t.Fatalf("over guess: %v", err)
	}
	if _, err := lockGuess(t, p, "under", RolePlayer, 2900); err != nil {
		t.Fatalf("under guess: %v", err)
	}

	p.RoundResult(1)
	if p.totals["over"] != 1 || p.totals["under"] != 1 {
		t.Fatalf("tie should award both: %v", p.totals)
	}
}

func TestPriceRejectsNonPositiveGuess(t *testing.T) {
	p := newPrice(Config{Rounds: 1}, nil)
	p.EnterPhase("guess", 1)
	if _, err := lockGuess(t, p, "a", RolePlayer, 0); err == nil {
		t.Fatal("expected invalid_price rejection")
	}
}

func TestPriceItemsRotatePerRound(t *testing.T) {
	items := []PriceItem{
		{Name: "A", PriceCents: 100},
		{Name: "B", PriceCents: 200},
	}
	p := newPrice(Config{Rounds: 3}, items)
	if p.item(1).Name != "A" || p.item(2).Name != "B" || p.item(3).Name != "A" {
		t.Fatalf("unexpected rotation: %s %s %s", p.item(1).Name, p.item(2).Name, p.item(3).Name)
	}
}
