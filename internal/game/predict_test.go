package game

import (
	"encoding/json"
	"testing"
)

func castVote(t *testing.T, p Policy, player string, role Role, choice int) (Outcome, error) {
	t.Helper()
	payload, _ := json.Marshal(map[string]int{"choice": choice})
	return p.Apply("vote", 1, Action{Player: player, Role: role, Type: "vote", Payload: payload})
}

func TestPredictMinoritySideScores(t *testing.T) {
	p := newPredict(Config{Rounds: 1}, nil)
	p.EnterPhase("vote", 1)

	for _, player := range []string{"a", "b", "c"} {
		if _, err := castVote(t, p, player, RolePlayer, 0); err != nil {
			t.Fatalf("%s vote: %v", player, err)
		}
	}
	if _, err := castVote(t, p, "d", RolePlayer, 1); err != nil {
		t.Fatalf("d vote: %v", err)
	}

	result := p.RoundResult(1).(map[string]any)
	winners := result["winners"].([]string)
	if len(winners) != 1 || winners[0] != "d" {
		t.Fatalf("winners = %v, want [d]", winners)
	}
	if p.totals["d"] != 1 || p.totals["a"] != 0 {
		t.Fatalf("unexpected totals: %v", p.totals)
	}
}

func TestPredictTieScoresEveryone(t *testing.T) {
	p := newPredict(Config{Rounds: 1}, nil)
	p.EnterPhase("vote", 1)

	if _, err := castVote(t, p, "a", RolePlayer, 0); err != nil {
		t.Fatalf("a vote: %v", err)
	}
	if _, err := castVote(t, p, "b", RolePlayer, 1); err != nil {
		t.Fatalf("b vote: %v", err)
	}

	result := p.RoundResult(1).(map[string]any)
	if tie := result["tie"].(bool); !tie {
		t.Fatal("expected tie")
	}
	if p.totals["a"] != 1 || p.totals["b"] != 1 {
		t.Fatalf("tie should score both sides: %v", p.totals)
	}
}

func TestPredictRevoteReplacesAndSpectatorExcluded(t *testing.T) {
	p := newPredict(Config{Rounds: 1}, nil)
	p.EnterPhase("vote", 1)

	out, err := castVote(t, p, "a", RolePlayer, 0)
	if err != nil || !out.Submitted {
		t.Fatalf("vote = (%+v, %v), want submitted", out, err)
	}
	if _, err := castVote(t, p, "a", RolePlayer, 1); err != nil {
		t.Fatalf("revote: %v", err)
	}
	if p.votes["a"] != 1 {
		t.Fatalf("votes[a] = %d, want 1", p.votes["a"])
	}

	out, err = castVote(t, p, "ghost", RoleSpectator, 0)
	if err != nil {
		t.Fatalf("spectator vote: %v", err)
	}
	if out.Submitted {
		t.Fatal("spectator vote must not count as submitted")
	}
	if _, ok := p.votes["ghost"]; ok {
		t.Fatal("spectator vote leaked into official votes")
	}
}

func TestPredictRejectsBadChoice(t *testing.T) {
	p := newPredict(Config{Rounds: 1}, nil)
	p.EnterPhase("vote", 1)
	if _, err := castVote(t, p, "a", RolePlayer, 2); err == nil {
		t.Fatal("expected invalid_choice rejection")
	}
}
