package game

import "sort"

// finalTotals builds the game_ended payload shared by every policy:
// cumulative totals plus the top scorers.
func finalTotals(totals map[string]int) map[string]any {
	type total struct {
		Player string `json:"player"`
		Score  int    `json:"score"`
	}
	standings := make([]total, 0, len(totals))
	best := 0
	for player, score := range totals {
		standings = append(standings, total{Player: player, Score: score})
		if score > best {
			best = score
		}
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return standings[i].Player < standings[j].Player
	})
	var winners []string
	for _, s := range standings {
		if s.Score == best && best > 0 {
			winners = append(winners, s.Player)
		}
	}
	return map[string]any{
		"totals":  standings,
		"winners": winners,
	}
}

func orMap[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
