package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"party-rooms/internal/config"
)

// A dumb player for smoke-testing rooms: it joins, waits for phases, and
// plays random legal moves for whichever game the room runs.

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal(err)
	}

	q := url.Values{}
	q.Set("room", cfg.RoomCode)
	q.Set("game", cfg.GameType)
	q.Set("name", cfg.Name)
	wsURL := cfg.WSURL + "?" + q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var actStop chan struct{}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case "welcome":
			log.Printf("joined: %s", data)
		case "phase_changed":
			if actStop != nil {
				close(actStop)
				actStop = nil
			}
			var phase struct {
				Phase  string         `json:"phase"`
				Round  int            `json:"round"`
				Detail map[string]any `json:"detail"`
			}
			if err := json.Unmarshal(base.Payload, &phase); err != nil {
				continue
			}
			log.Printf("phase %s round %d", phase.Phase, phase.Round)
			if acts := actionsFor(cfg.GameType, phase.Phase, phase.Detail, rnd); len(acts) > 0 {
				actStop = make(chan struct{})
				go play(conn, acts, actStop)
			}
		case "game_ended":
			log.Printf("game over: %s", base.Payload)
			return
		case "action_rejected":
			log.Printf("rejected: %s", base.Payload)
		}
	}
}

// play sends the prepared actions with small pauses so the room sees a
// human-ish pace.
func play(conn *websocket.Conn, acts []frame, stop chan struct{}) {
	for _, act := range acts {
		select {
		case <-stop:
			return
		case <-time.After(150 * time.Millisecond):
		}
		data, err := json.Marshal(act)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func actionsFor(gameType, phase string, detail map[string]any, rnd *rand.Rand) []frame {
	switch {
	case gameType == "checkbox" && phase == "race":
		grid := 25
		if g, ok := detail["grid_size"].(float64); ok && g > 0 {
			grid = int(g)
		}
		acts := make([]frame, 0, grid)
		for _, idx := range rnd.Perm(grid) {
			acts = append(acts, frame{Type: "check", Payload: rawJSON(`{"index":%d}`, idx)})
		}
		return acts
	case gameType == "counties" && phase == "naming":
		guesses := []string{"Cork", "Galway", "Mayo", "Kerry", "Clare", "Sligo", "Atlantis"}
		rnd.Shuffle(len(guesses), func(i, j int) { guesses[i], guesses[j] = guesses[j], guesses[i] })
		acts := make([]frame, 0, len(guesses))
		for _, name := range guesses {
			payload, _ := json.Marshal(map[string]string{"name": name})
			acts = append(acts, frame{Type: "name_county", Payload: payload})
		}
		return acts
	case gameType == "predict" && phase == "vote":
		return []frame{{Type: "vote", Payload: rawJSON(`{"choice":%d}`, rnd.Intn(2))}}
	case gameType == "price" && phase == "guess":
		cents := int64(500 + rnd.Intn(9500))
		return []frame{{Type: "guess", Payload: rawJSON(`{"price_cents":%d}`, cents)}}
	}
	return nil
}

func rawJSON(format string, args ...any) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(format, args...))
}
