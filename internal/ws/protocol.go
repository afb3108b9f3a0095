package ws

import (
	"encoding/json"

	"party-rooms/internal/room"
)

// ClientMessage is any frame a participant sends. Game actions carry their
// action type directly ("check", "vote", ...); "advance" and "leave" are
// room-level verbs handled before the game sees them.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Welcome is the private first frame after a successful connect. Seq is the
// log position the replay already caught the client up to.
type Welcome struct {
	Type string `json:"type"`
	Room string `json:"room"`
	room.ConnectResult
}

// ErrorFrame is sent before closing when the connect itself failed.
type ErrorFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
