package game

import (
	"encoding/json"
	"errors"
	"time"
)

// Game type tags selectable at room creation.
const (
	TypeCheckbox = "checkbox"
	TypeCounties = "counties"
	TypePredict  = "predict"
	TypePrice    = "price"
)

type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

var (
	ErrValidationFailed = errors.New("validation_failed")
	ErrUnknownGameType  = errors.New("unknown_game_type")
)

// PhaseSpec describes one stage of a game's lifecycle. Duration zero means
// the phase has no deadline. AllSubmit marks phases that advance early once
// every active non-spectator player has submitted.
type PhaseSpec struct {
	Name       string
	Duration   time.Duration
	Accepts    []string
	MinPlayers int
	AllSubmit  bool
}

func (p PhaseSpec) AcceptsAction(actionType string) bool {
	for _, a := range p.Accepts {
		if a == actionType {
			return true
		}
	}
	return false
}

// Action is a player's state transition request. The payload is opaque to
// the room coordinator; only the policy interprets it.
type Action struct {
	Player  string
	Role    Role
	Type    string
	Payload json.RawMessage
}

// Derived is a game-produced event attached to a successfully applied action
// or a phase result.
type Derived struct {
	Type    string
	Payload any
}

type Outcome struct {
	Events []Derived
	// Submitted reports that the acting player has completed the current
	// phase's required submission. Spectator actions never set it.
	Submitted bool
}

// Policy is the per-game-type contract the room coordinator drives. A policy
// owns only game-specific derived state and is always called from the room's
// serialized loop, so it needs no internal locking.
type Policy interface {
	Type() string
	Phases() []PhaseSpec
	Rounds() int
	// LoopStart is the phase index rounds after the first re-enter at.
	LoopStart() int
	// EnterPhase runs the policy's entry hook (picking the round's catalog
	// item, resetting per-phase submissions).
	EnterPhase(phase string, round int)
	// PhasePayload is merged into the phase_changed event (question text,
	// item under auction).
	PhasePayload(phase string, round int) any
	Apply(phase string, round int, act Action) (Outcome, error)
	RoundResult(round int) any
	FinalResult() any
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Config is the deployment tuning shared by all policies.
type Config struct {
	Rounds         int
	MinPlayers     int
	GridSize       int
	SubmitDeadline time.Duration
	RevealDeadline time.Duration
}

// PriceItem is one catalog entry for the price guessing contest.
type PriceItem struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	ImageURL   string `json:"image_url,omitempty"`
}

// VoteQuestion is one two-choice prediction prompt.
type VoteQuestion struct {
	Text    string    `json:"text"`
	Choices [2]string `json:"choices"`
}

// Content is the game-specific source material, normally loaded from the
// store at startup.
type Content struct {
	Counties   []string
	PriceItems []PriceItem
	Questions  []VoteQuestion
}

// New builds the policy for a game type tag. The coordinator calls this once
// at room creation and never branches on the type again.
func New(gameType string, cfg Config, content Content) (Policy, error) {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 1
	}
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = 2
	}
	switch gameType {
	case TypeCheckbox:
		return newCheckbox(cfg), nil
	case TypeCounties:
		return newCounties(cfg, content.Counties), nil
	case TypePredict:
		return newPredict(cfg, content.Questions), nil
	case TypePrice:
		return newPrice(cfg, content.PriceItems), nil
	default:
		return nil, ErrUnknownGameType
	}
}
