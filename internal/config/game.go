package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// GameConfig is the per-deployment tuning surface shared by all game types.
type GameConfig struct {
	Rounds         int `env:"GAME_ROUNDS" envDefault:"3"`
	MinPlayers     int `env:"GAME_MIN_PLAYERS" envDefault:"2"`
	CheckboxGrid   int `env:"GAME_CHECKBOX_GRID" envDefault:"25"`
	SubmitSeconds  int `env:"GAME_SUBMIT_DEADLINE_SECONDS" envDefault:"30"`
	RevealSeconds  int `env:"GAME_REVEAL_DEADLINE_SECONDS" envDefault:"10"`
	GraceSeconds   int `env:"RECONNECT_GRACE_SECONDS" envDefault:"30"`
	ReplayWindow   int `env:"REPLAY_WINDOW" envDefault:"500"`
	EmptySeconds   int `env:"EMPTY_ROOM_GRACE_SECONDS" envDefault:"60"`
	SendBufferSize int `env:"SEND_BUFFER_SIZE" envDefault:"64"`
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c GameConfig) SubmitDeadline() time.Duration {
	return time.Duration(c.SubmitSeconds) * time.Second
}

func (c GameConfig) RevealDeadline() time.Duration {
	return time.Duration(c.RevealSeconds) * time.Second
}

func (c GameConfig) ReconnectGrace() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

func (c GameConfig) EmptyRoomGrace() time.Duration {
	return time.Duration(c.EmptySeconds) * time.Second
}
