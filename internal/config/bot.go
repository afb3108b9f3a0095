package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	WSURL    string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	RoomCode string `env:"ROOM_CODE"`
	GameType string `env:"GAME_TYPE" envDefault:"checkbox"`
	Name     string `env:"BOT_NAME" envDefault:"bot"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
