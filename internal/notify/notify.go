package notify

import (
	"time"

	"party-rooms/internal/config"
	"party-rooms/internal/event"
)

// Config tunes the webhook notifier.
type Config struct {
	Enabled        bool
	WebhookURL     string
	Workers        int
	RetryMax       int
	RetryBase      time.Duration
	RequestTimeout time.Duration
	DispatchBuffer int
}

func ConfigFromServer(cfg config.ServerConfig) Config {
	out := Config{
		Enabled:        cfg.NotifyEnabled,
		WebhookURL:     cfg.NotifyWebhookURL,
		Workers:        cfg.NotifyWorkers,
		RetryMax:       cfg.NotifyRetryMax,
		RetryBase:      time.Duration(cfg.NotifyRetryBaseMS) * time.Millisecond,
		RequestTimeout: 5 * time.Second,
		DispatchBuffer: 256,
	}
	if out.WebhookURL == "" {
		out.Enabled = false
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}
	return out
}

// Notification is the webhook body: one room fact worth telling the outside
// world about (round results and final results).
type Notification struct {
	Room     string `json:"room"`
	GameType string `json:"game_type"`
	Event    string `json:"event"`
	Seq      int64  `json:"seq"`
	ServerTS int64  `json:"server_ts"`
	Payload  any    `json:"payload"`
}

type pushJob struct {
	note    Notification
	attempt int
}

func jobFromEvent(roomCode, gameType string, ev event.Event) pushJob {
	return pushJob{note: Notification{
		Room:     roomCode,
		GameType: gameType,
		Event:    ev.Type,
		Seq:      ev.Seq,
		ServerTS: ev.ServerTS,
		Payload:  ev.Payload,
	}}
}
