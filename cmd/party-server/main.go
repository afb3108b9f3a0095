package main

import (
	"context"
	"net/http"
	"time"

	"party-rooms/internal/config"
	"party-rooms/internal/event"
	"party-rooms/internal/game"
	"party-rooms/internal/logging"
	"party-rooms/internal/notify"
	"party-rooms/internal/room"
	"party-rooms/internal/store"
	httptransport "party-rooms/internal/transport/http"
	"party-rooms/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx := context.Background()
	content := game.Content{}

	var st *store.Store
	if cfg.Server.PostgresDSN != "" {
		st, err = store.New(cfg.Server.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		if err := st.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		if err := st.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("ensure schema failed")
		}
		if err := st.SeedContent(ctx, game.SeedContent()); err != nil {
			log.Fatal().Err(err).Msg("seed content failed")
		}
		content, err = st.LoadContent(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("load content failed")
		}
		log.Info().
			Int("counties", len(content.Counties)).
			Int("price_items", len(content.PriceItems)).
			Int("questions", len(content.Questions)).
			Msg("content loaded")
	} else {
		log.Warn().Msg("no POSTGRES_DSN; running without archive, using built-in content")
	}

	notifier := notify.NewManager(notify.ConfigFromServer(cfg.Server))
	notifier.Start(ctx)

	sink := &resultSink{notifier: notifier, store: st}
	directory := room.NewDirectory(cfg.Server.MaxRooms, room.Settings{
		ReconnectGrace: cfg.Game.ReconnectGrace(),
		ReplayWindow:   cfg.Game.ReplayWindow,
	}, cfg.Game.EmptyRoomGrace(), game.Config{
		Rounds:         cfg.Game.Rounds,
		MinPlayers:     cfg.Game.MinPlayers,
		GridSize:       cfg.Game.CheckboxGrid,
		SubmitDeadline: cfg.Game.SubmitDeadline(),
		RevealDeadline: cfg.Game.RevealDeadline(),
	}, content, sink)
	directory.StartJanitor(ctx, 5*time.Second)

	wsServer := ws.NewServer(directory, cfg.Game.SendBufferSize)
	r := httptransport.NewRouter(st, directory, wsServer)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

// resultSink is the room observer: results go to the webhook notifier, and
// final results also land in the archive. Archiving happens off the room
// loop.
type resultSink struct {
	notifier *notify.Manager
	store    *store.Store
}

func (s *resultSink) RoomEvent(roomCode, gameType string, ev event.Event) {
	s.notifier.RoomEvent(roomCode, gameType, ev)
	if s.store == nil || ev.Type != event.TypeGameEnded {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.store.ArchiveFinishedGame(ctx, roomCode, gameType, ev.Payload); err != nil {
			log.Error().Err(err).Str("room_code", roomCode).Msg("archive finished game failed")
		}
	}()
}
