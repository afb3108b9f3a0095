package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// FinishedGame is one archived final result.
type FinishedGame struct {
	ID         string          `json:"id"`
	RoomCode   string          `json:"room_code"`
	GameType   string          `json:"game_type"`
	Result     json.RawMessage `json:"result"`
	FinishedAt time.Time       `json:"finished_at"`
}

// ArchiveFinishedGame records a room's final result and returns the row id.
func (s *Store) ArchiveFinishedGame(ctx context.Context, roomCode, gameType string, result any) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	id := NewID()
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO finished_games (id, room_code, game_type, result) VALUES ($1,$2,$3,$4)`,
		id, roomCode, gameType, payload)
	return id, err
}

// GetFinishedGame fetches one archived result by row id.
func (s *Store) GetFinishedGame(ctx context.Context, id string) (*FinishedGame, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT id, room_code, game_type, result, finished_at FROM finished_games WHERE id = $1`, id)
	var g FinishedGame
	if err := row.Scan(&g.ID, &g.RoomCode, &g.GameType, &g.Result, &g.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// ListFinishedGames returns recent archived results, newest first.
func (s *Store) ListFinishedGames(ctx context.Context, roomCode string, limit int) ([]FinishedGame, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `SELECT id, room_code, game_type, result, finished_at FROM finished_games
	          WHERE ($1 = '' OR room_code = $1)
	          ORDER BY finished_at DESC LIMIT $2`
	rows, err := s.Pool.Query(ctx, query, roomCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FinishedGame
	for rows.Next() {
		var g FinishedGame
		if err := rows.Scan(&g.ID, &g.RoomCode, &g.GameType, &g.Result, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
