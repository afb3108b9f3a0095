package store

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS counties (
    name        TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS price_items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    price_cents BIGINT NOT NULL,
    image_url   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS vote_questions (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,
    choice_a    TEXT NOT NULL,
    choice_b    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS finished_games (
    id          TEXT PRIMARY KEY,
    room_code   TEXT NOT NULL,
    game_type   TEXT NOT NULL,
    result      JSONB NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS finished_games_room_idx ON finished_games (room_code, finished_at DESC);
`

// EnsureSchema creates the tables the server reads and writes. Every
// statement is idempotent, so running it at startup against an already
// provisioned database is safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaSQL)
	return err
}
