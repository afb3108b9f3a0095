package store

import (
	"context"

	"party-rooms/internal/game"
)

// LoadContent reads the game source material. Empty tables produce empty
// slices; the game layer falls back to its built-in seeds for anything
// missing.
func (s *Store) LoadContent(ctx context.Context) (game.Content, error) {
	var content game.Content

	rows, err := s.Pool.Query(ctx, `SELECT name FROM counties ORDER BY name`)
	if err != nil {
		return content, err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return content, err
		}
		content.Counties = append(content.Counties, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return content, err
	}

	rows, err = s.Pool.Query(ctx, `SELECT name, price_cents, image_url FROM price_items ORDER BY id`)
	if err != nil {
		return content, err
	}
	for rows.Next() {
		var item game.PriceItem
		if err := rows.Scan(&item.Name, &item.PriceCents, &item.ImageURL); err != nil {
			rows.Close()
			return content, err
		}
		content.PriceItems = append(content.PriceItems, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return content, err
	}

	rows, err = s.Pool.Query(ctx, `SELECT text, choice_a, choice_b FROM vote_questions ORDER BY id`)
	if err != nil {
		return content, err
	}
	for rows.Next() {
		var q game.VoteQuestion
		if err := rows.Scan(&q.Text, &q.Choices[0], &q.Choices[1]); err != nil {
			rows.Close()
			return content, err
		}
		content.Questions = append(content.Questions, q)
	}
	rows.Close()
	return content, rows.Err()
}

// SeedContent provisions an empty catalog. Tables that already hold rows
// are left alone.
func (s *Store) SeedContent(ctx context.Context, content game.Content) error {
	existing, err := s.LoadContent(ctx)
	if err != nil {
		return err
	}
	if len(existing.Counties) == 0 {
		for _, name := range content.Counties {
			if err := s.AddCounty(ctx, name); err != nil {
				return err
			}
		}
	}
	if len(existing.PriceItems) == 0 {
		for _, item := range content.PriceItems {
			if _, err := s.AddPriceItem(ctx, item); err != nil {
				return err
			}
		}
	}
	if len(existing.Questions) == 0 {
		for _, q := range content.Questions {
			if _, err := s.AddVoteQuestion(ctx, q); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddCounty inserts one valid county name.
func (s *Store) AddCounty(ctx context.Context, name string) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO counties (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
	return err
}

// AddPriceItem inserts one priced item and returns its id.
func (s *Store) AddPriceItem(ctx context.Context, item game.PriceItem) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO price_items (id, name, price_cents, image_url) VALUES ($1,$2,$3,$4)`,
		id, item.Name, item.PriceCents, item.ImageURL)
	return id, err
}

// AddVoteQuestion inserts one prediction prompt and returns its id.
func (s *Store) AddVoteQuestion(ctx context.Context, q game.VoteQuestion) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO vote_questions (id, text, choice_a, choice_b) VALUES ($1,$2,$3,$4)`,
		id, q.Text, q.Choices[0], q.Choices[1])
	return id, err
}
