package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS check_ins (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		mood_summary TEXT NOT NULL,
		mood_title TEXT,
		status TEXT NOT NULL,
		energy_level INTEGER,
		transcript TEXT,
		emotion_label TEXT,
		workout TEXT[],
		habit_title TEXT,
		habit_description TEXT,
		insight TEXT,
		prediction TEXT,
		plan_help TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS check_ins_user_created_idx ON check_ins (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS recordings (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		duration_ms BIGINT,
		transcript TEXT,
		emotion_label TEXT,
		emotion_score DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.log.Info("schema ready", "statements", len(schema))
	return nil
}
