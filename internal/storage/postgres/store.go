// Package postgres stores check-ins and recording metadata in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
)

const undefinedTable = "42P01"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements ports.CheckInStore and ports.HistoryReader.
type Store struct {
	db   *sql.DB
	exec execer
	log  *slog.Logger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, url string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db, exec: db, log: logger.OrDefault(log).With("store", "postgres")}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const insertCheckIn = `INSERT INTO check_ins (
	id, user_id, mood_summary, mood_title, status, energy_level, transcript, emotion_label,
	workout, habit_title, habit_description, insight, prediction, plan_help, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

func (s *Store) InsertCheckIn(ctx context.Context, r domain.CheckInRecord) error {
	_, err := s.exec.ExecContext(ctx, insertCheckIn,
		r.ID, r.UserID, r.MoodSummary, r.MoodTitle, string(r.Status), r.EnergyLevel,
		r.Transcript, nullString(r.EmotionLabel), pq.Array(r.Workout),
		r.HabitTitle, r.HabitDescription, r.Insight, r.Prediction, r.PlanHelp, r.CreatedAt,
	)
	if err != nil {
		return classify("insert check-in", err)
	}
	return nil
}

const insertRecording = `INSERT INTO recordings (
	id, user_id, storage_path, duration_ms, transcript, emotion_label, emotion_score, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *Store) InsertRecording(ctx context.Context, r domain.RecordingRecord) error {
	_, err := s.exec.ExecContext(ctx, insertRecording,
		r.ID, r.UserID, r.StoragePath, r.DurationMS,
		nullString(r.Transcript), nullString(r.EmotionLabel), r.EmotionScore, r.CreatedAt,
	)
	if err != nil {
		return classify("insert recording", err)
	}
	return nil
}

const selectCheckIns = `SELECT
	id, user_id, mood_summary, mood_title, status, energy_level, transcript, emotion_label,
	workout, habit_title, habit_description, insight, prediction, plan_help, created_at
FROM check_ins WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

// ListCheckIns returns the newest check-ins first.
func (s *Store) ListCheckIns(ctx context.Context, userID string, limit int) ([]domain.CheckInRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectCheckIns, userID, limit)
	if err != nil {
		return nil, classify("list check-ins", err)
	}
	defer rows.Close()

	var out []domain.CheckInRecord
	for rows.Next() {
		var (
			r            domain.CheckInRecord
			status       string
			energy       sql.NullInt64
			emotionLabel sql.NullString
			transcript   sql.NullString
			workout      pq.StringArray
			title        sql.NullString
			habitTitle   sql.NullString
			habitDesc    sql.NullString
			insight      sql.NullString
			prediction   sql.NullString
			planHelp     sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.MoodSummary, &title, &status, &energy, &transcript, &emotionLabel,
			&workout, &habitTitle, &habitDesc, &insight, &prediction, &planHelp, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan check-in: %w", err)
		}
		r.Status = domain.CheckInStatus(status)
		r.Transcript = transcript.String
		r.EmotionLabel = emotionLabel.String
		r.Workout = []string(workout)
		r.MoodTitle = stringPtr(title)
		r.HabitTitle = stringPtr(habitTitle)
		r.HabitDescription = stringPtr(habitDesc)
		r.Insight = stringPtr(insight)
		r.Prediction = stringPtr(prediction)
		r.PlanHelp = stringPtr(planHelp)
		if energy.Valid {
			level := int(energy.Int64)
			r.EnergyLevel = &level
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list check-ins", err)
	}
	return out, nil
}

// classify maps a missing table onto domain.ErrRelationMissing.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTable {
		return fmt.Errorf("%s: %w", op, domain.ErrRelationMissing)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}
