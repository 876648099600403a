// Package clickhouse mirrors saved check-ins into a mood timeline table for
// trend queries.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
)

const createTimeline = `CREATE TABLE IF NOT EXISTS mood_timeline (
	created_at DateTime64(3),
	user_id String,
	check_in_id String,
	emotion_label String,
	energy_level Nullable(Int32),
	mood_title String
) ENGINE = MergeTree()
ORDER BY (user_id, created_at)`

const insertTimeline = `INSERT INTO mood_timeline
	(created_at, user_id, check_in_id, emotion_label, energy_level, mood_title)
	VALUES (?, ?, ?, ?, ?, ?)`

type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// Timeline implements ports.CheckInListener.
type Timeline struct {
	conn conn
	log  *slog.Logger
}

// Open connects, pings and makes sure the timeline table exists.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Timeline, error) {
	c, err := ch.Open(&ch.Options{
		Addr: []string{cfg.Addr},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &ch.Compression{Method: ch.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	t := &Timeline{conn: c, log: logger.OrDefault(log).With("store", "clickhouse")}
	if err := t.conn.Exec(ctx, createTimeline); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create mood timeline: %w", err)
	}
	t.log.Info("mood timeline ready", "addr", cfg.Addr)
	return t, nil
}

func (t *Timeline) CheckInSaved(ctx context.Context, record domain.CheckInRecord) error {
	var energy *int32
	if record.EnergyLevel != nil {
		v := int32(*record.EnergyLevel)
		energy = &v
	}
	title := ""
	if record.MoodTitle != nil {
		title = *record.MoodTitle
	}

	if err := t.conn.Exec(ctx, insertTimeline,
		record.CreatedAt, record.UserID, record.ID, record.EmotionLabel, energy, title,
	); err != nil {
		return fmt.Errorf("insert mood timeline: %w", err)
	}
	return nil
}

func (t *Timeline) Close() error {
	return t.conn.Close()
}
