package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
)

// Writer appends check-ins and recordings to the store and tells listeners
// about every check-in that landed.
type Writer struct {
	store     ports.CheckInStore
	listeners []ports.CheckInListener
	log       *slog.Logger
	now       func() time.Time
}

func NewWriter(store ports.CheckInStore, log *slog.Logger, listeners ...ports.CheckInListener) *Writer {
	configured := make([]ports.CheckInListener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			configured = append(configured, l)
		}
	}
	return &Writer{store: store, listeners: configured, log: logger.OrDefault(log), now: time.Now}
}

// PersistCheckIn inserts the record. A missing table is logged and tolerated;
// listeners only hear about rows that were written.
func (w *Writer) PersistCheckIn(ctx context.Context, record domain.CheckInRecord) error {
	record = w.stampCheckIn(record)

	if err := w.store.InsertCheckIn(ctx, record); err != nil {
		if errors.Is(err, domain.ErrRelationMissing) {
			w.log.Warn("check-in table missing, skipping write", "check_in_id", record.ID)
			return nil
		}
		return &domain.PersistError{Op: "check-in", Err: err}
	}
	w.log.Info("check-in saved", "check_in_id", record.ID, "user_id", record.UserID)

	for _, listener := range w.listeners {
		if err := listener.CheckInSaved(ctx, record); err != nil {
			w.log.Warn("check-in listener failed", "check_in_id", record.ID, "error", err)
		}
	}
	return nil
}

func (w *Writer) PersistRecording(ctx context.Context, record domain.RecordingRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = w.now().UTC()
	}

	if err := w.store.InsertRecording(ctx, record); err != nil {
		if errors.Is(err, domain.ErrRelationMissing) {
			w.log.Warn("recordings table missing, skipping write", "path", record.StoragePath)
			return nil
		}
		return &domain.PersistError{Op: "recording", Err: err}
	}
	return nil
}

func (w *Writer) stampCheckIn(record domain.CheckInRecord) domain.CheckInRecord {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = w.now().UTC()
	}
	return record
}
