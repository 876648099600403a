package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
)

func TestWriterPersistCheckInNotifiesListeners(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	first := &fakeListener{err: errors.New("broker down")}
	second := &fakeListener{}
	writer := NewWriter(store, logger.Discard(), first, nil, second)

	if err := writer.PersistCheckIn(context.Background(), domain.CheckInRecord{UserID: "u1", MoodSummary: "ok"}); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	saved := store.snapshotCheckIns()
	if len(saved) != 1 {
		t.Fatalf("expected one insert, got %d", len(saved))
	}
	if saved[0].ID == "" || saved[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be assigned: %+v", saved[0])
	}
	if first.count() != 1 || second.count() != 1 {
		t.Fatalf("expected both listeners notified, got %d and %d", first.count(), second.count())
	}
}

func TestWriterToleratesMissingRelation(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: fmt.Errorf("insert check_ins: %w", domain.ErrRelationMissing)}
	listener := &fakeListener{}
	writer := NewWriter(store, logger.Discard(), listener)

	if err := writer.PersistCheckIn(context.Background(), domain.CheckInRecord{UserID: "u1"}); err != nil {
		t.Fatalf("expected missing relation to be tolerated, got %v", err)
	}
	if err := writer.PersistRecording(context.Background(), domain.RecordingRecord{UserID: "u1"}); err != nil {
		t.Fatalf("expected missing relation to be tolerated, got %v", err)
	}
	if listener.count() != 0 {
		t.Fatalf("listeners must not hear about unwritten check-ins")
	}
}

func TestWriterWrapsStoreFailures(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: errors.New("connection refused")}
	listener := &fakeListener{}
	writer := NewWriter(store, logger.Discard(), listener)

	err := writer.PersistCheckIn(context.Background(), domain.CheckInRecord{UserID: "u1"})
	var persistErr *domain.PersistError
	if !errors.As(err, &persistErr) || persistErr.Op != "check-in" {
		t.Fatalf("expected check-in PersistError, got %v", err)
	}
	if listener.count() != 0 {
		t.Fatalf("listeners must not run after a failed write")
	}

	err = writer.PersistRecording(context.Background(), domain.RecordingRecord{UserID: "u1"})
	if !errors.As(err, &persistErr) || persistErr.Op != "recording" {
		t.Fatalf("expected recording PersistError, got %v", err)
	}
}

type fakeStore struct {
	mu           sync.Mutex
	err          error
	recordingErr error
	checkIns     []domain.CheckInRecord
	recordings []domain.RecordingRecord
}

func (f *fakeStore) InsertCheckIn(_ context.Context, record domain.CheckInRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.checkIns = append(f.checkIns, record)
	return nil
}

func (f *fakeStore) InsertRecording(_ context.Context, record domain.RecordingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.recordingErr != nil {
		return f.recordingErr
	}
	f.recordings = append(f.recordings, record)
	return nil
}

func (f *fakeStore) snapshotCheckIns() []domain.CheckInRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CheckInRecord(nil), f.checkIns...)
}

func (f *fakeStore) snapshotRecordings() []domain.RecordingRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RecordingRecord(nil), f.recordings...)
}

type fakeListener struct {
	mu    sync.Mutex
	err   error
	saved []domain.CheckInRecord
}

func (f *fakeListener) CheckInSaved(_ context.Context, record domain.CheckInRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, record)
	return f.err
}

func (f *fakeListener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}
