package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
)

type recordedExec struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls []recordedExec
	err   error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, recordedExec{query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return driver.RowsAffected(1), nil
}

func newTestStore(exec *fakeExecer) *Store {
	return &Store{exec: exec, log: logger.Discard()}
}

func TestInsertCheckInArguments(t *testing.T) {
	t.Parallel()

	exec := &fakeExecer{}
	title := "Calm Focus"
	level := 42
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record := domain.CheckInRecord{
		ID:          "c1",
		UserID:      "u1",
		MoodSummary: "steady",
		MoodTitle:   &title,
		Status:      domain.CheckInCompleted,
		EnergyLevel: &level,
		Transcript:  "fine",
		Workout:     []string{"squats"},
		CreatedAt:   created,
	}

	if err := newTestStore(exec).InsertCheckIn(context.Background(), record); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if len(exec.calls) != 1 || !strings.Contains(exec.calls[0].query, "INSERT INTO check_ins") {
		t.Fatalf("unexpected exec calls: %+v", exec.calls)
	}

	args := exec.calls[0].args
	if len(args) != 15 {
		t.Fatalf("expected 15 args, got %d", len(args))
	}
	if args[0] != "c1" || args[4] != "Completed" || args[14] != created {
		t.Fatalf("unexpected args: %v", args)
	}
	if label, ok := args[7].(sql.NullString); !ok || label.Valid {
		t.Fatalf("empty emotion label should be NULL: %#v", args[7])
	}
	if _, ok := args[8].(*pq.StringArray); !ok {
		t.Fatalf("workout should be a postgres array: %#v", args[8])
	}
}

func TestInsertMapsUndefinedTable(t *testing.T) {
	t.Parallel()

	exec := &fakeExecer{err: &pq.Error{Code: "42P01", Message: `relation "check_ins" does not exist`}}
	store := newTestStore(exec)

	if err := store.InsertCheckIn(context.Background(), domain.CheckInRecord{ID: "c1"}); !errors.Is(err, domain.ErrRelationMissing) {
		t.Fatalf("expected ErrRelationMissing, got %v", err)
	}
	if err := store.InsertRecording(context.Background(), domain.RecordingRecord{ID: "r1"}); !errors.Is(err, domain.ErrRelationMissing) {
		t.Fatalf("expected ErrRelationMissing, got %v", err)
	}
}

func TestInsertKeepsOtherErrors(t *testing.T) {
	t.Parallel()

	exec := &fakeExecer{err: &pq.Error{Code: "23505", Message: "duplicate key"}}
	err := newTestStore(exec).InsertCheckIn(context.Background(), domain.CheckInRecord{ID: "c1"})
	if err == nil || errors.Is(err, domain.ErrRelationMissing) {
		t.Fatalf("expected plain failure, got %v", err)
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		t.Fatalf("expected wrapped pq error, got %v", err)
	}
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	t.Parallel()

	exec := &fakeExecer{}
	if err := newTestStore(exec).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if len(exec.calls) != len(schema) {
		t.Fatalf("expected %d statements, got %d", len(schema), len(exec.calls))
	}
	if !strings.Contains(exec.calls[0].query, "check_ins") || !strings.Contains(exec.calls[2].query, "recordings") {
		t.Fatalf("unexpected migration order")
	}
}
