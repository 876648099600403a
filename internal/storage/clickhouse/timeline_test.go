package clickhouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
)

type fakeConn struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeConn) Exec(_ context.Context, query string, args ...any) error {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeConn) Close() error { return nil }

func TestCheckInSavedWritesTimelineRow(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	timeline := &Timeline{conn: conn, log: logger.Discard()}
	title := "Bright"
	level := 80
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := timeline.CheckInSaved(context.Background(), domain.CheckInRecord{
		ID: "c1", UserID: "u1", EmotionLabel: "hap", EnergyLevel: &level, MoodTitle: &title, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(conn.queries) != 1 || !strings.Contains(conn.queries[0], "INSERT INTO mood_timeline") {
		t.Fatalf("unexpected queries: %v", conn.queries)
	}
	args := conn.args[0]
	if args[0] != created || args[1] != "u1" || args[2] != "c1" || args[3] != "hap" || args[5] != "Bright" {
		t.Fatalf("unexpected args: %v", args)
	}
	if energy, ok := args[4].(*int32); !ok || energy == nil || *energy != 80 {
		t.Fatalf("unexpected energy arg: %#v", args[4])
	}
}

func TestCheckInSavedWithoutOptionalFields(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	timeline := &Timeline{conn: conn, log: logger.Discard()}
	if err := timeline.CheckInSaved(context.Background(), domain.CheckInRecord{ID: "c2"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if energy := conn.args[0][4].(*int32); energy != nil {
		t.Fatalf("expected nil energy level")
	}
}

func TestCheckInSavedReportsFailure(t *testing.T) {
	t.Parallel()

	timeline := &Timeline{conn: &fakeConn{err: errors.New("down")}, log: logger.Discard()}
	if err := timeline.CheckInSaved(context.Background(), domain.CheckInRecord{ID: "c3"}); err == nil {
		t.Fatalf("expected error")
	}
}
