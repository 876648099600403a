package analysis

import (
	"strings"
	"testing"
)

func TestParseListJSONAndFallback(t *testing.T) {
	t.Parallel()

	got := parseList("```json\n[\"a\",\"b\",\"c\",\"d\",\"e\",\"f\"]\n```", maxWorkoutItems)
	if len(got) != 5 || got[0] != "a" || got[4] != "e" {
		t.Fatalf("unexpected json list: %v", got)
	}

	got = parseList("- \"Jumping jacks\"\n* Squats, [Lunges]\n\n", maxWorkoutItems)
	want := []string{"Jumping jacks", "Squats", "Lunges"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected fallback list: %v", got)
	}

	if got := parseList("   ", maxWorkoutItems); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestParseHabit(t *testing.T) {
	t.Parallel()

	h, ok := parseHabit("```\n{\"title\":\"Stretch\",\"description\":\"Reach up for a minute.\"}\n```")
	if !ok || h.Title != "Stretch" || h.Label != defaultHabitKind {
		t.Fatalf("unexpected json habit: %+v ok=%v", h, ok)
	}

	h, ok = parseHabit("Drink water\nFill a glass.\nSip it slowly.")
	if !ok || h.Title != "Drink water" || h.Description != "Fill a glass. Sip it slowly." {
		t.Fatalf("unexpected text habit: %+v ok=%v", h, ok)
	}

	if _, ok := parseHabit(`{"title":"","description":""}`); ok {
		t.Fatalf("expected empty json habit to be rejected")
	}
}

func TestParseTitleAndPlan(t *testing.T) {
	t.Parallel()

	if got := parseTitle("\n  \"Quiet Focus\"\nextra"); got != "Quiet Focus" {
		t.Fatalf("unexpected title: %q", got)
	}

	lines := make([]string, 14)
	for i := range lines {
		lines[i] = "line"
	}
	if got := strings.Count(parsePlan(strings.Join(lines, "\n\n")), "\n"); got != maxPlanLines-1 {
		t.Fatalf("expected %d lines, got %d", maxPlanLines, got+1)
	}
}
