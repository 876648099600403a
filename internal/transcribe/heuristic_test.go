package transcribe

import (
	"strings"
	"testing"
	"time"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestEstimateEmotionThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		words int
		want  string
	}{
		{words: 10, want: "calm"},
		{words: 89, want: "calm"},
		{words: 90, want: "neutral"},
		{words: 160, want: "neutral"},
		{words: 161, want: "excited"},
		{words: 190, want: "excited"},
		{words: 191, want: "anxious"},
	}
	for _, tc := range cases {
		if got := EstimateEmotion(words(tc.words), time.Minute); got != tc.want {
			t.Fatalf("%d wpm: got %q, want %q", tc.words, got, tc.want)
		}
	}
}

func TestEstimateEmotionClampsShortDurations(t *testing.T) {
	t.Parallel()

	// 3 words in 200ms is treated as 3 words per second.
	if got := EstimateEmotion("one two three", 200*time.Millisecond); got != "excited" {
		t.Fatalf("expected excited, got %q", got)
	}
}

func TestEstimateEmotionEmptyTranscript(t *testing.T) {
	t.Parallel()

	if got := EstimateEmotion("   ", time.Minute); got != "" {
		t.Fatalf("expected no label, got %q", got)
	}
}
