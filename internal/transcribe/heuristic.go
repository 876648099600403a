package transcribe

import (
	"strings"
	"time"
)

// Speaking-rate thresholds in words per minute. Checks run in order and a
// later match overrides an earlier one.
const (
	excitedWPM = 160
	anxiousWPM = 190
	calmWPM    = 90
)

// EstimateEmotion labels a live-caption transcript by speaking rate. Durations
// under one second count as one second. An empty transcript yields no label.
func EstimateEmotion(transcript string, duration time.Duration) string {
	words := len(strings.Fields(transcript))
	if words == 0 {
		return ""
	}
	if duration < time.Second {
		duration = time.Second
	}

	wpm := float64(words) / duration.Minutes()
	label := "neutral"
	if wpm > excitedWPM {
		label = "excited"
	}
	if wpm > anxiousWPM {
		label = "anxious"
	}
	if wpm < calmWPM {
		label = "calm"
	}
	return label
}
