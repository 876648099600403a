package usecase

import (
	"strings"
	"sync"

	"moodcheck/internal/domain"
	"moodcheck/internal/ports"
)

// transcriptAggregator assembles the local transcript from live captions.
type transcriptAggregator struct {
	mu         sync.Mutex
	finals     []string
	lastSpoken string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event domain.CaptionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}
	a.lastSpoken = text
	if event.Kind == domain.TranscriptKindFinal {
		a.finals = append(a.finals, text)
	}
}

// Raw joins the final segments, appending a trailing partial that never
// became final.
func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	if joined == "" {
		return a.lastSpoken
	}
	if a.lastSpoken == "" || strings.HasSuffix(joined, a.lastSpoken) {
		return joined
	}
	return joined + " " + a.lastSpoken
}

func consumeCaptionEvents(
	stream ports.CaptionStream,
	aggregator *transcriptAggregator,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	if stream == nil {
		return
	}
	for event := range stream.Events() {
		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}
		aggregator.Add(event)
		events.PartialTranscript(text)
	}
}
