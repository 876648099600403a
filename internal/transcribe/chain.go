// Package transcribe resolves a transcript and emotion for a clip from an
// ordered list of providers plus the recorder's own live captions.
package transcribe

import (
	"context"
	"log/slog"
	"strings"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
)

// Local is what the recorder observed on its own while capturing.
type Local struct {
	Transcript   string
	EmotionLabel string
}

// Chain tries providers in priority order. Unconfigured providers are simply
// not part of the chain.
type Chain struct {
	providers []ports.Transcriber
	log       *slog.Logger
}

func NewChain(log *slog.Logger, providers ...ports.Transcriber) *Chain {
	configured := make([]ports.Transcriber, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			configured = append(configured, p)
		}
	}
	return &Chain{providers: configured, log: logger.OrDefault(log)}
}

// Resolve takes the transcript from the first source with text and the emotion
// from the first provider that reports one, falling back to the local label.
// Every configured provider is consulted so an emotion is not lost when an
// earlier provider already supplied the transcript.
func (c *Chain) Resolve(ctx context.Context, clip domain.AudioClip, local Local) (domain.TranscriptionResult, error) {
	var (
		result    domain.TranscriptionResult
		attempted []domain.ProviderTag
	)

	for _, provider := range c.providers {
		name := provider.Name()
		attempted = append(attempted, name)

		got, err := provider.Transcribe(ctx, clip)
		if err != nil {
			c.log.Warn("transcription provider failed", "provider", name, "error", err)
			continue
		}

		if result.Transcript == "" {
			if text := strings.TrimSpace(got.Transcript); text != "" {
				result.Transcript = text
				result.Source = name
			}
		}
		if result.EmotionLabel == "" {
			if label := strings.TrimSpace(got.EmotionLabel); label != "" {
				result.EmotionLabel = label
				result.EmotionScore = got.EmotionScore
			}
		}
		c.log.Info("transcription provider", "provider", name,
			"has_transcript", got.Transcript != "", "emotion", got.EmotionLabel)
	}

	if result.Transcript == "" {
		attempted = append(attempted, domain.ProviderLocalCaptions)
		if text := strings.TrimSpace(local.Transcript); text != "" {
			result.Transcript = text
			result.Source = domain.ProviderLocalCaptions
		}
	}
	if result.EmotionLabel == "" && local.EmotionLabel != "" {
		result.EmotionLabel = local.EmotionLabel
		result.EmotionScore = nil
	}

	if result.Transcript == "" {
		return domain.TranscriptionResult{}, &domain.NoTranscriptError{Attempted: attempted}
	}
	return result, nil
}
