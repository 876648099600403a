package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"moodcheck/internal/analysis"
	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
	"moodcheck/internal/transcribe"
)

// TranscriptResolver picks the transcript and emotion for a finished clip.
type TranscriptResolver interface {
	Resolve(ctx context.Context, clip domain.AudioClip, local transcribe.Local) (domain.TranscriptionResult, error)
}

// Analyzer turns a seed into the full analysis.
type Analyzer interface {
	Analyze(ctx context.Context, seed analysis.Seed) (*analysis.Result, error)
}

// Submission is everything the recorder hands over when capture ends.
type Submission struct {
	UserID          string
	Clip            domain.AudioClip
	LocalTranscript string
	Heuristic       string
}

// Pipeline takes a finished recording all the way to a stored check-in.
type Pipeline struct {
	artifacts ports.ArtifactStore
	resolver  TranscriptResolver
	rules     ports.TranscriptRules
	analyzer  Analyzer
	writer    *Writer
	log       *slog.Logger
}

// PipelineDeps lists the pipeline collaborators. Artifacts and Rules are optional.
type PipelineDeps struct {
	Artifacts ports.ArtifactStore
	Resolver  TranscriptResolver
	Rules     ports.TranscriptRules
	Analyzer  Analyzer
	Writer    *Writer
}

func NewPipeline(deps PipelineDeps, log *slog.Logger) *Pipeline {
	return &Pipeline{
		artifacts: deps.Artifacts,
		resolver:  deps.Resolver,
		rules:     deps.Rules,
		analyzer:  deps.Analyzer,
		writer:    deps.Writer,
		log:       logger.OrDefault(log),
	}
}

// Run stores the audio, resolves a transcript, analyzes it and writes the
// check-in exactly once.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (domain.CheckInRecord, error) {
	log := p.log.With("user_id", sub.UserID)

	storagePath := ""
	if p.artifacts != nil {
		path, err := p.artifacts.SaveAudio(ctx, sub.UserID, sub.Clip)
		if err != nil {
			return domain.CheckInRecord{}, &domain.PersistError{Op: "audio", Err: err}
		}
		storagePath = path
		log.Debug("audio stored", "path", path, "bytes", len(sub.Clip.Data))
	}

	resolved, err := p.resolver.Resolve(ctx, sub.Clip, transcribe.Local{
		Transcript:   sub.LocalTranscript,
		EmotionLabel: sub.Heuristic,
	})
	if err != nil {
		return domain.CheckInRecord{}, err
	}
	log.Info("transcript resolved", "source", resolved.Source, "emotion", resolved.EmotionLabel)

	if storagePath != "" {
		err := p.writer.PersistRecording(ctx, domain.RecordingRecord{
			UserID:       sub.UserID,
			StoragePath:  storagePath,
			DurationMS:   sub.Clip.Duration.Milliseconds(),
			Transcript:   resolved.Transcript,
			EmotionLabel: resolved.EmotionLabel,
			EmotionScore: resolved.EmotionScore,
		})
		if err != nil {
			return domain.CheckInRecord{}, err
		}
	}

	return p.Rerun(ctx, sub.UserID, analysis.Seed{
		Transcript:   resolved.Transcript,
		EmotionLabel: resolved.EmotionLabel,
		EmotionScore: resolved.EmotionScore,
	})
}

// Rerun analyzes an existing transcript again and stores a new check-in.
func (p *Pipeline) Rerun(ctx context.Context, userID string, seed analysis.Seed) (domain.CheckInRecord, error) {
	seed.Transcript = p.applyRules(seed.Transcript)
	if strings.TrimSpace(seed.Transcript) == "" {
		return domain.CheckInRecord{}, &domain.NoTranscriptError{}
	}

	result, err := p.analyzer.Analyze(ctx, seed)
	if err != nil {
		return domain.CheckInRecord{}, fmt.Errorf("analyze check-in: %w", err)
	}

	record := p.writer.stampCheckIn(buildRecord(userID, result))
	if err := p.writer.PersistCheckIn(ctx, record); err != nil {
		return domain.CheckInRecord{}, err
	}
	return record, nil
}

func (p *Pipeline) applyRules(text string) string {
	if p.rules == nil {
		return text
	}
	out, err := p.rules.Apply(text)
	if err != nil {
		p.log.Warn("transcript rules failed, using raw transcript", "error", err)
		return text
	}
	return out
}

func buildRecord(userID string, result *analysis.Result) domain.CheckInRecord {
	record := domain.CheckInRecord{
		UserID:       userID,
		MoodSummary:  result.MoodSummary(),
		MoodTitle:    optional(result.MoodTitle),
		Status:       domain.CheckInCompleted,
		EnergyLevel:  result.EnergyLevel(),
		Transcript:   result.Seed.Transcript,
		EmotionLabel: result.Seed.EmotionLabel,
		Workout:      result.Workout,
		Insight:      optional(result.Insight),
		Prediction:   optional(result.Prediction),
		PlanHelp:     optional(result.PlanHelp),
	}
	if result.Habit != nil {
		record.HabitTitle = optional(result.Habit.Title)
		record.HabitDescription = optional(result.Habit.Description)
	}
	return record
}

func optional(text string) *string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}
