// Package analysis turns a transcript and emotion cue into a full check-in:
// a mandatory state reflection followed by concurrent coaching tasks.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
)

// Seed is the input of one analysis run.
type Seed struct {
	Transcript   string
	EmotionLabel string
	EmotionScore *float64
}

type Habit struct {
	Title       string
	Label       string
	Description string
}

// Result holds every analysis output. Optional fields that failed are left
// empty and their task names are listed in Failed.
type Result struct {
	Seed       Seed
	Reflection string
	MoodTitle  string
	Workout    []string
	Habit      *Habit
	Insight    string
	Prediction string
	PlanHelp   string
	Failed     []string
}

// MoodSummary prefers the reflection, then the emotion label.
func (r *Result) MoodSummary() string {
	if text := strings.TrimSpace(r.Reflection); text != "" {
		return text
	}
	if label := strings.TrimSpace(r.Seed.EmotionLabel); label != "" {
		return label
	}
	return "Unknown"
}

func (r *Result) EnergyLevel() *int {
	return EnergyLevel(r.Seed.EmotionScore)
}

// EnergyLevel maps an emotion score onto 0..100. No score means no level.
func EnergyLevel(score *float64) *int {
	if score == nil || math.IsNaN(*score) {
		return nil
	}
	level := int(math.Round(math.Min(math.Max(*score, 0), 1) * 100))
	return &level
}

type Orchestrator struct {
	gen       ports.Generator
	log       *slog.Logger
	variation func() string
}

func NewOrchestrator(gen ports.Generator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{gen: gen, log: logger.OrDefault(log)}
}

// Analyze runs the reflection, then workout, habit, insight, prediction and
// mood title concurrently. Plan help starts once workout and habit settled.
// Only a failed reflection fails the run.
func (o *Orchestrator) Analyze(ctx context.Context, seed Seed) (*Result, error) {
	reflection, err := o.gen.Generate(ctx, reflectionPrompt(seed))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TaskReflection, err)
	}
	reflection = strings.TrimSpace(stripFences(reflection))
	if reflection == "" {
		return nil, fmt.Errorf("%s: %w", TaskReflection,
			&domain.ProviderError{Provider: "generator", Kind: domain.ProviderErrEmpty})
	}

	result := &Result{Seed: seed, Reflection: reflection}
	var failedMu sync.Mutex
	fail := func(task string, err error) {
		o.log.Warn("analysis task failed", "task", task, "error", err)
		failedMu.Lock()
		defer failedMu.Unlock()
		result.Failed = append(result.Failed, task)
	}

	variation := ""
	if o.variation != nil {
		variation = o.variation()
	}

	var wg sync.WaitGroup
	workout := start(&wg, func() ([]string, error) {
		return generate(ctx, o.gen, workoutPrompt(seed), func(raw string) []string {
			return parseList(raw, maxWorkoutItems)
		})
	})
	habit := start(&wg, func() (*Habit, error) {
		return generate(ctx, o.gen, habitPrompt(seed, variation), func(raw string) *Habit {
			if h, ok := parseHabit(raw); ok {
				return &h
			}
			return nil
		})
	})
	insight := start(&wg, func() (string, error) {
		return generate(ctx, o.gen, insightPrompt(seed), trimmed)
	})
	prediction := start(&wg, func() (string, error) {
		return generate(ctx, o.gen, predictionPrompt(seed), trimmed)
	})
	title := start(&wg, func() (string, error) {
		return generate(ctx, o.gen, moodTitlePrompt(seed, reflection), parseTitle)
	})
	plan := start(&wg, func() (string, error) {
		items, _ := workout.wait()
		h, _ := habit.wait()
		return generate(ctx, o.gen, planHelpPrompt(seed, items, h), parsePlan)
	})
	wg.Wait()

	if result.Workout, err = workout.wait(); err != nil {
		fail(TaskWorkout, err)
	}
	if result.Habit, err = habit.wait(); err != nil {
		fail(TaskHabit, err)
	}
	if result.Insight, err = insight.wait(); err != nil {
		fail(TaskInsight, err)
	}
	if result.Prediction, err = prediction.wait(); err != nil {
		fail(TaskPrediction, err)
	}
	if result.MoodTitle, err = title.wait(); err != nil {
		fail(TaskMoodTitle, err)
	}
	if result.PlanHelp, err = plan.wait(); err != nil {
		fail(TaskPlanHelp, err)
	}

	o.log.Info("analysis complete", "failed", len(result.Failed), "has_title", result.MoodTitle != "")
	return result, nil
}

func trimmed(raw string) string {
	return strings.TrimSpace(stripFences(raw))
}

func generate[T any](ctx context.Context, gen ports.Generator, prompt ports.Prompt, parse func(string) T) (T, error) {
	raw, err := gen.Generate(ctx, prompt)
	if err != nil {
		var zero T
		return zero, err
	}
	return parse(raw), nil
}

// pending is a task result that settles exactly once.
type pending[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func start[T any](wg *sync.WaitGroup, fn func() (T, error)) *pending[T] {
	p := &pending[T]{done: make(chan struct{})}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(p.done)
		p.value, p.err = fn()
	}()
	return p
}

func (p *pending[T]) wait() (T, error) {
	<-p.done
	return p.value, p.err
}
