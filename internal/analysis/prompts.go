package analysis

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"moodcheck/internal/ports"
)

const notAvailable = "Not available"

// Task names double as the prompt label in provider logs.
const (
	TaskReflection = "state-reflection"
	TaskWorkout    = "workout"
	TaskHabit      = "habit"
	TaskInsight    = "insight"
	TaskPrediction = "prediction"
	TaskMoodTitle  = "mood-title"
	TaskPlanHelp   = "plan-help"
)

func orNotAvailable(text string) string {
	if strings.TrimSpace(text) == "" {
		return notAvailable
	}
	return strings.TrimSpace(text)
}

func toneLine(seed Seed) string {
	label := orNotAvailable(seed.EmotionLabel)
	if seed.EmotionScore == nil {
		return "Tone: " + label
	}
	return fmt.Sprintf("Tone: %s (confidence %.2f)", label, *seed.EmotionScore)
}

func reflectionPrompt(seed Seed) ports.Prompt {
	return ports.Prompt{Task: TaskReflection, Text: fmt.Sprintf(`Listen to what the user said and describe how they seem to feel right now.
- Up to 5 short lines, fewer is fine.
- Reflect their emotional and energy state only. No plans and no advice.

Transcript: %s
%s`, orNotAvailable(seed.Transcript), toneLine(seed))}
}

func workoutPrompt(seed Seed) ports.Prompt {
	return ports.Prompt{Task: TaskWorkout, Text: fmt.Sprintf(`Suggest a short workout the user can do right now without equipment to lift their mood.
- Use the transcript and tone for context.
- At most 5 exercises, one short sentence each.
- Answer with a JSON array of strings and nothing else.

Transcript: %s
%s`, orNotAvailable(seed.Transcript), toneLine(seed))}
}

func habitPrompt(seed Seed, variation string) ports.Prompt {
	if variation == "" {
		variation = uuid.NewString()
	}
	return ports.Prompt{Task: TaskHabit, Text: fmt.Sprintf(`Suggest one simple habit the user can do immediately, based on their transcript and tone.
- Vary the suggestion between check-ins even for similar moods. Skip breathing exercises.
- title: a short action line.
- label: two or three words naming the kind of habit.
- description: one or two sentences on how to do it.
- Answer with JSON {"title":"...","label":"...","description":"..."} and nothing else.

Transcript: %s
%s
Variation: %s`, orNotAvailable(seed.Transcript), toneLine(seed), variation)}
}

func insightPrompt(seed Seed) ports.Prompt {
	return ports.Prompt{Task: TaskInsight, Text: fmt.Sprintf(`Offer one short, supportive observation about the user's current state.
- A single sentence they can act on.
- Nothing beyond that sentence.

Transcript: %s
%s`, orNotAvailable(seed.Transcript), toneLine(seed))}
}

func predictionPrompt(seed Seed) ports.Prompt {
	return ports.Prompt{Task: TaskPrediction, Text: fmt.Sprintf(`Predict how the user will likely feel after finishing a short workout and habit.
- One encouraging, specific sentence.
- Plain text only.

Transcript: %s
%s`, orNotAvailable(seed.Transcript), toneLine(seed))}
}

func moodTitlePrompt(seed Seed, reflection string) ports.Prompt {
	return ports.Prompt{Task: TaskMoodTitle, Text: fmt.Sprintf(`Name the user's mood in one to three words. No punctuation.

Reflection: %s
Transcript: %s
%s`, orNotAvailable(reflection), orNotAvailable(seed.Transcript), toneLine(seed))}
}

func planHelpPrompt(seed Seed, workout []string, habit *Habit) ports.Prompt {
	workoutText := notAvailable
	if len(workout) > 0 {
		workoutText = strings.Join(workout, "; ")
	}
	habitText := notAvailable
	if habit != nil {
		habitText = habit.Title
		if habit.Description != "" {
			habitText += ": " + habit.Description
		}
	}
	return ports.Prompt{Task: TaskPlanHelp, Text: fmt.Sprintf(`Explain in up to 10 short lines how the suggested steps will help the user given their mood.
- Mention the workout and the habit briefly.
- Supportive, clear and practical.

Transcript: %s
%s
Workout: %s
Habit: %s`, orNotAvailable(seed.Transcript), toneLine(seed), workoutText, habitText)}
}
