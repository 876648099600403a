package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	maxWorkoutItems  = 5
	maxPlanLines     = 10
	defaultHabitKind = "Quick habit"
)

var fenceMarker = regexp.MustCompile("(?i)```(?:json)?")

// stripFences removes markdown code fence markers wherever the model put them.
func stripFences(raw string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(raw, ""))
}

// parseList reads a JSON array of strings, falling back to splitting on lines
// and commas when the model ignored the format.
func parseList(raw string, limit int) []string {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil
	}

	var items []any
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			text := strings.TrimSpace(stringify(item))
			if text != "" {
				out = append(out, text)
			}
		}
		return capList(out, limit)
	}

	cleaned = strings.TrimPrefix(cleaned, "[")
	cleaned = strings.TrimSuffix(cleaned, "]")
	fields := strings.FieldsFunc(cleaned, func(r rune) bool { return r == '\n' || r == ',' })
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if text := trimListItem(field); text != "" {
			out = append(out, text)
		}
	}
	return capList(out, limit)
}

func trimListItem(field string) string {
	return strings.Trim(field, " \t\r\"-*[]")
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func capList(items []string, limit int) []string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// parseHabit reads {"title","label","description"}. Free text falls back to
// first line as title and the rest as description.
func parseHabit(raw string) (Habit, bool) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return Habit{}, false
	}

	var parsed struct {
		Title       string `json:"title"`
		Label       string `json:"label"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		h := Habit{
			Title:       strings.TrimSpace(parsed.Title),
			Label:       strings.TrimSpace(parsed.Label),
			Description: strings.TrimSpace(parsed.Description),
		}
		if h.Title == "" || h.Description == "" {
			return Habit{}, false
		}
		if h.Label == "" {
			h.Label = defaultHabitKind
		}
		return h, true
	}

	lines := nonEmptyLines(cleaned)
	if len(lines) == 0 {
		return Habit{}, false
	}
	h := Habit{Title: trimListItem(lines[0]), Label: defaultHabitKind}
	if len(lines) > 1 {
		h.Description = strings.Join(lines[1:], " ")
	}
	if h.Title == "" {
		return Habit{}, false
	}
	return h, true
}

// parseTitle keeps the first non-empty line.
func parseTitle(raw string) string {
	lines := nonEmptyLines(stripFences(raw))
	if len(lines) == 0 {
		return ""
	}
	return strings.Trim(lines[0], " \t\"*#")
}

// parsePlan keeps up to maxPlanLines non-empty lines.
func parsePlan(raw string) string {
	lines := nonEmptyLines(stripFences(raw))
	if len(lines) > maxPlanLines {
		lines = lines[:maxPlanLines]
	}
	return strings.Join(lines, "\n")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
