// Package rules normalizes transcripts with user-maintained substitutions
// before they are analysed. A rules file holds one rule per line:
//
//	gonna => going to
//	s/\bum+\b//g
//
// Literal rules match case-insensitively everywhere. Regex rules use sed-like
// syntax with any non-alphanumeric delimiter and replace the first match
// unless the g flag is set. Blank lines and lines starting with # are skipped.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const defaultPassLimit = 30

var whitespaceRun = regexp.MustCompile(`\s+`)

type rule struct {
	re          *regexp.Regexp
	replacement string
	all         bool
}

func (r rule) apply(input string) string {
	if r.all {
		return r.re.ReplaceAllString(input, r.replacement)
	}
	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	return input[:loc[0]] + string(expanded) + input[loc[1]:]
}

// Normalizer applies substitution rules until the text stops changing.
type Normalizer struct {
	rules     []rule
	passLimit int
}

// Load reads rules from path. A missing file yields a normalizer that only
// tidies whitespace.
func Load(path string, passLimit int) (*Normalizer, error) {
	if strings.TrimSpace(path) == "" {
		return Parse("", passLimit)
	}
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Parse("", passLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file %q: %w", path, err)
	}
	n, err := Parse(string(contents), passLimit)
	if err != nil {
		return nil, fmt.Errorf("rules file %q: %w", path, err)
	}
	return n, nil
}

// Parse compiles rules from their text form.
func Parse(contents string, passLimit int) (*Normalizer, error) {
	if passLimit <= 0 {
		passLimit = defaultPassLimit
	}

	var compiled []rule
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		compiled = append(compiled, r)
	}
	return &Normalizer{rules: compiled, passLimit: passLimit}, nil
}

// Apply rewrites text and collapses whitespace.
func (n *Normalizer) Apply(text string) (string, error) {
	result := text
	for pass := 0; pass < n.passLimit && len(n.rules) > 0; pass++ {
		before := result
		for _, r := range n.rules {
			result = r.apply(result)
		}
		if result == before {
			break
		}
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(result, " ")), nil
}

func parseLine(line string) (rule, error) {
	if isRegexRule(line) {
		return parseRegex(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteral(line)
	}
	return rule{}, errors.New("unsupported rule format")
}

func parseLiteral(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return rule{}, errors.New("literal rule source cannot be empty")
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(from))
	return rule{re: re, replacement: strings.ReplaceAll(strings.TrimSpace(to), "$", "$$"), all: true}, nil
}

func parseRegex(line string) (rule, error) {
	delim := line[1]
	pattern, next, err := readDelimited(line, 2, delim)
	if err != nil {
		return rule{}, fmt.Errorf("regex pattern: %w", err)
	}
	replacement, next, err := readDelimited(line, next, delim)
	if err != nil {
		return rule{}, fmt.Errorf("regex replacement: %w", err)
	}

	modifiers := "i"
	all := false
	for _, flag := range strings.TrimSpace(line[next:]) {
		switch flag {
		case 'i', ' ':
		case 'g':
			all = true
		case 'm', 's':
			modifiers += string(flag)
		default:
			return rule{}, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + modifiers + ")" + pattern)
	if err != nil {
		return rule{}, fmt.Errorf("invalid regex: %w", err)
	}
	return rule{re: re, replacement: replacement, all: all}, nil
}

// readDelimited returns the text up to the next unescaped delim and the index after it.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	var b strings.Builder
	for i := start; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && i+1 < len(line):
			b.WriteByte(c)
			b.WriteByte(line[i+1])
			i++
		case c == delim:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isRegexRule(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	d := line[1]
	isWordOrSpace := (d >= 'a' && d <= 'z') || (d >= 'A' && d <= 'Z') || (d >= '0' && d <= '9') || d == ' ' || d == '\t'
	return !isWordOrSpace
}
