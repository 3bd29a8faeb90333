package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// TimeLayout is the canonical form of extracted times of day.
const TimeLayout = "15:04"

// clockPattern matches HH:MM, HH.MM and HH-MM.
var clockPattern = regexp.MustCompile(`\b(\d{1,2})[:.\-](\d{2})\b`)

// hourPhrase matches "at N (o'clock)" / "в N (часов)". RE2 word boundaries
// are ASCII-only, so the Russian branch anchors on whitespace instead.
var hourPhrase = regexp.MustCompile(`(?:\bat\s+(\d{1,2})(?:\s*o'?clock)?\b|(?:^|\s)в\s+(\d{1,2})\b)`)

// hoursHintPattern parses a business-hours constraint: "from 9 to 18",
// "с 9 до 18".
var hoursHintPattern = regexp.MustCompile(`(?:from|с)\s+(\d{1,2})\s+(?:to|до)\s+(\d{1,2})`)

var hourWords = map[string]int{
	"час": 1, "два": 2, "три": 3, "четыре": 4, "пять": 5, "шесть": 6,
	"семь": 7, "восемь": 8, "девять": 9, "десять": 10, "одиннадцать": 11,
	"двенадцать": 12,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

var morningWords = []string{"утра", "утром", "утро", "morning"}

var partsOfDay = []struct {
	words []string
	hour  int
}{
	{[]string{"утром", "утра", "утро", "morning"}, 10},
	{[]string{"днём", "днем", "день", "полдень", "midday", "noon", "afternoon"}, 14},
	{[]string{"вечером", "вечера", "вечер", "evening"}, 18},
}

// TimeExtractor recognizes clock patterns, "at N o'clock" phrases,
// spelled-out hours and coarse parts of day.
type TimeExtractor struct {
	Now func() time.Time
}

func (e *TimeExtractor) Extract(utterance string, f script.Field) Result {
	lower := strings.ToLower(utterance)

	// Explicit HH:MM and its separator variants.
	if m := clockPattern.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			return timeResult(hour, minute, m[0], ConfidencePattern)
		}
	}

	morning := containsAny(lower, morningWords)

	// "at N o'clock" / "в N часов".
	if m := hourPhrase.FindStringSubmatch(lower); m != nil {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		hour, _ := strconv.Atoi(digits)
		if hour <= 23 {
			return timeResult(disambiguate(hour, morning), 0, m[0], ConfidenceHourWord)
		}
	}

	// Spelled-out hour words: "в десять", "at ten".
	for _, tok := range fieldsTrimmed(lower) {
		if hour, ok := hourWords[tok]; ok {
			return timeResult(disambiguate(hour, morning), 0, tok, ConfidenceWords)
		}
	}

	// Coarse parts of day.
	for _, p := range partsOfDay {
		for _, w := range p.words {
			if containsWord(lower, w) {
				return timeResult(p.hour, 0, w, ConfidencePartOfDay)
			}
		}
	}

	return failure("no time recognized")
}

// Validate parses the canonical HH:MM form and applies the field's optional
// business-hours hint.
func (e *TimeExtractor) Validate(value string, f script.Field) Validation {
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		return invalid(fmt.Sprintf("not a time in %s form", TimeLayout))
	}

	if m := hoursHintPattern.FindStringSubmatch(strings.ToLower(f.HoursHint)); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		if t.Hour() < from || t.Hour() > to {
			return invalid(fmt.Sprintf("time %s is outside working hours %d-%d", value, from, to))
		}
	}

	return Validation{Valid: true, Normalized: t.Format(TimeLayout)}
}

// disambiguate applies the AM/PM heuristic: a bare hour below 8 means
// afternoon or evening unless a morning word is present.
func disambiguate(hour int, morning bool) int {
	if hour < 8 && !morning {
		return hour + 12
	}
	return hour
}

func timeResult(hour, minute int, raw string, confidence float64) Result {
	return Result{
		Success:    true,
		Value:      fmt.Sprintf("%02d:%02d", hour, minute),
		Raw:        raw,
		Confidence: confidence,
	}
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if containsWord(lower, w) {
			return true
		}
	}
	return false
}
