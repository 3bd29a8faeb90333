package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// DateLayout is the canonical form of extracted dates.
const DateLayout = "2006-01-02"

// relativeDays is ordered: the farthest-future term wins when an utterance
// mentions several ("не сегодня, давайте завтра" means tomorrow).
var relativeDays = []struct {
	term   string
	offset int
}{
	{"послезавтра", 2},
	{"завтра", 1},
	{"tomorrow", 1},
	{"сегодня", 0},
	{"today", 0},
}

// weekdayPrefixes maps lowercase name prefixes to weekdays, covering
// Russian case endings ("пятница", "пятницу") with one entry.
var weekdayPrefixes = map[string]time.Weekday{
	"понедельник": time.Monday,
	"вторник":     time.Tuesday,
	"сред":        time.Wednesday,
	"четверг":     time.Thursday,
	"пятниц":      time.Friday,
	"суббот":      time.Saturday,
	"воскресен":   time.Sunday,
	"monday":      time.Monday,
	"tuesday":     time.Tuesday,
	"wednesday":   time.Wednesday,
	"thursday":    time.Thursday,
	"friday":      time.Friday,
	"saturday":    time.Saturday,
	"sunday":      time.Sunday,
}

var monthPrefixes = map[string]time.Month{
	"январ": time.January, "феврал": time.February, "март": time.March,
	"апрел": time.April, "мая": time.May, "май": time.May,
	"июн": time.June, "июл": time.July, "август": time.August,
	"сентябр": time.September, "октябр": time.October,
	"ноябр": time.November, "декабр": time.December,
	"januar": time.January, "jan": time.January,
	"februar": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// DateExtractor recognizes relative day terms, weekday names and
// "<day> <month-name>" phrases in Russian and English.
type DateExtractor struct {
	Now func() time.Time
}

func (e *DateExtractor) Extract(utterance string, f script.Field) Result {
	lower := strings.ToLower(utterance)
	today := dateOnly(e.Now())

	// Relative terms. "day after tomorrow" must beat plain "tomorrow".
	if strings.Contains(lower, "day after tomorrow") {
		return dateResult(today.AddDate(0, 0, 2), "day after tomorrow", ConfidenceRelative)
	}
	for _, rd := range relativeDays {
		if containsWord(lower, rd.term) {
			return dateResult(today.AddDate(0, 0, rd.offset), rd.term, ConfidenceRelative)
		}
	}

	tokens := fieldsTrimmed(lower)

	// "<day> <month-name>", rolling to next year when already past.
	for i := 0; i+1 < len(tokens); i++ {
		day, err := strconv.Atoi(tokens[i])
		if err != nil || day < 1 || day > 31 {
			continue
		}
		month, ok := monthByPrefix(tokens[i+1])
		if !ok {
			continue
		}
		d := time.Date(today.Year(), month, day, 0, 0, 0, 0, today.Location())
		if d.Day() != day {
			return failure(fmt.Sprintf("day %d does not exist in %s", day, month))
		}
		if d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return dateResult(d, tokens[i]+" "+tokens[i+1], ConfidenceDayMonth)
	}

	// Weekday names: next future occurrence, never the past and never today.
	for _, tok := range tokens {
		for prefix, wd := range weekdayPrefixes {
			if strings.HasPrefix(tok, prefix) {
				return dateResult(nextWeekday(today, wd), tok, ConfidenceWeekday)
			}
		}
	}

	return failure("no date recognized")
}

// Validate parses the canonical form and rejects any date strictly before
// today.
func (e *DateExtractor) Validate(value string, f script.Field) Validation {
	d, err := time.ParseInLocation(DateLayout, value, e.Now().Location())
	if err != nil {
		return invalid(fmt.Sprintf("not a date in %s form", DateLayout))
	}
	if d.Before(dateOnly(e.Now())) {
		return invalid("date is in the past")
	}
	return Validation{Valid: true, Normalized: d.Format(DateLayout)}
}

func dateResult(d time.Time, raw string, confidence float64) Result {
	return Result{Success: true, Value: d.Format(DateLayout), Raw: raw, Confidence: confidence}
}

func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

func monthByPrefix(tok string) (time.Month, bool) {
	for prefix, m := range monthPrefixes {
		if strings.HasPrefix(tok, prefix) {
			return m, true
		}
	}
	return 0, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func containsWord(lower, word string) bool {
	for _, tok := range fieldsTrimmed(lower) {
		if tok == word {
			return true
		}
	}
	return false
}

func fieldsTrimmed(lower string) []string {
	fields := strings.Fields(lower)
	out := fields[:0]
	for _, f := range fields {
		if t := strings.Trim(f, ".,!?;:"); t != "" {
			out = append(out, t)
		}
	}
	return out
}
