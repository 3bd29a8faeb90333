// Package extract pulls structured field values out of raw call utterances.
//
// One extractor exists per field type. Extraction is best-effort: each
// extractor tries its heuristics in a fixed priority order and the first
// success wins. Validation normalizes and checks values, whether freshly
// extracted or supplied through a structured channel.
package extract

import (
	"time"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// Result is the outcome of one extraction attempt. Failure is an ordinary
// value, not an error: the utterance simply did not contain the field.
type Result struct {
	Success    bool
	Value      string
	Raw        string
	Confidence float64
	Error      string
}

// Validation is the outcome of normalizing and checking a value.
type Validation struct {
	Valid      bool
	Normalized string
	Error      string
}

// Extractor parses and validates one field type.
type Extractor interface {
	Extract(utterance string, f script.Field) Result
	Validate(value string, f script.Field) Validation
}

// Confidence constants per heuristic branch. Exact-pattern matches score
// above word-based heuristics; values are advisory only.
const (
	ConfidencePattern  = 0.95
	ConfidenceDayMonth = 0.85
	ConfidenceChoice   = 0.85
	ConfidenceRelative = 0.9
	ConfidenceWeekday  = 0.8
	ConfidenceHourWord = 0.75
	ConfidenceWords    = 0.7
	ConfidencePartOfDay = 0.6
	ConfidenceLeadIn   = 0.5
	ConfidenceText     = 0.3
)

// Registry builds extractors sharing one reference clock. The clock is
// injectable so date and time tests can pin "now".
type Registry struct {
	Now func() time.Time
}

// NewRegistry creates a registry using the wall clock.
func NewRegistry() *Registry {
	return &Registry{Now: time.Now}
}

// ForType returns the extractor for the given field type.
func (r *Registry) ForType(t script.FieldType) (Extractor, bool) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	switch t {
	case script.FieldPhone:
		return &PhoneExtractor{}, true
	case script.FieldDate:
		return &DateExtractor{Now: now}, true
	case script.FieldTime:
		return &TimeExtractor{Now: now}, true
	case script.FieldText:
		return &TextExtractor{}, true
	case script.FieldChoice:
		return &ChoiceExtractor{}, true
	case script.FieldEmail:
		return &EmailExtractor{}, true
	}
	return nil, false
}

func failure(reason string) Result {
	return Result{Error: reason}
}

func invalid(reason string) Validation {
	return Validation{Error: reason}
}
