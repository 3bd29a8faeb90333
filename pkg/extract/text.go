package extract

import (
	"strings"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// leadIns are phrases callers use before the actual answer. Stripping them
// keeps "my name is Anna" from being stored verbatim.
var leadIns = []string{
	"меня зовут",
	"моё имя",
	"мое имя",
	"это",
	"my name is",
	"i am",
	"i'm",
	"it is",
	"it's",
	"this is",
}

// TextExtractor trims and accepts any non-empty utterance. It is the
// lowest-confidence extractor and serves as the catch-all.
type TextExtractor struct{}

func (e *TextExtractor) Extract(utterance string, f script.Field) Result {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return failure("empty utterance")
	}

	lower := strings.ToLower(trimmed)
	for _, lead := range leadIns {
		idx := strings.Index(lower, lead+" ")
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(trimmed[idx+len(lead):])
		rest = strings.Trim(rest, ".,!?;:")
		if rest != "" {
			return Result{Success: true, Value: rest, Raw: trimmed, Confidence: ConfidenceLeadIn}
		}
	}

	return Result{Success: true, Value: trimmed, Raw: trimmed, Confidence: ConfidenceText}
}

func (e *TextExtractor) Validate(value string, f script.Field) Validation {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return invalid("empty value")
	}
	return Validation{Valid: true, Normalized: trimmed}
}
