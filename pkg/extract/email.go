package extract

import (
	"regexp"
	"strings"

	"github.com/voicetyped/dialogcore/pkg/script"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// EmailExtractor matches a standard local@domain.tld pattern.
type EmailExtractor struct{}

func (e *EmailExtractor) Extract(utterance string, f script.Field) Result {
	m := emailPattern.FindString(utterance)
	if m == "" {
		return failure("no email address recognized")
	}
	return Result{Success: true, Value: m, Raw: m, Confidence: ConfidencePattern}
}

// Validate re-applies the pattern and lowercases the address.
func (e *EmailExtractor) Validate(value string, f script.Field) Validation {
	value = strings.TrimSpace(value)
	if emailPattern.FindString(value) != value || value == "" {
		return invalid("not a valid email address")
	}
	return Validation{Valid: true, Normalized: strings.ToLower(value)}
}
