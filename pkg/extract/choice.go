package extract

import (
	"fmt"
	"strings"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// ChoiceExtractor matches utterance substrings against each choice's
// per-language synonym lists.
type ChoiceExtractor struct{}

func (e *ChoiceExtractor) Extract(utterance string, f script.Field) Result {
	lower := strings.ToLower(utterance)

	for _, c := range f.Choices {
		for _, synonyms := range c.Synonyms {
			for _, syn := range synonyms {
				syn = strings.ToLower(strings.TrimSpace(syn))
				if syn != "" && strings.Contains(lower, syn) {
					return Result{Success: true, Value: c.ID, Raw: syn, Confidence: ConfidenceChoice}
				}
			}
		}
		// The choice id itself counts as a spoken form.
		if strings.Contains(lower, strings.ToLower(c.ID)) {
			return Result{Success: true, Value: c.ID, Raw: c.ID, Confidence: ConfidenceChoice}
		}
	}

	return failure("no declared choice mentioned")
}

// Validate requires the value to be one of the declared choice ids.
func (e *ChoiceExtractor) Validate(value string, f script.Field) Validation {
	for _, c := range f.Choices {
		if c.ID == value {
			return Validation{Valid: true, Normalized: c.ID}
		}
	}
	return invalid(fmt.Sprintf("%q is not a declared choice", value))
}
