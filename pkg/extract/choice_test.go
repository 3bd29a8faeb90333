package extract

import (
	"testing"

	"github.com/voicetyped/dialogcore/pkg/script"
)

func consentField() script.Field {
	return script.Field{
		ID:   "consent",
		Type: script.FieldChoice,
		Choices: []script.Choice{
			{ID: "agree", Synonyms: map[string][]string{
				"ru": {"да", "конечно", "согласен", "согласна"},
				"en": {"yes", "sure", "of course"},
			}},
			{ID: "decline", Synonyms: map[string][]string{
				"ru": {"нет", "не хочу", "откажусь"},
				"en": {"no", "not interested"},
			}},
		},
	}
}

func TestChoiceExtract(t *testing.T) {
	e := &ChoiceExtractor{}
	f := consentField()

	tests := []struct {
		utterance string
		want      string
	}{
		{"ну конечно, записывайте", "agree"},
		{"of course I will", "agree"},
		{"не хочу, спасибо", "decline"},
		{"I said agree", "agree"}, // choice id itself is a spoken form
	}

	for _, tt := range tests {
		r := e.Extract(tt.utterance, f)
		if !r.Success {
			t.Errorf("Extract(%q) failed: %s", tt.utterance, r.Error)
			continue
		}
		if r.Value != tt.want {
			t.Errorf("Extract(%q) = %q, want %q", tt.utterance, r.Value, tt.want)
		}
		if r.Confidence != ConfidenceChoice {
			t.Errorf("confidence = %v, want %v", r.Confidence, ConfidenceChoice)
		}
	}
}

func TestChoiceExtractMiss(t *testing.T) {
	e := &ChoiceExtractor{}
	f := consentField()

	if r := e.Extract("перезвоните позже", f); r.Success {
		t.Errorf("unexpected match: %q", r.Value)
	}
}

func TestChoiceValidate(t *testing.T) {
	e := &ChoiceExtractor{}
	f := consentField()

	if v := e.Validate("agree", f); !v.Valid || v.Normalized != "agree" {
		t.Errorf("Validate(agree) = %+v", v)
	}
	if v := e.Validate("да", f); v.Valid {
		t.Error("synonym accepted as value; only choice ids are valid")
	}
}
