package script

import (
	"errors"
	"strings"
	"testing"
)

func sampleScript() *Script {
	return &Script{
		Name: "lead-qualify",
		States: []State{
			{ID: "greeting", IsStart: true, Goal: "greet the caller"},
			{
				ID:   "ask_contact",
				Goal: "collect contact details",
				Fields: []Field{
					{ID: "phone", Type: FieldPhone, Required: true},
					{ID: "email", Type: FieldEmail},
				},
			},
			{ID: "done", IsEnd: true},
		},
		Transitions: []Transition{
			{From: "greeting", To: "ask_contact", Condition: Condition{Kind: CondAlways}},
			{From: "ask_contact", To: "done", Condition: Condition{Kind: CondFieldCollected, Field: "phone"}},
		},
		Outcomes: []Outcome{
			{
				ID:       "contact_collected",
				Rules:    []Rule{{Field: "phone", Op: OpIsSet}},
				Evidence: []string{"phone"},
			},
			{ID: "unknown", IsDefault: true},
		},
		Limits:   Limits{MaxTurns: 30, MaxRetries: 3},
		Language: LanguagePolicy{Default: "ru", DetectionEnabled: true, SwitchingAllowed: true},
	}
}

func TestValidateSampleScript(t *testing.T) {
	if err := Validate(sampleScript()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// A field id may repeat across states as long as the type agrees, and -1
// limits (no cap) are legal.
func TestValidateSharedFieldAndDisabledLimits(t *testing.T) {
	s := sampleScript()
	s.States[2].Fields = []Field{{ID: "phone", Type: FieldPhone}}
	s.Limits = Limits{MaxTurns: -1, MaxRetries: -1}
	if err := Validate(s); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateSingleViolations(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Script)
		want   string
	}{
		{
			name:   "no start state",
			modify: func(s *Script) { s.States[0].IsStart = false },
			want:   "no state has is_start",
		},
		{
			name:   "two start states",
			modify: func(s *Script) { s.States[1].IsStart = true },
			want:   "2 states have is_start",
		},
		{
			name:   "no end state",
			modify: func(s *Script) { s.States[2].IsEnd = false },
			want:   "no state has is_end",
		},
		{
			name:   "transition from unknown state",
			modify: func(s *Script) { s.Transitions[0].From = "missing" },
			want:   `unknown state "missing"`,
		},
		{
			name:   "transition to unknown state",
			modify: func(s *Script) { s.Transitions[1].To = "missing" },
			want:   `unknown state "missing"`,
		},
		{
			name:   "duplicate state id",
			modify: func(s *Script) { s.States[1].ID = "greeting" },
			want:   "duplicate state id",
		},
		{
			name:   "unknown field type",
			modify: func(s *Script) { s.States[1].Fields[0].Type = "zipcode" },
			want:   `unknown field type "zipcode"`,
		},
		{
			name:   "choice field without choices",
			modify: func(s *Script) { s.States[1].Fields[1] = Field{ID: "plan", Type: FieldChoice} },
			want:   "declares no choices",
		},
		{
			name:   "keyword condition without keywords",
			modify: func(s *Script) { s.Transitions[0].Condition = Condition{Kind: CondKeyword} },
			want:   "at least one keyword",
		},
		{
			name:   "unknown condition kind",
			modify: func(s *Script) { s.Transitions[0].Condition = Condition{Kind: "sometimes"} },
			want:   `unknown condition kind "sometimes"`,
		},
		{
			name:   "field_collected references unknown field",
			modify: func(s *Script) { s.Transitions[1].Condition.Field = "fax" },
			want:   `unknown field "fax"`,
		},
		{
			name:   "outcome rule references unknown field",
			modify: func(s *Script) { s.Outcomes[0].Rules[0].Field = "fax" },
			want:   `unknown field "fax"`,
		},
		{
			name:   "no default outcome",
			modify: func(s *Script) { s.Outcomes[1].IsDefault = false },
			want:   "no outcome has is_default",
		},
		{
			name:   "two default outcomes",
			modify: func(s *Script) { s.Outcomes[0].IsDefault = true },
			want:   "2 outcomes have is_default",
		},
		{
			name:   "unknown rule condition",
			modify: func(s *Script) { s.Outcomes[0].Rules[0].Op = "matches" },
			want:   `unknown rule condition "matches"`,
		},
		{
			name: "guardrail pattern does not compile",
			modify: func(s *Script) {
				s.Guardrails = []Guardrail{{ID: "g1", Pattern: "([", Action: GuardEscalate}}
			},
			want: "does not compile",
		},
		{
			name: "unknown guardrail action",
			modify: func(s *Script) {
				s.Guardrails = []Guardrail{{ID: "g1", Pattern: "x", Action: "shout"}}
			},
			want: `unknown guardrail action "shout"`,
		},
		{
			name:   "field redeclared with a different type",
			modify: func(s *Script) { s.States[2].Fields = []Field{{ID: "phone", Type: FieldText}} },
			want:   `field "phone" already declared with type "phone"`,
		},
		{
			name:   "negative state max turns",
			modify: func(s *Script) { s.States[1].MaxTurns = -1 },
			want:   "must not be negative",
		},
		{
			name:   "max turns below the disable sentinel",
			modify: func(s *Script) { s.Limits.MaxTurns = -5 },
			want:   "use -1 to disable",
		},
		{
			name:   "invalid language tag",
			modify: func(s *Script) { s.Language.Default = "no-such-lang-tag!!" },
			want:   "invalid language tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleScript()
			tt.modify(s)

			err := Validate(s)
			if err == nil {
				t.Fatal("Validate: expected error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

// A document with several independent problems must report all of them in
// one pass, not just the first.
func TestValidateCollectsAllViolations(t *testing.T) {
	s := sampleScript()
	s.States[0].IsStart = false                 // no start state
	s.States[2].IsEnd = false                   // no end state
	s.Transitions[0].To = "missing"             // dangling edge
	s.Outcomes[1].IsDefault = false             // no default outcome
	s.Outcomes[0].Rules[0].Field = "fax"        // unknown rule field
	s.Guardrails = []Guardrail{{ID: "g", Pattern: "([", Action: GuardEscalate}}

	err := Validate(s)
	if err == nil {
		t.Fatal("Validate: expected error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}

	if len(verr.Violations) != 6 {
		t.Errorf("got %d violations, want 6: %v", len(verr.Violations), verr.Violations)
	}

	wants := []string{
		"no state has is_start",
		"no state has is_end",
		`unknown state "missing"`,
		"no outcome has is_default",
		`unknown field "fax"`,
		"does not compile",
	}
	for _, want := range wants {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("violations missing %q", want)
		}
	}
}

func TestGuardrailMatch(t *testing.T) {
	g := Guardrail{ID: "no-prices", Pattern: `скидк|discount`, Action: GuardDeflect}

	if !g.Match("any DISCOUNT today?") {
		t.Error("case-insensitive match failed")
	}
	if g.Match("расскажите о погоде") {
		t.Error("unexpected match")
	}
}

func TestScriptAccessors(t *testing.T) {
	s := sampleScript()

	start, ok := s.StartState()
	if !ok || start.ID != "greeting" {
		t.Fatalf("StartState = %v, %v", start, ok)
	}

	if got := s.TransitionsFrom("greeting"); len(got) != 1 || got[0].To != "ask_contact" {
		t.Errorf("TransitionsFrom(greeting) = %+v", got)
	}

	def, ok := s.DefaultOutcome()
	if !ok || def.ID != "unknown" {
		t.Errorf("DefaultOutcome = %v, %v", def, ok)
	}

	if _, ok := s.FieldSpec("phone"); !ok {
		t.Error("FieldSpec(phone) not found")
	}
	if _, ok := s.FieldSpec("fax"); ok {
		t.Error("FieldSpec(fax) unexpectedly found")
	}
}
