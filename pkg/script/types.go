package script

import "regexp"

// FieldType enumerates the kinds of data a state can collect.
type FieldType string

const (
	FieldPhone  FieldType = "phone"
	FieldDate   FieldType = "date"
	FieldTime   FieldType = "time"
	FieldText   FieldType = "text"
	FieldChoice FieldType = "choice"
	FieldEmail  FieldType = "email"
)

// ConditionKind enumerates the closed set of transition condition variants.
type ConditionKind string

const (
	CondAlways         ConditionKind = "always"
	CondFieldCollected ConditionKind = "field_collected"
	CondIntentDetected ConditionKind = "intent_detected"
	CondKeyword        ConditionKind = "keyword"
	CondCustom         ConditionKind = "custom"
)

// AllRequired is the special field_collected argument meaning every
// required field of the current state must be present.
const AllRequired = "all_required"

// RuleOp enumerates outcome rule comparison operators.
type RuleOp string

const (
	OpIsSet       RuleOp = "is_set"
	OpIsNotSet    RuleOp = "is_not_set"
	OpEquals      RuleOp = "equals"
	OpNotEquals   RuleOp = "not_equals"
	OpContains    RuleOp = "contains"
	OpGreaterThan RuleOp = "greater_than"
	OpLessThan    RuleOp = "less_than"
)

// Pseudo-fields that outcome rules may reference in addition to declared
// field ids. They resolve to call counters and flags, not collected data.
const (
	PseudoCallbackRequested   = "callback_requested"
	PseudoNotTargetReason     = "not_target_reason"
	PseudoTurnCount           = "turn_count"
	PseudoEscalationTriggered = "escalation_triggered"
	PseudoSupportQuestions    = "support_questions_count"
)

// PseudoFields lists every recognized pseudo-field id.
var PseudoFields = []string{
	PseudoCallbackRequested,
	PseudoNotTargetReason,
	PseudoTurnCount,
	PseudoEscalationTriggered,
	PseudoSupportQuestions,
}

// IsPseudoField reports whether id names a pseudo-field.
func IsPseudoField(id string) bool {
	for _, p := range PseudoFields {
		if p == id {
			return true
		}
	}
	return false
}

// GuardrailAction is what the engine does when a guardrail pattern matches.
type GuardrailAction string

const (
	GuardEscalate GuardrailAction = "escalate"
	GuardEndCall  GuardrailAction = "end_call"
	GuardDeflect  GuardrailAction = "deflect"
)

// Script is a YAML/JSON-mappable dialog definition.
type Script struct {
	Name        string         `yaml:"name"            json:"name"`
	Version     string         `yaml:"version"         json:"version"`
	Description string         `yaml:"description"     json:"description,omitempty"`
	States      []State        `yaml:"states"          json:"states"`
	Transitions []Transition   `yaml:"transitions"     json:"transitions"`
	Outcomes    []Outcome      `yaml:"outcomes"        json:"outcomes,omitempty"`
	Guardrails  []Guardrail    `yaml:"guardrails"      json:"guardrails,omitempty"`
	Limits      Limits         `yaml:"limits"          json:"limits"`
	Language    LanguagePolicy `yaml:"language_policy" json:"language_policy"`
}

// State is a single stage of the conversation.
type State struct {
	ID       string            `yaml:"id"        json:"id"`
	Name     map[string]string `yaml:"name"      json:"name,omitempty"`
	Goal     string            `yaml:"goal"      json:"goal,omitempty"`
	Fields   []Field           `yaml:"fields"    json:"fields,omitempty"`
	IsStart  bool              `yaml:"is_start"  json:"is_start,omitempty"`
	IsEnd    bool              `yaml:"is_end"    json:"is_end,omitempty"`
	MaxTurns int               `yaml:"max_turns" json:"max_turns,omitempty"`
}

// Field is a single piece of structured data the state collects.
type Field struct {
	ID       string            `yaml:"id"         json:"id"`
	Type     FieldType         `yaml:"type"       json:"type"`
	Required bool              `yaml:"required"   json:"required,omitempty"`
	Prompt   map[string]string `yaml:"prompt"     json:"prompt,omitempty"`
	Choices  []Choice          `yaml:"choices"    json:"choices,omitempty"`
	// HoursHint is an optional "from H to H" business-hours constraint
	// applied when validating time fields.
	HoursHint string `yaml:"hours_hint" json:"hours_hint,omitempty"`
}

// Choice is one selectable option of a choice field, with per-language
// spoken synonyms.
type Choice struct {
	ID       string              `yaml:"id"       json:"id"`
	Synonyms map[string][]string `yaml:"synonyms" json:"synonyms,omitempty"`
}

// Condition guards a transition. Kind selects the variant; exactly one of
// the remaining fields is meaningful for a given kind.
type Condition struct {
	Kind     ConditionKind `yaml:"kind"               json:"kind"`
	Field    string        `yaml:"field,omitempty"    json:"field,omitempty"`
	Intent   string        `yaml:"intent,omitempty"   json:"intent,omitempty"`
	Keywords []string      `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Rule     string        `yaml:"rule,omitempty"     json:"rule,omitempty"`
}

// Transition is a directed, conditioned edge between two states.
// Higher priority wins; ties break by declaration order.
type Transition struct {
	From        string    `yaml:"from"        json:"from"`
	To          string    `yaml:"to"          json:"to"`
	Condition   Condition `yaml:"condition"   json:"condition"`
	Priority    int       `yaml:"priority"    json:"priority,omitempty"`
	Description string    `yaml:"description" json:"description,omitempty"`
}

// Rule is one conjunct of an outcome's rule set.
type Rule struct {
	Field string `yaml:"field"           json:"field"`
	Op    RuleOp `yaml:"condition"       json:"condition"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Outcome is a call disposition with the rules that select it.
type Outcome struct {
	ID        string            `yaml:"id"         json:"id"`
	Name      map[string]string `yaml:"name"       json:"name,omitempty"`
	Rules     []Rule            `yaml:"rules"      json:"rules,omitempty"`
	Evidence  []string          `yaml:"evidence"   json:"evidence,omitempty"`
	IsDefault bool              `yaml:"is_default" json:"is_default,omitempty"`
}

// Guardrail restricts what a call may discuss or do.
type Guardrail struct {
	ID          string          `yaml:"id"          json:"id"`
	Pattern     string          `yaml:"pattern"     json:"pattern"`
	Action      GuardrailAction `yaml:"action"      json:"action"`
	Description string          `yaml:"description" json:"description,omitempty"`

	re *regexp.Regexp
}

// Match reports whether the guardrail pattern matches the utterance.
// Matching is case-insensitive. An uncompilable pattern never matches;
// Validate rejects those up front.
func (g *Guardrail) Match(utterance string) bool {
	if g.re == nil {
		re, err := regexp.Compile("(?i)" + g.Pattern)
		if err != nil {
			return false
		}
		g.re = re
	}
	return g.re.MatchString(utterance)
}

// Limits caps call length and per-turn retries. Zero means "use the
// package default"; -1 disables the limit entirely.
type Limits struct {
	MaxTurns   int `yaml:"max_turns"   json:"max_turns"`
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
}

// Default limit values applied by Load when the document omits them.
const (
	DefaultMaxTurns   = 50
	DefaultMaxRetries = 3
)

// LanguagePolicy controls language detection and switching for a script.
type LanguagePolicy struct {
	Default          string `yaml:"default"           json:"default"`
	DetectionEnabled bool   `yaml:"detection_enabled" json:"detection_enabled"`
	SwitchingAllowed bool   `yaml:"switching_allowed" json:"switching_allowed"`
}

// State returns the state declared with the given id.
func (s *Script) State(id string) (*State, bool) {
	for i := range s.States {
		if s.States[i].ID == id {
			return &s.States[i], true
		}
	}
	return nil, false
}

// StartState returns the unique is_start state, if one exists.
func (s *Script) StartState() (*State, bool) {
	for i := range s.States {
		if s.States[i].IsStart {
			return &s.States[i], true
		}
	}
	return nil, false
}

// TransitionsFrom returns all transitions leaving the given state,
// in declaration order.
func (s *Script) TransitionsFrom(stateID string) []Transition {
	var out []Transition
	for _, t := range s.Transitions {
		if t.From == stateID {
			out = append(out, t)
		}
	}
	return out
}

// DefaultOutcome returns the outcome flagged is_default, if any.
func (s *Script) DefaultOutcome() (*Outcome, bool) {
	for i := range s.Outcomes {
		if s.Outcomes[i].IsDefault {
			return &s.Outcomes[i], true
		}
	}
	return nil, false
}

// FieldSpec returns the declaration of a field id anywhere in the script,
// the first one in state order. Validation guarantees that repeated
// declarations agree on type.
func (s *Script) FieldSpec(fieldID string) (*Field, bool) {
	for i := range s.States {
		for j := range s.States[i].Fields {
			if s.States[i].Fields[j].ID == fieldID {
				return &s.States[i].Fields[j], true
			}
		}
	}
	return nil, false
}

// DisplayName returns the state's localized name for lang, falling back to
// any declared name and finally the state id.
func (st *State) DisplayName(lang string) string {
	if n, ok := st.Name[lang]; ok {
		return n
	}
	for _, n := range st.Name {
		return n
	}
	return st.ID
}

// RequiredFields returns the ids of the state's required fields.
func (st *State) RequiredFields() []string {
	var out []string
	for _, f := range st.Fields {
		if f.Required {
			out = append(out, f.ID)
		}
	}
	return out
}
