package script

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// Violation is a single structural problem found in a script document.
type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError carries every violation found in one validation pass.
type ValidationError struct {
	Script     string      `json:"script"`
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Path + ": " + v.Reason
	}
	return fmt.Sprintf("script %q: %d validation error(s): %s",
		e.Script, len(e.Violations), strings.Join(parts, "; "))
}

type validator struct {
	script     *Script
	violations []Violation
}

func (v *validator) addf(path, format string, args ...any) {
	v.violations = append(v.violations, Violation{Path: path, Reason: fmt.Sprintf(format, args...)})
}

// Validate checks the script against every structural invariant and returns
// a *ValidationError listing all violations, or nil when the script is sound.
// It never stops at the first problem.
func Validate(s *Script) error {
	v := &validator{script: s}

	v.checkStates()
	v.checkTransitions()
	v.checkOutcomes()
	v.checkGuardrails()
	v.checkLimits()
	v.checkLanguage()

	if len(v.violations) == 0 {
		return nil
	}
	return &ValidationError{Script: s.Name, Violations: v.violations}
}

var validFieldTypes = map[FieldType]bool{
	FieldPhone: true, FieldDate: true, FieldTime: true,
	FieldText: true, FieldChoice: true, FieldEmail: true,
}

func (v *validator) checkStates() {
	if len(v.script.States) == 0 {
		v.addf("states", "at least one state is required")
		return
	}

	seen := make(map[string]bool)
	fieldTypes := make(map[string]FieldType)
	starts, ends := 0, 0
	for i, st := range v.script.States {
		path := fmt.Sprintf("states[%d]", i)
		if st.ID == "" {
			v.addf(path+".id", "state id is required")
		} else if seen[st.ID] {
			v.addf(path+".id", "duplicate state id %q", st.ID)
		}
		seen[st.ID] = true

		if st.IsStart {
			starts++
		}
		if st.IsEnd {
			ends++
		}
		if st.MaxTurns < 0 {
			v.addf(path+".max_turns", "must not be negative")
		}

		fieldSeen := make(map[string]bool)
		for j, f := range st.Fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, j)
			if f.ID == "" {
				v.addf(fpath+".id", "field id is required")
			} else if fieldSeen[f.ID] {
				v.addf(fpath+".id", "duplicate field id %q in state %q", f.ID, st.ID)
			}
			fieldSeen[f.ID] = true

			if !validFieldTypes[f.Type] {
				v.addf(fpath+".type", "unknown field type %q", f.Type)
			}
			// A field id may repeat across states but must keep one type;
			// FieldSpec resolves to the first declaration.
			if prev, ok := fieldTypes[f.ID]; ok && prev != f.Type {
				v.addf(fpath+".type", "field %q already declared with type %q", f.ID, prev)
			} else if !ok && f.ID != "" {
				fieldTypes[f.ID] = f.Type
			}
			if f.Type == FieldChoice && len(f.Choices) == 0 {
				v.addf(fpath+".choices", "choice field %q declares no choices", f.ID)
			}
		}
	}

	switch starts {
	case 1:
	case 0:
		v.addf("states", "no state has is_start: true")
	default:
		v.addf("states", "%d states have is_start: true, want exactly one", starts)
	}
	if ends == 0 {
		v.addf("states", "no state has is_end: true")
	}
}

func (v *validator) checkTransitions() {
	for i, t := range v.script.Transitions {
		path := fmt.Sprintf("transitions[%d]", i)
		if _, ok := v.script.State(t.From); !ok {
			v.addf(path+".from", "unknown state %q", t.From)
		}
		if _, ok := v.script.State(t.To); !ok {
			v.addf(path+".to", "unknown state %q", t.To)
		}
		v.checkCondition(path+".condition", t.Condition)
	}
}

func (v *validator) checkCondition(path string, c Condition) {
	switch c.Kind {
	case CondAlways:
	case CondFieldCollected:
		if c.Field == "" {
			v.addf(path, "field_collected requires a field id")
		} else if c.Field != AllRequired {
			if _, ok := v.script.FieldSpec(c.Field); !ok {
				v.addf(path, "field_collected references unknown field %q", c.Field)
			}
		}
	case CondIntentDetected:
		if c.Intent == "" {
			v.addf(path, "intent_detected requires an intent name")
		}
	case CondKeyword:
		if len(c.Keywords) == 0 {
			v.addf(path, "keyword condition requires at least one keyword")
		}
	case CondCustom:
		if c.Rule == "" {
			v.addf(path, "custom condition requires a rule")
		}
	default:
		v.addf(path, "unknown condition kind %q", c.Kind)
	}
}

var validRuleOps = map[RuleOp]bool{
	OpIsSet: true, OpIsNotSet: true, OpEquals: true, OpNotEquals: true,
	OpContains: true, OpGreaterThan: true, OpLessThan: true,
}

func (v *validator) checkOutcomes() {
	if len(v.script.Outcomes) == 0 {
		return
	}

	defaults := 0
	seen := make(map[string]bool)
	for i, o := range v.script.Outcomes {
		path := fmt.Sprintf("outcomes[%d]", i)
		if o.ID == "" {
			v.addf(path+".id", "outcome id is required")
		} else if seen[o.ID] {
			v.addf(path+".id", "duplicate outcome id %q", o.ID)
		}
		seen[o.ID] = true

		if o.IsDefault {
			defaults++
		}

		for j, r := range o.Rules {
			rpath := fmt.Sprintf("%s.rules[%d]", path, j)
			if !validRuleOps[r.Op] {
				v.addf(rpath+".condition", "unknown rule condition %q", r.Op)
			}
			v.checkFieldRef(rpath+".field", r.Field)
		}
		for j, f := range o.Evidence {
			v.checkFieldRef(fmt.Sprintf("%s.evidence[%d]", path, j), f)
		}
	}

	switch defaults {
	case 1:
	case 0:
		v.addf("outcomes", "no outcome has is_default: true")
	default:
		v.addf("outcomes", "%d outcomes have is_default: true, want exactly one", defaults)
	}
}

func (v *validator) checkFieldRef(path, field string) {
	if field == "" {
		v.addf(path, "field reference is required")
		return
	}
	if IsPseudoField(field) {
		return
	}
	if _, ok := v.script.FieldSpec(field); !ok {
		v.addf(path, "references unknown field %q", field)
	}
}

func (v *validator) checkGuardrails() {
	for i, g := range v.script.Guardrails {
		path := fmt.Sprintf("guardrails[%d]", i)
		if g.Pattern == "" {
			v.addf(path+".pattern", "pattern is required")
		} else if re, err := regexp.Compile("(?i)" + g.Pattern); err != nil {
			v.addf(path+".pattern", "does not compile: %v", err)
		} else {
			v.script.Guardrails[i].re = re
		}

		switch g.Action {
		case GuardEscalate, GuardEndCall, GuardDeflect:
		default:
			v.addf(path+".action", "unknown guardrail action %q", g.Action)
		}
	}
}

// Negative script-wide limits are legal: they disable the cap. Per-state
// max_turns has no default, so zero already means uncapped there and
// negatives stay invalid.
func (v *validator) checkLimits() {
	if v.script.Limits.MaxTurns < -1 {
		v.addf("limits.max_turns", "use -1 to disable the limit")
	}
	if v.script.Limits.MaxRetries < -1 {
		v.addf("limits.max_retries", "use -1 to disable the limit")
	}
}

func (v *validator) checkLanguage() {
	if v.script.Language.Default == "" {
		return
	}
	if _, err := language.Parse(v.script.Language.Default); err != nil {
		v.addf("language_policy.default", "invalid language tag %q: %v", v.script.Language.Default, err)
	}
}
