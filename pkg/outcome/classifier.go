// Package outcome classifies completed calls against declared outcome
// rules. Classification is deterministic: declaration order decides
// precedence and there is no learned model.
package outcome

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// UnknownOutcomeID is the sentinel returned when no outcome matches and the
// script declares no default. Validation normally prevents this.
const UnknownOutcomeID = "unknown"

// Confidence levels per classification path.
const (
	ConfidenceMatched = 1.0
	ConfidenceDefault = 0.5
	ConfidenceUnknown = 0.0
)

// FactSet is the terminal projection of a call context that rules are
// evaluated against. It is a plain value: classification never mutates
// call state.
type FactSet struct {
	Collected        map[string]any
	TurnCount        int
	SupportQuestions int
	CallbackRequested bool
	NotTarget        bool
	NotTargetReason  string
	Escalated        bool
}

// Classification is the final call disposition.
type Classification struct {
	OutcomeID  string
	Confidence float64
	Evidence   map[string]any
}

// Classify evaluates outcomes in declaration order, skipping the default;
// every rule of an outcome must hold for it to win. When nothing matches,
// the default outcome wins at reduced confidence.
func Classify(outcomes []script.Outcome, facts FactSet) Classification {
	for i := range outcomes {
		o := &outcomes[i]
		if o.IsDefault {
			continue
		}
		if rulesHold(o.Rules, facts) {
			return Classification{
				OutcomeID:  o.ID,
				Confidence: ConfidenceMatched,
				Evidence:   gatherEvidence(o.Evidence, facts),
			}
		}
	}

	for i := range outcomes {
		o := &outcomes[i]
		if o.IsDefault {
			return Classification{
				OutcomeID:  o.ID,
				Confidence: ConfidenceDefault,
				Evidence:   gatherEvidence(o.Evidence, facts),
			}
		}
	}

	return Classification{OutcomeID: UnknownOutcomeID, Confidence: ConfidenceUnknown}
}

func rulesHold(rules []script.Rule, facts FactSet) bool {
	for _, r := range rules {
		if !ruleHolds(r, facts) {
			return false
		}
	}
	return true
}

func ruleHolds(r script.Rule, facts FactSet) bool {
	value, set := lookup(r.Field, facts)

	switch r.Op {
	case script.OpIsSet:
		return set
	case script.OpIsNotSet:
		return !set
	case script.OpEquals:
		return set && asString(value) == r.Value
	case script.OpNotEquals:
		return !set || asString(value) != r.Value
	case script.OpContains:
		return set && strings.Contains(asString(value), r.Value)
	case script.OpGreaterThan:
		a, b, ok := asNumbers(value, r.Value)
		return set && ok && a > b
	case script.OpLessThan:
		a, b, ok := asNumbers(value, r.Value)
		return set && ok && a < b
	}
	return false
}

// lookup resolves a rule field against pseudo-fields first, then collected
// data. Boolean flags count as set only when raised.
func lookup(field string, facts FactSet) (any, bool) {
	switch field {
	case script.PseudoCallbackRequested:
		return facts.CallbackRequested, facts.CallbackRequested
	case script.PseudoNotTargetReason:
		return facts.NotTargetReason, facts.NotTarget
	case script.PseudoEscalationTriggered:
		return facts.Escalated, facts.Escalated
	case script.PseudoTurnCount:
		return facts.TurnCount, true
	case script.PseudoSupportQuestions:
		return facts.SupportQuestions, true
	}
	v, ok := facts.Collected[field]
	return v, ok
}

func gatherEvidence(fields []string, facts FactSet) map[string]any {
	evidence := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := lookup(f, facts); ok {
			evidence[f] = v
		}
	}
	return evidence
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}

func asNumbers(v any, rule string) (float64, float64, bool) {
	b, err := strconv.ParseFloat(strings.TrimSpace(rule), 64)
	if err != nil {
		return 0, 0, false
	}
	switch t := v.(type) {
	case int:
		return float64(t), b, true
	case float64:
		return t, b, true
	case string:
		a, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, 0, false
		}
		return a, b, true
	}
	return 0, 0, false
}
