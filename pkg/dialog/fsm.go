package dialog

import (
	"sort"
	"strings"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// CustomEvaluator decides custom transition rules. No evaluator means every
// custom condition is false: the rule language was never defined upstream
// and this package does not invent one.
type CustomEvaluator interface {
	Eval(ruleText string, vars map[string]any) (bool, error)
}

// StateMachine selects transitions over the states a script declares.
type StateMachine struct {
	script *script.Script
	custom CustomEvaluator
}

// NewStateMachine creates a state machine for a validated script.
func NewStateMachine(s *script.Script) *StateMachine {
	return &StateMachine{script: s}
}

// SetCustomEvaluator attaches an evaluator for custom rule conditions.
func (sm *StateMachine) SetCustomEvaluator(ev CustomEvaluator) {
	sm.custom = ev
}

// Script returns the underlying script.
func (sm *StateMachine) Script() *script.Script { return sm.script }

// Next evaluates the transitions leaving the context's current state in
// descending priority order (declaration order breaks ties) and returns the
// first one whose condition holds. ok is false when no transition fires,
// which simply means the call stays where it is.
func (sm *StateMachine) Next(ctx *Context) (to string, tr *script.Transition, ok bool) {
	candidates := sm.script.TransitionsFrom(ctx.CurrentState())
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	for i := range candidates {
		if sm.conditionHolds(candidates[i].Condition, ctx) {
			return candidates[i].To, &candidates[i], true
		}
	}
	return "", nil, false
}

// Force transitions the context to target, requiring an enabled transition
// between the two states. Without one it returns *StateTransitionError.
func (sm *StateMachine) Force(ctx *Context, target string) error {
	from := ctx.CurrentState()
	for _, t := range sm.script.TransitionsFrom(from) {
		if t.To == target && sm.conditionHolds(t.Condition, ctx) {
			ctx.SetState(target)
			return nil
		}
	}
	return &StateTransitionError{From: from, To: target}
}

// MissingFields returns the required fields of the current state not yet
// collected, in declaration order.
func (sm *StateMachine) MissingFields(ctx *Context) []string {
	st, ok := sm.script.State(ctx.CurrentState())
	if !ok {
		return nil
	}
	var missing []string
	for _, id := range st.RequiredFields() {
		if !ctx.HasField(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

func (sm *StateMachine) conditionHolds(c script.Condition, ctx *Context) bool {
	switch c.Kind {
	case script.CondAlways:
		return true

	case script.CondFieldCollected:
		if c.Field == script.AllRequired {
			return len(sm.MissingFields(ctx)) == 0
		}
		return ctx.HasField(c.Field)

	case script.CondIntentDetected:
		intent, _ := ctx.GetField(IntentKey, "").(string)
		return intent != "" && intent == c.Intent

	case script.CondKeyword:
		last := strings.ToLower(ctx.LastUserMessage())
		if last == "" {
			return false
		}
		for _, kw := range c.Keywords {
			if strings.Contains(last, strings.ToLower(kw)) {
				return true
			}
		}
		return false

	case script.CondCustom:
		if sm.custom == nil {
			return false
		}
		holds, err := sm.custom.Eval(c.Rule, sm.customVars(ctx))
		if err != nil {
			return false
		}
		return holds
	}
	return false
}

// customVars is the variable environment custom rules evaluate against:
// collected fields by id plus the counters and flags outcome rules see.
func (sm *StateMachine) customVars(ctx *Context) map[string]any {
	vars := ctx.CopyCollected()
	reason, _ := ctx.NotTargetReason()
	vars[script.PseudoTurnCount] = ctx.TurnCount()
	vars[script.PseudoCallbackRequested] = ctx.CallbackRequested()
	vars[script.PseudoEscalationTriggered] = ctx.EscalationTriggered()
	vars[script.PseudoNotTargetReason] = reason
	vars["state_turn_count"] = ctx.StateTurnCount()
	vars["current_state"] = ctx.CurrentState()
	return vars
}
