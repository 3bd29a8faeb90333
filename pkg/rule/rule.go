// Package rule evaluates custom transition-rule expressions.
//
// The script format reserves a condition kind whose rule language was never
// defined upstream; a state machine with no evaluator attached treats such
// conditions as false. ExprEvaluator is the provided opt-in implementation,
// evaluating expr-lang expressions against the call's context variables.
package rule

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator decides whether a custom rule holds for the given variables.
type Evaluator interface {
	Eval(ruleText string, vars map[string]any) (bool, error)
}

// ExprEvaluator evaluates expr-lang boolean expressions. Programs are
// compiled once per rule text and cached; evaluation is side-effect free.
type ExprEvaluator struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

// NewExprEvaluator creates an evaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

// Eval compiles (or reuses) the rule and runs it against vars.
// The rule must evaluate to a boolean.
func (e *ExprEvaluator) Eval(ruleText string, vars map[string]any) (bool, error) {
	ruleText = strings.TrimSpace(ruleText)
	if ruleText == "" {
		return false, fmt.Errorf("empty rule")
	}

	program, err := e.compile(ruleText)
	if err != nil {
		return false, fmt.Errorf("compile rule %q: %w", ruleText, err)
	}

	out, err := expr.Run(program, vars)
	if err != nil {
		return false, fmt.Errorf("run rule %q: %w", ruleText, err)
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule %q must evaluate to bool (got %T)", ruleText, out)
	}
	return b, nil
}

func (e *ExprEvaluator) compile(ruleText string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.cache[ruleText]; ok {
		return p, nil
	}

	p, err := expr.Compile(ruleText, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache[ruleText] = p
	return p, nil
}
