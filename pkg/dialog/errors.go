package dialog

import "fmt"

// StateTransitionError reports a forced transition between two states with
// no satisfied condition. It is recoverable: callers may retry once more
// context has been collected.
type StateTransitionError struct {
	From string
	To   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("no enabled transition from state %q to state %q", e.From, e.To)
}

// MaxRetriesExceededError reports that a field could not be collected
// within the configured retry budget.
type MaxRetriesExceededError struct {
	Field   string
	Retries int
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("field %q not collected after %d retries", e.Field, e.Retries)
}

// FieldExtractionError reports that a supplied value failed validation for
// a field. Per-turn extraction misses are ordinary results, not errors;
// this type covers structured-channel inputs that must be rejected.
type FieldExtractionError struct {
	Field  string
	Reason string
}

func (e *FieldExtractionError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}
