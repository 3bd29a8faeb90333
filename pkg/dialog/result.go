package dialog

import "time"

// CallResult is the immutable terminal snapshot of a call, handed to the
// external persistence collaborator. This is the package's only wire-format
// contract.
type CallResult struct {
	CallID          string         `json:"call_id"`
	ScriptName      string         `json:"script_name"`
	Direction       Direction      `json:"direction"`
	Language        string         `json:"language"`
	OutcomeID       string         `json:"outcome_id"`
	Confidence      float64        `json:"confidence"`
	Evidence        map[string]any `json:"evidence"`
	Collected       map[string]any `json:"collected_data"`
	Messages        []Message      `json:"messages"`
	VisitedStates   []string       `json:"visited_states"`
	EndedReason     string         `json:"ended_reason"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	DurationSeconds int64          `json:"duration_seconds"`
}
