package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event the engine emits.
type EventType string

const (
	CallStarted        EventType = "call.started"
	CallEnded          EventType = "call.ended"
	StateTransition    EventType = "state.transition"
	FieldCollected     EventType = "field.collected"
	GuardrailTriggered EventType = "guardrail.triggered"
	LanguageSwitched   EventType = "language.switched"
	EscalationRaised   EventType = "escalation.raised"
)

// Envelope is the standard event wrapper handed to subscribers.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	CallID    string            `json:"call_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CallStartedData is the payload for call.started events.
type CallStartedData struct {
	ScriptName string `json:"script_name"`
	Direction  string `json:"direction"`
	StateID    string `json:"state_id"`
	Language   string `json:"language"`
}

// CallEndedData is the payload for call.ended events.
type CallEndedData struct {
	OutcomeID       string `json:"outcome_id"`
	EndedReason     string `json:"ended_reason"`
	DurationSeconds int64  `json:"duration_seconds"`
	TurnCount       int    `json:"turn_count"`
}

// StateTransitionData is the payload for state.transition events.
type StateTransitionData struct {
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
	ScriptName string `json:"script_name"`
	Turn       int    `json:"turn"`
}

// FieldCollectedData is the payload for field.collected events.
type FieldCollectedData struct {
	FieldID    string  `json:"field_id"`
	StateID    string  `json:"state_id"`
	Confidence float64 `json:"confidence"`
}

// GuardrailTriggeredData is the payload for guardrail.triggered events.
type GuardrailTriggeredData struct {
	GuardrailID string `json:"guardrail_id"`
	Action      string `json:"action"`
	StateID     string `json:"state_id"`
}

// LanguageSwitchedData is the payload for language.switched events.
type LanguageSwitchedData struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Confidence float64 `json:"confidence"`
}

// EscalationRaisedData is the payload for escalation.raised events.
type EscalationRaisedData struct {
	Reason  string `json:"reason"`
	StateID string `json:"state_id"`
}
