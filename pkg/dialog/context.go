package dialog

import (
	"fmt"
	"sync"
	"time"

	"github.com/voicetyped/dialogcore/pkg/outcome"
	"github.com/voicetyped/dialogcore/pkg/script"
)

// Direction of the call relative to the platform.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// IntentKey is the collected-data key an external NLU writes detected
// intents into. The state machine reads it; it never infers intent itself.
const IntentKey = "_detected_intent"

// Message is one entry of the call transcript.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	StateID   string    `json:"state_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Context holds per-call mutable state. One instance exists per call and is
// owned by it; access is thread-safe the same way the rest of the codebase
// guards per-call state.
type Context struct {
	mu sync.RWMutex

	callID     string
	scriptName string
	direction  Direction
	language   string

	currentStateID  string
	previousStateID string
	visitedStates   []string

	collected map[string]any
	messages  []Message
	lastAssistant int // index into messages, -1 when none

	turnCount        int
	stateTurnCount   int
	retryCount       int
	supportQuestions int

	callbackRequested bool
	callbackReason    string
	notTarget         bool
	notTargetReason   string
	escalated         bool
	escalationReason  string

	startedAt time.Time
	limits    script.Limits
}

// NewContext creates the context for a new call. The start state comes from
// the script unless overridden; a script without a start state is a
// programmer error surfaced here.
func NewContext(s *script.Script, callID string, direction Direction, startOverride string) (*Context, error) {
	start := startOverride
	if start == "" {
		st, ok := s.StartState()
		if !ok {
			return nil, fmt.Errorf("script %q has no start state", s.Name)
		}
		start = st.ID
	} else if _, ok := s.State(start); !ok {
		return nil, fmt.Errorf("script %q has no state %q", s.Name, start)
	}

	return &Context{
		callID:         callID,
		scriptName:     s.Name,
		direction:      direction,
		language:       s.Language.Default,
		currentStateID: start,
		visitedStates:  []string{start},
		collected:      make(map[string]any),
		lastAssistant:  -1,
		startedAt:      time.Now(),
		limits:         s.Limits,
	}, nil
}

// CallID returns the call identifier.
func (c *Context) CallID() string { return c.callID }

// ScriptName returns the name of the script driving the call.
func (c *Context) ScriptName() string { return c.scriptName }

// Direction returns the call direction.
func (c *Context) Direction() Direction { return c.direction }

// Language returns the currently active language.
func (c *Context) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// SetLanguage switches the active language.
func (c *Context) SetLanguage(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = lang
}

// CurrentState returns the current state id.
func (c *Context) CurrentState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentStateID
}

// PreviousState returns the previous state id.
func (c *Context) PreviousState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.previousStateID
}

// SetState moves the call to a new state, resetting the per-state turn
// counter. It does not check transition legality; that is the state
// machine's job.
func (c *Context) SetState(stateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previousStateID = c.currentStateID
	c.currentStateID = stateID
	c.stateTurnCount = 0
	for _, v := range c.visitedStates {
		if v == stateID {
			return
		}
	}
	c.visitedStates = append(c.visitedStates, stateID)
}

// SetField stores a collected value, last write wins.
func (c *Context) SetField(fieldID string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collected[fieldID] = value
}

// GetField returns a collected value or def when absent.
func (c *Context) GetField(fieldID string, def any) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.collected[fieldID]; ok {
		return v
	}
	return def
}

// HasField reports whether the field has been collected.
func (c *Context) HasField(fieldID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.collected[fieldID]
	return ok
}

// AddMessage appends to the transcript, stamped with the current state.
func (c *Context) AddMessage(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{
		Role:      role,
		Content:   content,
		StateID:   c.currentStateID,
		Timestamp: time.Now(),
	})
	if role == RoleAssistant {
		c.lastAssistant = len(c.messages) - 1
	}
}

// LastUserMessage returns the content of the most recent user message.
func (c *Context) LastUserMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			return c.messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the most recent assistant message, if any.
// The lookup is O(1) via a cached index.
func (c *Context) LastAssistantMessage() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastAssistant < 0 {
		return Message{}, false
	}
	return c.messages[c.lastAssistant], true
}

// IncrementTurn advances both the total and the per-state turn counters.
func (c *Context) IncrementTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnCount++
	c.stateTurnCount++
}

// IncrementRetry advances the retry counter.
func (c *Context) IncrementRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryCount++
}

// ResetRetry zeroes the retry counter. Unlike the per-state turn counter it
// never resets implicitly.
func (c *Context) ResetRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryCount = 0
}

// IncrementSupportQuestions counts one more off-script support question.
func (c *Context) IncrementSupportQuestions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supportQuestions++
}

// TurnCount returns the total number of user turns.
func (c *Context) TurnCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.turnCount
}

// StateTurnCount returns the number of turns spent in the current state.
func (c *Context) StateTurnCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateTurnCount
}

// RetryCount returns the current retry counter.
func (c *Context) RetryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryCount
}

// RequestCallback raises the callback flag. Calling it again only updates
// the reason.
func (c *Context) RequestCallback(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbackRequested = true
	c.callbackReason = reason
}

// MarkNotTarget records that the caller is not the intended contact.
func (c *Context) MarkNotTarget(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notTarget = true
	c.notTargetReason = reason
}

// TriggerEscalation raises the escalation flag.
func (c *Context) TriggerEscalation(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.escalated = true
	c.escalationReason = reason
}

// CallbackRequested reports the callback flag.
func (c *Context) CallbackRequested() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callbackRequested
}

// EscalationTriggered reports the escalation flag.
func (c *Context) EscalationTriggered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.escalated
}

// NotTargetReason returns the not-target reason and whether it was set.
func (c *Context) NotTargetReason() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notTargetReason, c.notTarget
}

// MaxTurnsExceeded reports whether the call hit the total turn limit.
func (c *Context) MaxTurnsExceeded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits.MaxTurns > 0 && c.turnCount >= c.limits.MaxTurns
}

// MaxRetriesExceeded reports whether the retry budget is spent.
func (c *Context) MaxRetriesExceeded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits.MaxRetries > 0 && c.retryCount >= c.limits.MaxRetries
}

// CopyCollected returns a snapshot of the collected data.
func (c *Context) CopyCollected() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]any, len(c.collected))
	for k, v := range c.collected {
		cp[k] = v
	}
	return cp
}

// CopyMessages returns a snapshot of the transcript.
func (c *Context) CopyMessages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}

// VisitedStates returns the ordered distinct list of states the call
// entered.
func (c *Context) VisitedStates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]string, len(c.visitedStates))
	copy(cp, c.visitedStates)
	return cp
}

// StartedAt returns when the call began.
func (c *Context) StartedAt() time.Time { return c.startedAt }

// Facts projects the context into the value the outcome classifier reads.
func (c *Context) Facts() outcome.FactSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	collected := make(map[string]any, len(c.collected))
	for k, v := range c.collected {
		collected[k] = v
	}
	return outcome.FactSet{
		Collected:         collected,
		TurnCount:         c.turnCount,
		SupportQuestions:  c.supportQuestions,
		CallbackRequested: c.callbackRequested,
		NotTarget:         c.notTarget,
		NotTargetReason:   c.notTargetReason,
		Escalated:         c.escalated,
	}
}

// ToResult builds the immutable terminal snapshot handed to persistence.
func (c *Context) ToResult(outcomeID string, confidence float64, evidence map[string]any, endedReason string) *CallResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	collected := make(map[string]any, len(c.collected))
	for k, v := range c.collected {
		collected[k] = v
	}
	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)
	visited := make([]string, len(c.visitedStates))
	copy(visited, c.visitedStates)

	now := time.Now()
	return &CallResult{
		CallID:          c.callID,
		ScriptName:      c.scriptName,
		Direction:       c.direction,
		Language:        c.language,
		OutcomeID:       outcomeID,
		Confidence:      confidence,
		Evidence:        evidence,
		Collected:       collected,
		Messages:        messages,
		VisitedStates:   visited,
		EndedReason:     endedReason,
		StartedAt:       c.startedAt,
		EndedAt:         now,
		DurationSeconds: int64(now.Sub(c.startedAt).Seconds()),
	}
}
