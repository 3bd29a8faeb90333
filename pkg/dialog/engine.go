package dialog

import (
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/voicetyped/dialogcore/pkg/events"
	"github.com/voicetyped/dialogcore/pkg/extract"
	"github.com/voicetyped/dialogcore/pkg/language"
	"github.com/voicetyped/dialogcore/pkg/outcome"
	"github.com/voicetyped/dialogcore/pkg/script"
)

// Ending reasons reported in turn results and call results.
const (
	EndReasonCompleted = "completed"
	EndReasonMaxTurns  = "max_turns"
	EndReasonGuardrail = "guardrail"
	EndReasonHangup    = "hangup"
)

// Engine drives calls through one validated script. It is read-only after
// construction and may serve any number of concurrent calls.
type Engine struct {
	script     *script.Script
	sm         *StateMachine
	extractors *extract.Registry
	detector   *language.Detector
	publisher  *events.Publisher
	logger     *slog.Logger
}

// NewEngine creates an engine for a validated script. logger and publisher
// may be nil; a nil logger falls back to slog.Default.
func NewEngine(s *script.Script, pub *events.Publisher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		script:     s,
		sm:         NewStateMachine(s),
		extractors: extract.NewRegistry(),
		detector:   language.NewDetector(s.Language),
		publisher:  pub,
		logger:     logger,
	}
}

// SetCustomEvaluator attaches an evaluator for custom transition rules.
// Without one, custom conditions never fire.
func (e *Engine) SetCustomEvaluator(ev CustomEvaluator) {
	e.sm.SetCustomEvaluator(ev)
}

// SetClock pins the reference clock used by date and time extraction.
func (e *Engine) SetClock(now func() time.Time) {
	e.extractors.Now = now
}

// Script returns the script the engine runs.
func (e *Engine) Script() *script.Script { return e.script }

// GuardrailHit records one guardrail firing during a turn.
type GuardrailHit struct {
	ID     string
	Action script.GuardrailAction
}

// FieldCollected records one field filled during a turn.
type FieldCollected struct {
	FieldID    string
	Value      string
	Raw        string
	Confidence float64
}

// TurnResult is what the engine exposes to the external turn-taking loop
// after each utterance.
type TurnResult struct {
	StateID             string
	Goal                string
	Changed             bool
	PreviousStateID     string
	MissingFields       []string
	Collected           []FieldCollected
	GuardrailHits       []GuardrailHit
	Language            string
	LanguageSwitched    bool
	StateTurnsExhausted bool
	Ended               bool
	EndedReason         string
}

// Call binds a context to the engine that drives it.
type Call struct {
	engine *Engine
	ctx    *Context
}

// NewCall creates a context for a new call. An empty callID generates one.
// startOverride, when non-empty, replaces the script's start state.
func (e *Engine) NewCall(callID string, direction Direction, startOverride string) (*Call, error) {
	if callID == "" {
		callID = xid.New().String()
	}

	ctx, err := NewContext(e.script, callID, direction, startOverride)
	if err != nil {
		return nil, err
	}

	e.logger.Info("call started",
		slog.String("call_id", callID),
		slog.String("script", e.script.Name),
		slog.String("state", ctx.CurrentState()),
		slog.String("direction", string(direction)))

	e.emit(events.CallStarted, callID, &events.CallStartedData{
		ScriptName: e.script.Name,
		Direction:  string(direction),
		StateID:    ctx.CurrentState(),
		Language:   ctx.Language(),
	})

	return &Call{engine: e, ctx: ctx}, nil
}

// Context exposes the call's mutable state.
func (c *Call) Context() *Context { return c.ctx }

// SetDetectedIntent records an externally computed intent for the next
// transition evaluation.
func (c *Call) SetDetectedIntent(intent string) {
	c.ctx.SetField(IntentKey, intent)
}

// AddAssistantMessage records the reply an external generator produced.
func (c *Call) AddAssistantMessage(content string) {
	c.ctx.AddMessage(RoleAssistant, content)
}

// ProcessTurn runs one user utterance through the engine: record, detect
// language, check guardrails, extract fields, evaluate transitions. A
// *MaxRetriesExceededError is returned alongside a usable TurnResult when
// the retry budget for the state's fields is spent.
func (c *Call) ProcessTurn(utterance string) (*TurnResult, error) {
	e := c.engine
	ctx := c.ctx

	ctx.IncrementTurn()
	ctx.AddMessage(RoleUser, utterance)

	res := &TurnResult{
		StateID:  ctx.CurrentState(),
		Language: ctx.Language(),
	}

	if det := e.detector.Detect(utterance, ctx.Language()); det.Switch {
		from := ctx.Language()
		ctx.SetLanguage(det.Language)
		res.Language = det.Language
		res.LanguageSwitched = true
		e.logger.Info("language switched",
			slog.String("call_id", ctx.CallID()),
			slog.String("from", from),
			slog.String("to", det.Language),
			slog.Float64("confidence", det.Confidence))
		e.emit(events.LanguageSwitched, ctx.CallID(), &events.LanguageSwitchedData{
			From: from, To: det.Language, Confidence: det.Confidence,
		})
	}

	if ended := c.checkGuardrails(utterance, res); ended {
		return res, nil
	}

	retryErr := c.extractFields(utterance, res)

	if to, tr, ok := e.sm.Next(ctx); ok {
		from := ctx.CurrentState()
		ctx.SetState(to)
		res.Changed = true
		res.PreviousStateID = from
		res.StateID = to
		e.logger.Debug("state transition",
			slog.String("call_id", ctx.CallID()),
			slog.String("from", from),
			slog.String("to", to),
			slog.String("condition", string(tr.Condition.Kind)))
		e.emit(events.StateTransition, ctx.CallID(), &events.StateTransitionData{
			FromState: from, ToState: to,
			ScriptName: e.script.Name, Turn: ctx.TurnCount(),
		})
	}

	c.finishTurn(res)
	if retryErr != nil {
		return res, retryErr
	}
	return res, nil
}

// checkGuardrails applies the script's guardrails to the utterance.
// It reports whether the call must end immediately.
func (c *Call) checkGuardrails(utterance string, res *TurnResult) bool {
	e := c.engine
	ctx := c.ctx

	for i := range e.script.Guardrails {
		g := &e.script.Guardrails[i]
		if !g.Match(utterance) {
			continue
		}
		res.GuardrailHits = append(res.GuardrailHits, GuardrailHit{ID: g.ID, Action: g.Action})
		e.logger.Warn("guardrail triggered",
			slog.String("call_id", ctx.CallID()),
			slog.String("guardrail", g.ID),
			slog.String("action", string(g.Action)))
		e.emit(events.GuardrailTriggered, ctx.CallID(), &events.GuardrailTriggeredData{
			GuardrailID: g.ID, Action: string(g.Action), StateID: ctx.CurrentState(),
		})

		switch g.Action {
		case script.GuardEscalate:
			ctx.TriggerEscalation("guardrail " + g.ID)
			e.emit(events.EscalationRaised, ctx.CallID(), &events.EscalationRaisedData{
				Reason: "guardrail " + g.ID, StateID: ctx.CurrentState(),
			})
		case script.GuardEndCall:
			res.Ended = true
			res.EndedReason = EndReasonGuardrail
			c.finishTurn(res)
			return true
		}
	}
	return false
}

// extractFields tries every uncollected field of the current state against
// the utterance. Validated values go into the context; a state with
// required fields and no progress this turn burns one retry.
func (c *Call) extractFields(utterance string, res *TurnResult) error {
	e := c.engine
	ctx := c.ctx

	st, ok := e.script.State(ctx.CurrentState())
	if !ok {
		return nil
	}

	collected := 0
	for _, f := range st.Fields {
		if ctx.HasField(f.ID) {
			continue
		}
		ex, ok := e.extractors.ForType(f.Type)
		if !ok {
			continue
		}
		r := ex.Extract(utterance, f)
		if !r.Success {
			continue
		}
		v := ex.Validate(r.Value, f)
		if !v.Valid {
			e.logger.Debug("extracted value failed validation",
				slog.String("call_id", ctx.CallID()),
				slog.String("field", f.ID),
				slog.String("reason", v.Error))
			continue
		}
		ctx.SetField(f.ID, v.Normalized)
		collected++
		res.Collected = append(res.Collected, FieldCollected{
			FieldID:    f.ID,
			Value:      v.Normalized,
			Raw:        r.Raw,
			Confidence: r.Confidence,
		})
		e.emit(events.FieldCollected, ctx.CallID(), &events.FieldCollectedData{
			FieldID: f.ID, StateID: st.ID, Confidence: r.Confidence,
		})
	}

	missing := e.sm.MissingFields(ctx)
	if collected > 0 {
		ctx.ResetRetry()
		return nil
	}
	if len(missing) == 0 {
		return nil
	}

	ctx.IncrementRetry()
	if ctx.MaxRetriesExceeded() {
		return &MaxRetriesExceededError{Field: missing[0], Retries: ctx.RetryCount()}
	}
	return nil
}

// finishTurn fills the per-turn exposure contract and end-of-call checks.
func (c *Call) finishTurn(res *TurnResult) {
	e := c.engine
	ctx := c.ctx

	res.StateID = ctx.CurrentState()
	res.Language = ctx.Language()
	res.MissingFields = e.sm.MissingFields(ctx)

	if st, ok := e.script.State(ctx.CurrentState()); ok {
		res.Goal = st.Goal
		if st.MaxTurns > 0 && ctx.StateTurnCount() >= st.MaxTurns {
			res.StateTurnsExhausted = true
		}
		if st.IsEnd && !res.Ended {
			res.Ended = true
			res.EndedReason = EndReasonCompleted
		}
	}

	if !res.Ended && ctx.MaxTurnsExceeded() {
		res.Ended = true
		res.EndedReason = EndReasonMaxTurns
	}
}

// SupplyField validates and stores a value arriving through a structured
// channel instead of speech. Invalid values produce *FieldExtractionError.
func (c *Call) SupplyField(fieldID, value string) error {
	f, ok := c.engine.script.FieldSpec(fieldID)
	if !ok {
		return &FieldExtractionError{Field: fieldID, Reason: "field is not declared by the script"}
	}
	ex, ok := c.engine.extractors.ForType(f.Type)
	if !ok {
		return &FieldExtractionError{Field: fieldID, Reason: "no extractor for field type"}
	}
	v := ex.Validate(value, *f)
	if !v.Valid {
		return &FieldExtractionError{Field: fieldID, Reason: v.Error}
	}
	c.ctx.SetField(fieldID, v.Normalized)
	return nil
}

// End classifies the call and builds its terminal snapshot. The context
// should be discarded afterwards.
func (c *Call) End(reason string) *CallResult {
	e := c.engine
	ctx := c.ctx

	class := outcome.Classify(e.script.Outcomes, ctx.Facts())
	result := ctx.ToResult(class.OutcomeID, class.Confidence, class.Evidence, reason)

	e.logger.Info("call ended",
		slog.String("call_id", ctx.CallID()),
		slog.String("outcome", class.OutcomeID),
		slog.String("reason", reason),
		slog.Int("turns", ctx.TurnCount()),
		slog.Int64("duration_s", result.DurationSeconds))

	e.emit(events.CallEnded, ctx.CallID(), &events.CallEndedData{
		OutcomeID:       class.OutcomeID,
		EndedReason:     reason,
		DurationSeconds: result.DurationSeconds,
		TurnCount:       ctx.TurnCount(),
	})

	return result
}

func (e *Engine) emit(t events.EventType, callID string, data any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Emit(t, callID, data); err != nil {
		e.logger.Warn("event emit failed",
			slog.String("event_type", string(t)), slog.String("call_id", callID))
	}
}
