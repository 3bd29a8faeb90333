package dialog

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/voicetyped/dialogcore/pkg/events"
	"github.com/voicetyped/dialogcore/pkg/script"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func engineScript() *script.Script {
	return &script.Script{
		Name: "intro",
		States: []script.State{
			{ID: "greeting", IsStart: true, Goal: "greet the caller"},
			{ID: "ask_name", Goal: "learn the caller's name", Fields: []script.Field{
				{ID: "name", Type: script.FieldText, Required: true},
			}},
			{ID: "done", IsEnd: true, Goal: "wrap up"},
		},
		Transitions: []script.Transition{
			{From: "greeting", To: "ask_name", Condition: script.Condition{Kind: script.CondAlways}},
			{From: "ask_name", To: "done",
				Condition: script.Condition{Kind: script.CondFieldCollected, Field: script.AllRequired}},
		},
		Outcomes: []script.Outcome{
			{ID: "ok", Rules: []script.Rule{{Field: "name", Op: script.OpIsSet}}, Evidence: []string{"name"}},
			{ID: "no_name", IsDefault: true},
		},
		Limits:   script.Limits{MaxTurns: 50, MaxRetries: 3},
		Language: script.LanguagePolicy{Default: "en"},
	}
}

func drain(ch <-chan events.Envelope) []events.Envelope {
	var out []events.Envelope
	for {
		select {
		case env := <-ch:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestCallLifecycle(t *testing.T) {
	pub := events.NewPublisher("engine-test")
	ch := pub.Subscribe("t", 32)
	defer pub.Unsubscribe("t")

	e := NewEngine(engineScript(), pub, discardLogger())
	call, err := e.NewCall("call-42", Outbound, "")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	call.AddAssistantMessage("Hi! Who am I speaking with?")
	res, err := call.ProcessTurn("hello")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if !res.Changed || res.StateID != "ask_name" || res.PreviousStateID != "greeting" {
		t.Fatalf("turn 1 result = %+v, want greeting -> ask_name", res)
	}
	if len(res.MissingFields) != 1 || res.MissingFields[0] != "name" {
		t.Errorf("missing after turn 1 = %v, want [name]", res.MissingFields)
	}
	if res.Goal != "learn the caller's name" {
		t.Errorf("goal = %q", res.Goal)
	}

	res, err = call.ProcessTurn("my name is Anna")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if len(res.Collected) != 1 || res.Collected[0].FieldID != "name" || res.Collected[0].Value != "Anna" {
		t.Fatalf("collected = %+v, want name=Anna", res.Collected)
	}
	if res.StateID != "done" || !res.Ended || res.EndedReason != EndReasonCompleted {
		t.Fatalf("turn 2 result = %+v, want completed in done", res)
	}

	result := call.End(EndReasonCompleted)
	if result.OutcomeID != "ok" {
		t.Errorf("outcome = %q, want ok", result.OutcomeID)
	}
	if result.Evidence["name"] != "Anna" {
		t.Errorf("evidence = %v, want name=Anna", result.Evidence)
	}
	if len(result.VisitedStates) != 3 {
		t.Errorf("visited = %v", result.VisitedStates)
	}
	if result.Language != "en" {
		t.Errorf("language = %q", result.Language)
	}

	got := map[events.EventType]int{}
	for _, env := range drain(ch) {
		if env.CallID != "call-42" {
			t.Errorf("event %s for call %q", env.Type, env.CallID)
		}
		got[env.Type]++
	}
	want := map[events.EventType]int{
		events.CallStarted:     1,
		events.StateTransition: 2,
		events.FieldCollected:  1,
		events.CallEnded:       1,
	}
	for typ, n := range want {
		if got[typ] != n {
			t.Errorf("%s events = %d, want %d", typ, got[typ], n)
		}
	}
}

func TestNewCallGeneratesID(t *testing.T) {
	e := NewEngine(engineScript(), nil, discardLogger())
	call, err := e.NewCall("", Inbound, "")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	if call.Context().CallID() == "" {
		t.Error("empty call id not generated")
	}
}

func TestProcessTurnGuardrails(t *testing.T) {
	s := engineScript()
	s.Guardrails = []script.Guardrail{
		{ID: "legal_threat", Pattern: "lawyer|lawsuit", Action: script.GuardEscalate},
		{ID: "stop_calling", Pattern: "remove my number", Action: script.GuardEndCall},
	}
	e := NewEngine(s, nil, discardLogger())
	call, err := e.NewCall("call-1", Outbound, "")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	res, err := call.ProcessTurn("I will talk to my LAWYER about this")
	if err != nil {
		t.Fatalf("escalation turn: %v", err)
	}
	if len(res.GuardrailHits) != 1 || res.GuardrailHits[0].ID != "legal_threat" {
		t.Fatalf("hits = %+v", res.GuardrailHits)
	}
	if res.Ended {
		t.Error("escalation ended the call")
	}
	if !call.Context().EscalationTriggered() {
		t.Error("escalation flag not raised")
	}

	res, err = call.ProcessTurn("remove my number, thanks")
	if err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if !res.Ended || res.EndedReason != EndReasonGuardrail {
		t.Fatalf("result = %+v, want ended by guardrail", res)
	}
	// An end_call guardrail short-circuits the turn before transitions.
	if res.Changed {
		t.Error("state changed on a terminated turn")
	}
}

func TestProcessTurnRetryBudget(t *testing.T) {
	s := &script.Script{
		Name: "contact",
		States: []script.State{
			{ID: "ask_phone", IsStart: true, Fields: []script.Field{
				{ID: "phone", Type: script.FieldPhone, Required: true},
			}},
			{ID: "done", IsEnd: true},
		},
		Transitions: []script.Transition{
			{From: "ask_phone", To: "done",
				Condition: script.Condition{Kind: script.CondFieldCollected, Field: "phone"}},
		},
		Limits: script.Limits{MaxTurns: 50, MaxRetries: 2},
	}
	e := NewEngine(s, nil, discardLogger())
	call, err := e.NewCall("call-1", Outbound, "")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	res, err := call.ProcessTurn("why do you need it?")
	if err != nil {
		t.Fatalf("first miss must stay within budget: %v", err)
	}
	if res.Changed {
		t.Error("state changed without the field")
	}

	res, err = call.ProcessTurn("no way")
	var retryErr *MaxRetriesExceededError
	if !errors.As(err, &retryErr) {
		t.Fatalf("err = %v, want *MaxRetriesExceededError", err)
	}
	if retryErr.Field != "phone" || retryErr.Retries != 2 {
		t.Errorf("error = %+v", retryErr)
	}
	// The result stays usable so the caller can still route the call.
	if res == nil || res.StateID != "ask_phone" {
		t.Fatalf("result alongside retry error = %+v", res)
	}

	// Collecting the field clears the budget and moves on.
	res, err = call.ProcessTurn("ok, 8 900 123 45 67")
	if err != nil {
		t.Fatalf("collecting turn: %v", err)
	}
	if call.Context().GetField("phone", "") != "+79001234567" {
		t.Errorf("phone = %v", call.Context().GetField("phone", ""))
	}
	if call.Context().RetryCount() != 0 {
		t.Error("retry counter not reset after progress")
	}
	if res.StateID != "done" || !res.Ended {
		t.Errorf("result = %+v, want done", res)
	}
}

func TestProcessTurnMaxTurns(t *testing.T) {
	s := engineScript()
	s.Limits.MaxTurns = 2
	s.Limits.MaxRetries = 10
	// A phone field keeps small talk from completing the call early.
	s.States[1].Fields[0].Type = script.FieldPhone
	e := NewEngine(s, nil, discardLogger())
	call, err := e.NewCall("call-1", Outbound, "")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	if res, _ := call.ProcessTurn("hello"); res.Ended {
		t.Fatal("call ended before the turn limit")
	}
	res, _ := call.ProcessTurn("hello again")
	if !res.Ended || res.EndedReason != EndReasonMaxTurns {
		t.Fatalf("result = %+v, want ended by max_turns", res)
	}

	result := call.End(res.EndedReason)
	if result.OutcomeID != "no_name" {
		t.Errorf("outcome = %q, want default", result.OutcomeID)
	}
}

func TestProcessTurnLanguageSwitch(t *testing.T) {
	s := engineScript()
	s.Language = script.LanguagePolicy{
		Default:          "ru",
		DetectionEnabled: true,
		SwitchingAllowed: true,
	}
	e := NewEngine(s, nil, discardLogger())
	call, err := e.NewCall("call-1", Inbound, "")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	res, err := call.ProcessTurn("hello, please speak english")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !res.LanguageSwitched || res.Language != "en" {
		t.Fatalf("result = %+v, want switch to en", res)
	}
	if call.Context().Language() != "en" {
		t.Error("context language not updated")
	}
}

func TestSupplyField(t *testing.T) {
	e := NewEngine(engineScript(), nil, discardLogger())
	call, err := e.NewCall("call-1", Inbound, "")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}

	if err := call.SupplyField("name", "Anna"); err != nil {
		t.Fatalf("SupplyField: %v", err)
	}
	if call.Context().GetField("name", "") != "Anna" {
		t.Error("supplied value not stored")
	}

	var feErr *FieldExtractionError
	if err := call.SupplyField("budget", "100"); !errors.As(err, &feErr) {
		t.Errorf("undeclared field error = %v", err)
	}
	if err := call.SupplyField("name", "   "); !errors.As(err, &feErr) {
		t.Errorf("invalid value error = %v", err)
	}
}
