// dialogsim validates a dialog script and replays a call against it from a
// transcript file or stdin, printing the engine's per-turn output and the
// final call result as JSON.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/voicetyped/dialogcore/pkg/dialog"
	"github.com/voicetyped/dialogcore/pkg/rule"
	"github.com/voicetyped/dialogcore/pkg/script"
)

func main() {
	var (
		scriptPath   = flag.String("script", "", "path to a .yaml/.yml/.json dialog script (required)")
		transcript   = flag.String("transcript", "", "file with one user utterance per line (default: stdin)")
		direction    = flag.String("direction", "inbound", "call direction: inbound or outbound")
		validateOnly = flag.Bool("validate", false, "validate the script and exit")
		exprRules    = flag.Bool("expr", false, "evaluate custom transition rules as expr expressions")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *scriptPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s, err := script.Load(*scriptPath)
	if err != nil {
		log.Fatalf("loading script: %v", err)
	}
	if *validateOnly {
		fmt.Printf("script %q is valid: %d states, %d transitions, %d outcomes\n",
			s.Name, len(s.States), len(s.Transitions), len(s.Outcomes))
		return
	}

	engine := dialog.NewEngine(s, nil, logger)
	if *exprRules {
		engine.SetCustomEvaluator(rule.NewExprEvaluator())
	}

	call, err := engine.NewCall("", dialog.Direction(*direction), "")
	if err != nil {
		log.Fatalf("starting call: %v", err)
	}

	in := os.Stdin
	if *transcript != "" {
		f, err := os.Open(*transcript)
		if err != nil {
			log.Fatalf("opening transcript: %v", err)
		}
		defer f.Close()
		in = f
	}

	reason := dialog.EndReasonHangup
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		utterance := strings.TrimSpace(scanner.Text())
		if utterance == "" {
			continue
		}

		res, err := call.ProcessTurn(utterance)
		if err != nil {
			fmt.Printf("  ! %v\n", err)
		}
		printTurn(res)

		if res.Ended {
			reason = res.EndedReason
			break
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading input: %v", err)
	}

	result := call.End(reason)
	out, err := sonic.ConfigDefault.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encoding result: %v", err)
	}
	fmt.Println(string(out))
}

func printTurn(res *dialog.TurnResult) {
	state := res.StateID
	if res.Changed {
		state = res.PreviousStateID + " -> " + res.StateID
	}
	fmt.Printf("  state: %s\n", state)
	if res.Goal != "" {
		fmt.Printf("  goal:  %s\n", res.Goal)
	}
	for _, f := range res.Collected {
		fmt.Printf("  collected %s = %q (confidence %.2f)\n", f.FieldID, f.Value, f.Confidence)
	}
	if len(res.MissingFields) > 0 {
		fmt.Printf("  missing: %s\n", strings.Join(res.MissingFields, ", "))
	}
	for _, g := range res.GuardrailHits {
		fmt.Printf("  guardrail %s (%s)\n", g.ID, g.Action)
	}
	if res.LanguageSwitched {
		fmt.Printf("  language switched to %s\n", res.Language)
	}
	if res.Ended {
		fmt.Printf("  call ended: %s\n", res.EndedReason)
	}
}
