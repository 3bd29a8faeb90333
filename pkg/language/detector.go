// Package language detects the spoken language of call utterances and
// decides whether the active call language should switch.
package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// SwitchThreshold is the minimum detection confidence required before the
// detector recommends switching the active language.
const SwitchThreshold = 0.7

// Score weights: script ratio dominates, marker words break near-ties.
const (
	scriptWeight = 0.7
	markerWeight = 0.3
)

// Detection is the result of analyzing one utterance.
type Detection struct {
	Language   string
	Confidence float64
	Switch     bool
}

var markerWords = map[string]map[string]bool{
	"ru": wordSet("да", "нет", "привет", "здравствуйте", "спасибо", "хорошо",
		"можно", "я", "не", "это", "вы", "мне", "пожалуйста", "что", "как"),
	"en": wordSet("yes", "no", "hello", "hi", "thanks", "thank", "please",
		"the", "is", "i", "you", "me", "what", "how", "ok", "okay"),
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Detector scores utterances against the supported languages and applies
// the script's language policy.
type Detector struct {
	policy script.LanguagePolicy
}

// NewDetector creates a detector for the given policy. The policy default
// is canonicalized ("en-US" becomes "en").
func NewDetector(policy script.LanguagePolicy) *Detector {
	policy.Default = Normalize(policy.Default)
	return &Detector{policy: policy}
}

// Normalize reduces a language code to its base form.
func Normalize(code string) string {
	if code == "" {
		return code
	}
	base, _ := language.Make(code).Base()
	return base.String()
}

// Detect analyzes the utterance and decides whether to switch away from the
// current language. Empty or symbol-only utterances keep the current
// language at zero confidence.
func (d *Detector) Detect(utterance, current string) Detection {
	current = Normalize(current)
	keep := Detection{Language: current}

	if !d.policy.DetectionEnabled {
		return keep
	}

	cyr, lat := 0, 0
	for _, r := range utterance {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyr++
		case unicode.Is(unicode.Latin, r):
			lat++
		}
	}
	total := cyr + lat
	if total == 0 {
		return keep
	}

	tokens := tokenize(utterance)
	detected, confidence := "ru", score(float64(cyr)/float64(total), tokens, "ru")
	if enScore := score(float64(lat)/float64(total), tokens, "en"); enScore > confidence {
		detected, confidence = "en", enScore
	}

	det := Detection{Language: current, Confidence: confidence}
	if detected != current &&
		d.policy.SwitchingAllowed &&
		confidence >= SwitchThreshold {
		det.Language = detected
		det.Switch = true
	}
	return det
}

func score(scriptRatio float64, tokens []string, lang string) float64 {
	markers := 0
	for _, tok := range tokens {
		if markerWords[lang][tok] {
			markers++
		}
	}
	markerRatio := 0.0
	if len(tokens) > 0 {
		markerRatio = float64(markers) / float64(len(tokens))
	}
	return scriptWeight*scriptRatio + markerWeight*markerRatio
}

func tokenize(utterance string) []string {
	fields := strings.Fields(strings.ToLower(utterance))
	out := fields[:0]
	for _, f := range fields {
		if t := strings.Trim(f, ".,!?;:\"'"); t != "" {
			out = append(out, t)
		}
	}
	return out
}
