package extract

import (
	"regexp"
	"strings"

	"github.com/voicetyped/dialogcore/pkg/script"
)

// countryCode is the canonical prefix for normalized phone numbers.
// A leading trunk "8" is rewritten to it.
const countryCode = "+7"

// phonePattern matches grouped digit sequences: "+7 926 123-45-67",
// "8 (926) 1234567", "9261234567".
var phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{8,}\d`)

var digitWords = map[string]byte{
	// Russian
	"ноль": '0', "один": '1', "два": '2', "три": '3', "четыре": '4',
	"пять": '5', "шесть": '6', "семь": '7', "восемь": '8', "девять": '9',
	// English
	"zero": '0', "oh": '0', "one": '1', "two": '2', "three": '3',
	"four": '4', "five": '5', "six": '6', "seven": '7', "eight": '8',
	"nine": '9',
}

// PhoneExtractor recognizes grouped digit patterns and fully spelled-out
// digit words, normalizing to a country-code-prefixed canonical form.
type PhoneExtractor struct{}

func (e *PhoneExtractor) Extract(utterance string, f script.Field) Result {
	// Grouped digits first: the strongest signal.
	for _, m := range phonePattern.FindAllString(utterance, -1) {
		n := len(onlyDigits(m))
		if n == 10 || n == 11 {
			return Result{Success: true, Value: m, Raw: m, Confidence: ConfidencePattern}
		}
	}

	// Spelled-out digits: "восемь девять два шесть ...", "nine two six ...".
	var digits strings.Builder
	var matched []string
	for _, tok := range strings.Fields(strings.ToLower(utterance)) {
		tok = strings.Trim(tok, ".,!?;:")
		if d, ok := digitWords[tok]; ok {
			digits.WriteByte(d)
			matched = append(matched, tok)
		}
	}
	if n := digits.Len(); n == 10 || n == 11 {
		return Result{
			Success:    true,
			Value:      digits.String(),
			Raw:        strings.Join(matched, " "),
			Confidence: ConfidenceWords,
		}
	}

	return failure("no phone number recognized")
}

// Validate normalizes to the canonical "+7XXXXXXXXXX" form. Exactly 10
// local digits are required (11 when the country or trunk digit leads).
// Already-normalized numbers round-trip unchanged.
func (e *PhoneExtractor) Validate(value string, f script.Field) Validation {
	digits := onlyDigits(value)

	switch len(digits) {
	case 10:
		return Validation{Valid: true, Normalized: countryCode + digits}
	case 11:
		if digits[0] == '7' || digits[0] == '8' {
			return Validation{Valid: true, Normalized: countryCode + digits[1:]}
		}
		return invalid("11-digit number must start with 7 or 8")
	default:
		return invalid("expected 10 local digits")
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
