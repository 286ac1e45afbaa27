package chat

import (
	"regexp"
	"strings"
)

// Explicit PIN phrasings outrank any bare digit group.
var pinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)pin\s+is\s+(\d{4})`),
	regexp.MustCompile(`(?i)pin:?\s*(\d{4})`),
	regexp.MustCompile(`(?i)my\s+pin\s+(?:is\s+)?(\d{4})`),
	regexp.MustCompile(`(?i)pin.*?(\d{4})`),
	regexp.MustCompile(`(?i)(\d{4}).*?pin`),
}

var digitRun = regexp.MustCompile(`\d+`)

// ExtractPIN pulls a 4-digit PIN out of free-form text. Explicit "my pin
// is 1234" phrasings win; otherwise the first standalone 4-digit run is
// taken, so digits embedded in longer numbers never match.
func ExtractPIN(message string) string {
	for _, re := range pinPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			return m[1]
		}
	}
	if pin := strings.TrimSpace(message); isDigits(pin) && len(pin) == 4 {
		return pin
	}
	for _, run := range digitRun.FindAllString(message, -1) {
		if len(run) == 4 {
			return run
		}
	}
	return ""
}

// Common phrasings for the last four digits of an account number.
var lastDigitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{4})\b`),
	regexp.MustCompile(`(?i)last\s+four\s+digits?\s+(\d{4})`),
	regexp.MustCompile(`(?i)ending\s+in\s+(\d{4})`),
	regexp.MustCompile(`(?i)ends?\s+with\s+(\d{4})`),
	regexp.MustCompile(`(?i)account\s+\w+\s+(\d{4})`),
}

// ExtractLastDigits pulls the last-4-digits account reference out of a
// message, or returns "" when none is present.
func ExtractLastDigits(message string) string {
	for _, re := range lastDigitPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			return m[1]
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
