// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "IR"

// mobilePattern matches the regional mobile format: an optional leading 0
// or +98 country prefix, then 9 followed by nine digits.
var mobilePattern = regexp.MustCompile(`^(?:\+98|0098|0)?9\d{9}$`)

// IsValidMobile reports whether the input looks like a regional mobile number.
func IsValidMobile(input string) bool {
	return mobilePattern.MatchString(strip(input))
}

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns
// the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// NormalizeMobile validates the input against the regional mobile pattern and
// returns it in E.164 form. The boolean is false when the number is not a
// valid regional mobile number.
func NormalizeMobile(input string) (string, bool) {
	stripped := strip(input)
	if !mobilePattern.MatchString(stripped) {
		return "", false
	}
	return NormalizeE164(stripped), true
}

// strip removes spaces, dashes and parentheses commonly typed into phone fields.
func strip(input string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(input) {
		switch r {
		case ' ', '-', '(', ')', '.':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
