package domain

import (
	"regexp"
	"strings"
)

const (
	countryCallingCode = "94"
	subscriberDigits   = 9
)

// canonicalPhonePattern matches a fully qualified Sri Lankan mobile or fixed
// line number: +94 followed by nine digits, the first of which is non-zero.
var canonicalPhonePattern = regexp.MustCompile(`^\+94[1-9]\d{8}$`)

// NormalizePhone canonicalizes raw phone input into the +94XXXXXXXXX form
// used as the record and rate-limit key. It accepts the national trunk form
// (0771234567), the bare significant digits (771234567), and the already
// prefixed form (94771234567 or +94 77 123 4567). The second return value is
// false for anything that does not normalize to a valid number.
func NormalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	cleaned := digits.String()
	if cleaned == "" {
		return "", false
	}

	switch {
	case strings.HasPrefix(cleaned, "0"):
		cleaned = countryCallingCode + cleaned[1:]
	case strings.HasPrefix(cleaned, countryCallingCode):
		// already carries the country code
	case len(cleaned) == subscriberDigits:
		cleaned = countryCallingCode + cleaned
	}

	canonical := "+" + cleaned
	if !canonicalPhonePattern.MatchString(canonical) {
		return "", false
	}

	return canonical, true
}
