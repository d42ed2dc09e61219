package messaging

import (
	"regexp"
	"strings"
)

var mobilePattern = regexp.MustCompile(`^\+61\d{9}$`)

// sanitizePhone strips everything except digits.
func sanitizePhone(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// NormalizeAU canonicalizes a raw phone string into dialable international
// form. The domestic trunk prefix "0" becomes the country code "61"; numbers
// already carrying the country code gain a "+"; anything else that arrived
// with a "+" is trusted as-is. Empty input yields "" and callers must treat
// that as invalid.
func NormalizeAU(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	digits := sanitizePhone(raw)
	if digits == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(digits, "0"):
		return "+61" + digits[1:]
	case strings.HasPrefix(digits, "61"):
		return "+" + digits
	case strings.HasPrefix(raw, "+"):
		return raw
	default:
		return "+" + digits
	}
}

// IsValidMobile reports whether phone is a normalized Australian mobile:
// exactly +61 followed by nine digits. This is the sole acceptance gate
// before any caller-facing send.
func IsValidMobile(phone string) bool {
	return mobilePattern.MatchString(phone)
}
