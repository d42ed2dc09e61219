package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timePattern accepts the hour tokens callers actually text back after
// being offered an early-afternoon window: 1-3, or 10-12 for callers who
// answer with a morning time anyway. Minutes and the am/pm marker are
// optional.
var timePattern = regexp.MustCompile(`(?i)\b(1[0-2]|[1-3])(?:[:.]([0-5][0-9]))?\s*(am|pm)?\b`)

// ParseTime extracts a candidate call-back time from free text and
// normalizes it to 24-hour "H:MM". It reports false when no time token is
// present; callers must treat that as "ask again", never as a confirmed
// time. Window validity is deliberately not enforced here.
func ParseTime(text string) (string, bool) {
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	minutes := m[2]
	if minutes == "" {
		minutes = "00"
	}

	switch strings.ToLower(m[3]) {
	case "pm":
		if hour >= 1 && hour <= 11 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	return fmt.Sprintf("%d:%s", hour, minutes), true
}
