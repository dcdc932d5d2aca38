// Package format holds display helpers for page rendering. Every string
// helper is idempotent: feeding its own output back returns it unchanged, so
// values can pass through a handler and a template func without doubling
// units.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Temperature renders a numeric string as one decimal with the °C unit.
// Unparseable or already suffixed input is returned unchanged.
func Temperature(s string) string {
	return withUnit(s, "°C", 1)
}

// WindSpeed renders a numeric string as one decimal in m/s.
func WindSpeed(s string) string {
	return withUnit(s, " m/s", 1)
}

// Percent renders a numeric string as a whole-number percentage.
func Percent(s string) string {
	return withUnit(s, "%", 0)
}

// Millimeters renders a numeric string as one decimal with the mm unit.
func Millimeters(s string) string {
	return withUnit(s, " mm", 1)
}

// LargeNumber rounds a numeric string to an integer with thousands
// separators. "1234567.8" becomes "1,234,568".
func LargeNumber(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.Contains(trimmed, ",") {
		return s
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return s
	}
	return groupThousands(int64(math.Round(v)))
}

// ClockTime renders unix seconds as a wall-clock HH:MM. Zero and negative
// values render empty, matching absent sunrise/sunset fields.
func ClockTime(unixSec int64) string {
	if unixSec <= 0 {
		return ""
	}
	return time.Unix(unixSec, 0).Format("15:04")
}

var publishLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// PublishDate renders an upstream article timestamp as "Jan 2, 2006". Input
// in none of the known layouts is returned unchanged.
func PublishDate(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, layout := range publishLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return s
}

// TitleCase uppercases the first letter of each word and lowercases the
// rest, for condition strings like "light rain".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// withUnit formats a bare numeric string with the given precision and unit
// suffix. Anything else, including already suffixed values, passes through.
func withUnit(s, unit string, precision int) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.HasSuffix(trimmed, unit) {
		return s
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(v, 'f', precision, 64) + unit
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign = "-"
		digits = digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}

// Delta renders a signed change like "+0.02°C" for indicator cards.
func Delta(s, unit string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.HasSuffix(trimmed, unit) {
		return s
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return s
	}
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if v > 0 {
		out = "+" + out
	}
	return out + unit
}
