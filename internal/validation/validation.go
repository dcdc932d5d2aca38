package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"climate-intelligence/internal/climate"
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooShort is returned when location length is below the minimum.
var ErrLocationTooShort = errors.New("location too short")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrLocationInvalidChars is returned when location contains disallowed characters.
var ErrLocationInvalidChars = errors.New("location contains invalid characters")

// ErrInvalidTimeframe is returned when a timeframe is unparseable or not one
// of the offered start years.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// ErrUnknownMetric is returned when a series metric name is not offered.
var ErrUnknownMetric = errors.New("unknown metric")

// Location length bounds shared by the page and API handlers.
const (
	MinLocationLen = 2
	MaxLocationLen = 100
)

// ValidateLocation trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to allowed characters: letters (Unicode), digits, space, comma,
// hyphen, period, apostrophe. Returns the trimmed string or an error suitable
// for 400 INVALID_LOCATION responses. Normalization (e.g. lowercase) is left
// to the service layer.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

// ValidateRegion applies the location character and length rules to a risk
// region. Regions are free-form; unknown names fall back to the global
// profile downstream, so only shape is checked here.
func ValidateRegion(input string) (string, error) {
	return ValidateLocation(input, MinLocationLen, MaxLocationLen)
}

// ValidateTimeframe parses an analysis start year. Empty input selects the
// earliest offered year.
func ValidateTimeframe(input string) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return climate.Timeframes[0], nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidTimeframe
	}
	for _, offered := range climate.Timeframes {
		if year == offered {
			return year, nil
		}
	}
	return 0, ErrInvalidTimeframe
}

// ValidateMetric checks a series metric name against the offered set. Empty
// input means all metrics.
func ValidateMetric(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", nil
	}
	for _, offered := range climate.Metrics() {
		if s == offered {
			return s, nil
		}
	}
	return "", ErrUnknownMetric
}

// isAllowedNameRune returns true for letters (Unicode), digits, space, comma,
// hyphen, period, apostrophe.
func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
