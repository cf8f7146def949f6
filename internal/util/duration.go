package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Common duration constants for convenience
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Duration is a time.Duration that can be decoded from ISO-8601 ("PT1M"),
// Go ("90s") or extended ("1d") notation.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ParseDuration accepts ISO-8601 durations first and falls back to
// ExtendedParseDuration.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if isISO8601(s) {
		return ParseISO8601Duration(s)
	}
	return ExtendedParseDuration(s)
}

func isISO8601(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 0 && (s[0] == 'P' || s[0] == 'p')
}

// ParseISO8601Duration parses the time-based subset of ISO-8601 durations
// ("PnDTnHnMn.nS"), the same subset java.time.Duration understands. Years and
// months are rejected because their length is not fixed.
func ParseISO8601Duration(s string) (time.Duration, error) {
	orig := s
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.ToUpper(s)
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: missing 'P' designator", orig)
	}
	s = s[1:]

	datePart, timePart, hasTime := strings.Cut(s, "T")
	if datePart == "" && (!hasTime || timePart == "") {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q: no components", orig)
	}

	var total time.Duration
	if datePart != "" {
		d, err := parseISOComponents(datePart, map[byte]time.Duration{'D': Day})
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", orig, err)
		}
		total += d
	}
	if hasTime {
		if timePart == "" {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: empty time section", orig)
		}
		d, err := parseISOComponents(timePart, map[byte]time.Duration{
			'H': time.Hour,
			'M': time.Minute,
			'S': time.Second,
		})
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", orig, err)
		}
		total += d
	}
	return sign * total, nil
}

// parseISOComponents consumes "<number><unit>" pairs. Only the seconds
// component may carry a fraction.
func parseISOComponents(s string, units map[byte]time.Duration) (time.Duration, error) {
	var total time.Duration
	seen := map[byte]bool{}
	for len(s) > 0 {
		i := 0
		for i < len(s) && (isDigit(s[i]) || s[i] == '.' || s[i] == ',' || s[i] == '-' || s[i] == '+') {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("missing number before '%c'", s[0])
		}
		if i == len(s) {
			return 0, fmt.Errorf("missing unit after %q", s)
		}
		numStr, unit := strings.ReplaceAll(s[:i], ",", "."), s[i]
		multiplier, ok := units[unit]
		if !ok {
			return 0, fmt.Errorf("unsupported unit '%c'", unit)
		}
		if seen[unit] {
			return 0, fmt.Errorf("duplicate unit '%c'", unit)
		}
		seen[unit] = true

		if strings.Contains(numStr, ".") {
			if unit != 'S' {
				return 0, fmt.Errorf("fractional value only allowed for seconds")
			}
			f, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			if math.Abs(f) > float64(math.MaxInt64)/float64(time.Second) {
				return 0, fmt.Errorf("duration overflow: %sS is too large", numStr)
			}
			total += time.Duration(f * float64(time.Second))
		} else {
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			if n > int64(math.MaxInt64)/int64(multiplier) || n < int64(math.MinInt64)/int64(multiplier) {
				return 0, fmt.Errorf("duration overflow: %d%c is too large", n, unit)
			}
			total += time.Duration(n) * multiplier
		}
		s = s[i+1:]
	}
	return total, nil
}

// ExtendedParseDuration parses a duration string that supports additional units:
// "d" for days, "w" for weeks
func ExtendedParseDuration(s string) (time.Duration, error) {
	// First try standard Go parsing
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	return parseExtendedDuration(s)
}

// parseExtendedDuration parses a duration string with extended units
func parseExtendedDuration(s string) (time.Duration, error) {
	var total time.Duration
	remaining := s

	for _, unit := range []struct {
		suffix     string
		multiplier time.Duration
	}{
		{"w", Week},
		{"d", Day},
	} {
		duration, newRemaining, err := extractUnit(remaining, unit.suffix, unit.multiplier)
		if err != nil {
			return 0, err
		}
		total += duration
		remaining = newRemaining
	}

	if remaining != "" {
		standardDuration, err := time.ParseDuration(remaining)
		if err != nil {
			return 0, err
		}
		total += standardDuration
	}

	return total, nil
}

// extractUnit extracts and converts a specific unit from the duration string
func extractUnit(s, unit string, multiplier time.Duration) (time.Duration, string, error) {
	var total time.Duration
	remaining := s

	for {
		idx := strings.Index(remaining, unit)
		if idx == -1 {
			break
		}

		numStart := idx
		for numStart > 0 && isDigit(remaining[numStart-1]) {
			numStart--
		}

		if numStart == idx {
			return 0, "", fmt.Errorf("invalid duration format: missing number before '%s'", unit)
		}

		numStr := remaining[numStart:idx]
		num, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("invalid number '%s' before unit '%s': %w", numStr, unit, err)
		}

		if num > int64(math.MaxInt64)/int64(multiplier) {
			return 0, "", fmt.Errorf("duration overflow: %d%s is too large", num, unit)
		}

		total += time.Duration(num) * multiplier
		remaining = remaining[:numStart] + remaining[idx+len(unit):]
	}

	return total, remaining, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
