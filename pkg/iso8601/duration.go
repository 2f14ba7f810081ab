// Package iso8601 parses the ISO 8601 durations catalog APIs use for track
// lengths ("PT3M20S", "PT1H2M3.5S").
package iso8601

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid ISO 8601 duration")

// ParseDuration converts a day/time duration. Year, month and week
// designators are rejected since their length is not fixed.
func ParseDuration(iso string) (time.Duration, error) {
	rest, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(iso)), "P")
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, iso)
	}

	datePart, timePart, hasTime := strings.Cut(rest, "T")
	if hasTime && timePart == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, iso)
	}

	var total time.Duration

	if datePart != "" {
		days, ok := strings.CutSuffix(datePart, "D")
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, iso)
		}
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, iso)
		}
		total += time.Duration(n) * 24 * time.Hour
	}

	for _, unit := range []struct {
		designator string
		scale      time.Duration
	}{
		{"H", time.Hour},
		{"M", time.Minute},
		{"S", time.Second},
	} {
		idx := strings.Index(timePart, unit.designator)
		if idx == -1 {
			continue
		}

		value, err := strconv.ParseFloat(timePart[:idx], 64)
		if err != nil || value < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, iso)
		}
		total += time.Duration(value * float64(unit.scale))
		timePart = timePart[idx+1:]
	}

	if timePart != "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, iso)
	}
	return total, nil
}
