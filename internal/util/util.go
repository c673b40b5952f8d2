package util

import (
	"fmt"
	"strings"
	"time"
)

// timeUnit is one component of a formatted duration.
type timeUnit struct {
	value    int64
	singular string
	plural   string
}

// FormatDuration renders a duration as "1 hour, 2 minutes, 3 seconds", rounded to the second.
// Zero units are skipped. A zero or negative duration yields "0 seconds".
func FormatDuration(duration time.Duration) string {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	units := []timeUnit{
		{int64(duration / time.Hour), "hour", "hours"},
		{int64(duration % time.Hour / time.Minute), "minute", "minutes"},
		{int64(duration % time.Minute / time.Second), "second", "seconds"},
	}

	parts := make([]string, 0, len(units))

	for _, unit := range units {
		if part := FormatTimeUnit(unit.value, unit.singular, unit.plural); part != "" {
			parts = append(parts, part)
		}
	}

	if len(parts) == 0 {
		return "0 seconds"
	}

	return strings.Join(parts, ", ")
}

// FormatTimeUnit formats a single unit with singular or plural grammar. Zero yields "".
func FormatTimeUnit(value int64, singular, plural string) string {
	switch {
	case value == 1:
		return "1 " + singular
	case value > 1:
		return fmt.Sprintf("%d %s", value, plural)
	default:
		return ""
	}
}

// NormalizeContainerName trims the leading "/" the Docker API puts in front of container names.
func NormalizeContainerName(name string) string {
	return strings.TrimPrefix(name, "/")
}
