package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// ParseLegacyTimestamp parses the timestamps found in legacy container
// exports. Values without a zone are taken as UTC.
func ParseLegacyTimestamp(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999-07:00", // postgres text output
		"2006-01-02 15:04:05.999999-07",
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05.999999",
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
		"2006-01-02",
	}

	dateStr = strings.TrimSpace(dateStr)
	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}
