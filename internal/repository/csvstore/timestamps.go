package csvstore

import (
	"fmt"
	"strings"
	"time"
)

// Layouts for writing canonical tables
const (
	TimestampLayout = "2006-01-02 15:04:05"
	ISOLayout       = "2006-01-02T15:04:05"
	DateLayout      = "2006-01-02"
)

var readLayouts = []string{
	TimestampLayout,
	ISOLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	DateLayout,
}

// ParseTimestamp reads a canonical timestamp. Values with an offset are
// converted to UTC; naive values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp renders t in UTC with the canonical layout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
