package types

import (
	"strings"
	"time"
)

// StorageLayout is how every timestamp is persisted: UTC, second precision, so
// lexical order equals chronological order in TEXT columns.
const StorageLayout = "2006-01-02T15:04:05Z"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
}

// ParseDateTime accepts time values, the layouts above and Unix seconds, and
// normalises to UTC with second precision.
func ParseDateTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, newError(UnparsableDateTime, v, "must be a date/time")
		}
		return normalizeTime(t), nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, newError(UnparsableDateTime, v, "must be a date/time")
		}
		return normalizeTime(*t), nil
	case int, int32, int64, uint32:
		n, _ := ParseInt(t)
		return normalizeTime(time.Unix(n, 0)), nil
	}
	s, ok := asString(v)
	if !ok {
		return time.Time{}, newError(UnparsableDateTime, v, "must be a date/time")
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return normalizeTime(ts), nil
		}
	}
	return time.Time{}, newError(UnparsableDateTime, v, "is not a recognised date/time")
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// FormatTime renders t in StorageLayout; the zero time renders as "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return normalizeTime(t).Format(StorageLayout)
}

// ParseStoredTime is the inverse of FormatTime.
func ParseStoredTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return ParseDateTime(s)
}
