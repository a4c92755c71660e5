package fixture

import (
	"regexp"
	"time"
)

var (
	dateOnlyPattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
)

const (
	dateOnlyLayout = "2006-01-02"
	localLayout    = "2006-01-02T15:04:05.999999999"
)

// CoerceDate converts a date-like string into a UTC time.
//
// It returns ok=false with a nil error for strings that do not match either
// pattern, and a non-nil error when the pattern matches but the calendar value
// is impossible (2024-02-31, hour 25). Timestamps without an offset are read
// as UTC.
func CoerceDate(s string) (t time.Time, ok bool, err error) {
	switch {
	case dateOnlyPattern.MatchString(s):
		t, err = time.ParseInLocation(dateOnlyLayout, s, time.UTC)
	case timestampPattern.MatchString(s):
		last := s[len(s)-1]
		if last == 'Z' || (len(s) > 6 && (s[len(s)-6] == '+' || s[len(s)-6] == '-')) {
			t, err = time.Parse(time.RFC3339Nano, s)
		} else {
			t, err = time.ParseInLocation(localLayout, s, time.UTC)
		}
	default:
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}
