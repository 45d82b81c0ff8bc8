package series

import (
	"strings"
	"time"
)

// LastObserved returns the instant of the final point of f.
//
// Hourly timestamps are parsed as instants; those without an offset are taken
// as UTC, and bare dates as midnight UTC. Daily timestamps are midnight UTC.
// An empty series, an unparseable timestamp or an unknown resolution yields now.
func LastObserved(f *Fragment, now time.Time) time.Time {
	if f == nil || len(f.Time) == 0 {
		return now
	}
	last := f.Time[len(f.Time)-1]

	switch f.Resolution {
	case Hourly:
		if t, ok := parseInstant(last); ok {
			return t
		}
	case Daily:
		if t, err := time.Parse(DateLayout, last); err == nil {
			return t
		}
	}

	return now
}

var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	DateTimeLayout,
}

func parseInstant(s string) (time.Time, bool) {
	if !strings.Contains(s, "T") {
		t, err := time.Parse(DateLayout, s)
		return t, err == nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
