package series

import (
	"fmt"
	"strings"
	"time"
)

// Resolution is the time granularity of a series. Its string value is also the
// name of the payload block that carries the series ("hourly" or "daily").
type Resolution string

const (
	Hourly Resolution = "hourly"
	Daily  Resolution = "daily"
)

// Time layouts used by Open-Meteo for each resolution.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04"
)

// ParseResolution converts a user-supplied token into a Resolution.
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(strings.ToLower(strings.TrimSpace(s))) {
	case Hourly:
		return Hourly, nil
	case Daily:
		return Daily, nil
	default:
		return "", fmt.Errorf("unknown resolution %q (must be hourly or daily)", s)
	}
}

// Valid reports whether r is one of the known resolutions.
func (r Resolution) Valid() bool {
	return r == Hourly || r == Daily
}

func (r Resolution) String() string { return string(r) }

// Bounds returns the inclusive string bounds of the window [start, end] in the
// time format of r. Hourly bounds cover the whole of both boundary days.
func (r Resolution) Bounds(start, end time.Time) (string, string) {
	lo := start.Format(DateLayout)
	hi := end.Format(DateLayout)
	if r == Hourly {
		return lo + "T00:00", hi + "T23:59"
	}
	return lo, hi
}
