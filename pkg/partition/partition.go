// Package partition derives the stable keys under which historical series are
// cached: one partition per location, resolution and calendar month.
//
// Keys are safe as file names and as map or Redis keys. A partition named
//
//	55p7500_37p6200_hourly_2024-01
//
// holds the hourly series of (55.75, 37.62) for January 2024.
package partition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/meteocache/pkg/series"
)

// MonthLayout is the time layout of a month key.
const MonthLayout = "2006-01"

// FileExt is the extension of a persisted partition file.
const FileExt = ".json"

var coordReplacer = strings.NewReplacer("-", "m", ".", "p")

// LocationKey formats a coordinate pair to 4 decimal places (about 11 m) with
// the minus sign written as "m" and the decimal point as "p". Values that
// round to zero are written unsigned.
//
//	LocationKey(55.75, 37.62)    // "55p7500_37p6200"
//	LocationKey(-33.865, 151.21) // "m33p8650_151p2100"
func LocationKey(lat, lon float64) string {
	return coordReplacer.Replace(coord(lat) + "_" + coord(lon))
}

func coord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if s == "-0.0000" {
		return "0.0000"
	}
	return s
}

// MonthKey returns the "YYYY-MM" key of the month containing t.
func MonthKey(t time.Time) string {
	return t.Format(MonthLayout)
}

// ParseMonth parses a month key into the first day of that month, UTC.
func ParseMonth(month string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, month)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: %w", month, err)
	}
	return t, nil
}

// Key identifies one partition.
type Key struct {
	Lat        float64
	Lon        float64
	Resolution series.Resolution
	Month      string
}

// Name returns "{locationKey}_{resolution}_{month}".
func (k Key) Name() string {
	return Prefix(k.Lat, k.Lon, k.Resolution) + k.Month
}

// FileName returns the name of the file that persists the partition.
func (k Key) FileName() string {
	return k.Name() + FileExt
}

func (k Key) String() string { return k.Name() }

// Prefix returns the name prefix shared by every partition of one location
// and resolution.
func Prefix(lat, lon float64, res series.Resolution) string {
	return LocationKey(lat, lon) + "_" + string(res) + "_"
}

// MonthFromName extracts the month key that ends a partition name. It reports
// false for names that do not end in a valid month key.
func MonthFromName(name string) (string, bool) {
	name = strings.TrimSuffix(name, FileExt)
	i := strings.LastIndex(name, "_")
	if i < 0 || i == len(name)-1 {
		return "", false
	}
	month := name[i+1:]
	if _, err := time.Parse(MonthLayout, month); err != nil {
		return "", false
	}
	return month, true
}

// MonthsBetween returns the keys of every calendar month overlapping
// [start, end], in ascending order. It returns nil when end is before start.
func MonthsBetween(start, end time.Time) []string {
	current := firstOfMonth(start)
	last := firstOfMonth(end)

	var months []string
	for !current.After(last) {
		months = append(months, MonthKey(current))
		current = current.AddDate(0, 1, 0)
	}
	return months
}

// MonthBounds returns the first and last day of a month key, UTC.
func MonthBounds(month string) (time.Time, time.Time, error) {
	first, err := ParseMonth(month)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return first, first.AddDate(0, 1, -1), nil
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
