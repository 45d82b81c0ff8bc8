// Package series holds the in-memory form of Open-Meteo time-series payloads
// and the pure operations over them.
//
// A Fragment is one payload as returned by a single fetch or read back from one
// stored partition. Merge folds fragments into an accumulator, Trim narrows an
// accumulator to an exact date window, and LastObserved extracts the instant of
// the final point of a series.
//
// Values are kept as raw JSON so that numbers, strings and nulls round-trip
// exactly as the upstream produced them. Timestamps are compared as strings:
// all fragments folded into one accumulator must share a single timestamp
// format (same resolution and timezone setting), otherwise duplicates are not
// detected.
package series

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// TimeKey is the name of the mandatory time column inside a series block.
const TimeKey = "time"

var null = json.RawMessage("null")

// Column holds the values of one variable, index-aligned with the time column.
// A nil element or a JSON null marks a missing value.
type Column []json.RawMessage

// Fragment is a decoded upstream payload.
type Fragment struct {
	// Resolution selects which payload block holds the series.
	Resolution Resolution

	// Meta holds every top-level field except the series block
	// (latitude, elevation, timezone, hourly_units, ...).
	Meta map[string]json.RawMessage

	// Time is the time column of the series block.
	Time []string

	// Columns holds array-valued (or null) entries of the series block.
	Columns map[string]Column

	// Scalars holds any other non-array entries of the series block.
	Scalars map[string]json.RawMessage
}

// New returns an empty fragment for the given resolution.
func New(res Resolution) *Fragment {
	return &Fragment{
		Resolution: res,
		Meta:       make(map[string]json.RawMessage),
		Columns:    make(map[string]Column),
		Scalars:    make(map[string]json.RawMessage),
	}
}

// Decode parses a raw payload into a Fragment. A payload without a series
// block decodes into a fragment with an empty time column.
func Decode(data []byte, res Resolution) (*Fragment, error) {
	if !res.Valid() {
		return nil, fmt.Errorf("decode fragment: invalid resolution %q", res)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode fragment: %w", err)
	}
	if top == nil {
		return nil, errors.New("decode fragment: payload is not a JSON object")
	}

	f := New(res)
	blockRaw, hasBlock := top[string(res)]
	delete(top, string(res))
	f.Meta = top

	if !hasBlock || isNull(blockRaw) {
		return f, nil
	}

	var block map[string]json.RawMessage
	if err := json.Unmarshal(blockRaw, &block); err != nil {
		return nil, fmt.Errorf("decode %s block: %w", res, err)
	}

	for name, raw := range block {
		if name == TimeKey {
			if isNull(raw) {
				continue
			}
			if err := json.Unmarshal(raw, &f.Time); err != nil {
				return nil, fmt.Errorf("decode %s.time: %w", res, err)
			}
			continue
		}

		switch {
		case isNull(raw):
			f.Columns[name] = nil
		case isArray(raw):
			var col Column
			if err := json.Unmarshal(raw, &col); err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", res, name, err)
			}
			f.Columns[name] = col
		default:
			f.Scalars[name] = raw
		}
	}

	return f, nil
}

// MarshalJSON re-assembles the payload shape the fragment was decoded from.
func (f *Fragment) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Meta)+1)
	for k, v := range f.Meta {
		out[k] = v
	}

	block := make(map[string]any, len(f.Columns)+len(f.Scalars)+1)
	times := f.Time
	if times == nil {
		times = []string{}
	}
	block[TimeKey] = times
	for name, col := range f.Columns {
		block[name] = col.normalized()
	}
	for name, v := range f.Scalars {
		block[name] = v
	}
	out[string(f.Resolution)] = block

	return json.Marshal(out)
}

// Len returns the number of points in the series.
func (f *Fragment) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Time)
}

// Variables returns the names of all column variables, sorted.
func (f *Fragment) Variables() []string {
	names := make([]string, 0, len(f.Columns))
	for name := range f.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of f.
func (f *Fragment) Clone() *Fragment {
	if f == nil {
		return nil
	}
	c := f.shallow()
	c.Time = append([]string(nil), f.Time...)
	for name, col := range f.Columns {
		c.Columns[name] = col.clone()
	}
	return c
}

// shallow copies the maps of f but shares their values.
func (f *Fragment) shallow() *Fragment {
	c := New(f.Resolution)
	for k, v := range f.Meta {
		c.Meta[k] = v
	}
	for k, v := range f.Columns {
		c.Columns[k] = v
	}
	for k, v := range f.Scalars {
		c.Scalars[k] = v
	}
	c.Time = f.Time
	return c
}

func (c Column) clone() Column {
	if c == nil {
		return nil
	}
	out := make(Column, len(c))
	copy(out, c)
	return out
}

// normalized replaces nil elements with explicit nulls so the column encodes.
func (c Column) normalized() Column {
	if c == nil {
		return nil
	}
	out := make(Column, len(c))
	for i, v := range c {
		if len(v) == 0 {
			out[i] = null
			continue
		}
		out[i] = v
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), null)
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
