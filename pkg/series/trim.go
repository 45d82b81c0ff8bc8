package series

import "time"

// Trim narrows f to the points whose timestamp falls inside the inclusive
// window [start, end], compared as strings in the resolution's time format.
// Every column is projected to the selected positions; metadata and scalars
// pass through unchanged.
//
// Trim returns f itself when the series is empty, and also when no point falls
// inside the window. The second case hands back more data than was asked for
// rather than an empty series; callers that need strict windows must check
// the bounds of the result.
func Trim(f *Fragment, start, end time.Time) *Fragment {
	if f == nil || len(f.Time) == 0 {
		return f
	}

	lo, hi := f.Resolution.Bounds(start, end)

	indices := make([]int, 0, len(f.Time))
	for i, t := range f.Time {
		if lo <= t && t <= hi {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return f
	}

	trimmed := f.shallow()
	trimmed.Time = make([]string, 0, len(indices))
	for _, i := range indices {
		trimmed.Time = append(trimmed.Time, f.Time[i])
	}
	for name, col := range f.Columns {
		trimmed.Columns[name] = col.pick(indices)
	}

	return trimmed
}

// pick projects c onto indices, skipping positions past its end.
func (c Column) pick(indices []int) Column {
	if c == nil {
		return nil
	}
	out := make(Column, 0, len(indices))
	for _, i := range indices {
		if i < len(c) {
			out = append(out, c[i])
		}
	}
	return out
}
