package series

// Merge folds incoming into the accumulator existing and returns the result.
//
// When existing is nil the result is incoming itself. Otherwise:
//   - timestamps of incoming that are not already present are appended to the
//     time column, in incoming order;
//   - columns present in both get the values at those appended positions;
//   - columns only present in existing get a null marker at each of them;
//   - columns only present in incoming are adopted wholesale, so the set of
//     variables only grows;
//   - metadata and scalars of existing win over those of incoming.
//
// Membership is exact string equality and there is no re-sort: fragments must
// be folded in chronological order of partition. A position beyond the end of
// a short incoming column appends a null marker.
//
// The inputs are not modified.
func Merge(existing, incoming *Fragment) *Fragment {
	if existing == nil {
		return incoming
	}
	if incoming == nil {
		return existing
	}

	seen := make(map[string]struct{}, len(existing.Time)+len(incoming.Time))
	for _, t := range existing.Time {
		seen[t] = struct{}{}
	}

	fresh := make([]int, 0, len(incoming.Time))
	for i, t := range incoming.Time {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		fresh = append(fresh, i)
	}

	merged := existing.shallow()

	merged.Time = make([]string, len(existing.Time), len(existing.Time)+len(fresh))
	copy(merged.Time, existing.Time)
	for _, i := range fresh {
		merged.Time = append(merged.Time, incoming.Time[i])
	}

	for name, col := range incoming.Columns {
		if _, isScalar := merged.Scalars[name]; isScalar {
			continue
		}

		current, ok := merged.Columns[name]
		if !ok {
			merged.Columns[name] = col.clone()
			continue
		}
		merged.Columns[name] = extend(current, len(existing.Time), col, fresh)
	}

	if len(fresh) > 0 {
		for name, current := range existing.Columns {
			if _, ok := incoming.Columns[name]; ok {
				continue
			}
			merged.Columns[name] = extend(current, len(existing.Time), nil, fresh)
		}
	}

	for name, v := range incoming.Scalars {
		if _, ok := merged.Scalars[name]; ok {
			continue
		}
		if _, ok := merged.Columns[name]; ok {
			continue
		}
		merged.Scalars[name] = v
	}

	return merged
}

// extend pads current with nulls up to n points, then appends the values of
// src at the fresh positions. A nil src or a position past its end appends a
// null.
func extend(current Column, n int, src Column, fresh []int) Column {
	out := make(Column, len(current), max(n, len(current))+len(fresh))
	copy(out, current)
	for len(out) < n {
		out = append(out, null)
	}
	for _, i := range fresh {
		if i < len(src) {
			out = append(out, src[i])
		} else {
			out = append(out, null)
		}
	}
	return out
}
