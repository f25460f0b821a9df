package optimization

import "sort"

// ExpandParameterGrid turns a raw parameter grid (scalars and
// {start,end,step} range tables) into the cartesian product of every
// parameter's expanded values. Range values stay integers unless any of
// start/end/step is fractional.
func ExpandParameterGrid(grid map[string]any) []map[string]any {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic iteration order for reproducible combination ordering

	valueLists := make([][]any, len(keys))
	for i, k := range keys {
		valueLists[i] = expandValue(grid[k])
		if len(valueLists[i]) == 0 {
			// An inverted range (start > end) yields no values, so the
			// whole product is empty.
			return nil
		}
	}

	var combinations []map[string]any
	indices := make([]int, len(keys))
	if len(keys) == 0 {
		return combinations
	}

	for {
		combo := make(map[string]any, len(keys))
		for i, k := range keys {
			combo[k] = valueLists[i][indices[i]]
		}
		combinations = append(combinations, combo)

		idx := len(valueLists)
		for idx > 0 {
			idx--
			indices[idx]++
			if indices[idx] < len(valueLists[idx]) {
				break
			}
			indices[idx] = 0
		}
		if idx == 0 && indices[0] == 0 {
			break
		}
	}

	return combinations
}

func expandValue(v any) []any {
	table, ok := v.(map[string]any)
	if !ok {
		return []any{v}
	}
	startRaw, hasStart := table["start"]
	endRaw, hasEnd := table["end"]
	if !hasStart || !hasEnd {
		return []any{v}
	}

	start, startIsInt, ok1 := asFloat(startRaw)
	end, endIsInt, ok2 := asFloat(endRaw)
	if !ok1 || !ok2 {
		return []any{v}
	}

	step := 1.0
	if stepRaw, ok := table["step"]; ok {
		if s, _, ok := asFloat(stepRaw); ok {
			step = s
		}
	}

	preserveInt := startIsInt && endIsInt && step == float64(int64(step))

	var out []any
	for x := start; x <= end+1e-8; x += step {
		if preserveInt {
			out = append(out, int(x))
		} else {
			out = append(out, x)
		}
	}
	return out
}

func asFloat(v any) (value float64, isInt bool, ok bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case float64:
		return n, n == float64(int64(n)), true
	default:
		return 0, false, false
	}
}
