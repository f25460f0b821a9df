package strategy

import "fmt"

// intParam and floatParam decode a named field out of a raw parameter map
// (as produced by the optimizer's grid expansion or the config loader),
// tolerating both int and float64 representations since the grid expander
// promotes to float only when a range's start, end or step is fractional.
func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("strategy: missing required parameter %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("strategy: parameter %q has unsupported type %T", key, v)
	}
}

func floatParam(params map[string]any, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("strategy: missing required parameter %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("strategy: parameter %q has unsupported type %T", key, v)
	}
}
