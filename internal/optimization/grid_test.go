package optimization

import "testing"

func TestExpandParameterGridScalarPassesThrough(t *testing.T) {
	grid := map[string]any{"confidence": 0.5}
	combos := ExpandParameterGrid(grid)
	if len(combos) != 1 {
		t.Fatalf("expected exactly one combination for a scalar grid, got %d", len(combos))
	}
	if combos[0]["confidence"] != 0.5 {
		t.Fatalf("expected scalar value to pass through unchanged, got %v", combos[0]["confidence"])
	}
}

func TestExpandParameterGridRangePreservesIntType(t *testing.T) {
	grid := map[string]any{
		"fast_period": map[string]any{"start": 5, "end": 15, "step": 5},
	}
	combos := ExpandParameterGrid(grid)
	if len(combos) != 3 {
		t.Fatalf("expected 3 values (5,10,15), got %d", len(combos))
	}
	for _, c := range combos {
		if _, ok := c["fast_period"].(int); !ok {
			t.Fatalf("expected int-typed fast_period, got %T", c["fast_period"])
		}
	}
}

func TestExpandParameterGridCartesianProduct(t *testing.T) {
	grid := map[string]any{
		"fast_period": map[string]any{"start": 5, "end": 10, "step": 5},
		"slow_period": map[string]any{"start": 20, "end": 30, "step": 10},
	}
	combos := ExpandParameterGrid(grid)
	if len(combos) != 4 {
		t.Fatalf("expected 2x2=4 combinations, got %d", len(combos))
	}
}
