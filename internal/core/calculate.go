package core

import (
	"context"
	"errors"

	"github.com/JonMunkholm/xlcalc/internal/engine"
)

// Result maps each requested identifier to its computed value, nil when
// the engine produced none.
type Result map[string]*float64

// Calculate evaluates model once with all inputs and the distinct set of
// outputs. Array-shaped values are reduced to their first element.
func Calculate(ctx context.Context, model engine.Model, in Inputs, out Outputs) (Result, error) {
	requested := distinct(out)

	sol, err := model.Calculate(ctx, in, requested)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, newError(KindEngine, "ENG002", err, "failed to calculate %q", model.Name())
	}

	res := make(Result, len(requested))
	for _, id := range requested {
		res[id] = firstValue(sol[id])
	}
	return res, nil
}

func firstValue(v [][]float64) *float64 {
	if len(v) == 0 || len(v[0]) == 0 {
		return nil
	}
	x := v[0][0]
	return &x
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
