package core

import (
	"context"
	"errors"
	"sync"

	"github.com/JonMunkholm/xlcalc/internal/engine"
)

// fakeModel returns fixed values and records what it was asked.
type fakeModel struct {
	name   string
	values map[string]float64
	err    error

	mu      sync.Mutex
	calls   int
	inputs  map[string]float64
	outputs []string
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Calculate(_ context.Context, inputs map[string]float64, outputs []string) (engine.Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.inputs = inputs
	m.outputs = outputs
	if m.err != nil {
		return nil, m.err
	}
	sol := make(engine.Solution)
	for _, id := range outputs {
		if v, ok := m.values[id]; ok {
			sol[id] = [][]float64{{v}}
		}
	}
	return sol, nil
}

func (m *fakeModel) Serialize() ([]byte, error) { return []byte(m.name), nil }

func (m *fakeModel) WriteFile(string, map[string]float64) error {
	return errors.New("not supported")
}

func (m *fakeModel) Formulas() ([]engine.Formula, error) { return nil, nil }
