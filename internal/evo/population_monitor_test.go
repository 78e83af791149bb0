package evo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cgpde/internal/cgp"
	"cgpde/internal/dataset"
)

func newTestMonitor(t *testing.T, p *Parameters, generations, workers int, seed int64) *PopulationMonitor {
	t.Helper()
	data := xorData(t)
	m, err := NewPopulationMonitor(MonitorConfig{
		Params:      p,
		Training:    data,
		Validation:  data,
		Generations: generations,
		Workers:     workers,
		Seed:        seed,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return m
}

func TestPopulationMonitorRun(t *testing.T) {
	p := newTestParameters(t)
	p.SetLambda(6)
	var seen []int
	data := xorData(t)
	m, err := NewPopulationMonitor(MonitorConfig{
		Params:       p,
		Training:     data,
		Validation:   data,
		Generations:  25,
		Workers:      4,
		Seed:         42,
		OnGeneration: func(d GenerationDiagnostics) { seen = append(seen, d.Generation) },
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.GenerationDiagnostics) != 25 || len(seen) != 25 || seen[24] != 25 {
		t.Fatalf("unexpected diagnostics: %d records, hook saw %v", len(result.GenerationDiagnostics), seen)
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] > result.BestByGeneration[i-1] {
			t.Fatalf("best validation fitness got worse at generation %d: %v", i+1, result.BestByGeneration)
		}
	}

	check := result.Best.Clone()
	if err := p.SetValidationFitness(check, data); err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if check.FitnessValidation != result.Best.FitnessValidation {
		t.Fatalf("best fitness %g does not match rescored %g", result.Best.FitnessValidation, check.FitnessValidation)
	}
	if result.Best == m.Parents()[0] {
		t.Fatal("best chromosome must not alias a population slot")
	}
}

func TestPopulationMonitorDeterministicAcrossWorkers(t *testing.T) {
	run := func(workers int) RunResult {
		p := newTestParameters(t)
		p.SetThreads(workers)
		result, err := newTestMonitor(t, p, 15, 0, 7).Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}
	serial, parallel := run(1), run(8)
	if diff := cmp.Diff(serial.GenerationDiagnostics, parallel.GenerationDiagnostics); diff != "" {
		t.Fatalf("worker count changed the run (-serial +parallel):\n%s", diff)
	}
}

func TestPopulationMonitorCommaStrategy(t *testing.T) {
	p := newTestParameters(t)
	p.SetMu(2)
	p.SetLambda(4)
	p.SetStrategy(CommaStrategy)
	m := newTestMonitor(t, p, 5, 2, 3)
	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(m.candidates) != 4 || len(m.Parents()) != 2 {
		t.Fatalf("unexpected pool sizes: %d candidates, %d parents", len(m.candidates), len(m.Parents()))
	}
}

func TestPopulationMonitorZeroGenerations(t *testing.T) {
	p := newTestParameters(t)
	m := newTestMonitor(t, p, 0, 1, 5)
	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.BestByGeneration) != 0 {
		t.Fatalf("expected no history, got %v", result.BestByGeneration)
	}
	if result.Best.Generation != 0 {
		t.Fatalf("unexpected generation %d", result.Best.Generation)
	}
}

func TestPopulationMonitorCancelled(t *testing.T) {
	p := newTestParameters(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestMonitor(t, p, 10, 2, 1).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestNewPopulationMonitorValidation(t *testing.T) {
	p := newTestParameters(t)
	data := xorData(t)
	wrong, err := dataset.New([][]float64{{1}}, [][]float64{{1, 0}})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	cases := map[string]MonitorConfig{
		"no params":        {Training: data, Validation: data},
		"negative gens":    {Params: p, Training: data, Validation: data, Generations: -1},
		"no training":      {Params: p, Validation: data},
		"no validation":    {Params: p, Training: data},
		"training shape":   {Params: p, Training: wrong, Validation: data},
		"validation shape": {Params: p, Training: data, Validation: wrong},
	}
	for name, cfg := range cases {
		if _, err := NewPopulationMonitor(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestUpdateBestPrefersLaterOnTies(t *testing.T) {
	p := newTestParameters(t)
	m := newTestMonitor(t, p, 1, 1, 9)
	if err := m.Initialize(context.Background(), true); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, c := range m.Parents() {
		c.FitnessValidation = 1
	}
	for i, c := range m.Children() {
		c.FitnessValidation = 1
		c.Generation = 100 + i
	}
	m.Best().FitnessValidation = 1
	if err := m.UpdateBest(3); err != nil {
		t.Fatalf("update best: %v", err)
	}
	if m.Best().Generation != 3 {
		t.Fatalf("expected best generation 3, got %d", m.Best().Generation)
	}
	last := m.Children()[len(m.Children())-1]
	if !cgp.EqualANN(m.Best(), last) {
		t.Fatal("expected the last tied child to become best")
	}

	m.Best().FitnessValidation = 0.5
	before := m.Best().Clone()
	if err := m.UpdateBest(4); err != nil {
		t.Fatalf("update best: %v", err)
	}
	if m.Best().Generation != before.Generation {
		t.Fatal("best must not change when nothing is better")
	}
}

func TestPopulationMonitorStochasticNodesAreReproducible(t *testing.T) {
	run := func(workers int) RunResult {
		p, err := NewParameters(3, 25, 2, 3)
		if err != nil {
			t.Fatalf("new parameters: %v", err)
		}
		if err := p.AddNodeFunction("rand,add,mul"); err != nil {
			t.Fatalf("add functions: %v", err)
		}
		p.SetThreads(workers)
		result, err := newTestMonitor(t, p, 10, 0, 42).Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}

	first, second := run(1), run(1)
	if diff := cmp.Diff(first.GenerationDiagnostics, second.GenerationDiagnostics); diff != "" {
		t.Fatalf("same seed gave different runs (-first +second):\n%s", diff)
	}
	if first.Best.FitnessValidation != second.Best.FitnessValidation {
		t.Fatalf("best validation fitness differs: %g vs %g", first.Best.FitnessValidation, second.Best.FitnessValidation)
	}

	parallel := run(8)
	if diff := cmp.Diff(first.GenerationDiagnostics, parallel.GenerationDiagnostics); diff != "" {
		t.Fatalf("worker count changed the run (-serial +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(first.BestByGeneration, parallel.BestByGeneration); diff != "" {
		t.Fatalf("best history changed with workers (-serial +parallel):\n%s", diff)
	}
}
