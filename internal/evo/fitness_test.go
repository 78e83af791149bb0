package evo

import (
	"errors"
	"math"
	"testing"

	"cgpde/internal/cgp"
	"cgpde/internal/dataset"
)

// passthrough wires output j straight to input j.
func passthrough(t *testing.T, p *Parameters) *cgp.Chromosome {
	t.Helper()
	c := newTestChromosome(t, p, 1)
	c.OutputGenes[0], c.OutputGenes[1] = 0, 1
	c.ResolveActive()
	return c
}

func TestSupervisedLearning(t *testing.T) {
	p := newTestParameters(t)
	c := passthrough(t, p)
	if err := p.SetFitness(c, xorData(t)); err != nil {
		t.Fatalf("set fitness: %v", err)
	}
	if c.Fitness != 4 {
		t.Fatalf("unexpected fitness: %g", c.Fitness)
	}
	if c.NumActiveNodes() != 0 {
		t.Fatalf("expected no active nodes, got %d", c.NumActiveNodes())
	}
}

func TestAccuracy(t *testing.T) {
	p := newTestParameters(t)
	if err := p.SetFitnessByName("accuracy"); err != nil {
		t.Fatalf("set fitness: %v", err)
	}
	c := passthrough(t, p)
	if err := p.SetValidationFitness(c, xorData(t)); err != nil {
		t.Fatalf("set validation fitness: %v", err)
	}
	if math.Abs(c.FitnessValidation-(-0.75)) > 1e-12 {
		t.Fatalf("unexpected accuracy fitness: %g", c.FitnessValidation)
	}
	if c.Fitness != 0 {
		t.Fatal("validation scoring must not touch the training slot")
	}
}

func TestFitnessDimensionMismatch(t *testing.T) {
	p := newTestParameters(t)
	c := passthrough(t, p)
	d, err := dataset.New([][]float64{{1, 2}}, [][]float64{{1, 0}})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	for _, name := range ListFitness() {
		if err := p.SetFitnessByName(name); err != nil {
			t.Fatalf("set fitness: %v", err)
		}
		if err := p.SetFitness(c, d); !errors.Is(err, dataset.ErrDimensionMismatch) {
			t.Fatalf("%s: expected ErrDimensionMismatch, got: %v", name, err)
		}
	}
}
