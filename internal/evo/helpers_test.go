package evo

import (
	"math/rand"
	"testing"

	"cgpde/internal/cgp"
	"cgpde/internal/dataset"
)

func newTestParameters(t *testing.T) *Parameters {
	t.Helper()
	p, err := NewParameters(3, 25, 2, 3)
	if err != nil {
		t.Fatalf("new parameters: %v", err)
	}
	if err := p.AddNodeFunction("add,sub,mul,sig,tanh,wire"); err != nil {
		t.Fatalf("add functions: %v", err)
	}
	return p
}

func newTestChromosome(t *testing.T, p *Parameters, seed int64) *cgp.Chromosome {
	t.Helper()
	c, err := cgp.New(rand.New(rand.NewSource(seed)), p.Shape(), p.Genes(), p.Funcs)
	if err != nil {
		t.Fatalf("new chromosome: %v", err)
	}
	return c
}

// xorData maps two inputs and a bias onto a one-hot xor target.
func xorData(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(
		[][]float64{{0, 0, 1}, {0, 1, 1}, {1, 0, 1}, {1, 1, 1}},
		[][]float64{{1, 0}, {0, 1}, {0, 1}, {1, 0}},
	)
	if err != nil {
		t.Fatalf("xor data: %v", err)
	}
	return d
}
