package evo

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"cgpde/internal/nn"
)

func TestNewParametersDefaults(t *testing.T) {
	p, err := NewParameters(2, 10, 1, 2)
	if err != nil {
		t.Fatalf("new parameters: %v", err)
	}
	if p.Mu != DefaultMu || p.Lambda != DefaultLambda || p.Strategy != PlusStrategy {
		t.Fatalf("unexpected population defaults: %s", p)
	}
	if p.MutationType != DefaultMutationType || p.Mutation.Name() != DefaultMutationType {
		t.Fatalf("unexpected mutation default: %s", p.MutationType)
	}
	if err := p.Validate(); !errors.Is(err, nn.ErrEmptyFunctionSet) {
		t.Fatalf("expected ErrEmptyFunctionSet, got: %v", err)
	}
	if err := p.AddNodeFunction("add,sig"); err != nil {
		t.Fatalf("add functions: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := NewParameters(2, 10, 1, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for arity 0, got: %v", err)
	}
}

func TestSettersWarnAndKeep(t *testing.T) {
	var buf bytes.Buffer
	p := newTestParameters(t)
	p.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	p.SetMu(0)
	p.SetLambda(-1)
	p.SetStrategy("*")
	p.SetMutationRate(1.5)
	p.SetRecurrentProbability(-0.1)
	p.SetThreads(0)
	p.SetMutationType("bogus")

	if p.Mu != DefaultMu || p.Lambda != DefaultLambda || p.Strategy != PlusStrategy {
		t.Fatalf("population values changed: %s", p)
	}
	if p.MutationRate != DefaultMutationRate || p.RecurrentProbability != 0 || p.Threads != 1 {
		t.Fatalf("tunables changed: %s", p)
	}
	if p.MutationType != DefaultMutationType {
		t.Fatalf("mutation type changed to %s", p.MutationType)
	}
	if got := strings.Count(buf.String(), "level=WARN"); got != 7 {
		t.Fatalf("expected 7 warnings, got %d:\n%s", got, buf.String())
	}

	p.SetMutationType("point")
	if p.Mutation.Name() != "point" {
		t.Fatalf("unexpected mutation: %s", p.Mutation.Name())
	}
}

func TestDifferentialSettersReturnErrors(t *testing.T) {
	p := newTestParameters(t)
	checks := []struct {
		name string
		err  error
	}{
		{"NP_IN", p.SetNPIn(3)},
		{"NP_OUT", p.SetNPOut(1)},
		{"maxIter_IN", p.SetMaxIterIn(-1)},
		{"maxIter_OUT", p.SetMaxIterOut(-5)},
		{"CR", p.SetCR(1.1)},
		{"F", p.SetF(2.5)},
	}
	for _, c := range checks {
		if !errors.Is(c.err, ErrInvalidParameter) {
			t.Fatalf("%s: expected ErrInvalidParameter, got: %v", c.name, c.err)
		}
	}
	if p.NPIn != DefaultNP || p.CR != DefaultCR || p.F != DefaultF {
		t.Fatalf("rejected values were stored: %s", p)
	}
	if err := p.SetNPIn(4); err != nil {
		t.Fatalf("NP_IN 4: %v", err)
	}
	if err := p.SetF(0); err != nil {
		t.Fatalf("F 0: %v", err)
	}
}

func TestValidateCommaStrategy(t *testing.T) {
	p := newTestParameters(t)
	p.SetMu(5)
	p.SetLambda(4)
	p.SetStrategy(CommaStrategy)
	if err := p.Validate(); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got: %v", err)
	}
	p.Strategy = "?"
	p.SetMu(1)
	if err := p.Validate(); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got: %v", err)
	}
}

func TestCloneCopiesFunctionSet(t *testing.T) {
	p := newTestParameters(t)
	clone := p.Clone()
	clone.ClearFunctionSet()
	if p.Funcs.Len() != 6 {
		t.Fatalf("clone shares the function set: %d", p.Funcs.Len())
	}
}
