package nn

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFunctionSetAddCommaSeparated(t *testing.T) {
	fs, err := NewFunctionSet("add,sub", "sig")
	if err != nil {
		t.Fatalf("new function set: %v", err)
	}
	if diff := cmp.Diff([]string{"add", "sub", "sig"}, fs.Names()); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	if fs.Index("sig") != 2 || fs.Index("mul") != -1 {
		t.Fatalf("unexpected index lookup")
	}
	if _, err := NewFunctionSet("add,bogus"); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("expected ErrFunctionNotFound, got: %v", err)
	}
}

func TestFunctionSetCapacity(t *testing.T) {
	fs := &FunctionSet{}
	for i := 0; i < MaxFunctions; i++ {
		if err := fs.Add("wire"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := fs.Add("add"); !errors.Is(err, ErrFunctionSetFull) {
		t.Fatalf("expected ErrFunctionSetFull, got: %v", err)
	}
	if fs.Len() != MaxFunctions {
		t.Fatalf("expected set to keep %d functions, got=%d", MaxFunctions, fs.Len())
	}
}

func TestFunctionSetActualArity(t *testing.T) {
	fs, err := NewFunctionSet("add,pow,abs,pi")
	if err != nil {
		t.Fatalf("new function set: %v", err)
	}
	want := []int{3, 2, 1, 0}
	for i, w := range want {
		if got := fs.ActualArity(i, 3); got != w {
			t.Fatalf("arity of %s: got=%d want=%d", fs.Name(i), got, w)
		}
	}
	if got := fs.ActualArity(1, 1); got != 1 {
		t.Fatalf("expected pow clamped to 1, got=%d", got)
	}
}

func TestFunctionSetCloneIsIndependent(t *testing.T) {
	fs, err := NewFunctionSet("add")
	if err != nil {
		t.Fatalf("new function set: %v", err)
	}
	clone := fs.Clone()
	if err := clone.AddCustom("half", func(in, _ []float64, _ *rand.Rand) float64 { return in[0] / 2 }, 1); err != nil {
		t.Fatalf("add custom: %v", err)
	}
	if fs.Len() != 1 || clone.Len() != 2 {
		t.Fatalf("clone shares storage: orig=%d clone=%d", fs.Len(), clone.Len())
	}
	if got := clone.Func(1)([]float64{3}, nil, nil); got != 1.5 {
		t.Fatalf("unexpected custom result: %f", got)
	}
}
