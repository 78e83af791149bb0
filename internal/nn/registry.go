package nn

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// VariableArity marks a function that consumes every input the node offers,
// up to the chromosome arity.
const VariableArity = -1

var (
	ErrFunctionExists   = errors.New("node function already registered")
	ErrFunctionNotFound = errors.New("node function not found")
)

// NodeFunc computes a node output from its operands and the parallel
// connection weights. len(inputs) is the node's actual arity. rng belongs to
// the chromosome being executed; only stochastic functions draw from it.
type NodeFunc func(inputs, weights []float64, rng *rand.Rand) float64

type FunctionSpec struct {
	Name  string
	Func  NodeFunc
	Arity int
}

var functionRegistry = struct {
	mu sync.RWMutex
	m  map[string]FunctionSpec
}{
	m: make(map[string]FunctionSpec),
}

func init() {
	initializeBuiltInFunctions()
}

func initializeBuiltInFunctions() {
	MustRegisterFunction("add", Add, VariableArity)
	MustRegisterFunction("sub", Sub, VariableArity)
	MustRegisterFunction("mul", Mul, VariableArity)
	MustRegisterFunction("div", Div, VariableArity)

	MustRegisterFunction("abs", Abs, 1)
	MustRegisterFunction("sqrt", Sqrt, 1)
	MustRegisterFunction("sq", Square, 1)
	MustRegisterFunction("cube", Cube, 1)
	MustRegisterFunction("pow", Pow, 2)
	MustRegisterFunction("exp", Exp, 1)
	MustRegisterFunction("sin", Sin, 1)
	MustRegisterFunction("cos", Cos, 1)
	MustRegisterFunction("tan", Tan, 1)

	MustRegisterFunction("rand", RandFloat, 0)
	MustRegisterFunction("1", ConstOne, 0)
	MustRegisterFunction("0", ConstZero, 0)
	MustRegisterFunction("pi", ConstPi, 0)

	MustRegisterFunction("and", And, VariableArity)
	MustRegisterFunction("nand", Nand, VariableArity)
	MustRegisterFunction("or", Or, VariableArity)
	MustRegisterFunction("nor", Nor, VariableArity)
	MustRegisterFunction("xor", Xor, VariableArity)
	MustRegisterFunction("xnor", Xnor, VariableArity)
	MustRegisterFunction("not", Not, 1)

	MustRegisterFunction("wire", Wire, 1)

	MustRegisterFunction("sig", Sigmoid, VariableArity)
	MustRegisterFunction("gauss", Gaussian, VariableArity)
	MustRegisterFunction("step", Step, VariableArity)
	MustRegisterFunction("soft", Softsign, VariableArity)
	MustRegisterFunction("tanh", Tanh, VariableArity)
}

// RegisterFunction adds a named function to the preset catalog. Only preset
// functions can be restored from a persisted chromosome.
func RegisterFunction(name string, fn NodeFunc, arity int) error {
	if name == "" {
		return errors.New("node function name is required")
	}
	if fn == nil {
		return errors.New("node function is required")
	}
	if arity < VariableArity {
		return fmt.Errorf("invalid arity %d for node function %s", arity, name)
	}

	functionRegistry.mu.Lock()
	defer functionRegistry.mu.Unlock()

	if _, exists := functionRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrFunctionExists, name)
	}
	functionRegistry.m[name] = FunctionSpec{Name: name, Func: fn, Arity: arity}
	return nil
}

func MustRegisterFunction(name string, fn NodeFunc, arity int) {
	if err := RegisterFunction(name, fn, arity); err != nil {
		panic(err)
	}
}

func LookupFunction(name string) (FunctionSpec, error) {
	functionRegistry.mu.RLock()
	spec, ok := functionRegistry.m[name]
	functionRegistry.mu.RUnlock()
	if !ok {
		return FunctionSpec{}, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return spec, nil
}

func ListFunctions() []string {
	functionRegistry.mu.RLock()
	defer functionRegistry.mu.RUnlock()

	names := make([]string, 0, len(functionRegistry.m))
	for name := range functionRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetFunctionRegistryForTests() {
	functionRegistry.mu.Lock()
	functionRegistry.m = make(map[string]FunctionSpec)
	functionRegistry.mu.Unlock()
	initializeBuiltInFunctions()
}
