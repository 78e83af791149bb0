package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrStrategyExists      = errors.New("strategy already registered")
	ErrUnknownMutation     = errors.New("unknown mutation type")
	ErrUnknownFitness      = errors.New("unknown fitness function")
	ErrUnknownSelection    = errors.New("unknown selection scheme")
	ErrUnknownReproduction = errors.New("unknown reproduction scheme")
)

// registry maps names to interchangeable strategy implementations.
type registry[T any] struct {
	mu       sync.RWMutex
	m        map[string]T
	notFound error
}

func newRegistry[T any](notFound error) *registry[T] {
	return &registry[T]{m: make(map[string]T), notFound: notFound}
}

func (r *registry[T]) register(name string, v T) error {
	if name == "" {
		return errors.New("strategy name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	r.m[name] = v
	return nil
}

func (r *registry[T]) lookup(name string) (T, error) {
	r.mu.RLock()
	v, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", r.notFound, name)
	}
	return v, nil
}

func (r *registry[T]) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *registry[T]) reset() {
	r.mu.Lock()
	r.m = make(map[string]T)
	r.mu.Unlock()
}

var (
	mutationRegistry     = newRegistry[Mutator](ErrUnknownMutation)
	fitnessRegistry      = newRegistry[FitnessFunc](ErrUnknownFitness)
	selectionRegistry    = newRegistry[Selector](ErrUnknownSelection)
	reproductionRegistry = newRegistry[Reproducer](ErrUnknownReproduction)
)

func init() {
	initializeBuiltInStrategies()
}

func initializeBuiltInStrategies() {
	for _, m := range []Mutator{
		ProbabilisticMutation{},
		OnlyActiveMutation{},
		PointMutation{},
		PointANNMutation{},
		SingleMutation{},
	} {
		mustRegister(mutationRegistry.register(m.Name(), m))
	}
	mustRegister(fitnessRegistry.register("supervisedLearning", SupervisedLearning))
	mustRegister(fitnessRegistry.register("accuracy", Accuracy))
	mustRegister(selectionRegistry.register(FittestSelector{}.Name(), FittestSelector{}))
	mustRegister(reproductionRegistry.register(RandomParentReproducer{}.Name(), RandomParentReproducer{}))
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func RegisterMutation(m Mutator) error {
	if m == nil {
		return errors.New("mutation is required")
	}
	return mutationRegistry.register(m.Name(), m)
}

func LookupMutation(name string) (Mutator, error) { return mutationRegistry.lookup(name) }

func ListMutations() []string { return mutationRegistry.list() }

func RegisterFitness(name string, fn FitnessFunc) error {
	if fn == nil {
		return errors.New("fitness function is required")
	}
	return fitnessRegistry.register(name, fn)
}

func LookupFitness(name string) (FitnessFunc, error) { return fitnessRegistry.lookup(name) }

func ListFitness() []string { return fitnessRegistry.list() }

func RegisterSelector(s Selector) error {
	if s == nil {
		return errors.New("selector is required")
	}
	return selectionRegistry.register(s.Name(), s)
}

func LookupSelector(name string) (Selector, error) { return selectionRegistry.lookup(name) }

func ListSelectors() []string { return selectionRegistry.list() }

func RegisterReproducer(r Reproducer) error {
	if r == nil {
		return errors.New("reproducer is required")
	}
	return reproductionRegistry.register(r.Name(), r)
}

func LookupReproducer(name string) (Reproducer, error) { return reproductionRegistry.lookup(name) }

func ListReproducers() []string { return reproductionRegistry.list() }

func resetStrategyRegistriesForTests() {
	mutationRegistry.reset()
	fitnessRegistry.reset()
	selectionRegistry.reset()
	reproductionRegistry.reset()
	initializeBuiltInStrategies()
}
