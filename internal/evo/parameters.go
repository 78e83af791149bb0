package evo

import (
	"errors"
	"fmt"
	"log/slog"

	"cgpde/internal/cgp"
	"cgpde/internal/nn"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnknownStrategy  = errors.New("unknown evolutionary strategy")
)

type Strategy string

const (
	// PlusStrategy selects parents from children and parents.
	PlusStrategy Strategy = "+"
	// CommaStrategy selects parents from children only.
	CommaStrategy Strategy = ","
)

const (
	DefaultMu                 = 1
	DefaultLambda             = 4
	DefaultMutationRate       = 0.05
	DefaultWeightRange        = 1.0
	DefaultNP                 = 10
	DefaultMaxIter            = 100
	DefaultCR                 = 0.5
	DefaultF                  = 1.0
	DefaultMutationType       = "probabilistic"
	DefaultFitnessFunction    = "supervisedLearning"
	DefaultSelectionScheme    = "selectFittest"
	DefaultReproductionScheme = "mutateRandomParent"
	minDifferentialPopulation = 4
)

// Parameters configures one evolutionary run. Setters for tunable values
// log a warning and keep the previous value when given an out-of-range
// value. Setters for structural values return an error instead.
type Parameters struct {
	NumInputs  int
	NumNodes   int
	NumOutputs int
	Arity      int

	Mu                   int
	Lambda               int
	Strategy             Strategy
	MutationRate         float64
	RecurrentProbability float64
	ShortcutConnections  bool
	WeightRange          float64
	// TargetFitness is recorded with the run but does not stop evolution.
	TargetFitness float64
	Threads       int

	NPIn       int
	NPOut      int
	MaxIterIn  int
	MaxIterOut int
	CR         float64
	F          float64

	Funcs *nn.FunctionSet

	MutationType     string
	Mutation         Mutator
	FitnessName      string
	Fitness          FitnessFunc
	SelectionName    string
	Selection        Selector
	ReproductionName string
	Reproduction     Reproducer

	Logger *slog.Logger
}

// NewParameters returns parameters with library defaults for the given
// chromosome shape and an empty function set.
func NewParameters(numInputs, numNodes, numOutputs, arity int) (*Parameters, error) {
	p := &Parameters{
		Mu:                  DefaultMu,
		Lambda:              DefaultLambda,
		Strategy:            PlusStrategy,
		MutationRate:        DefaultMutationRate,
		ShortcutConnections: true,
		WeightRange:         DefaultWeightRange,
		Threads:             1,
		NPIn:                DefaultNP,
		NPOut:               DefaultNP,
		MaxIterIn:           DefaultMaxIter,
		MaxIterOut:          DefaultMaxIter,
		CR:                  DefaultCR,
		F:                   DefaultF,
		Funcs:               &nn.FunctionSet{},
		MutationType:        DefaultMutationType,
		Mutation:            ProbabilisticMutation{},
		FitnessName:         DefaultFitnessFunction,
		Fitness:             SupervisedLearning,
		SelectionName:       DefaultSelectionScheme,
		Selection:           FittestSelector{},
		ReproductionName:    DefaultReproductionScheme,
		Reproduction:        RandomParentReproducer{},
	}
	if err := p.SetShape(cgp.Shape{NumInputs: numInputs, NumNodes: numNodes, NumOutputs: numOutputs, Arity: arity}); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parameters) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Parameters) Shape() cgp.Shape {
	return cgp.Shape{NumInputs: p.NumInputs, NumNodes: p.NumNodes, NumOutputs: p.NumOutputs, Arity: p.Arity}
}

func (p *Parameters) Genes() cgp.GeneConfig {
	return cgp.GeneConfig{
		WeightRange:          p.WeightRange,
		RecurrentProbability: p.RecurrentProbability,
		ShortcutConnections:  p.ShortcutConnections,
	}
}

func (p *Parameters) SetShape(shape cgp.Shape) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	p.NumInputs = shape.NumInputs
	p.NumNodes = shape.NumNodes
	p.NumOutputs = shape.NumOutputs
	p.Arity = shape.Arity
	return nil
}

// AddNodeFunction appends preset functions given as comma-separated names.
func (p *Parameters) AddNodeFunction(names string) error {
	p.Funcs.SetLogger(p.Logger)
	return p.Funcs.Add(names)
}

func (p *Parameters) AddCustomNodeFunction(name string, fn nn.NodeFunc, arity int) error {
	p.Funcs.SetLogger(p.Logger)
	return p.Funcs.AddCustom(name, fn, arity)
}

func (p *Parameters) ClearFunctionSet() {
	p.Funcs.Clear()
}

func (p *Parameters) SetMu(mu int) {
	if mu < 1 {
		p.log().Warn("mu must be >= 1, value unchanged", "rejected", mu, "kept", p.Mu)
		return
	}
	p.Mu = mu
}

func (p *Parameters) SetLambda(lambda int) {
	if lambda < 1 {
		p.log().Warn("lambda must be >= 1, value unchanged", "rejected", lambda, "kept", p.Lambda)
		return
	}
	p.Lambda = lambda
}

func (p *Parameters) SetStrategy(s Strategy) {
	if s != PlusStrategy && s != CommaStrategy {
		p.log().Warn("evolutionary strategy must be '+' or ',', value unchanged", "rejected", string(s), "kept", string(p.Strategy))
		return
	}
	p.Strategy = s
}

func (p *Parameters) SetMutationRate(rate float64) {
	if rate < 0 || rate > 1 {
		p.log().Warn("mutation rate must be in [0,1], value unchanged", "rejected", rate, "kept", p.MutationRate)
		return
	}
	p.MutationRate = rate
}

func (p *Parameters) SetRecurrentProbability(prob float64) {
	if prob < 0 || prob > 1 {
		p.log().Warn("recurrent connection probability must be in [0,1], value unchanged", "rejected", prob, "kept", p.RecurrentProbability)
		return
	}
	p.RecurrentProbability = prob
}

func (p *Parameters) SetShortcutConnections(enabled bool) {
	p.ShortcutConnections = enabled
}

func (p *Parameters) SetWeightRange(r float64) {
	p.WeightRange = r
}

func (p *Parameters) SetTargetFitness(target float64) {
	p.TargetFitness = target
}

func (p *Parameters) SetThreads(n int) {
	if n < 1 {
		p.log().Warn("threads must be >= 1, value unchanged", "rejected", n, "kept", p.Threads)
		return
	}
	p.Threads = n
}

// SetMutationType selects a registered mutation by name. Unknown names are
// logged and the current mutation is kept.
func (p *Parameters) SetMutationType(name string) {
	m, err := LookupMutation(name)
	if err != nil {
		p.log().Warn("unknown mutation type, value unchanged", "rejected", name, "kept", p.MutationType)
		return
	}
	p.MutationType = name
	p.Mutation = m
}

// SetFitnessFunction installs fn under name. A nil fn restores the default.
func (p *Parameters) SetFitnessFunction(fn FitnessFunc, name string) {
	if fn == nil {
		p.Fitness, p.FitnessName = SupervisedLearning, DefaultFitnessFunction
		return
	}
	p.Fitness, p.FitnessName = fn, name
}

func (p *Parameters) SetFitnessByName(name string) error {
	fn, err := LookupFitness(name)
	if err != nil {
		return err
	}
	p.SetFitnessFunction(fn, name)
	return nil
}

// SetSelection installs s. A nil selector restores the default.
func (p *Parameters) SetSelection(s Selector) {
	if s == nil {
		s = FittestSelector{}
	}
	p.Selection, p.SelectionName = s, s.Name()
}

func (p *Parameters) SetSelectionByName(name string) error {
	s, err := LookupSelector(name)
	if err != nil {
		return err
	}
	p.SetSelection(s)
	return nil
}

// SetReproduction installs r. A nil reproducer restores the default.
func (p *Parameters) SetReproduction(r Reproducer) {
	if r == nil {
		r = RandomParentReproducer{}
	}
	p.Reproduction, p.ReproductionName = r, r.Name()
}

func (p *Parameters) SetReproductionByName(name string) error {
	r, err := LookupReproducer(name)
	if err != nil {
		return err
	}
	p.SetReproduction(r)
	return nil
}

func (p *Parameters) SetNPIn(np int) error {
	if np < minDifferentialPopulation {
		return fmt.Errorf("%w: NP_IN must be >= %d, got %d", ErrInvalidParameter, minDifferentialPopulation, np)
	}
	p.NPIn = np
	return nil
}

func (p *Parameters) SetNPOut(np int) error {
	if np < minDifferentialPopulation {
		return fmt.Errorf("%w: NP_OUT must be >= %d, got %d", ErrInvalidParameter, minDifferentialPopulation, np)
	}
	p.NPOut = np
	return nil
}

func (p *Parameters) SetMaxIterIn(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: maxIter_IN must be >= 0, got %d", ErrInvalidParameter, n)
	}
	p.MaxIterIn = n
	return nil
}

func (p *Parameters) SetMaxIterOut(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: maxIter_OUT must be >= 0, got %d", ErrInvalidParameter, n)
	}
	p.MaxIterOut = n
	return nil
}

func (p *Parameters) SetCR(cr float64) error {
	if cr < 0 || cr > 1 {
		return fmt.Errorf("%w: CR must be in [0,1], got %g", ErrInvalidParameter, cr)
	}
	p.CR = cr
	return nil
}

func (p *Parameters) SetF(f float64) error {
	if f < 0 || f > 2 {
		return fmt.Errorf("%w: F must be in [0,2], got %g", ErrInvalidParameter, f)
	}
	p.F = f
	return nil
}

// Validate checks every value a run depends on.
func (p *Parameters) Validate() error {
	if err := p.Shape().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if p.Funcs.Len() == 0 {
		return nn.ErrEmptyFunctionSet
	}
	switch {
	case p.Mu < 1:
		return fmt.Errorf("%w: mu must be >= 1, got %d", ErrInvalidParameter, p.Mu)
	case p.Lambda < 1:
		return fmt.Errorf("%w: lambda must be >= 1, got %d", ErrInvalidParameter, p.Lambda)
	case p.Strategy == CommaStrategy && p.Lambda < p.Mu:
		return fmt.Errorf("%w: ',' strategy needs lambda >= mu, got mu=%d lambda=%d", ErrInvalidParameter, p.Mu, p.Lambda)
	case p.MutationRate < 0 || p.MutationRate > 1:
		return fmt.Errorf("%w: mutation rate must be in [0,1], got %g", ErrInvalidParameter, p.MutationRate)
	case p.RecurrentProbability < 0 || p.RecurrentProbability > 1:
		return fmt.Errorf("%w: recurrent probability must be in [0,1], got %g", ErrInvalidParameter, p.RecurrentProbability)
	case p.Threads < 1:
		return fmt.Errorf("%w: threads must be >= 1, got %d", ErrInvalidParameter, p.Threads)
	case p.NPIn < minDifferentialPopulation || p.NPOut < minDifferentialPopulation:
		return fmt.Errorf("%w: NP must be >= %d, got in=%d out=%d", ErrInvalidParameter, minDifferentialPopulation, p.NPIn, p.NPOut)
	case p.MaxIterIn < 0 || p.MaxIterOut < 0:
		return fmt.Errorf("%w: maxIter must be >= 0, got in=%d out=%d", ErrInvalidParameter, p.MaxIterIn, p.MaxIterOut)
	case p.CR < 0 || p.CR > 1:
		return fmt.Errorf("%w: CR must be in [0,1], got %g", ErrInvalidParameter, p.CR)
	case p.F < 0 || p.F > 2:
		return fmt.Errorf("%w: F must be in [0,2], got %g", ErrInvalidParameter, p.F)
	}
	if p.Strategy != PlusStrategy && p.Strategy != CommaStrategy {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, string(p.Strategy))
	}
	if p.Mutation == nil || p.Fitness == nil || p.Selection == nil || p.Reproduction == nil {
		return fmt.Errorf("%w: mutation, fitness, selection and reproduction are required", ErrInvalidParameter)
	}
	return nil
}

// Clone returns a copy whose function set can be modified independently.
func (p *Parameters) Clone() *Parameters {
	out := *p
	out.Funcs = p.Funcs.Clone()
	return &out
}

func (p *Parameters) String() string {
	return fmt.Sprintf("(%d%s%d)-ES inputs=%d nodes=%d outputs=%d arity=%d mutation=%s rate=%g weights=±%g recurrent=%g shortcut=%t fitness=%s selection=%s reproduction=%s threads=%d functions=%s",
		p.Mu, p.Strategy, p.Lambda, p.NumInputs, p.NumNodes, p.NumOutputs, p.Arity,
		p.MutationType, p.MutationRate, p.WeightRange, p.RecurrentProbability, p.ShortcutConnections,
		p.FitnessName, p.SelectionName, p.ReproductionName, p.Threads, p.Funcs)
}
