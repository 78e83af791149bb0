// Package cgp holds the Cartesian genetic programming genome: a fixed grid of
// function nodes addressed by integers, its active-subgraph resolution and
// its execution.
package cgp

import (
	"errors"
	"fmt"
	"math/rand"

	"cgpde/internal/nn"
)

var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidShape      = errors.New("invalid chromosome shape")
	ErrAddressOutOfRange = errors.New("address out of range")
)

// Shape fixes the dimensions of a chromosome.
type Shape struct {
	NumInputs  int
	NumNodes   int
	NumOutputs int
	Arity      int
}

func (s Shape) Validate() error {
	switch {
	case s.NumInputs < 1:
		return fmt.Errorf("%w: num inputs must be >= 1, got %d", ErrInvalidShape, s.NumInputs)
	case s.NumNodes < 0:
		return fmt.Errorf("%w: num nodes must be >= 0, got %d", ErrInvalidShape, s.NumNodes)
	case s.NumOutputs < 1:
		return fmt.Errorf("%w: num outputs must be >= 1, got %d", ErrInvalidShape, s.NumOutputs)
	case s.Arity < 1:
		return fmt.Errorf("%w: arity must be >= 1, got %d", ErrInvalidShape, s.Arity)
	}
	return nil
}

// GeneConfig controls how random gene values are drawn.
type GeneConfig struct {
	WeightRange          float64
	RecurrentProbability float64
	ShortcutConnections  bool
}

type Node struct {
	Function    int
	Inputs      []int
	Weights     []float64
	Output      float64
	Active      bool
	ActualArity int
}

func (n *Node) copyFrom(src *Node) {
	n.Function = src.Function
	n.Inputs = append(n.Inputs[:0], src.Inputs...)
	n.Weights = append(n.Weights[:0], src.Weights...)
	n.Output = src.Output
	n.Active = src.Active
	n.ActualArity = src.ActualArity
}

// Chromosome is a CGP genome. Addresses in [0, NumInputs) refer to sample
// inputs and addresses in [NumInputs, NumInputs+len(Nodes)) to node outputs.
// A chromosome is not safe for concurrent use.
type Chromosome struct {
	NumInputs         int
	NumOutputs        int
	Arity             int
	Nodes             []Node
	OutputGenes       []int
	ActiveNodes       []int
	OutputValues      []float64
	Fitness           float64
	FitnessValidation float64
	Generation        int
	Funcs             *nn.FunctionSet

	scratch []float64
	// nodeSeed seeds rng, the source stochastic node functions draw from.
	// Copies restart the stream from the same seed.
	nodeSeed int64
	rng      *rand.Rand
}

// New builds a randomly initialised chromosome.
func New(rng *rand.Rand, shape Shape, genes GeneConfig, funcs *nn.FunctionSet) (*Chromosome, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if funcs.Len() == 0 {
		return nil, nn.ErrEmptyFunctionSet
	}

	c := &Chromosome{
		NumInputs:    shape.NumInputs,
		NumOutputs:   shape.NumOutputs,
		Arity:        shape.Arity,
		Nodes:        make([]Node, shape.NumNodes),
		OutputGenes:  make([]int, shape.NumOutputs),
		ActiveNodes:  make([]int, 0, shape.NumNodes),
		OutputValues: make([]float64, shape.NumOutputs),
		Funcs:        funcs.Clone(),
		scratch:      make([]float64, shape.Arity),
	}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		node.Function = RandomFunction(rng, funcs.Len())
		node.Active = true
		node.Inputs = make([]int, shape.Arity)
		node.Weights = make([]float64, shape.Arity)
		for j := 0; j < shape.Arity; j++ {
			node.Inputs[j] = RandomNodeInput(rng, shape.NumInputs, shape.NumNodes, i, genes.RecurrentProbability)
			node.Weights[j] = RandomWeight(rng, genes.WeightRange)
		}
	}
	for i := range c.OutputGenes {
		c.OutputGenes[i] = RandomOutput(rng, shape.NumInputs, shape.NumNodes, genes.ShortcutConnections)
	}
	c.nodeSeed = rng.Int63()
	c.ResolveActive()
	return c, nil
}

func (c *Chromosome) Shape() Shape {
	return Shape{
		NumInputs:  c.NumInputs,
		NumNodes:   len(c.Nodes),
		NumOutputs: c.NumOutputs,
		Arity:      c.Arity,
	}
}

func (c *Chromosome) NumNodes() int { return len(c.Nodes) }

func (c *Chromosome) NumActiveNodes() int { return len(c.ActiveNodes) }

// NumAddresses is the size of the address space nodes and outputs may refer to.
func (c *Chromosome) NumAddresses() int { return c.NumInputs + len(c.Nodes) }

// Clone returns a deep copy sharing nothing mutable with c.
func (c *Chromosome) Clone() *Chromosome {
	out := &Chromosome{
		NumInputs:  c.NumInputs,
		NumOutputs: c.NumOutputs,
		Arity:      c.Arity,
		Nodes:      make([]Node, len(c.Nodes)),
		Funcs:      c.Funcs.Clone(),
		scratch:    make([]float64, c.Arity),
		nodeSeed:   c.nodeSeed,
	}
	for i := range c.Nodes {
		out.Nodes[i].copyFrom(&c.Nodes[i])
	}
	out.OutputGenes = append([]int(nil), c.OutputGenes...)
	out.ActiveNodes = append(make([]int, 0, len(c.Nodes)), c.ActiveNodes...)
	out.OutputValues = append([]float64(nil), c.OutputValues...)
	out.Fitness = c.Fitness
	out.FitnessValidation = c.FitnessValidation
	out.Generation = c.Generation
	return out
}

// CopyFrom overwrites c with the contents of src in place. Both chromosomes
// must share the same shape.
func (c *Chromosome) CopyFrom(src *Chromosome) error {
	if c.Shape() != src.Shape() {
		return fmt.Errorf("%w: cannot copy %+v into %+v", ErrDimensionMismatch, src.Shape(), c.Shape())
	}
	for i := range src.Nodes {
		c.Nodes[i].copyFrom(&src.Nodes[i])
	}
	copy(c.OutputGenes, src.OutputGenes)
	c.ActiveNodes = append(c.ActiveNodes[:0], src.ActiveNodes...)
	copy(c.OutputValues, src.OutputValues)
	c.Funcs = src.Funcs.Clone()
	c.Fitness = src.Fitness
	c.FitnessValidation = src.FitnessValidation
	c.Generation = src.Generation
	c.Reseed(src.nodeSeed)
	return nil
}

// Reseed restarts the source of stochastic node functions from seed.
func (c *Chromosome) Reseed(seed int64) {
	c.nodeSeed = seed
	c.rng = nil
}

// NodeSeed is the seed of the stochastic node source.
func (c *Chromosome) NodeSeed() int64 { return c.nodeSeed }

// Reset zeroes every cached node output.
func (c *Chromosome) Reset() {
	for i := range c.Nodes {
		c.Nodes[i].Output = 0
	}
}

// NumWeights is the length of the flattened weight vector.
func (c *Chromosome) NumWeights() int { return len(c.Nodes) * c.Arity }

// Weights flattens all connection weights node-major.
func (c *Chromosome) Weights() []float64 {
	out := make([]float64, 0, c.NumWeights())
	for i := range c.Nodes {
		out = append(out, c.Nodes[i].Weights...)
	}
	return out
}

// SetWeights writes a node-major weight vector back into the nodes.
func (c *Chromosome) SetWeights(weights []float64) error {
	if len(weights) != c.NumWeights() {
		return fmt.Errorf("%w: got %d weights, want %d", ErrDimensionMismatch, len(weights), c.NumWeights())
	}
	for i := range c.Nodes {
		copy(c.Nodes[i].Weights, weights[i*c.Arity:(i+1)*c.Arity])
	}
	return nil
}
