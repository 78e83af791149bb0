package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"cgpde/internal/cgp"
)

var ErrNoEffectiveMutation = errors.New("no effective mutation found")

// maxRedrawAttempts bounds every loop that redraws until a value changes.
const maxRedrawAttempts = 100000

// Mutator changes genes of a chromosome in place. When weights is false
// connection weights are left untouched. Implementations rerun active node
// resolution before returning.
type Mutator interface {
	Name() string
	Mutate(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, weights bool) error
}

type geneKind uint8

const (
	functionGene geneKind = iota
	inputGene
	weightGene
	outputGene
)

type gene struct {
	kind geneKind
	node int
	slot int
}

// geneLayout indexes genes as functions, inputs, weights (optional) and
// outputs, in that order.
type geneLayout struct {
	functions int
	inputs    int
	weights   int
	outputs   int
	arity     int
}

func newGeneLayout(c *cgp.Chromosome, weights bool) geneLayout {
	l := geneLayout{
		functions: c.NumNodes(),
		inputs:    c.NumNodes() * c.Arity,
		outputs:   c.NumOutputs,
		arity:     c.Arity,
	}
	if weights {
		l.weights = c.NumNodes() * c.Arity
	}
	return l
}

func (l geneLayout) total() int { return l.functions + l.inputs + l.weights + l.outputs }

func (l geneLayout) at(g int) gene {
	switch {
	case g < l.functions:
		return gene{kind: functionGene, node: g}
	case g < l.functions+l.inputs:
		g -= l.functions
		return gene{kind: inputGene, node: g / l.arity, slot: g % l.arity}
	case g < l.functions+l.inputs+l.weights:
		g -= l.functions + l.inputs
		return gene{kind: weightGene, node: g / l.arity, slot: g % l.arity}
	default:
		return gene{kind: outputGene, slot: g - l.functions - l.inputs - l.weights}
	}
}

// redraw replaces one gene with a fresh value from the same generator used
// at initialisation and reports whether the value changed.
func redraw(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, g gene) bool {
	switch g.kind {
	case functionGene:
		node := &c.Nodes[g.node]
		old := node.Function
		node.Function = cgp.RandomFunction(rng, c.Funcs.Len())
		return node.Function != old
	case inputGene:
		node := &c.Nodes[g.node]
		old := node.Inputs[g.slot]
		node.Inputs[g.slot] = cgp.RandomNodeInput(rng, c.NumInputs, c.NumNodes(), g.node, p.RecurrentProbability)
		return node.Inputs[g.slot] != old
	case weightGene:
		node := &c.Nodes[g.node]
		old := node.Weights[g.slot]
		node.Weights[g.slot] = cgp.RandomWeight(rng, p.WeightRange)
		return node.Weights[g.slot] != old
	default:
		old := c.OutputGenes[g.slot]
		c.OutputGenes[g.slot] = cgp.RandomOutput(rng, c.NumInputs, c.NumNodes(), p.ShortcutConnections)
		return c.OutputGenes[g.slot] != old
	}
}

// redrawDistinct redraws g until its value changes and reports whether it
// did within maxRedrawAttempts.
func redrawDistinct(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, g gene) bool {
	for attempt := 0; attempt < maxRedrawAttempts; attempt++ {
		if redraw(rng, p, c, g) {
			return true
		}
	}
	return false
}

// hasAlternative reports whether redraw can produce a value other than the
// current one.
func hasAlternative(p *Parameters, c *cgp.Chromosome, g gene) bool {
	switch g.kind {
	case functionGene:
		return c.Funcs.Len() > 1
	case inputGene:
		return c.NumInputs+g.node > 1 || (p.RecurrentProbability > 0 && c.NumNodes()-g.node > 1)
	case weightGene:
		return p.WeightRange != 0
	default:
		if p.ShortcutConnections || c.NumNodes() == 0 {
			return c.NumAddresses() > 1
		}
		return c.NumNodes() > 1
	}
}

// effective reports whether a change to g can alter the phenotype. Input
// and weight slots at or past the node's actual arity are never read.
func effective(c *cgp.Chromosome, g gene) bool {
	if g.kind == outputGene {
		return true
	}
	node := &c.Nodes[g.node]
	if !node.Active {
		return false
	}
	if g.kind == inputGene || g.kind == weightGene {
		return g.slot < c.Funcs.ActualArity(node.Function, c.Arity)
	}
	return true
}

func checkMutationInput(rng *rand.Rand, p *Parameters, c *cgp.Chromosome) error {
	if rng == nil {
		return errors.New("random source is required")
	}
	if p == nil || c == nil {
		return errors.New("parameters and chromosome are required")
	}
	return nil
}

// ProbabilisticMutation redraws every gene independently with probability
// equal to the mutation rate.
type ProbabilisticMutation struct{}

func (ProbabilisticMutation) Name() string { return "probabilistic" }

func (ProbabilisticMutation) Mutate(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, weights bool) error {
	if err := checkMutationInput(rng, p, c); err != nil {
		return err
	}
	for i := range c.Nodes {
		mutateNodeGenes(rng, p, c, i, weights)
	}
	mutateOutputGenes(rng, p, c)
	c.ResolveActive()
	return nil
}

// OnlyActiveMutation is ProbabilisticMutation restricted to active nodes.
// Output genes are always candidates.
type OnlyActiveMutation struct{}

func (OnlyActiveMutation) Name() string { return "probabilisticOnlyActive" }

func (OnlyActiveMutation) Mutate(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, weights bool) error {
	if err := checkMutationInput(rng, p, c); err != nil {
		return err
	}
	active := append([]int(nil), c.ActiveNodes...)
	for _, i := range active {
		mutateNodeGenes(rng, p, c, i, weights)
	}
	mutateOutputGenes(rng, p, c)
	c.ResolveActive()
	return nil
}

func mutateNodeGenes(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, i int, weights bool) {
	if c.Funcs.Len() > 1 && rng.Float64() <= p.MutationRate {
		redraw(rng, p, c, gene{kind: functionGene, node: i})
	}
	for j := 0; j < c.Arity; j++ {
		if rng.Float64() <= p.MutationRate {
			redraw(rng, p, c, gene{kind: inputGene, node: i, slot: j})
		}
		if weights && rng.Float64() <= p.MutationRate {
			redraw(rng, p, c, gene{kind: weightGene, node: i, slot: j})
		}
	}
}

func mutateOutputGenes(rng *rand.Rand, p *Parameters, c *cgp.Chromosome) {
	for i := range c.OutputGenes {
		if rng.Float64() <= p.MutationRate {
			redraw(rng, p, c, gene{kind: outputGene, slot: i})
		}
	}
}

// mutationCount is round(total*rate).
func mutationCount(total int, rate float64) int {
	return int(math.Round(float64(total) * rate))
}

// PointMutation redraws exactly round(G*rate) distinct structural genes,
// where G counts function, input and output genes. Each chosen gene gets a
// value different from its current one whenever such a value exists.
// Weights are never touched.
type PointMutation struct{}

func (PointMutation) Name() string { return "point" }

func (PointMutation) Mutate(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, _ bool) error {
	if err := checkMutationInput(rng, p, c); err != nil {
		return err
	}
	layout := newGeneLayout(c, false)
	total := layout.total()
	k := mutationCount(total, p.MutationRate)
	if k > total {
		k = total
	}
	// Partial Fisher-Yates over gene indices.
	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(total-i)
		order[i], order[j] = order[j], order[i]
		g := layout.at(order[i])
		if !hasAlternative(p, c, g) {
			redraw(rng, p, c, g)
			continue
		}
		redrawDistinct(rng, p, c, g)
	}
	c.ResolveActive()
	return nil
}

// PointANNMutation draws random genes, weights included when enabled, and
// redraws them until round(G*rate) of the redraws landed on an effective
// gene.
type PointANNMutation struct{}

func (PointANNMutation) Name() string { return "pointANN" }

func (PointANNMutation) Mutate(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, weights bool) error {
	if err := checkMutationInput(rng, p, c); err != nil {
		return err
	}
	layout := newGeneLayout(c, weights)
	total := layout.total()
	k := mutationCount(total, p.MutationRate)
	for counted := 0; counted < k; {
		g := layout.at(rng.Intn(total))
		if effective(c, g) {
			counted++
		}
		redraw(rng, p, c, g)
	}
	c.ResolveActive()
	return nil
}

// SingleMutation redraws random structural genes until one redraw changes
// the value of an effective gene.
type SingleMutation struct{}

func (SingleMutation) Name() string { return "single" }

func (SingleMutation) Mutate(rng *rand.Rand, p *Parameters, c *cgp.Chromosome, _ bool) error {
	if err := checkMutationInput(rng, p, c); err != nil {
		return err
	}
	layout := newGeneLayout(c, false)
	total := layout.total()
	for attempt := 0; attempt < maxRedrawAttempts; attempt++ {
		g := layout.at(rng.Intn(total))
		wasEffective := effective(c, g)
		if redraw(rng, p, c, g) && wasEffective {
			c.ResolveActive()
			return nil
		}
	}
	c.ResolveActive()
	return fmt.Errorf("%w after %d attempts", ErrNoEffectiveMutation, maxRedrawAttempts)
}
