package cgp

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ResolveActive marks the nodes reachable from the output genes and records
// them in ascending order. Only the first ActualArity inputs of a node are
// followed. Calling it twice yields the same result.
func (c *Chromosome) ResolveActive() {
	for i := range c.Nodes {
		c.Nodes[i].Active = false
		c.Nodes[i].ActualArity = c.Funcs.ActualArity(c.Nodes[i].Function, c.Arity)
	}
	c.ActiveNodes = c.ActiveNodes[:0]

	stack := make([]int, 0, len(c.Nodes))
	for _, gene := range c.OutputGenes {
		stack = append(stack, gene)
		for len(stack) > 0 {
			addr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if addr < c.NumInputs {
				continue
			}
			idx := addr - c.NumInputs
			node := &c.Nodes[idx]
			if node.Active {
				continue
			}
			node.Active = true
			c.ActiveNodes = append(c.ActiveNodes, idx)
			stack = append(stack, node.Inputs[:node.ActualArity]...)
		}
	}
	sort.Ints(c.ActiveNodes)
}

// Execute evaluates the active nodes in ascending order over one sample and
// sets OutputValues. A recurrent input reads the output its source node
// cached during the previous call. NaN results become 0 and infinities are
// clamped to ±MaxFloat64. Stochastic nodes draw from the chromosome's own
// source, so equal seeds give equal outputs.
func (c *Chromosome) Execute(inputs []float64) error {
	if len(inputs) != c.NumInputs {
		return fmt.Errorf("%w: sample has %d inputs, chromosome expects %d", ErrDimensionMismatch, len(inputs), c.NumInputs)
	}
	if len(c.scratch) < c.Arity {
		c.scratch = make([]float64, c.Arity)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(c.nodeSeed))
	}

	for _, idx := range c.ActiveNodes {
		node := &c.Nodes[idx]
		arity := node.ActualArity
		for j := 0; j < arity; j++ {
			c.scratch[j] = c.value(inputs, node.Inputs[j])
		}
		out := c.Funcs.Func(node.Function)(c.scratch[:arity], node.Weights[:arity], c.rng)
		node.Output = sanitize(out)
	}

	for i, addr := range c.OutputGenes {
		c.OutputValues[i] = c.value(inputs, addr)
	}
	return nil
}

func (c *Chromosome) value(inputs []float64, addr int) float64 {
	if addr < c.NumInputs {
		return inputs[addr]
	}
	return c.Nodes[addr-c.NumInputs].Output
}

// Output returns output i of the most recent Execute call.
func (c *Chromosome) Output(i int) float64 {
	return c.OutputValues[i]
}

func sanitize(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}
