package cgp

// Equal compares shape, function genes, input genes and output genes.
func Equal(a, b *Chromosome) bool {
	return compare(a, b, false, false)
}

// EqualANN is Equal that also compares connection weights.
func EqualANN(a, b *Chromosome) bool {
	return compare(a, b, true, false)
}

// EqualActive compares only nodes active in both chromosomes. The two are
// unequal when a node is active in one and inactive in the other.
func EqualActive(a, b *Chromosome) bool {
	return compare(a, b, false, true)
}

func EqualActiveANN(a, b *Chromosome) bool {
	return compare(a, b, true, true)
}

func compare(a, b *Chromosome, weights, activeOnly bool) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Shape() != b.Shape() {
		return false
	}
	for i := range a.Nodes {
		na, nb := &a.Nodes[i], &b.Nodes[i]
		if activeOnly {
			if na.Active != nb.Active {
				return false
			}
			if !na.Active {
				continue
			}
		}
		if na.Function != nb.Function {
			return false
		}
		for j := 0; j < a.Arity; j++ {
			if na.Inputs[j] != nb.Inputs[j] {
				return false
			}
			if weights && na.Weights[j] != nb.Weights[j] {
				return false
			}
		}
	}
	for i := range a.OutputGenes {
		if a.OutputGenes[i] != b.OutputGenes[i] {
			return false
		}
	}
	return true
}

// NumActiveConnections sums the actual arity of the active nodes.
func (c *Chromosome) NumActiveConnections() int {
	total := 0
	for _, idx := range c.ActiveNodes {
		total += c.Nodes[idx].ActualArity
	}
	return total
}

// RemoveInactiveNodes drops every inactive node and renumbers the
// remaining addresses. Behaviour of the active graph is unchanged.
func (c *Chromosome) RemoveInactiveNodes() {
	c.ResolveActive()

	remap := make([]int, len(c.Nodes))
	kept := make([]Node, 0, len(c.ActiveNodes))
	for i := range c.Nodes {
		if !c.Nodes[i].Active {
			remap[i] = -1
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, c.Nodes[i])
	}

	// Slots beyond a node's actual arity may still address removed nodes.
	// They keep pointing at the nearest surviving address below.
	shift := func(addr int) int {
		if addr < c.NumInputs {
			return addr
		}
		idx := addr - c.NumInputs
		if remap[idx] >= 0 {
			return remap[idx] + c.NumInputs
		}
		for k := idx - 1; k >= 0; k-- {
			if remap[k] >= 0 {
				return remap[k] + c.NumInputs
			}
		}
		return c.NumInputs - 1
	}
	for i := range kept {
		for j, addr := range kept[i].Inputs {
			kept[i].Inputs[j] = shift(addr)
		}
	}
	for i, addr := range c.OutputGenes {
		c.OutputGenes[i] = shift(addr)
	}
	c.Nodes = kept
	c.ResolveActive()
}

// Depth is the largest number of active nodes on a path from an input to an
// output. Recurrent edges are ignored. An output wired straight to an input
// has depth 0.
func (c *Chromosome) Depth() int {
	c.ResolveActive()
	depth := make([]int, len(c.Nodes))
	for _, idx := range c.ActiveNodes {
		node := &c.Nodes[idx]
		best := 0
		for j := 0; j < node.ActualArity; j++ {
			addr := node.Inputs[j]
			if addr < c.NumInputs || c.IsRecurrent(idx, j) {
				continue
			}
			if d := depth[addr-c.NumInputs]; d > best {
				best = d
			}
		}
		depth[idx] = best + 1
	}

	deepest := 0
	for _, addr := range c.OutputGenes {
		if addr < c.NumInputs {
			continue
		}
		if d := depth[addr-c.NumInputs]; d > deepest {
			deepest = d
		}
	}
	return deepest
}
