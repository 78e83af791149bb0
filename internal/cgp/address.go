package cgp

import "fmt"

type RefKind uint8

const (
	InputRef RefKind = iota
	NodeRef
)

func (k RefKind) String() string {
	switch k {
	case InputRef:
		return "input"
	case NodeRef:
		return "node"
	default:
		return fmt.Sprintf("RefKind(%d)", uint8(k))
	}
}

// Ref is a decoded address: either the index of a sample input or the index
// of a node.
type Ref struct {
	Kind  RefKind
	Index int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s[%d]", r.Kind, r.Index)
}

// RefOf decodes an address gene.
func (c *Chromosome) RefOf(addr int) (Ref, error) {
	if addr < 0 || addr >= c.NumAddresses() {
		return Ref{}, fmt.Errorf("%w: %d not in [0,%d)", ErrAddressOutOfRange, addr, c.NumAddresses())
	}
	if addr < c.NumInputs {
		return Ref{Kind: InputRef, Index: addr}, nil
	}
	return Ref{Kind: NodeRef, Index: addr - c.NumInputs}, nil
}

// Address encodes ref back into an address gene.
func (c *Chromosome) Address(ref Ref) int {
	if ref.Kind == InputRef {
		return ref.Index
	}
	return ref.Index + c.NumInputs
}

// IsRecurrent reports whether input slot j of node i addresses the node
// itself or a later node.
func (c *Chromosome) IsRecurrent(i, j int) bool {
	return c.Nodes[i].Inputs[j] >= i+c.NumInputs
}

// Validate checks that every gene holds a legal value.
func (c *Chromosome) Validate() error {
	if err := c.Shape().Validate(); err != nil {
		return err
	}
	if c.Funcs.Len() == 0 {
		return fmt.Errorf("validate chromosome: function set is empty")
	}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		if node.Function < 0 || node.Function >= c.Funcs.Len() {
			return fmt.Errorf("node %d: function index %d not in [0,%d)", i, node.Function, c.Funcs.Len())
		}
		if len(node.Inputs) != c.Arity || len(node.Weights) != c.Arity {
			return fmt.Errorf("%w: node %d has %d inputs and %d weights, arity %d",
				ErrDimensionMismatch, i, len(node.Inputs), len(node.Weights), c.Arity)
		}
		for j, addr := range node.Inputs {
			if _, err := c.RefOf(addr); err != nil {
				return fmt.Errorf("node %d input %d: %w", i, j, err)
			}
		}
	}
	if len(c.OutputGenes) != c.NumOutputs {
		return fmt.Errorf("%w: %d output genes, want %d", ErrDimensionMismatch, len(c.OutputGenes), c.NumOutputs)
	}
	for i, addr := range c.OutputGenes {
		if _, err := c.RefOf(addr); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	return nil
}
