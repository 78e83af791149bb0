package cgp

import (
	"bufio"
	"fmt"
	"io"
)

// WriteText prints a human readable listing. Active nodes are marked with *.
func (c *Chromosome) WriteText(w io.Writer, weights bool) error {
	c.ResolveActive()
	bw := bufio.NewWriter(w)
	for i := 0; i < c.NumInputs; i++ {
		fmt.Fprintf(bw, "(%d):\tinput\n", i)
	}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		fmt.Fprintf(bw, "(%d):\t%s\t", c.NumInputs+i, c.Funcs.Name(node.Function))
		for j := 0; j < node.ActualArity; j++ {
			if weights {
				fmt.Fprintf(bw, "%d,%+.1f\t", node.Inputs[j], node.Weights[j])
			} else {
				fmt.Fprintf(bw, "%d ", node.Inputs[j])
			}
		}
		if node.Active {
			bw.WriteString("*")
		}
		bw.WriteString("\n")
	}
	bw.WriteString("outputs: ")
	for _, gene := range c.OutputGenes {
		fmt.Fprintf(bw, "%d ", gene)
	}
	bw.WriteString("\n")
	return bw.Flush()
}

// WriteDot renders the chromosome as a Graphviz digraph. Inactive nodes are
// drawn in light grey.
func (c *Chromosome) WriteDot(w io.Writer, weights bool) error {
	c.ResolveActive()
	bw := bufio.NewWriter(w)
	bw.WriteString("digraph NeuralNetwork {\n")
	bw.WriteString("rankdir=LR;\n")
	bw.WriteString("size=\"4,3\";\n")
	bw.WriteString("center = true;\n")

	for i := 0; i < c.NumInputs; i++ {
		fmt.Fprintf(bw, "node%d [label=\"(%d) Input\", color=black, labelfontcolor=black, fontcolor=black];\n", i, i)
	}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		colour := "lightgrey"
		if node.Active {
			colour = "black"
		}
		id := c.NumInputs + i
		fmt.Fprintf(bw, "node%d [label=\"(%d) %s\", color=%s, labelfontcolor=%s, fontcolor=%s];\n",
			id, id, c.Funcs.Name(node.Function), colour, colour, colour)
		for j := 0; j < node.ActualArity; j++ {
			label := fmt.Sprintf(" (%d)", j)
			if weights {
				label = fmt.Sprintf("%.2f", node.Weights[j])
			}
			fmt.Fprintf(bw, "node%d -> node%d [label=\"%s\", labelfontcolor=%s, fontcolor=%s, bold=true, color=%s];\n",
				node.Inputs[j], id, label, colour, colour, colour)
		}
	}

	first := c.NumAddresses()
	for i, gene := range c.OutputGenes {
		fmt.Fprintf(bw, "node%d [label=\"Output %d\", color=black, labelfontcolor=black, fontcolor=black];\n", first+i, i)
		fmt.Fprintf(bw, "node%d -> node%d [labelfontcolor=black, fontcolor=black, bold=true, color=black];\n", gene, first+i)
	}

	bw.WriteString("{ rank = source;")
	for i := 0; i < c.NumInputs; i++ {
		fmt.Fprintf(bw, " \"node%d\";", i)
	}
	bw.WriteString(" }\n")
	bw.WriteString("{ rank = max;")
	for i := range c.OutputGenes {
		fmt.Fprintf(bw, "\"node%d\";", first+i)
	}
	bw.WriteString(" }\n")
	bw.WriteString("}\n")
	return bw.Flush()
}
