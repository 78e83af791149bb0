package cgp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cgpde/internal/nn"
)

var ErrMalformedChromosome = errors.New("malformed chromosome file")

// Save writes the chromosome in the line-oriented text format read by Load.
func (c *Chromosome) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "numInputs,%d\n", c.NumInputs)
	fmt.Fprintf(bw, "numNodes,%d\n", len(c.Nodes))
	fmt.Fprintf(bw, "numOutputs,%d\n", c.NumOutputs)
	fmt.Fprintf(bw, "arity,%d\n", c.Arity)

	bw.WriteString("functionSet")
	for _, name := range c.Funcs.Names() {
		bw.WriteString("," + name)
	}
	bw.WriteString("\n")

	for i := range c.Nodes {
		node := &c.Nodes[i]
		fmt.Fprintf(bw, "%d\n", node.Function)
		for j := 0; j < c.Arity; j++ {
			fmt.Fprintf(bw, "%d,%f\n", node.Inputs[j], node.Weights[j])
		}
	}
	for _, gene := range c.OutputGenes {
		fmt.Fprintf(bw, "%d,", gene)
	}
	return bw.Flush()
}

func (c *Chromosome) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads a chromosome written by Save. Only functions from the preset
// catalog can be restored.
func Load(r io.Reader) (*Chromosome, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, error) {
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text != "" {
				return text, nil
			}
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: unexpected end of input after line %d", ErrMalformedChromosome, line)
	}

	var shape Shape
	for _, field := range []struct {
		key string
		dst *int
	}{
		{"numInputs", &shape.NumInputs},
		{"numNodes", &shape.NumNodes},
		{"numOutputs", &shape.NumOutputs},
		{"arity", &shape.Arity},
	} {
		text, err := next()
		if err != nil {
			return nil, err
		}
		key, value, ok := strings.Cut(text, ",")
		if !ok || key != field.key {
			return nil, fmt.Errorf("%w: line %d: expected %s", ErrMalformedChromosome, line, field.key)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedChromosome, line, err)
		}
		*field.dst = n
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	text, err := next()
	if err != nil {
		return nil, err
	}
	names := strings.Split(text, ",")
	if names[0] != "functionSet" {
		return nil, fmt.Errorf("%w: line %d: expected functionSet", ErrMalformedChromosome, line)
	}
	funcs := &nn.FunctionSet{}
	if err := funcs.Add(names[1:]...); err != nil {
		return nil, fmt.Errorf("load chromosome: %w", err)
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
		Funcs:        funcs,
		scratch:      make([]float64, shape.Arity),
	}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		text, err := next()
		if err != nil {
			return nil, err
		}
		if node.Function, err = strconv.Atoi(strings.TrimSuffix(text, ",")); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedChromosome, line, err)
		}
		node.Inputs = make([]int, shape.Arity)
		node.Weights = make([]float64, shape.Arity)
		for j := 0; j < shape.Arity; j++ {
			text, err := next()
			if err != nil {
				return nil, err
			}
			addr, weight, ok := strings.Cut(text, ",")
			if !ok {
				return nil, fmt.Errorf("%w: line %d: expected address,weight", ErrMalformedChromosome, line)
			}
			if node.Inputs[j], err = strconv.Atoi(addr); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedChromosome, line, err)
			}
			if node.Weights[j], err = strconv.ParseFloat(weight, 64); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedChromosome, line, err)
			}
		}
	}

	text, err = next()
	if err != nil {
		return nil, err
	}
	genes := strings.Split(strings.TrimSuffix(text, ","), ",")
	if len(genes) != shape.NumOutputs {
		return nil, fmt.Errorf("%w: line %d: got %d output genes, want %d", ErrMalformedChromosome, line, len(genes), shape.NumOutputs)
	}
	for i, g := range genes {
		if c.OutputGenes[i], err = strconv.Atoi(g); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedChromosome, line, err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.ResolveActive()
	return c, nil
}

func LoadFile(path string) (*Chromosome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
