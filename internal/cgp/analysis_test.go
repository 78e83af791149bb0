package cgp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEqualVariants(t *testing.T) {
	base := buildChromosome(t, "add,mul", 2, 2, []nodeSpec{
		{"add", []int{0, 1}, []float64{1, 1}},
		{"mul", []int{0, 1}, []float64{1, 1}},
	}, []int{2})

	weightChanged := base.Clone()
	weightChanged.Nodes[0].Weights[0] = 0.5
	if !Equal(base, weightChanged) || EqualANN(base, weightChanged) {
		t.Fatal("expected weight change to matter only for ANN comparison")
	}

	inactiveChanged := base.Clone()
	inactiveChanged.Nodes[1].Function = 0
	if Equal(base, inactiveChanged) {
		t.Fatal("expected full comparison to see inactive change")
	}
	if !EqualActive(base, inactiveChanged) || !EqualActiveANN(base, inactiveChanged) {
		t.Fatal("expected active comparison to ignore inactive change")
	}

	activityChanged := base.Clone()
	activityChanged.OutputGenes[0] = 3
	activityChanged.ResolveActive()
	if EqualActive(base, activityChanged) {
		t.Fatal("expected differing activity to be unequal")
	}
	if Equal(nil, base) {
		t.Fatal("expected nil comparison to be unequal")
	}
}

func TestRemoveInactiveNodesPreservesBehaviour(t *testing.T) {
	samples := [][]float64{{0.1, 0.2, 0.3}, {-1, 2, 0.5}, {3, -0.7, 1.1}}
	for seed := int64(1); seed <= 10; seed++ {
		c := randomChromosome(t, seed, GeneConfig{WeightRange: 1})
		before := make([][]float64, len(samples))
		for i, s := range samples {
			if err := c.Execute(s); err != nil {
				t.Fatalf("execute: %v", err)
			}
			before[i] = append([]float64(nil), c.OutputValues...)
		}
		active := c.NumActiveNodes()

		c.RemoveInactiveNodes()
		if c.NumNodes() != active || c.NumActiveNodes() != active {
			t.Fatalf("seed %d: expected %d nodes after removal, got %d (%d active)", seed, active, c.NumNodes(), c.NumActiveNodes())
		}
		if err := c.Validate(); err != nil {
			t.Fatalf("seed %d: validate after removal: %v", seed, err)
		}
		for i, s := range samples {
			c.Reset()
			if err := c.Execute(s); err != nil {
				t.Fatalf("execute: %v", err)
			}
			if diff := cmp.Diff(before[i], c.OutputValues); diff != "" {
				t.Fatalf("seed %d sample %d outputs changed (-before +after):\n%s", seed, i, diff)
			}
		}
	}
}

func TestDepth(t *testing.T) {
	chain := buildChromosome(t, "add,mul,sub", 2, 2, []nodeSpec{
		{"add", []int{0, 1}, nil},
		{"mul", []int{2, 0}, nil},
		{"sub", []int{3, 2}, nil},
	}, []int{4})
	if got := chain.Depth(); got != 3 {
		t.Fatalf("unexpected chain depth: %d", got)
	}

	passthrough := buildChromosome(t, "add", 2, 2, []nodeSpec{{"add", []int{0, 1}, nil}}, []int{0})
	if got := passthrough.Depth(); got != 0 {
		t.Fatalf("unexpected passthrough depth: %d", got)
	}

	recurrent := buildChromosome(t, "add", 1, 2, []nodeSpec{{"add", []int{0, 1}, nil}}, []int{1})
	if got := recurrent.Depth(); got != 1 {
		t.Fatalf("expected recurrent self edge to be ignored, got depth %d", got)
	}
}

func TestWriteTextAndDot(t *testing.T) {
	c := buildChromosome(t, "add,mul", 2, 2, []nodeSpec{
		{"add", []int{0, 1}, []float64{0.5, 1}},
		{"mul", []int{0, 1}, nil},
	}, []int{2})

	var text bytes.Buffer
	if err := c.WriteText(&text, true); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if !strings.Contains(text.String(), "(2):\tadd\t0,+0.5\t1,+1.0\t*\n") {
		t.Fatalf("unexpected text listing:\n%s", text.String())
	}
	if !strings.Contains(text.String(), "outputs: 2 \n") {
		t.Fatalf("missing outputs line:\n%s", text.String())
	}

	var dot bytes.Buffer
	if err := c.WriteDot(&dot, false); err != nil {
		t.Fatalf("write dot: %v", err)
	}
	out := dot.String()
	for _, want := range []string{
		"digraph NeuralNetwork {",
		`node2 [label="(2) add", color=black`,
		`node3 [label="(3) mul", color=lightgrey`,
		`node4 [label="Output 0"`,
		"node2 -> node4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("dot output missing %q:\n%s", want, out)
		}
	}
}
