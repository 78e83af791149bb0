package evo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"cgpde/internal/cgp"
)

type TopologySummary struct {
	ActiveNodes          int            `json:"active_nodes"`
	ActiveConnections    int            `json:"active_connections"`
	RecurrentConnections int            `json:"recurrent_connections"`
	Depth                int            `json:"depth"`
	FunctionDistribution map[string]int `json:"function_distribution"`
}

type ChromosomeSignature struct {
	Fingerprint string          `json:"fingerprint"`
	Summary     TopologySummary `json:"summary"`
}

// ComputeSignature fingerprints the active phenotype of c. Inactive genes
// and weights do not contribute, so chromosomes that differ only in
// neutral genes share a fingerprint.
func ComputeSignature(c *cgp.Chromosome) ChromosomeSignature {
	summary := TopologySummary{
		ActiveNodes:          c.NumActiveNodes(),
		ActiveConnections:    c.NumActiveConnections(),
		Depth:                c.Depth(),
		FunctionDistribution: make(map[string]int),
	}
	parts := make([]string, 0, len(c.ActiveNodes)+len(c.OutputGenes))
	for _, idx := range c.ActiveNodes {
		node := &c.Nodes[idx]
		name := c.Funcs.Name(node.Function)
		summary.FunctionDistribution[name]++
		inputs := make([]string, node.ActualArity)
		for j := 0; j < node.ActualArity; j++ {
			if c.IsRecurrent(idx, j) {
				summary.RecurrentConnections++
			}
			inputs[j] = fmt.Sprint(node.Inputs[j])
		}
		parts = append(parts, fmt.Sprintf("%d:%s(%s)", idx, name, strings.Join(inputs, ",")))
	}
	for i, gene := range c.OutputGenes {
		parts = append(parts, fmt.Sprintf("o%d=%d", i, gene))
	}
	sort.Strings(parts)

	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return ChromosomeSignature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary:     summary,
	}
}

// FingerprintDiversity counts distinct active phenotypes in population.
func FingerprintDiversity(population []*cgp.Chromosome) int {
	seen := make(map[string]struct{}, len(population))
	for _, c := range population {
		seen[ComputeSignature(c).Fingerprint] = struct{}{}
	}
	return len(seen)
}
