package evo

import (
	"fmt"
	"sort"

	"cgpde/internal/cgp"
)

// Selector fills parents from the candidate pool. Candidates are ordered
// children first, then parents under the '+' strategy.
type Selector interface {
	Name() string
	Select(p *Parameters, parents, candidates []*cgp.Chromosome) error
}

// FittestSelector copies the μ candidates with the lowest training fitness
// into the parent slots. The sort is stable, so on ties children win over
// parents and earlier candidates over later ones.
type FittestSelector struct{}

func (FittestSelector) Name() string { return "selectFittest" }

func (FittestSelector) Select(p *Parameters, parents, candidates []*cgp.Chromosome) error {
	if len(candidates) < len(parents) {
		return fmt.Errorf("%w: %d candidates cannot fill %d parents", ErrInvalidParameter, len(candidates), len(parents))
	}
	ranked := append([]*cgp.Chromosome(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness < ranked[j].Fitness
	})
	for i := range parents {
		if err := parents[i].CopyFrom(ranked[i]); err != nil {
			return fmt.Errorf("select parent %d: %w", i, err)
		}
	}
	return nil
}
