package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"cgpde/internal/cgp"
)

// Reproducer overwrites every child with offspring of the parents.
type Reproducer interface {
	Name() string
	Reproduce(rng *rand.Rand, p *Parameters, parents, children []*cgp.Chromosome, weights bool) error
}

// RandomParentReproducer copies a uniformly chosen parent into each child
// and mutates the copy with the configured mutation. Each child gets a fresh
// stochastic node seed drawn from rng.
type RandomParentReproducer struct{}

func (RandomParentReproducer) Name() string { return "mutateRandomParent" }

func (RandomParentReproducer) Reproduce(rng *rand.Rand, p *Parameters, parents, children []*cgp.Chromosome, weights bool) error {
	if rng == nil {
		return errors.New("random source is required")
	}
	if len(parents) == 0 {
		return errors.New("at least one parent is required")
	}
	for i, child := range children {
		if err := child.CopyFrom(parents[rng.Intn(len(parents))]); err != nil {
			return fmt.Errorf("reproduce child %d: %w", i, err)
		}
		if err := p.Mutation.Mutate(rng, p, child, weights); err != nil {
			return fmt.Errorf("mutate child %d: %w", i, err)
		}
		child.Reseed(rng.Int63())
	}
	return nil
}
