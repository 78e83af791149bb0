// Package tuning refines the connection weights of a fixed chromosome
// topology.
package tuning

import (
	"context"

	"cgpde/internal/cgp"
)

// FitnessFn scores a chromosome whose weights have already been set. It
// must be safe to call concurrently on distinct chromosomes.
type FitnessFn func(ctx context.Context, c *cgp.Chromosome) (float64, error)

type TuneReport struct {
	PopulationSize       int     `json:"population_size"`
	SweepsPlanned        int     `json:"sweeps_planned"`
	SweepsExecuted       int     `json:"sweeps_executed"`
	CandidateEvaluations int     `json:"candidate_evaluations"`
	AcceptedCandidates   int     `json:"accepted_candidates"`
	RejectedCandidates   int     `json:"rejected_candidates"`
	SeedFitness          float64 `json:"seed_fitness"`
	BestFitness          float64 `json:"best_fitness"`
}

// Tuner returns a population of weight variants of seed. The topology of
// every returned chromosome equals the seed's.
type Tuner interface {
	Name() string
	Tune(ctx context.Context, seed *cgp.Chromosome, sweeps int, fitness FitnessFn) ([]*cgp.Chromosome, error)
}

type ReportingTuner interface {
	Tuner
	TuneWithReport(ctx context.Context, seed *cgp.Chromosome, sweeps int, fitness FitnessFn) ([]*cgp.Chromosome, TuneReport, error)
}
