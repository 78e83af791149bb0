package tuning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"cgpde/internal/cgp"
)

var ErrInvalidDifferential = errors.New("invalid differential evolution setting")

const MinPopulationSize = 4

// Differential refines weights with DE/rand/1/bin. Individual 0 starts from
// the seed's weights and the others from uniform random weights. A trial
// replaces its target in place when its fitness is <= the target's, so
// later targets of the same sweep already see the replacement.
type Differential struct {
	Rand           *rand.Rand
	PopulationSize int
	CR             float64
	F              float64
	WeightRange    float64
	// Workers bounds concurrent evaluation of the initial population.
	// Sweeps are always sequential.
	Workers int
	Logger  *slog.Logger
}

// Individual pairs a chromosome with its flattened weight vector.
type Individual struct {
	Chromosome *cgp.Chromosome
	Weights    []float64
}

func (ind *Individual) sync() error {
	return ind.Chromosome.SetWeights(ind.Weights)
}

func (d *Differential) Name() string { return "differential_evolution" }

func (d *Differential) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Differential) validate(seed *cgp.Chromosome, sweeps int, fitness FitnessFn) error {
	if d == nil || d.Rand == nil {
		return errors.New("random source is required")
	}
	if seed == nil {
		return errors.New("seed chromosome is required")
	}
	if fitness == nil {
		return errors.New("fitness function is required")
	}
	switch {
	case d.PopulationSize < MinPopulationSize:
		return fmt.Errorf("%w: NP must be >= %d, got %d", ErrInvalidDifferential, MinPopulationSize, d.PopulationSize)
	case sweeps < 0:
		return fmt.Errorf("%w: iterations must be >= 0, got %d", ErrInvalidDifferential, sweeps)
	case d.CR < 0 || d.CR > 1:
		return fmt.Errorf("%w: CR must be in [0,1], got %g", ErrInvalidDifferential, d.CR)
	case d.F < 0 || d.F > 2:
		return fmt.Errorf("%w: F must be in [0,2], got %g", ErrInvalidDifferential, d.F)
	}
	return nil
}

func (d *Differential) Tune(ctx context.Context, seed *cgp.Chromosome, sweeps int, fitness FitnessFn) ([]*cgp.Chromosome, error) {
	population, _, err := d.TuneWithReport(ctx, seed, sweeps, fitness)
	return population, err
}

// TuneWithReport runs sweeps DE generations and returns every individual
// of the final population with its training fitness set.
func (d *Differential) TuneWithReport(ctx context.Context, seed *cgp.Chromosome, sweeps int, fitness FitnessFn) ([]*cgp.Chromosome, TuneReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, TuneReport{}, err
	}
	if err := d.validate(seed, sweeps, fitness); err != nil {
		return nil, TuneReport{}, err
	}
	report := TuneReport{PopulationSize: d.PopulationSize, SweepsPlanned: sweeps}

	population, err := d.initialPopulation(ctx, seed, fitness)
	if err != nil {
		return nil, TuneReport{}, err
	}
	report.SeedFitness = population[0].Chromosome.Fitness
	report.CandidateEvaluations = len(population)

	numWeights := seed.NumWeights()
	if numWeights > 0 {
		trial := &Individual{Chromosome: seed.Clone(), Weights: make([]float64, numWeights)}
		weights := make([][]float64, len(population))
		for i, ind := range population {
			weights[i] = ind.Weights
		}
		for t := 0; t < sweeps; t++ {
			if err := ctx.Err(); err != nil {
				return nil, TuneReport{}, err
			}
			for i, target := range population {
				d.buildTrial(weights, i, trial.Weights)
				if err := trial.sync(); err != nil {
					return nil, TuneReport{}, err
				}
				f, err := fitness(ctx, trial.Chromosome)
				if err != nil {
					return nil, TuneReport{}, err
				}
				trial.Chromosome.Fitness = f
				report.CandidateEvaluations++
				if f <= target.Chromosome.Fitness {
					if err := target.Chromosome.CopyFrom(trial.Chromosome); err != nil {
						return nil, TuneReport{}, err
					}
					copy(target.Weights, trial.Weights)
					report.AcceptedCandidates++
				} else {
					report.RejectedCandidates++
				}
			}
			report.SweepsExecuted++
		}
	}

	out := make([]*cgp.Chromosome, len(population))
	report.BestFitness = population[0].Chromosome.Fitness
	for i, ind := range population {
		out[i] = ind.Chromosome
		if ind.Chromosome.Fitness < report.BestFitness {
			report.BestFitness = ind.Chromosome.Fitness
		}
	}
	d.log().Debug("differential evolution complete",
		"np", d.PopulationSize,
		"sweeps", report.SweepsExecuted,
		"accepted", report.AcceptedCandidates,
		"seed_fitness", report.SeedFitness,
		"best_fitness", report.BestFitness,
	)
	return out, report, nil
}

func (d *Differential) initialPopulation(ctx context.Context, seed *cgp.Chromosome, fitness FitnessFn) ([]*Individual, error) {
	population := make([]*Individual, d.PopulationSize)
	for i := range population {
		c := seed.Clone()
		ind := &Individual{Chromosome: c, Weights: c.Weights()}
		if i > 0 {
			for j := range ind.Weights {
				ind.Weights[j] = cgp.RandomWeight(d.Rand, d.WeightRange)
			}
		}
		population[i] = ind
	}
	if err := evaluateIndividuals(ctx, population, fitness, d.Workers); err != nil {
		return nil, err
	}
	return population, nil
}

// buildTrial writes the rand/1/bin trial for target i into trial. Three
// distinct donors r1, r2, r3 different from i are drawn, and coordinate jr
// always takes the mutant value.
func (d *Differential) buildTrial(weights [][]float64, i int, trial []float64) {
	np := len(weights)
	r1 := d.Rand.Intn(np)
	for r1 == i {
		r1 = d.Rand.Intn(np)
	}
	r2 := d.Rand.Intn(np)
	for r2 == i || r2 == r1 {
		r2 = d.Rand.Intn(np)
	}
	r3 := d.Rand.Intn(np)
	for r3 == i || r3 == r1 || r3 == r2 {
		r3 = d.Rand.Intn(np)
	}
	jr := d.Rand.Intn(len(trial))
	for j := range trial {
		if d.Rand.Float64() < d.CR || j == jr {
			trial[j] = weights[r3][j] + d.F*(weights[r1][j]-weights[r2][j])
		} else {
			trial[j] = weights[i][j]
		}
	}
}

func evaluateIndividuals(ctx context.Context, population []*Individual, fitness FitnessFn, workers int) error {
	type result struct {
		idx int
		err error
	}
	jobs := make(chan int)
	results := make(chan result, len(population))

	workerCount := workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(population) {
		workerCount = len(population)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				ind := population[idx]
				if err := ind.sync(); err != nil {
					results <- result{idx: idx, err: err}
					continue
				}
				f, err := fitness(ctx, ind.Chromosome)
				if err == nil {
					ind.Chromosome.Fitness = f
				}
				results <- result{idx: idx, err: err}
			}
		}()
	}
	for i := range population {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return fmt.Errorf("evaluate individual %d: %w", res.idx, res.err)
		}
	}
	return nil
}
