package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat"

	"cgpde/internal/cgp"
	"cgpde/internal/dataset"
)

type RunResult struct {
	Best                  *cgp.Chromosome
	BestByGeneration      []float64
	GenerationDiagnostics []GenerationDiagnostics
}

type GenerationDiagnostics struct {
	Generation           int     `json:"generation" csv:"generation"`
	BestFitness          float64 `json:"best_fitness" csv:"best_fitness"`
	MeanFitness          float64 `json:"mean_fitness" csv:"mean_fitness"`
	WorstFitness         float64 `json:"worst_fitness" csv:"worst_fitness"`
	BestValidation       float64 `json:"best_validation" csv:"best_validation"`
	BestActiveNodes      int     `json:"best_active_nodes" csv:"best_active_nodes"`
	MeanActiveNodes      float64 `json:"mean_active_nodes" csv:"mean_active_nodes"`
	FingerprintDiversity int     `json:"fingerprint_diversity" csv:"fingerprint_diversity"`
	RefinedChildIndex    int     `json:"refined_child_index" csv:"refined_child_index"`
	RefinedChildBefore   float64 `json:"refined_child_before,omitempty" csv:"refined_child_before"`
	RefinedChildAfter    float64 `json:"refined_child_after,omitempty" csv:"refined_child_after"`
}

type MonitorConfig struct {
	Params      *Parameters
	Training    *dataset.Dataset
	Validation  *dataset.Dataset
	Generations int
	// Workers overrides Params.Threads when positive.
	Workers int
	// Rand is the run's random source. When nil one is seeded from Seed.
	Rand *rand.Rand
	Seed int64
	// OnGeneration is called after every completed generation.
	OnGeneration func(GenerationDiagnostics)
}

// PopulationMonitor owns the parent, child and candidate populations of a
// (μ+λ) or (μ,λ) run and the running best chromosome. Run drives the plain
// CGPANN loop; the step methods let hybrid strategies build their own loop
// over the same populations.
type PopulationMonitor struct {
	cfg        MonitorConfig
	params     *Parameters
	rng        *rand.Rand
	logger     *slog.Logger
	workers    int
	parents    []*cgp.Chromosome
	children   []*cgp.Chromosome
	candidates []*cgp.Chromosome
	best       *cgp.Chromosome

	bestHistory []float64
	diagnostics []GenerationDiagnostics
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Params == nil {
		return nil, fmt.Errorf("parameters are required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("%w: generations must be >= 0, got %d", ErrInvalidParameter, cfg.Generations)
	}
	if cfg.Training == nil {
		return nil, fmt.Errorf("training data is required")
	}
	if cfg.Validation == nil {
		return nil, fmt.Errorf("validation data is required")
	}
	p := cfg.Params
	if err := cfg.Training.CheckDimensions(p.NumInputs, p.NumOutputs); err != nil {
		return nil, fmt.Errorf("training data: %w", err)
	}
	if err := cfg.Validation.CheckDimensions(p.NumInputs, p.NumOutputs); err != nil {
		return nil, fmt.Errorf("validation data: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = p.Threads
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return &PopulationMonitor{
		cfg:     cfg,
		params:  p,
		rng:     rng,
		logger:  p.log(),
		workers: workers,
	}, nil
}

func (m *PopulationMonitor) Params() *Parameters { return m.params }
func (m *PopulationMonitor) Rand() *rand.Rand { return m.rng }
func (m *PopulationMonitor) Generations() int { return m.cfg.Generations }
func (m *PopulationMonitor) Training() *dataset.Dataset { return m.cfg.Training }
func (m *PopulationMonitor) Validation() *dataset.Dataset { return m.cfg.Validation }
func (m *PopulationMonitor) Parents() []*cgp.Chromosome { return m.parents }
func (m *PopulationMonitor) Children() []*cgp.Chromosome { return m.children }
func (m *PopulationMonitor) Best() *cgp.Chromosome { return m.best }
func (m *PopulationMonitor) Workers() int { return m.workers }
func (m *PopulationMonitor) Logger() *slog.Logger { return m.logger }

// Initialize creates μ parents, λ children and the candidate pool, scores
// the parents on training data and, when validateParents is set, on
// validation data. The running best starts as a copy of parent 0 scored on
// validation data.
func (m *PopulationMonitor) Initialize(ctx context.Context, validateParents bool) error {
	p := m.params
	newPopulation := func(n int) ([]*cgp.Chromosome, error) {
		out := make([]*cgp.Chromosome, n)
		for i := range out {
			c, err := cgp.New(m.rng, p.Shape(), p.Genes(), p.Funcs)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	var err error
	if m.parents, err = newPopulation(p.Mu); err != nil {
		return fmt.Errorf("initialise parents: %w", err)
	}
	if m.children, err = newPopulation(p.Lambda); err != nil {
		return fmt.Errorf("initialise children: %w", err)
	}
	numCandidates := p.Lambda
	if p.Strategy == PlusStrategy {
		numCandidates += p.Mu
	}
	if m.candidates, err = newPopulation(numCandidates); err != nil {
		return fmt.Errorf("initialise candidates: %w", err)
	}

	if err := m.Evaluate(ctx, m.parents, m.cfg.Training, false); err != nil {
		return err
	}
	if validateParents {
		if err := m.Evaluate(ctx, m.parents, m.cfg.Validation, true); err != nil {
			return err
		}
	}
	m.best = m.parents[0].Clone()
	if err := p.SetValidationFitness(m.best, m.cfg.Validation); err != nil {
		return err
	}
	m.bestHistory = make([]float64, 0, m.cfg.Generations)
	m.diagnostics = make([]GenerationDiagnostics, 0, m.cfg.Generations)
	return nil
}

// Evaluate scores every chromosome in population on data, on up to the
// configured number of workers. The validation flag selects which fitness
// slot is written.
func (m *PopulationMonitor) Evaluate(ctx context.Context, population []*cgp.Chromosome, data *dataset.Dataset, validation bool) error {
	return EvaluatePopulation(ctx, m.params, population, data, validation, m.workers)
}

// EvaluatePopulation scores chromosomes concurrently. Each chromosome is
// touched by one worker only.
func EvaluatePopulation(ctx context.Context, p *Parameters, population []*cgp.Chromosome, data *dataset.Dataset, validation bool, workers int) error {
	if len(population) == 0 {
		return nil
	}
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
				var err error
				if validation {
					err = p.SetValidationFitness(population[idx], data)
				} else {
					err = p.SetFitness(population[idx], data)
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
			return fmt.Errorf("evaluate chromosome %d: %w", res.idx, res.err)
		}
	}
	return nil
}

// EvaluateChildren scores the children on training data and, when
// validate is set, on validation data.
func (m *PopulationMonitor) EvaluateChildren(ctx context.Context, validate bool) error {
	if err := m.Evaluate(ctx, m.children, m.cfg.Training, false); err != nil {
		return err
	}
	if validate {
		return m.Evaluate(ctx, m.children, m.cfg.Validation, true)
	}
	return nil
}

// UpdateBest scans parents then children and copies the last chromosome
// whose validation fitness is <= the running best into the best slot.
// Later chromosomes win ties, so children replace parents of equal fitness.
func (m *PopulationMonitor) UpdateBest(generation int) error {
	var found *cgp.Chromosome
	bound := m.best.FitnessValidation
	for _, group := range [][]*cgp.Chromosome{m.parents, m.children} {
		for _, c := range group {
			if c.FitnessValidation <= bound {
				found = c
				bound = c.FitnessValidation
			}
		}
	}
	if found == nil {
		return nil
	}
	return m.OfferBest(found, generation)
}

// OfferBest copies c into the best slot when its validation fitness is no
// worse than the running best.
func (m *PopulationMonitor) OfferBest(c *cgp.Chromosome, generation int) error {
	if c.FitnessValidation > m.best.FitnessValidation {
		return nil
	}
	if err := m.best.CopyFrom(c); err != nil {
		return err
	}
	m.best.Generation = generation
	return nil
}

// BestChild returns the index of the child with the lowest training
// fitness. The first child wins ties.
func (m *PopulationMonitor) BestChild() int {
	bestIdx := -1
	bestFitness := math.MaxFloat64
	for i, c := range m.children {
		if c.Fitness < bestFitness {
			bestFitness = c.Fitness
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return 0
	}
	return bestIdx
}

// Advance fills the candidate pool (children first, then parents under the
// '+' strategy), selects the next parents and breeds the next children.
func (m *PopulationMonitor) Advance(weights bool) error {
	p := m.params
	for i, c := range m.children {
		if err := m.candidates[i].CopyFrom(c); err != nil {
			return err
		}
	}
	if p.Strategy == PlusStrategy {
		for i, c := range m.parents {
			if err := m.candidates[len(m.children)+i].CopyFrom(c); err != nil {
				return err
			}
		}
	}
	if err := p.Selection.Select(p, m.parents, m.candidates); err != nil {
		return fmt.Errorf("%s: %w", p.SelectionName, err)
	}
	if err := p.Reproduction.Reproduce(m.rng, p, m.parents, m.children, weights); err != nil {
		return fmt.Errorf("%s: %w", p.ReproductionName, err)
	}
	return nil
}

// Record stores the diagnostics of a finished generation.
func (m *PopulationMonitor) Record(diag GenerationDiagnostics) {
	m.bestHistory = append(m.bestHistory, diag.BestValidation)
	m.diagnostics = append(m.diagnostics, diag)
	m.logger.Debug("generation complete",
		"generation", diag.Generation,
		"best_fitness", diag.BestFitness,
		"mean_fitness", diag.MeanFitness,
		"best_validation", diag.BestValidation,
		"best_active_nodes", diag.BestActiveNodes,
	)
	if m.cfg.OnGeneration != nil {
		m.cfg.OnGeneration(diag)
	}
}

// Summarize computes diagnostics over the current parents and children.
func (m *PopulationMonitor) Summarize(generation int) GenerationDiagnostics {
	population := make([]*cgp.Chromosome, 0, len(m.parents)+len(m.children))
	population = append(population, m.parents...)
	population = append(population, m.children...)
	diag := summarizeGeneration(population, generation)
	diag.BestValidation = m.best.FitnessValidation
	diag.BestActiveNodes = m.best.NumActiveNodes()
	diag.RefinedChildIndex = -1
	return diag
}

func summarizeGeneration(population []*cgp.Chromosome, generation int) GenerationDiagnostics {
	if len(population) == 0 {
		return GenerationDiagnostics{Generation: generation}
	}
	fitness := make([]float64, len(population))
	active := make([]float64, len(population))
	best, worst := population[0].Fitness, population[0].Fitness
	for i, c := range population {
		fitness[i] = c.Fitness
		active[i] = float64(c.NumActiveNodes())
		best = math.Min(best, c.Fitness)
		worst = math.Max(worst, c.Fitness)
	}
	return GenerationDiagnostics{
		Generation:           generation,
		BestFitness:          best,
		MeanFitness:          stat.Mean(fitness, nil),
		WorstFitness:         worst,
		MeanActiveNodes:      stat.Mean(active, nil),
		FingerprintDiversity: FingerprintDiversity(population),
	}
}

// Result returns the run's best chromosome and history.
func (m *PopulationMonitor) Result() RunResult {
	return RunResult{
		Best:                  m.best,
		BestByGeneration:      m.bestHistory,
		GenerationDiagnostics: m.diagnostics,
	}
}

// Run executes the CGPANN loop: children are scored on training and
// validation data, the best-by-validation is tracked, and the next
// generation is bred with weight mutation enabled.
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	if err := m.Initialize(ctx, true); err != nil {
		return RunResult{}, err
	}
	if err := m.Loop(ctx, true); err != nil {
		return RunResult{}, err
	}
	m.logger.Info("evolution complete",
		"generations", m.cfg.Generations,
		"best_validation", m.best.FitnessValidation,
		"best_active_nodes", m.best.NumActiveNodes(),
	)
	return m.Result(), nil
}

// Loop runs the configured number of GP generations on initialised
// populations.
func (m *PopulationMonitor) Loop(ctx context.Context, weights bool) error {
	if m.best == nil {
		return errors.New("population is not initialised")
	}
	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.EvaluateChildren(ctx, true); err != nil {
			return err
		}
		if err := m.UpdateBest(gen + 1); err != nil {
			return err
		}
		diag := m.Summarize(gen + 1)
		if err := m.Advance(weights); err != nil {
			return err
		}
		m.Record(diag)
	}
	return nil
}
