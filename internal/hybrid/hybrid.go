// Package hybrid composes the CGP evolution loop with differential
// evolution of connection weights.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"cgpde/internal/cgp"
	"cgpde/internal/dataset"
	"cgpde/internal/evo"
	"cgpde/internal/tuning"
)

var ErrUnknownMode = errors.New("unknown run mode")

type Mode string

const (
	ModeCGPANN    Mode = "cgpann"
	ModeCGPDEIn   Mode = "cgpde-in"
	ModeCGPDEOutT Mode = "cgpde-out-t"
	ModeCGPDEOutV Mode = "cgpde-out-v"
)

// Modes lists every run mode in reporting order.
func Modes() []Mode {
	return []Mode{ModeCGPANN, ModeCGPDEIn, ModeCGPDEOutT, ModeCGPDEOutV}
}

func ParseMode(name string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMode, name)
}

type Config struct {
	Params      *evo.Parameters
	Training    *dataset.Dataset
	Validation  *dataset.Dataset
	Generations int
	Rand        *rand.Rand
	Seed        int64
	// IterationPolicy sets the per-generation DE budget of CGPDE-IN. Nil
	// means MaxIterIn sweeps every generation.
	IterationPolicy tuning.IterationPolicy
	OnGeneration    func(evo.GenerationDiagnostics)
}

type Result struct {
	// Best is the best-by-validation chromosome of the GP loop.
	Best *cgp.Chromosome
	// Population is the refined DE population of CGPDE-OUT.
	Population []*cgp.Chromosome
	History    evo.RunResult
	Tuning     []tuning.TuneReport
}

func newMonitor(cfg Config) (*evo.PopulationMonitor, error) {
	return evo.NewPopulationMonitor(evo.MonitorConfig{
		Params:       cfg.Params,
		Training:     cfg.Training,
		Validation:   cfg.Validation,
		Generations:  cfg.Generations,
		Rand:         cfg.Rand,
		Seed:         cfg.Seed,
		OnGeneration: cfg.OnGeneration,
	})
}

func differential(m *evo.PopulationMonitor, np int) *tuning.Differential {
	p := m.Params()
	return &tuning.Differential{
		Rand:           m.Rand(),
		PopulationSize: np,
		CR:             p.CR,
		F:              p.F,
		WeightRange:    p.WeightRange,
		Workers:        m.Workers(),
		Logger:         m.Logger(),
	}
}

// trainingFitness scores candidates on the training set with the run's
// fitness function.
func trainingFitness(p *evo.Parameters, data *dataset.Dataset) tuning.FitnessFn {
	return func(_ context.Context, c *cgp.Chromosome) (float64, error) {
		if err := p.SetFitness(c, data); err != nil {
			return 0, err
		}
		return c.Fitness, nil
	}
}

// RunCGPANN runs the GP loop with weight mutation and no DE stage.
func RunCGPANN(ctx context.Context, cfg Config) (Result, error) {
	m, err := newMonitor(cfg)
	if err != nil {
		return Result{}, err
	}
	history, err := m.Run(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Best: history.Best, History: history}, nil
}

// RunCGPDEIn refines the best child of every generation with a small DE
// pass. GP mutation leaves weights alone in this mode.
func RunCGPDEIn(ctx context.Context, cfg Config) (Result, error) {
	m, err := newMonitor(cfg)
	if err != nil {
		return Result{}, err
	}
	if err := m.Initialize(ctx, false); err != nil {
		return Result{}, err
	}
	p := m.Params()
	policy := cfg.IterationPolicy
	if policy == nil {
		policy = tuning.FixedIterationPolicy{}
	}
	de := differential(m, p.NPIn)
	fitness := trainingFitness(p, m.Training())
	reports := make([]tuning.TuneReport, 0, cfg.Generations)

	for gen := 0; gen < cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := m.EvaluateChildren(ctx, false); err != nil {
			return Result{}, err
		}
		idx := m.BestChild()
		child := m.Children()[idx]
		before := child.Fitness

		sweeps := policy.Iterations(p.MaxIterIn, gen, cfg.Generations, child)
		population, report, err := de.TuneWithReport(ctx, child, sweeps, fitness)
		if err != nil {
			return Result{}, fmt.Errorf("generation %d: refine child %d: %w", gen+1, idx, err)
		}
		reports = append(reports, report)
		refined, err := BestDE(p, population, m.Validation(), false)
		if err != nil {
			return Result{}, err
		}
		if err := child.CopyFrom(refined); err != nil {
			return Result{}, err
		}
		if err := p.SetValidationFitness(child, m.Validation()); err != nil {
			return Result{}, err
		}
		if err := m.OfferBest(child, gen+1); err != nil {
			return Result{}, err
		}

		diag := m.Summarize(gen + 1)
		diag.RefinedChildIndex = idx
		diag.RefinedChildBefore = before
		diag.RefinedChildAfter = child.Fitness
		if err := m.Advance(false); err != nil {
			return Result{}, err
		}
		m.Record(diag)
	}

	best := m.Best()
	m.Logger().Info("cgpde-in complete",
		"generations", cfg.Generations,
		"best_validation", best.FitnessValidation,
		"best_active_nodes", best.NumActiveNodes(),
	)
	history := m.Result()
	return Result{Best: best, History: history, Tuning: reports}, nil
}

// RunCGPDEOut runs the full GP loop with weight mutation, then one large
// DE pass on the best-by-validation chromosome. The whole refined
// population is returned; use BestDE to pick the OUT-T or OUT-V result.
func RunCGPDEOut(ctx context.Context, cfg Config) (Result, error) {
	m, err := newMonitor(cfg)
	if err != nil {
		return Result{}, err
	}
	if err := m.Initialize(ctx, true); err != nil {
		return Result{}, err
	}
	if err := m.Loop(ctx, true); err != nil {
		return Result{}, err
	}
	p := m.Params()
	best := m.Best()
	population, report, err := differential(m, p.NPOut).TuneWithReport(ctx, best, p.MaxIterOut, trainingFitness(p, m.Training()))
	if err != nil {
		return Result{}, fmt.Errorf("refine best chromosome: %w", err)
	}
	m.Logger().Info("cgpde-out complete",
		"generations", cfg.Generations,
		"best_validation", best.FitnessValidation,
		"de_seed_fitness", report.SeedFitness,
		"de_best_fitness", report.BestFitness,
	)
	return Result{
		Best:       best,
		Population: population,
		History:    m.Result(),
		Tuning:     []tuning.TuneReport{report},
	}, nil
}

// BestDE returns a copy of the DE individual with the lowest training
// fitness, or, when byValidation is set, the lowest validation fitness
// after scoring every individual on validation. The first individual
// wins ties.
func BestDE(p *evo.Parameters, population []*cgp.Chromosome, validation *dataset.Dataset, byValidation bool) (*cgp.Chromosome, error) {
	if len(population) == 0 {
		return nil, errors.New("empty DE population")
	}
	score := func(c *cgp.Chromosome) float64 { return c.Fitness }
	if byValidation {
		if validation == nil {
			return nil, errors.New("validation data is required")
		}
		for i, c := range population {
			if err := p.SetValidationFitness(c, validation); err != nil {
				return nil, fmt.Errorf("score individual %d: %w", i, err)
			}
		}
		score = func(c *cgp.Chromosome) float64 { return c.FitnessValidation }
	}
	best := population[0]
	for _, c := range population[1:] {
		if score(c) < score(best) {
			best = c
		}
	}
	return best.Clone(), nil
}

// Run executes one mode and returns the chromosome it selects.
func Run(ctx context.Context, mode Mode, cfg Config) (*cgp.Chromosome, Result, error) {
	switch mode {
	case ModeCGPANN:
		res, err := RunCGPANN(ctx, cfg)
		return res.Best, res, err
	case ModeCGPDEIn:
		res, err := RunCGPDEIn(ctx, cfg)
		return res.Best, res, err
	case ModeCGPDEOutT, ModeCGPDEOutV:
		res, err := RunCGPDEOut(ctx, cfg)
		if err != nil {
			return nil, Result{}, err
		}
		chosen, err := BestDE(cfg.Params, res.Population, cfg.Validation, mode == ModeCGPDEOutV)
		return chosen, res, err
	default:
		return nil, Result{}, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}
