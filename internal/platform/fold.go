package platform

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"cgpde/internal/cgp"
	"cgpde/internal/config"
	"cgpde/internal/evo"
	"cgpde/internal/hybrid"
	"cgpde/internal/model"
	"cgpde/internal/storage"
	"cgpde/internal/tuning"
)

type foldRunner struct {
	runID    string
	cfg      *config.Config
	params   *evo.Parameters
	modes    []hybrid.Mode
	policy   tuning.IterationPolicy
	store    storage.Store
	logger   *slog.Logger
	onFold   func(rep, fold int, results []model.FoldResult)
	splitDir string
}

// run evaluates every mode on one fold. All modes draw from one random
// source in mode order, and both CGPDE-OUT variants share one GP run.
func (r foldRunner) run(ctx context.Context, job foldJob) (foldOutcome, error) {
	seed := FoldSeed(job.rep, job.fold)
	rng := rand.New(rand.NewSource(seed))
	sets, err := SplitFold(rng, job.folds, job.fold)
	if err != nil {
		return foldOutcome{}, fmt.Errorf("repetition %d fold %d: %w", job.rep, job.fold, err)
	}
	if r.splitDir != "" {
		if err := WriteSplits(r.splitDir, job.rep, job.fold, sets); err != nil {
			return foldOutcome{}, err
		}
	}

	logger := r.logger.With("repetition", job.rep, "fold", job.fold)
	params := r.params.Clone()
	params.Logger = logger

	var (
		out       foldOutcome
		outResult *hybrid.Result
	)
	for _, mode := range r.modes {
		if err := ctx.Err(); err != nil {
			return foldOutcome{}, err
		}
		hcfg := hybrid.Config{
			Params:          params,
			Training:        sets.Training,
			Validation:      sets.Validation,
			Generations:     r.cfg.GenerationsFor(mode),
			Rand:            rng,
			Seed:            seed,
			IterationPolicy: r.policy,
		}

		var chosen *cgp.Chromosome
		switch mode {
		case hybrid.ModeCGPDEOutT, hybrid.ModeCGPDEOutV:
			if outResult == nil {
				res, err := hybrid.RunCGPDEOut(ctx, hcfg)
				if err != nil {
					return foldOutcome{}, fmt.Errorf("%s repetition %d fold %d: %w", mode, job.rep, job.fold, err)
				}
				outResult = &res
				out.diagnostics = append(out.diagnostics, toModelDiagnostics(outMode, job.rep, job.fold, res.History.GenerationDiagnostics)...)
			}
			chosen, err = hybrid.BestDE(params, outResult.Population, sets.Validation, mode == hybrid.ModeCGPDEOutV)
		default:
			var res hybrid.Result
			chosen, res, err = hybrid.Run(ctx, mode, hcfg)
			if err == nil {
				out.diagnostics = append(out.diagnostics, toModelDiagnostics(string(mode), job.rep, job.fold, res.History.GenerationDiagnostics)...)
			}
		}
		if err != nil {
			return foldOutcome{}, fmt.Errorf("%s repetition %d fold %d: %w", mode, job.rep, job.fold, err)
		}

		result, record, err := r.score(ctx, params, mode, job, seed, chosen, sets)
		if err != nil {
			return foldOutcome{}, err
		}
		out.results = append(out.results, result)
		out.chosen = append(out.chosen, chosen)
		logger.Info("mode complete",
			"mode", mode,
			"test_fitness", result.TestFitness,
			"active_nodes", result.ActiveNodes,
			"generation", result.Generation,
			"chromosome_id", record.ID,
		)
	}

	if r.onFold != nil {
		r.onFold(job.rep, job.fold, append([]model.FoldResult(nil), out.results...))
	}
	return out, nil
}

// score fills the validation slot of chosen, measures it on the test set
// and stores it. chosen.Fitness holds the test fitness afterwards.
func (r foldRunner) score(ctx context.Context, params *evo.Parameters, mode hybrid.Mode, job foldJob, seed int64, chosen *cgp.Chromosome, sets FoldSets) (model.FoldResult, model.ChromosomeRecord, error) {
	training := chosen.Fitness
	if err := params.SetValidationFitness(chosen, sets.Validation); err != nil {
		return model.FoldResult{}, model.ChromosomeRecord{}, err
	}
	if err := params.SetFitness(chosen, sets.Test); err != nil {
		return model.FoldResult{}, model.ChromosomeRecord{}, err
	}

	var text bytes.Buffer
	if err := chosen.Save(&text); err != nil {
		return model.FoldResult{}, model.ChromosomeRecord{}, fmt.Errorf("encode chromosome: %w", err)
	}
	record := model.ChromosomeRecord{
		VersionedRecord:   storage.CurrentVersion(),
		ID:                uuid.NewString(),
		RunID:             r.runID,
		Mode:              string(mode),
		Repetition:        job.rep,
		Fold:              job.fold,
		Fitness:           chosen.Fitness,
		FitnessValidation: chosen.FitnessValidation,
		ActiveNodes:       chosen.NumActiveNodes(),
		Generation:        chosen.Generation,
		Text:              text.String(),
	}
	if err := r.store.SaveChromosome(ctx, record); err != nil {
		return model.FoldResult{}, model.ChromosomeRecord{}, err
	}

	result := model.FoldResult{
		VersionedRecord:   storage.CurrentVersion(),
		RunID:             r.runID,
		Mode:              string(mode),
		Repetition:        job.rep,
		Fold:              job.fold,
		Seed:              seed,
		TestFitness:       chosen.Fitness,
		TrainingFitness:   training,
		ValidationFitness: chosen.FitnessValidation,
		ActiveNodes:       chosen.NumActiveNodes(),
		Generation:        chosen.Generation,
		ChromosomeID:      record.ID,
	}
	return result, record, nil
}

func toModelDiagnostics(mode string, rep, fold int, diags []evo.GenerationDiagnostics) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(diags))
	for _, d := range diags {
		out = append(out, model.GenerationDiagnostics{
			Mode:                 mode,
			Repetition:           rep,
			Fold:                 fold,
			Generation:           d.Generation,
			BestFitness:          d.BestFitness,
			MeanFitness:          d.MeanFitness,
			WorstFitness:         d.WorstFitness,
			BestValidation:       d.BestValidation,
			BestActiveNodes:      d.BestActiveNodes,
			MeanActiveNodes:      d.MeanActiveNodes,
			FingerprintDiversity: d.FingerprintDiversity,
			RefinedChildIndex:    d.RefinedChildIndex,
			RefinedChildBefore:   d.RefinedChildBefore,
			RefinedChildAfter:    d.RefinedChildAfter,
		})
	}
	return out
}
