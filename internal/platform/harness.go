// Package platform runs cross-validation experiments and persists their
// results.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cgpde/internal/cgp"
	"cgpde/internal/config"
	"cgpde/internal/dataset"
	"cgpde/internal/model"
	"cgpde/internal/stats"
	"cgpde/internal/storage"
)

var (
	ErrNotInitialized = errors.New("harness is not initialized")
	ErrRunActive      = errors.New("run already active")
	ErrRunNotActive   = errors.New("run not active")
)

// outMode labels the diagnostics of the GP loop shared by both CGPDE-OUT
// variants.
const outMode = "cgpde-out"

type Options struct {
	Store  storage.Store
	Logger *slog.Logger
}

type ExperimentConfig struct {
	// RunID names the run. A random id is used when empty.
	RunID  string
	Config *config.Config
	Data   *dataset.Dataset
	// DatasetName is recorded with the run; Config.Dataset when empty.
	DatasetName string
	// OnFold is called after each fold completes, from the fold's goroutine.
	OnFold func(rep, fold int, results []model.FoldResult)
}

type ExperimentResult struct {
	Run         model.RunRecord
	Folds       []model.FoldResult
	Diagnostics []model.GenerationDiagnostics
	Summaries   []stats.ModeSummary
	// Best holds, per mode, the fold chromosome with the lowest test
	// fitness.
	Best map[string]*cgp.Chromosome
	// ArtifactsDir is empty when no artifacts directory is configured.
	ArtifactsDir string
}

// Harness owns the result store and the cancel functions of active runs.
type Harness struct {
	store  storage.Store
	logger *slog.Logger

	mu      sync.RWMutex
	started bool
	runs    map[string]context.CancelFunc
}

func NewHarness(opts Options) *Harness {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		store:  opts.Store,
		logger: logger,
		runs:   make(map[string]context.CancelFunc),
	}
}

func (h *Harness) Init(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("store is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	if err := h.store.Init(ctx); err != nil {
		return err
	}
	h.started = true
	return nil
}

func (h *Harness) Started() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

func (h *Harness) Store() storage.Store { return h.store }

// Stop cancels every active run and marks the harness stopped.
func (h *Harness) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.runs {
		cancel()
	}
	h.runs = make(map[string]context.CancelFunc)
	h.started = false
}

// StopRun cancels an active run.
func (h *Harness) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	h.mu.RLock()
	cancel, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	cancel()
	return nil
}

// ActiveRuns lists the ids of running experiments.
func (h *Harness) ActiveRuns() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.runs))
	for id := range h.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Harness) registerRun(runID string, cancel context.CancelFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return ErrNotInitialized
	}
	if _, exists := h.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	h.runs[runID] = cancel
	return nil
}

func (h *Harness) unregisterRun(runID string) {
	h.mu.Lock()
	delete(h.runs, runID)
	h.mu.Unlock()
}

// RunExperiment runs Repetitions cross-validations of every configured mode.
// Each repetition shuffles the dataset with seed rep+50, reduces it to
// SamplePercentage and splits it into dataset.NumFolds folds. Each fold uses
// seed rep*10+fold+5 for its split and for every mode run on it. Folds run
// concurrently, at most Config.Threads at a time.
func (h *Harness) RunExperiment(ctx context.Context, ec ExperimentConfig) (ExperimentResult, error) {
	cfg := ec.Config
	if cfg == nil {
		return ExperimentResult{}, fmt.Errorf("config is required")
	}
	if ec.Data == nil {
		return ExperimentResult{}, fmt.Errorf("dataset is required")
	}
	if err := cfg.Validate(); err != nil {
		return ExperimentResult{}, err
	}
	modes, err := cfg.RunModes()
	if err != nil {
		return ExperimentResult{}, err
	}
	policy, err := cfg.IterationPolicy()
	if err != nil {
		return ExperimentResult{}, err
	}
	params, err := cfg.Parameters(ec.Data.NumInputs, ec.Data.NumOutputs, h.logger)
	if err != nil {
		return ExperimentResult{}, err
	}
	if err := ec.Data.CheckDimensions(params.NumInputs, params.NumOutputs); err != nil {
		return ExperimentResult{}, err
	}
	snapshot, err := cfg.Marshal()
	if err != nil {
		return ExperimentResult{}, err
	}

	runID := ec.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	datasetName := ec.DatasetName
	if datasetName == "" {
		datasetName = cfg.Dataset
	}
	modeNames := make([]string, len(modes))
	generations := 0
	for i, m := range modes {
		modeNames[i] = string(m)
		generations = max(generations, cfg.GenerationsFor(m))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := h.registerRun(runID, cancel); err != nil {
		return ExperimentResult{}, err
	}
	defer h.unregisterRun(runID)

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Name:            cfg.Name,
		Dataset:         datasetName,
		CreatedAt:       time.Now().UTC(),
		Repetitions:     cfg.Repetitions,
		Folds:           dataset.NumFolds,
		Generations:     generations,
		Modes:           modeNames,
		Config:          string(snapshot),
	}
	if err := h.store.SaveRun(runCtx, run); err != nil {
		return ExperimentResult{}, err
	}
	logger := h.logger.With("run_id", runID)
	logger.Info("experiment started",
		"dataset", datasetName,
		"samples", ec.Data.NumSamples(),
		"repetitions", cfg.Repetitions,
		"modes", modeNames,
		"threads", cfg.Threads,
	)

	jobs := make([]foldJob, 0, cfg.Repetitions*dataset.NumFolds)
	for rep := 0; rep < cfg.Repetitions; rep++ {
		folds, err := RepetitionFolds(ec.Data, rep, cfg.SamplePercentage)
		if err != nil {
			return ExperimentResult{}, err
		}
		for fold := range folds {
			jobs = append(jobs, foldJob{rep: rep, fold: fold, folds: folds})
		}
	}

	runner := foldRunner{
		runID:    runID,
		cfg:      cfg,
		params:   params,
		modes:    modes,
		policy:   policy,
		store:    h.store,
		logger:   logger,
		onFold:   ec.OnFold,
		splitDir: cfg.SplitsDir,
	}
	outcomes, err := runFolds(runCtx, jobs, cfg.Threads, runner.run)
	if err != nil {
		logger.Warn("experiment aborted", "error", err)
		return ExperimentResult{}, err
	}

	result := ExperimentResult{Best: make(map[string]*cgp.Chromosome)}
	bestFitness := make(map[string]float64)
	for _, out := range outcomes {
		result.Folds = append(result.Folds, out.results...)
		result.Diagnostics = append(result.Diagnostics, out.diagnostics...)
		for i, r := range out.results {
			if best, ok := bestFitness[r.Mode]; !ok || r.TestFitness < best {
				bestFitness[r.Mode] = r.TestFitness
				result.Best[r.Mode] = out.chosen[i]
			}
		}
	}
	result.Summaries = stats.Summarize(result.Folds)

	if err := h.store.SaveFoldResults(runCtx, runID, result.Folds); err != nil {
		return ExperimentResult{}, err
	}
	if err := h.store.SaveGenerationDiagnostics(runCtx, runID, result.Diagnostics); err != nil {
		return ExperimentResult{}, err
	}
	run.Completed = true
	if err := h.store.SaveRun(runCtx, run); err != nil {
		return ExperimentResult{}, err
	}
	result.Run = run

	if dir := cfg.Artifacts.Dir; dir != "" {
		runDir, err := stats.WriteRunArtifacts(dir, stats.RunArtifacts{
			Run:         run,
			Folds:       result.Folds,
			Diagnostics: result.Diagnostics,
			Best:        result.Best,
		})
		if err != nil {
			return ExperimentResult{}, fmt.Errorf("write artifacts: %w", err)
		}
		if err := stats.AppendRunIndex(dir, stats.RunIndexEntry{
			RunID:        runID,
			Name:         run.Name,
			Dataset:      run.Dataset,
			Repetitions:  run.Repetitions,
			Folds:        run.Folds,
			Generations:  run.Generations,
			Modes:        run.Modes,
			Summaries:    result.Summaries,
			CreatedAtUTC: run.CreatedAt.Format(time.RFC3339Nano),
		}); err != nil {
			return ExperimentResult{}, fmt.Errorf("update run index: %w", err)
		}
		result.ArtifactsDir = runDir
	}

	for _, s := range result.Summaries {
		logger.Info("mode summary",
			"mode", s.Mode,
			"runs", s.Runs,
			"average_fitness", s.AverageFitness,
			"median_fitness", s.MedianFitness,
			"std_fitness", s.StdFitness,
			"average_active_nodes", s.AverageActiveNodes,
		)
	}
	return result, nil
}

type foldJob struct {
	rep   int
	fold  int
	folds []*dataset.Dataset
}

type foldOutcome struct {
	results     []model.FoldResult
	chosen      []*cgp.Chromosome
	diagnostics []model.GenerationDiagnostics
}

// runFolds runs every job on at most workers goroutines. Outcomes keep job
// order. The first error cancels the remaining jobs.
func runFolds(ctx context.Context, jobs []foldJob, workers int, fn func(context.Context, foldJob) (foldOutcome, error)) ([]foldOutcome, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]foldOutcome, len(jobs))
	indexes := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				out, err := fn(ctx, jobs[i])
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				outcomes[i] = out
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
