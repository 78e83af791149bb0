// Package cgpde is the public client for running CGPANN and CGP-DE
// cross-validation experiments and reading back their results.
package cgpde

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"cgpde/internal/cgp"
	"cgpde/internal/config"
	"cgpde/internal/dataset"
	"cgpde/internal/model"
	"cgpde/internal/platform"
	"cgpde/internal/stats"
	"cgpde/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "cgpde.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store   storage.Store
	harness *platform.Harness
	logger  *slog.Logger

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	// Config defaults to config.Default(). Its artifacts directory is
	// replaced by the client's.
	Config *config.Config
	// Data is used when set; otherwise DatasetPath, then Config.Dataset, is
	// loaded.
	Data        *dataset.Dataset
	DatasetPath string
	RunID       string
	OnFold      func(rep, fold int, results []model.FoldResult)
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Summaries    []stats.ModeSummary
	Folds        []model.FoldResult
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	Name         string
	CreatedAtUTC string
	Dataset      string
	Repetitions  int
	Generations  int
	Modes        []string
	Summaries    []stats.ModeSummary
}

type ResultsRequest struct {
	RunID  string
	Latest bool
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Mode   string
	Limit  int
}

// ChromosomeRequest names a stored chromosome by ID, or the best
// chromosome of Mode in a run's artifacts.
type ChromosomeRequest struct {
	ID     string
	RunID  string
	Latest bool
	Mode   string
}

type ChromosomeItem struct {
	ID         string
	RunID      string
	Mode       string
	Chromosome *cgp.Chromosome
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.harness != nil {
		c.harness.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureHarness(ctx)
	return err
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := config.Default()
	if req.Config != nil {
		copied := *req.Config
		cfg = &copied
	}
	cfg.Artifacts.Dir = c.artifactsDir

	data := req.Data
	name := cfg.Dataset
	if data == nil {
		path := req.DatasetPath
		if path == "" {
			path = cfg.Dataset
		}
		if path == "" {
			return RunSummary{}, errors.New("dataset is required")
		}
		loaded, err := dataset.LoadFile(path)
		if err != nil {
			return RunSummary{}, err
		}
		data = loaded
		name = filepath.Base(path)
	}

	h, err := c.ensureHarness(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	res, err := h.RunExperiment(ctx, platform.ExperimentConfig{
		RunID:       req.RunID,
		Config:      cfg,
		Data:        data,
		DatasetName: name,
		OnFold:      req.OnFold,
	})
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:        res.Run.ID,
		ArtifactsDir: res.ArtifactsDir,
		Summaries:    res.Summaries,
		Folds:        res.Folds,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			Name:         e.Name,
			CreatedAtUTC: e.CreatedAtUTC,
			Dataset:      e.Dataset,
			Repetitions:  e.Repetitions,
			Generations:  e.Generations,
			Modes:        append([]string(nil), e.Modes...),
			Summaries:    append([]stats.ModeSummary(nil), e.Summaries...),
		})
	}
	return out, nil
}

// Results returns the fold results of a run from its artifacts.
func (c *Client) Results(_ context.Context, req ResultsRequest) ([]model.FoldResult, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "results")
	if err != nil {
		return nil, err
	}
	results, ok, err := stats.ReadFoldResults(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("results not found for run id: %s", runID)
	}
	return results, nil
}

// Diagnostics returns per-generation diagnostics from the store, falling
// back to the run's artifacts.
func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureHarness(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}

	out := make([]model.GenerationDiagnostics, 0, len(diagnostics))
	for _, d := range diagnostics {
		if req.Mode != "" && d.Mode != req.Mode {
			continue
		}
		out = append(out, d)
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) Chromosome(ctx context.Context, req ChromosomeRequest) (ChromosomeItem, error) {
	if req.ID != "" {
		if req.RunID != "" || req.Latest {
			return ChromosomeItem{}, errors.New("use either chromosome id or run")
		}
		if _, err := c.ensureHarness(ctx); err != nil {
			return ChromosomeItem{}, err
		}
		rec, ok, err := c.store.GetChromosome(ctx, req.ID)
		if err != nil {
			return ChromosomeItem{}, err
		}
		if !ok {
			return ChromosomeItem{}, fmt.Errorf("chromosome not found: %s", req.ID)
		}
		chromo, err := cgp.Load(strings.NewReader(rec.Text))
		if err != nil {
			return ChromosomeItem{}, fmt.Errorf("decode chromosome %s: %w", req.ID, err)
		}
		return ChromosomeItem{ID: rec.ID, RunID: rec.RunID, Mode: rec.Mode, Chromosome: chromo}, nil
	}

	if req.Mode == "" {
		return ChromosomeItem{}, errors.New("chromosome requires id or mode")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "chromosome")
	if err != nil {
		return ChromosomeItem{}, err
	}
	chromo, err := cgp.LoadFile(filepath.Join(c.artifactsDir, runID, stats.BestChromosomeFile(req.Mode)))
	if err != nil {
		return ChromosomeItem{}, err
	}
	return ChromosomeItem{RunID: runID, Mode: req.Mode, Chromosome: chromo}, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, op string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", fmt.Errorf("%s requires run id or latest", op)
	}
	entry, ok, err := stats.LatestRun(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("no runs available")
	}
	return entry.RunID, nil
}

func (c *Client) ensureHarness(ctx context.Context) (*platform.Harness, error) {
	if c.harness != nil {
		return c.harness, nil
	}
	h := platform.NewHarness(platform.Options{Store: c.store, Logger: c.logger})
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	c.harness = h
	return c.harness, nil
}
