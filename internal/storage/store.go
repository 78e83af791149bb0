package storage

import (
	"context"

	"cgpde/internal/model"
)

// Store defines transaction-like persistence operations for experiment runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run ordered by creation time, oldest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveFoldResults(ctx context.Context, runID string, results []model.FoldResult) error
	GetFoldResults(ctx context.Context, runID string) ([]model.FoldResult, bool, error)
	SaveChromosome(ctx context.Context, record model.ChromosomeRecord) error
	GetChromosome(ctx context.Context, id string) (model.ChromosomeRecord, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}
