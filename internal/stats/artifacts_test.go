package stats

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"cgpde/internal/cgp"
	"cgpde/internal/model"
	"cgpde/internal/nn"
)

func newTestChromosome(t *testing.T) *cgp.Chromosome {
	t.Helper()

	funcs, err := nn.NewFunctionSet("add", "mul", "sig")
	if err != nil {
		t.Fatalf("function set: %v", err)
	}
	c, err := cgp.New(rand.New(rand.NewSource(42)), cgp.Shape{NumInputs: 2, NumNodes: 5, NumOutputs: 1, Arity: 2}, cgp.GeneConfig{WeightRange: 1}, funcs)
	if err != nil {
		t.Fatalf("new chromosome: %v", err)
	}
	return c
}

func testRunArtifacts(t *testing.T) RunArtifacts {
	t.Helper()

	return RunArtifacts{
		Run: model.RunRecord{
			ID:          "run-123",
			Dataset:     "xor.data",
			CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			Repetitions: 1,
			Folds:       2,
			Generations: 5,
			Modes:       []string{"cgpann", "cgpde-in"},
			Config:      "generations: 5\n",
		},
		Folds: []model.FoldResult{
			{RunID: "run-123", Mode: "cgpann", Fold: 0, TestFitness: -0.5, ActiveNodes: 3, Generation: 4},
			{RunID: "run-123", Mode: "cgpde-in", Fold: 0, TestFitness: -0.75, ActiveNodes: 2, Generation: 5},
			{RunID: "run-123", Mode: "cgpann", Fold: 1, TestFitness: -1, ActiveNodes: 4, Generation: 2},
		},
		Diagnostics: []model.GenerationDiagnostics{
			{Mode: "cgpann", Fold: 0, Generation: 1, BestFitness: -0.25, MeanFitness: -0.1},
			{Mode: "cgpde-in", Fold: 0, Generation: 1, BestFitness: -0.5, RefinedChildIndex: 2, RefinedChildBefore: -0.25, RefinedChildAfter: -0.5},
		},
		Best: map[string]*cgp.Chromosome{"cgpann": newTestChromosome(t)},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, testRunArtifacts(t))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{"run.json", "config.yaml", "summary.json", "folds.csv", "generations.csv", "results.csv", "best_cgpann.chromo", "best_cgpann.dot"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "best_cgpde-in.chromo")); !os.IsNotExist(err) {
		t.Fatalf("expected no chromosome for mode without best, got %v", err)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestRunArtifactsReadBack(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := testRunArtifacts(t)
	if _, err := WriteRunArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	run, ok, err := ReadRun(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read run: ok=%t err=%v", ok, err)
	}
	if diff := cmp.Diff(artifacts.Run, run); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}

	folds, ok, err := ReadFoldResults(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read folds: ok=%t err=%v", ok, err)
	}
	if diff := cmp.Diff(artifacts.Folds, folds); diff != "" {
		t.Fatalf("folds mismatch (-want +got):\n%s", diff)
	}

	diagnostics, ok, err := ReadGenerationDiagnostics(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read diagnostics: ok=%t err=%v", ok, err)
	}
	if diff := cmp.Diff(artifacts.Diagnostics, diagnostics); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}

	rows, ok, err := ReadResultRows(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read results: ok=%t err=%v", ok, err)
	}
	wantRows := []ResultRow{
		{Mode: "cgpann", Run: 0, Fitness: -0.5, Generations: 4, ActiveNodes: 3},
		{Mode: "cgpde-in", Run: 0, Fitness: -0.75, Generations: 5, ActiveNodes: 2},
		{Mode: "cgpann", Run: 1, Fitness: -1, Generations: 2, ActiveNodes: 4},
	}
	if diff := cmp.Diff(wantRows, rows); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}

	summaries, ok, err := ReadSummary(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read summary: ok=%t err=%v", ok, err)
	}
	if len(summaries) != 2 || summaries[0].Mode != "cgpann" || summaries[0].Runs != 2 {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
}

func TestResultsCSVHeader(t *testing.T) {
	baseDir := t.TempDir()
	runDir, err := WriteRunArtifacts(baseDir, testRunArtifacts(t))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(runDir, "results.csv"))
	if err != nil {
		t.Fatalf("read results.csv: %v", err)
	}
	header, _, _ := strings.Cut(string(data), "\n")
	if header != "mode,run,fitness,generations,active_nodes" {
		t.Fatalf("unexpected header: %q", header)
	}
}

func TestBestChromosomeArtifactLoads(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := testRunArtifacts(t)
	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	loaded, err := cgp.LoadFile(filepath.Join(runDir, BestChromosomeFile("cgpann")))
	if err != nil {
		t.Fatalf("load best chromosome: %v", err)
	}
	if !cgp.EqualActive(artifacts.Best["cgpann"], loaded) {
		t.Fatal("persisted best chromosome differs from the original")
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRun(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, got ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadFoldResults(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing folds, got ok=%t err=%v", ok, err)
	}
}
