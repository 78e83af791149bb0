package cgpde

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"cgpde/internal/cgp"
	"cgpde/internal/config"
	"cgpde/internal/dataset"
	"cgpde/internal/model"
	"cgpde/internal/stats"
)

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	var inputs, outputs [][]float64
	for i := 0; i < 20; i++ {
		x := float64(i) / 20
		inputs = append(inputs, []float64{x, 1 - x}, []float64{1 - x, x})
		outputs = append(outputs, []float64{1, 0}, []float64{0, 1})
	}
	d, err := dataset.New(inputs, outputs)
	if err != nil {
		t.Fatalf("build dataset: %v", err)
	}
	path := filepath.Join(dir, "mirror.txt")
	if err := d.SaveFile(path); err != nil {
		t.Fatalf("save dataset: %v", err)
	}
	return path
}

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Repetitions = 1
	cfg.Threads = 4
	cfg.Modes = []string{"cgpann", "cgpde-out-t"}
	cfg.Chromosome.NumNodes = 6
	cfg.Chromosome.Arity = 2
	cfg.Generations = config.GenerationsConfig{CGPANN: 2, CGPDEIn: 1, CGPDEOut: 2}
	cfg.Differential.NPOut = 4
	cfg.Differential.MaxIterOut = 1
	return cfg
}

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func TestClientRunRunsAndExport(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Config: smallConfig(), DatasetPath: writeDataset(t, base)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.ArtifactsDir == "" {
		t.Fatalf("expected run id and artifacts dir: %+v", summary)
	}
	if len(summary.Folds) != 2*dataset.NumFolds || len(summary.Summaries) != 2 {
		t.Fatalf("unexpected summary sizes: folds=%d summaries=%d", len(summary.Folds), len(summary.Summaries))
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Dataset != "mirror.txt" {
		t.Fatalf("unexpected runs list: %+v", runs)
	}
	if diff := cmp.Diff([]string{"cgpann", "cgpde-out-t"}, runs[0].Modes); diff != "" {
		t.Fatalf("unexpected run modes (-want +got):\n%s", diff)
	}

	results, err := client.Results(ctx, ResultsRequest{Latest: true})
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	ignoreVersions := cmpopts.IgnoreFields(model.FoldResult{}, "VersionedRecord")
	if diff := cmp.Diff(summary.Folds, results, ignoreVersions); diff != "" {
		t.Fatalf("results mismatch (-run +artifacts):\n%s", diff)
	}

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID, Mode: "cgpann", Limit: 3})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 3 {
		t.Fatalf("expected 3 limited diagnostics, got %d", len(diagnostics))
	}
	for _, d := range diagnostics {
		if d.Mode != "cgpann" {
			t.Fatalf("mode filter not applied: %+v", d)
		}
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported %s, want %s", exported.RunID, summary.RunID)
	}
	for _, name := range []string{"run.json", "folds.csv", "results.csv", stats.BestChromosomeFile("cgpann")} {
		if _, err := os.Stat(filepath.Join(exported.Directory, name)); err != nil {
			t.Fatalf("exported artifact %s missing: %v", name, err)
		}
	}
}

func TestClientChromosomeByIDAndBest(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Config: smallConfig(), DatasetPath: writeDataset(t, base), RunID: "fixed"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "fixed" {
		t.Fatalf("expected requested run id, got %s", summary.RunID)
	}

	first := summary.Folds[0]
	item, err := client.Chromosome(ctx, ChromosomeRequest{ID: first.ChromosomeID})
	if err != nil {
		t.Fatalf("chromosome by id: %v", err)
	}
	if item.RunID != "fixed" || item.Mode != first.Mode || item.Chromosome.NumActiveNodes() != first.ActiveNodes {
		t.Fatalf("unexpected chromosome item: %+v", item)
	}

	best, err := client.Chromosome(ctx, ChromosomeRequest{Latest: true, Mode: "cgpde-out-t"})
	if err != nil {
		t.Fatalf("best chromosome: %v", err)
	}
	stored, err := cgp.LoadFile(filepath.Join(summary.ArtifactsDir, stats.BestChromosomeFile("cgpde-out-t")))
	if err != nil {
		t.Fatalf("load best file: %v", err)
	}
	if !cgp.EqualANN(stored, best.Chromosome) {
		t.Fatal("best chromosome differs from artifact file")
	}
}

func TestClientRequestValidation(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Run(ctx, RunRequest{Config: smallConfig()}); err == nil {
		t.Fatal("expected error without dataset")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "a", Latest: true}); err == nil {
		t.Fatal("expected error for run id and latest together")
	}
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected error without run id or latest")
	}
	if _, err := client.Results(ctx, ResultsRequest{Latest: true}); err == nil {
		t.Fatal("expected error with no runs")
	}
	if _, err := client.Chromosome(ctx, ChromosomeRequest{RunID: "x"}); err == nil {
		t.Fatal("expected error without id or mode")
	}
	if _, err := client.Chromosome(ctx, ChromosomeRequest{ID: "missing"}); err == nil {
		t.Fatal("expected error for unknown chromosome")
	}
	if _, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: "x", Limit: -1}); err == nil {
		t.Fatal("expected error for negative limit")
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "postgres"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
