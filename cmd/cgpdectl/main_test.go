package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cgpde/internal/dataset"
	"cgpde/internal/platform"
	"cgpde/internal/stats"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() {
		stdout = orig
	})
	return &buf
}

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	var inputs, outputs [][]float64
	for i := 0; i < 20; i++ {
		x := float64(i) / 20
		inputs = append(inputs, []float64{x, x + 1}, []float64{x + 1, x})
		outputs = append(outputs, []float64{1, 0}, []float64{0, 1})
	}
	d, err := dataset.New(inputs, outputs)
	if err != nil {
		t.Fatalf("build dataset: %v", err)
	}
	path := filepath.Join(dir, "pairs.txt")
	if err := d.SaveFile(path); err != nil {
		t.Fatalf("save dataset: %v", err)
	}
	return path
}

func TestRunCommandWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifactsDir := filepath.Join(dir, "runs")
	out := captureOutput(t)

	args := []string{
		"run",
		"--dataset", writeDataset(t, dir),
		"--run-id", "cli-run",
		"--repetitions", "1",
		"--threads", "2",
		"--modes", "cgpann",
		"--nodes", "6",
		"--arity", "2",
		"--gens-cgpann", "2",
		"--artifacts-dir", artifactsDir,
		"--log-level", "error",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=cli-run") || !strings.Contains(out.String(), "mode=cgpann runs=10") {
		t.Fatalf("unexpected run output:\n%s", out.String())
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "cli-run" || entries[0].Dataset != "pairs.txt" {
		t.Fatalf("unexpected run index: %+v", entries)
	}

	out.Reset()
	if err := run(context.Background(), []string{"runs", "--artifacts-dir", artifactsDir}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=cli-run") {
		t.Fatalf("runs output missing run:\n%s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"results", "--latest", "--folds", "--artifacts-dir", artifactsDir}); err != nil {
		t.Fatalf("results command: %v", err)
	}
	if got := strings.Count(out.String(), "mode=cgpann repetition=0"); got != dataset.NumFolds {
		t.Fatalf("expected %d fold lines, got %d:\n%s", dataset.NumFolds, got, out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"diagnostics", "--latest", "--limit", "4", "--artifacts-dir", artifactsDir}); err != nil {
		t.Fatalf("diagnostics command: %v", err)
	}
	if got := strings.Count(out.String(), "\n"); got != 4 {
		t.Fatalf("expected 4 diagnostics lines, got %d:\n%s", got, out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"show", "--latest", "--mode", "cgpann", "--artifacts-dir", artifactsDir}); err != nil {
		t.Fatalf("show command: %v", err)
	}
	if !strings.Contains(out.String(), "outputs:") {
		t.Fatalf("show output missing outputs line:\n%s", out.String())
	}

	dotPath := filepath.Join(dir, "best.dot")
	if err := run(context.Background(), []string{"dot", "--run-id", "cli-run", "--mode", "cgpann", "--artifacts-dir", artifactsDir, "--out", dotPath}); err != nil {
		t.Fatalf("dot command: %v", err)
	}
	dot, err := os.ReadFile(dotPath)
	if err != nil {
		t.Fatalf("read dot: %v", err)
	}
	if !strings.HasPrefix(string(dot), "digraph") {
		t.Fatalf("unexpected dot output:\n%s", dot)
	}

	exportDir := filepath.Join(dir, "exports")
	if err := run(context.Background(), []string{"export", "--latest", "--artifacts-dir", artifactsDir, "--out", exportDir}); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "cli-run", "results.csv")); err != nil {
		t.Fatalf("exported results missing: %v", err)
	}
}

func TestShowCommandReadsChromosomeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.chromo")
	fixture := "numInputs,2\nnumNodes,1\nnumOutputs,1\narity,2\nfunctionSet,sig\n0\n0,0.500000\n1,-0.250000\n2,"
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write chromosome: %v", err)
	}

	out := captureOutput(t)
	if err := run(context.Background(), []string{"show", "--file", path}); err != nil {
		t.Fatalf("show command: %v", err)
	}
	if !strings.Contains(out.String(), "sig") {
		t.Fatalf("show output missing node function:\n%s", out.String())
	}
}

func TestSplitCommandWritesFoldFiles(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "splits")
	out := captureOutput(t)
	if err := run(context.Background(), []string{"split", "--dataset", writeDataset(t, dir), "--repetitions", "2", "--out", outDir}); err != nil {
		t.Fatalf("split command: %v", err)
	}
	if !strings.Contains(out.String(), "wrote 20 folds") {
		t.Fatalf("unexpected split output: %s", out.String())
	}
	trn, vld, tst := platform.SplitFiles(outDir, 1, 9)
	for _, path := range []string{trn, vld, tst} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing split file %s: %v", path, err)
		}
	}
	if err := run(context.Background(), []string{"split"}); err == nil {
		t.Fatal("expected error without dataset")
	}
}

func TestImportCommandWritesDataset(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wine.csv")
	table := "alcohol,ash,class\n14.2,2.4,1\n13.1,2.1,2\n12.0,1.9,3\n12.5,2.0,2\n"
	if err := os.WriteFile(src, []byte(table), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	dst := filepath.Join(dir, "wine.txt")
	out := captureOutput(t)
	if err := run(context.Background(), []string{"import", "--csv", src, "--out", dst, "--normalize", "minmax"}); err != nil {
		t.Fatalf("import command: %v", err)
	}
	if !strings.Contains(out.String(), "samples=4 inputs=2 classes=1,2,3") {
		t.Fatalf("unexpected import output: %s", out.String())
	}
	d, err := dataset.LoadFile(dst)
	if err != nil {
		t.Fatalf("load imported dataset: %v", err)
	}
	if d.NumOutputs != 3 || d.Class(3) != 1 {
		t.Fatalf("unexpected imported dataset: outputs=%d class=%d", d.NumOutputs, d.Class(3))
	}
	if err := run(context.Background(), []string{"import", "--csv", src}); err == nil {
		t.Fatal("expected error without --out")
	}
}

func TestFunctionsCommandListsPresets(t *testing.T) {
	out := captureOutput(t)
	if err := run(context.Background(), []string{"functions"}); err != nil {
		t.Fatalf("functions command: %v", err)
	}
	for _, want := range []string{"add\tarity=any", "pow\tarity=2", "not\tarity=1"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("functions output missing %q:\n%s", want, out.String())
		}
	}
}

func TestOverrideFromFlagsAppliesOnlySetFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "experiment.yaml")
	user := "dataset: data.txt\nthreads: 3\nchromosome:\n  num_nodes: 40\n"
	if err := os.WriteFile(path, []byte(user), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	values := registerOverrideFlags(fs)
	if err := fs.Parse([]string{"--nodes", "12", "--modes", "cgpann, cgpde-in", "--shortcut=false", "--cr", "0.3"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	cfg, err := loadConfig(path, set, values)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Threads != 3 || cfg.Dataset != "data.txt" {
		t.Fatalf("config file values lost: threads=%d dataset=%q", cfg.Threads, cfg.Dataset)
	}
	if cfg.Chromosome.NumNodes != 12 || cfg.Chromosome.ShortcutConnections || cfg.Differential.CR != 0.3 {
		t.Fatalf("flag overrides not applied: %+v %+v", cfg.Chromosome, cfg.Differential)
	}
	if cfg.Chromosome.Arity != 20 {
		t.Fatalf("unset flag should keep default arity, got %d", cfg.Chromosome.Arity)
	}
	if diff := cmp.Diff([]string{"cgpann", "cgpde-in"}, cfg.Modes); diff != "" {
		t.Fatalf("unexpected modes (-want +got):\n%s", diff)
	}
}

func TestRunCommandErrors(t *testing.T) {
	captureOutput(t)
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing command")
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := run(context.Background(), []string{"run"}); err == nil {
		t.Fatal("expected error without dataset")
	}
	if err := run(context.Background(), []string{"run", "--dataset", "x.txt", "--log-level", "loud"}); err == nil {
		t.Fatal("expected invalid log level error")
	}
	if err := run(context.Background(), []string{"runs", "--limit", "0"}); err == nil {
		t.Fatal("expected limit error")
	}
}
