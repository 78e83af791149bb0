package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cgpde/internal/dataextract"
	"cgpde/internal/dataset"
	"cgpde/internal/nn"
	"cgpde/internal/platform"
	"cgpde/internal/stats"
	cgpdeapi "cgpde/pkg/cgpde"
)

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "results":
		return runResults(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "dot":
		return runDot(ctx, args[1:])
	case "split":
		return runSplit(ctx, args[1:])
	case "import":
		return runImport(ctx, args[1:])
	case "functions":
		return runFunctions(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional experiment config YAML path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	values := registerOverrideFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := loadConfig(*configPath, setFlags, values)
	if err != nil {
		return err
	}
	logger, err := newLogger(*logLevel, os.Stderr)
	if err != nil {
		return err
	}

	client, err := cgpdeapi.New(cgpdeapi.Options{
		StoreKind:    cfg.Storage.Kind,
		DBPath:       cfg.Storage.SQLitePath,
		ArtifactsDir: cfg.Artifacts.Dir,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, cgpdeapi.RunRequest{Config: cfg, RunID: *runID})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(struct {
			RunID        string              `json:"run_id"`
			ArtifactsDir string              `json:"artifacts_dir"`
			Summaries    []stats.ModeSummary `json:"summaries"`
		}{summary.RunID, summary.ArtifactsDir, summary.Summaries})
	}
	fmt.Fprintf(stdout, "run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	printSummaries(summary.Summaries)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	artifactsDir := fs.String("artifacts-dir", "runs", "run artifacts directory")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cgpdeapi.New(cgpdeapi.Options{ArtifactsDir: *artifactsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	runs, err := client.Runs(ctx, cgpdeapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s dataset=%s repetitions=%d generations=%d modes=%s\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Dataset,
			r.Repetitions,
			r.Generations,
			strings.Join(r.Modes, ","),
		)
	}
	return nil
}

func runResults(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the newest run")
	artifactsDir := fs.String("artifacts-dir", "runs", "run artifacts directory")
	folds := fs.Bool("folds", false, "print every fold result")
	jsonOut := fs.Bool("json", false, "emit results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cgpdeapi.New(cgpdeapi.Options{ArtifactsDir: *artifactsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	results, err := client.Results(ctx, cgpdeapi.ResultsRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	summaries := stats.Summarize(results)
	if *jsonOut {
		if *folds {
			return writeJSON(results)
		}
		return writeJSON(summaries)
	}
	if *folds {
		for _, r := range results {
			fmt.Fprintf(stdout, "mode=%s repetition=%d fold=%d test_fitness=%.6f active_nodes=%d generation=%d\n",
				r.Mode, r.Repetition, r.Fold, r.TestFitness, r.ActiveNodes, r.Generation)
		}
	}
	printSummaries(summaries)
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the newest run")
	mode := fs.String("mode", "", "only this mode's generations (cgpde-out for both OUT variants)")
	limit := fs.Int("limit", 0, "max generations to print (0 prints all)")
	artifactsDir := fs.String("artifacts-dir", "runs", "run artifacts directory")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cgpdeapi.New(cgpdeapi.Options{ArtifactsDir: *artifactsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	diagnostics, err := client.Diagnostics(ctx, cgpdeapi.DiagnosticsRequest{RunID: *runID, Latest: *latest, Mode: *mode, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "mode=%s repetition=%d fold=%d generation=%d best=%.6f mean=%.6f worst=%.6f validation=%.6f active=%d diversity=%d\n",
			d.Mode, d.Repetition, d.Fold, d.Generation,
			d.BestFitness, d.MeanFitness, d.WorstFitness, d.BestValidation,
			d.BestActiveNodes, d.FingerprintDiversity,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	src := registerChromosomeFlags(fs)
	weights := fs.Bool("weights", true, "print connection weights")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := src.load(ctx)
	if err != nil {
		return err
	}
	return c.WriteText(stdout, *weights)
}

func runDot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dot", flag.ContinueOnError)
	src := registerChromosomeFlags(fs)
	weights := fs.Bool("weights", true, "label edges with connection weights")
	out := fs.String("out", "", "output path (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := src.load(ctx)
	if err != nil {
		return err
	}
	if *out == "" {
		return c.WriteDot(stdout, *weights)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := c.WriteDot(f, *weights); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

func runSplit(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	datasetPath := fs.String("dataset", "", "dataset file")
	repetitions := fs.Int("repetitions", 1, "number of repetitions")
	samplePercentage := fs.Float64("sample-percentage", 1, "stratified fraction of the dataset to keep")
	out := fs.String("out", "splits", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *datasetPath == "" {
		return errors.New("split requires --dataset")
	}
	if *repetitions < 1 {
		return errors.New("repetitions must be >= 1")
	}
	data, err := dataset.LoadFile(*datasetPath)
	if err != nil {
		return err
	}
	if err := platform.Split(data, *repetitions, *samplePercentage, *out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d folds to %s\n", *repetitions*dataset.NumFolds, *out)
	return nil
}

func runImport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	in := fs.String("csv", "", "labelled csv table")
	out := fs.String("out", "", "dataset file to write")
	header := fs.Bool("header", true, "first row is a header")
	label := fs.String("label", "", "label column name")
	labelIndex := fs.Int("label-index", -1, "label column index, defaults to the last column")
	features := fs.String("features", "", "comma separated feature column names")
	classes := fs.String("classes", "", "comma separated class order")
	normalize := fs.String("normalize", "none", "feature normalization: none|minmax|zscore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("import requires --csv and --out")
	}
	opts := dataextract.Options{
		HasHeader:          *header,
		LabelColumnName:    *label,
		LabelColumnIndex:   *labelIndex,
		FeatureColumnNames: splitList(*features),
		Classes:            splitList(*classes),
		Normalize:          *normalize,
	}
	if opts.LabelColumnName == "" && opts.LabelColumnIndex < 0 {
		width, err := csvWidth(*in)
		if err != nil {
			return err
		}
		opts.LabelColumnIndex = width - 1
	}
	res, err := dataextract.ExtractClassificationFile(*in, *out, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s samples=%d inputs=%d classes=%s\n",
		*out, res.Data.NumSamples(), res.Data.NumInputs, strings.Join(res.Classes, ","))
	return nil
}

// csvWidth returns the field count of the first row of path.
func csvWidth(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	record, err := csv.NewReader(f).Read()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return len(record), nil
}

func runFunctions(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("functions", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range nn.ListFunctions() {
		spec, err := nn.LookupFunction(name)
		if err != nil {
			return err
		}
		arity := fmt.Sprint(spec.Arity)
		if spec.Arity < 0 {
			arity = "any"
		}
		fmt.Fprintf(stdout, "%s\tarity=%s\n", name, arity)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "export the newest run")
	artifactsDir := fs.String("artifacts-dir", "runs", "run artifacts directory")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cgpdeapi.New(cgpdeapi.Options{ArtifactsDir: *artifactsDir, ExportsDir: *outDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	exported, err := client.Export(ctx, cgpdeapi.ExportRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func printSummaries(summaries []stats.ModeSummary) {
	for _, s := range summaries {
		fmt.Fprintf(stdout, "mode=%s runs=%d avg_fitness=%.6f median_fitness=%.6f std_fitness=%.6f avg_active=%.2f median_active=%.1f avg_generation=%.1f\n",
			s.Mode, s.Runs,
			s.AverageFitness, s.MedianFitness, s.StdFitness,
			s.AverageActiveNodes, s.MedianActiveNodes, s.AverageGenerations,
		)
	}
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cgpdectl <run|runs|results|diagnostics|show|dot|split|import|functions|export> [flags]", msg)
}
