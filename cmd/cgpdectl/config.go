package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"cgpde/internal/cgp"
	"cgpde/internal/config"
	"cgpde/internal/storage"
	cgpdeapi "cgpde/pkg/cgpde"
)

// registerOverrideFlags declares one flag per overridable config field.
// Only flags set on the command line replace config values.
func registerOverrideFlags(fs *flag.FlagSet) map[string]any {
	return map[string]any{
		"name":              fs.String("name", "", "experiment name"),
		"dataset":           fs.String("dataset", "", "dataset file"),
		"repetitions":       fs.Int("repetitions", 0, "number of cross-validation repetitions"),
		"sample-percentage": fs.Float64("sample-percentage", 0, "stratified fraction of the dataset to keep"),
		"threads":           fs.Int("threads", 0, "folds processed concurrently"),
		"modes":             fs.String("modes", "", "comma separated modes: cgpann,cgpde-in,cgpde-out-t,cgpde-out-v"),
		"splits-dir":        fs.String("splits-dir", "", "write every fold's training, validation and test set here"),
		"nodes":             fs.Int("nodes", 0, "nodes per chromosome"),
		"arity":             fs.Int("arity", 0, "node arity"),
		"functions":         fs.String("functions", "", "comma separated node functions"),
		"weight-range":      fs.Float64("weight-range", 0, "connection weights are drawn from [-r, r]"),
		"recurrent":         fs.Float64("recurrent", 0, "recurrent connection probability"),
		"shortcut":          fs.Bool("shortcut", true, "allow outputs to connect to inputs"),
		"mu":                fs.Int("mu", 0, "parents per generation"),
		"lambda":            fs.Int("lambda", 0, "children per generation"),
		"strategy":          fs.String("strategy", "", "evolutionary strategy: + or ,"),
		"mutation-type":     fs.String("mutation-type", "", "mutation operator"),
		"mutation-rate":     fs.Float64("mutation-rate", 0, "mutation rate"),
		"fitness":           fs.String("fitness", "", "fitness function"),
		"eval-threads":      fs.Int("eval-threads", 0, "concurrent fitness evaluations inside one run"),
		"gens-cgpann":       fs.Int("gens-cgpann", 0, "CGPANN generations"),
		"gens-in":           fs.Int("gens-in", 0, "CGPDE-IN generations"),
		"gens-out":          fs.Int("gens-out", 0, "CGPDE-OUT generations"),
		"cr":                fs.Float64("cr", 0, "DE crossover rate"),
		"f":                 fs.Float64("f", 0, "DE differential weight"),
		"np-in":             fs.Int("np-in", 0, "DE population size for CGPDE-IN"),
		"max-iter-in":       fs.Int("max-iter-in", 0, "DE sweeps per refinement in CGPDE-IN"),
		"np-out":            fs.Int("np-out", 0, "DE population size for CGPDE-OUT"),
		"max-iter-out":      fs.Int("max-iter-out", 0, "DE sweeps in CGPDE-OUT"),
		"iteration-policy":  fs.String("iteration-policy", "", "CGPDE-IN DE budget policy"),
		"store":             fs.String("store", "", "store backend: memory|sqlite"),
		"db-path":           fs.String("db-path", "", "sqlite database path"),
		"artifacts-dir":     fs.String("artifacts-dir", "", "run artifacts directory"),
	}
}

func loadConfig(path string, set map[string]bool, values map[string]any) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := overrideFromFlags(cfg, set, values); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromFlags(cfg *config.Config, set map[string]bool, values map[string]any) error {
	for name := range set {
		v, ok := values[name]
		if !ok {
			continue
		}
		switch name {
		case "name":
			cfg.Name = *v.(*string)
		case "dataset":
			cfg.Dataset = *v.(*string)
		case "repetitions":
			cfg.Repetitions = *v.(*int)
		case "sample-percentage":
			cfg.SamplePercentage = *v.(*float64)
		case "threads":
			cfg.Threads = *v.(*int)
		case "modes":
			cfg.Modes = splitList(*v.(*string))
		case "splits-dir":
			cfg.SplitsDir = *v.(*string)
		case "nodes":
			cfg.Chromosome.NumNodes = *v.(*int)
		case "arity":
			cfg.Chromosome.Arity = *v.(*int)
		case "functions":
			cfg.Chromosome.Functions = splitList(*v.(*string))
		case "weight-range":
			cfg.Chromosome.WeightRange = *v.(*float64)
		case "recurrent":
			cfg.Chromosome.RecurrentProbability = *v.(*float64)
		case "shortcut":
			cfg.Chromosome.ShortcutConnections = *v.(*bool)
		case "mu":
			cfg.Evolution.Mu = *v.(*int)
		case "lambda":
			cfg.Evolution.Lambda = *v.(*int)
		case "strategy":
			cfg.Evolution.Strategy = *v.(*string)
		case "mutation-type":
			cfg.Evolution.MutationType = *v.(*string)
		case "mutation-rate":
			cfg.Evolution.MutationRate = *v.(*float64)
		case "fitness":
			cfg.Evolution.Fitness = *v.(*string)
		case "eval-threads":
			cfg.Evolution.Threads = *v.(*int)
		case "gens-cgpann":
			cfg.Generations.CGPANN = *v.(*int)
		case "gens-in":
			cfg.Generations.CGPDEIn = *v.(*int)
		case "gens-out":
			cfg.Generations.CGPDEOut = *v.(*int)
		case "cr":
			cfg.Differential.CR = *v.(*float64)
		case "f":
			cfg.Differential.F = *v.(*float64)
		case "np-in":
			cfg.Differential.NPIn = *v.(*int)
		case "max-iter-in":
			cfg.Differential.MaxIterIn = *v.(*int)
		case "np-out":
			cfg.Differential.NPOut = *v.(*int)
		case "max-iter-out":
			cfg.Differential.MaxIterOut = *v.(*int)
		case "iteration-policy":
			cfg.Differential.IterationPolicy = *v.(*string)
		case "store":
			cfg.Storage.Kind = *v.(*string)
		case "db-path":
			cfg.Storage.SQLitePath = *v.(*string)
		case "artifacts-dir":
			cfg.Artifacts.Dir = *v.(*string)
		default:
			return fmt.Errorf("unhandled override flag: %s", name)
		}
	}
	if cfg.Dataset == "" {
		return errors.New("run requires a dataset (--dataset or config)")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// chromosomeSource selects a chromosome from a file, from the store by id,
// or from a run's best-per-mode artifacts.
type chromosomeSource struct {
	file         *string
	id           *string
	runID        *string
	latest       *bool
	mode         *string
	artifactsDir *string
	store        *string
	dbPath       *string
}

func registerChromosomeFlags(fs *flag.FlagSet) chromosomeSource {
	return chromosomeSource{
		file:         fs.String("file", "", "chromosome file"),
		id:           fs.String("id", "", "stored chromosome id"),
		runID:        fs.String("run-id", "", "run id of a best chromosome"),
		latest:       fs.Bool("latest", false, "use the newest run"),
		mode:         fs.String("mode", "", "mode of the run's best chromosome"),
		artifactsDir: fs.String("artifacts-dir", "runs", "run artifacts directory"),
		store:        fs.String("store", storage.KindMemory, "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", "cgpde.db", "sqlite database path"),
	}
}

func (s chromosomeSource) load(ctx context.Context) (*cgp.Chromosome, error) {
	if *s.file != "" {
		if *s.id != "" || *s.runID != "" || *s.latest {
			return nil, errors.New("use either --file or a stored chromosome")
		}
		return cgp.LoadFile(*s.file)
	}
	client, err := cgpdeapi.New(cgpdeapi.Options{
		StoreKind:    *s.store,
		DBPath:       *s.dbPath,
		ArtifactsDir: *s.artifactsDir,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Close()
	}()
	item, err := client.Chromosome(ctx, cgpdeapi.ChromosomeRequest{
		ID:     *s.id,
		RunID:  *s.runID,
		Latest: *s.latest,
		Mode:   *s.mode,
	})
	if err != nil {
		return nil, err
	}
	return item.Chromosome, nil
}
