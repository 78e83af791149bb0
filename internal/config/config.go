// Package config loads experiment configuration from YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cgpde/internal/evo"
	"cgpde/internal/hybrid"
	"cgpde/internal/tuning"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrInvalidConfig = errors.New("invalid config")

// Config describes one cross-validation experiment.
type Config struct {
	Name    string `yaml:"name"`
	Dataset string `yaml:"dataset"`
	// Repetitions is the number of independent cross-validations.
	Repetitions int `yaml:"repetitions"`
	// SamplePercentage keeps this fraction of the dataset, stratified.
	SamplePercentage float64 `yaml:"sample_percentage"`
	// Threads bounds the folds processed concurrently.
	Threads int      `yaml:"threads"`
	Modes   []string `yaml:"modes"`
	// SplitsDir, when set, receives the training, validation and test set
	// of every fold.
	SplitsDir string `yaml:"splits_dir"`

	Chromosome   ChromosomeConfig   `yaml:"chromosome"`
	Evolution    EvolutionConfig    `yaml:"evolution"`
	Generations  GenerationsConfig  `yaml:"generations"`
	Differential DifferentialConfig `yaml:"differential"`
	Storage      StorageConfig      `yaml:"storage"`
	Artifacts    ArtifactsConfig    `yaml:"artifacts"`
}

// ChromosomeConfig fixes the genome shape. Zero input or output counts are
// taken from the dataset.
type ChromosomeConfig struct {
	NumInputs            int      `yaml:"num_inputs"`
	NumNodes             int      `yaml:"num_nodes"`
	NumOutputs           int      `yaml:"num_outputs"`
	Arity                int      `yaml:"arity"`
	Functions            []string `yaml:"functions"`
	WeightRange          float64  `yaml:"weight_range"`
	RecurrentProbability float64  `yaml:"recurrent_probability"`
	ShortcutConnections  bool     `yaml:"shortcut_connections"`
}

type EvolutionConfig struct {
	Mu           int     `yaml:"mu"`
	Lambda       int     `yaml:"lambda"`
	Strategy     string  `yaml:"strategy"`
	MutationType string  `yaml:"mutation_type"`
	MutationRate float64 `yaml:"mutation_rate"`
	Fitness      string  `yaml:"fitness"`
	Selection    string  `yaml:"selection"`
	Reproduction string  `yaml:"reproduction"`
	// Threads bounds concurrent fitness evaluations inside one run.
	Threads       int     `yaml:"threads"`
	TargetFitness float64 `yaml:"target_fitness"`
}

type GenerationsConfig struct {
	CGPANN   int `yaml:"cgpann"`
	CGPDEIn  int `yaml:"cgpde_in"`
	CGPDEOut int `yaml:"cgpde_out"`
}

type DifferentialConfig struct {
	CR              float64 `yaml:"cr"`
	F               float64 `yaml:"f"`
	NPIn            int     `yaml:"np_in"`
	MaxIterIn       int     `yaml:"max_iter_in"`
	NPOut           int     `yaml:"np_out"`
	MaxIterOut      int     `yaml:"max_iter_out"`
	IterationPolicy string  `yaml:"iteration_policy"`
	IterationParam  float64 `yaml:"iteration_param"`
}

type StorageConfig struct {
	Kind       string `yaml:"kind"`
	SQLitePath string `yaml:"sqlite_path"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("config: parsing embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Overlay(cfg, data); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Overlay decodes data over cfg. Only keys present in data change.
func Overlay(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the experiment-level settings. Run parameters are
// checked when Parameters builds them.
func (c *Config) Validate() error {
	switch {
	case c.Repetitions < 1:
		return fmt.Errorf("%w: repetitions must be >= 1, got %d", ErrInvalidConfig, c.Repetitions)
	case c.Threads < 1:
		return fmt.Errorf("%w: threads must be >= 1, got %d", ErrInvalidConfig, c.Threads)
	case len(c.Modes) == 0:
		return fmt.Errorf("%w: at least one mode is required", ErrInvalidConfig)
	case c.Generations.CGPANN < 0 || c.Generations.CGPDEIn < 0 || c.Generations.CGPDEOut < 0:
		return fmt.Errorf("%w: generations must be >= 0", ErrInvalidConfig)
	}
	if _, err := c.RunModes(); err != nil {
		return err
	}
	if _, err := c.IterationPolicy(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RunModes parses Modes, dropping duplicates.
func (c *Config) RunModes() ([]hybrid.Mode, error) {
	seen := make(map[hybrid.Mode]bool, len(c.Modes))
	modes := make([]hybrid.Mode, 0, len(c.Modes))
	for _, name := range c.Modes {
		m, err := hybrid.ParseMode(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		modes = append(modes, m)
	}
	return modes, nil
}

// GenerationsFor returns the generation budget of mode. Both CGPDE-OUT
// variants share one budget.
func (c *Config) GenerationsFor(mode hybrid.Mode) int {
	switch mode {
	case hybrid.ModeCGPDEIn:
		return c.Generations.CGPDEIn
	case hybrid.ModeCGPDEOutT, hybrid.ModeCGPDEOutV:
		return c.Generations.CGPDEOut
	default:
		return c.Generations.CGPANN
	}
}

func (c *Config) IterationPolicy() (tuning.IterationPolicy, error) {
	return tuning.IterationPolicyFromConfig(c.Differential.IterationPolicy, c.Differential.IterationParam)
}

// Parameters builds run parameters for a dataset with the given
// dimensions. Out-of-range tunables are logged on logger and left at their
// defaults; invalid fatal settings are returned as errors.
func (c *Config) Parameters(numInputs, numOutputs int, logger *slog.Logger) (*evo.Parameters, error) {
	if c.Chromosome.NumInputs > 0 {
		numInputs = c.Chromosome.NumInputs
	}
	if c.Chromosome.NumOutputs > 0 {
		numOutputs = c.Chromosome.NumOutputs
	}
	p, err := evo.NewParameters(numInputs, c.Chromosome.NumNodes, numOutputs, c.Chromosome.Arity)
	if err != nil {
		return nil, err
	}
	p.Logger = logger

	if len(c.Chromosome.Functions) == 0 {
		return nil, fmt.Errorf("%w: at least one node function is required", ErrInvalidConfig)
	}
	if err := p.AddNodeFunction(strings.Join(c.Chromosome.Functions, ",")); err != nil {
		return nil, err
	}
	p.SetWeightRange(c.Chromosome.WeightRange)
	p.SetRecurrentProbability(c.Chromosome.RecurrentProbability)
	p.SetShortcutConnections(c.Chromosome.ShortcutConnections)

	ev := c.Evolution
	p.SetMu(ev.Mu)
	p.SetLambda(ev.Lambda)
	p.SetStrategy(evo.Strategy(ev.Strategy))
	p.SetMutationType(ev.MutationType)
	p.SetMutationRate(ev.MutationRate)
	p.SetThreads(ev.Threads)
	p.SetTargetFitness(ev.TargetFitness)
	if err := p.SetFitnessByName(ev.Fitness); err != nil {
		return nil, err
	}
	if err := p.SetSelectionByName(ev.Selection); err != nil {
		return nil, err
	}
	if err := p.SetReproductionByName(ev.Reproduction); err != nil {
		return nil, err
	}

	de := c.Differential
	for _, set := range []func() error{
		func() error { return p.SetNPIn(de.NPIn) },
		func() error { return p.SetNPOut(de.NPOut) },
		func() error { return p.SetMaxIterIn(de.MaxIterIn) },
		func() error { return p.SetMaxIterOut(de.MaxIterOut) },
		func() error { return p.SetCR(de.CR) },
		func() error { return p.SetF(de.F) },
	} {
		if err := set(); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
