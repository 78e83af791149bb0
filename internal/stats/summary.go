// Package stats summarizes cross-validation results and writes run
// artifacts.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"cgpde/internal/model"
)

// ModeSummary aggregates the fold results of one run mode.
type ModeSummary struct {
	Mode               string  `json:"mode" csv:"mode"`
	Runs               int     `json:"runs" csv:"runs"`
	AverageFitness     float64 `json:"average_fitness" csv:"average_fitness"`
	MedianFitness      float64 `json:"median_fitness" csv:"median_fitness"`
	StdFitness         float64 `json:"std_fitness" csv:"std_fitness"`
	AverageActiveNodes float64 `json:"average_active_nodes" csv:"average_active_nodes"`
	MedianActiveNodes  float64 `json:"median_active_nodes" csv:"median_active_nodes"`
	AverageGenerations float64 `json:"average_generations" csv:"average_generations"`
	MedianGenerations  float64 `json:"median_generations" csv:"median_generations"`
}

// Summarize groups results by mode, in order of first appearance, and
// summarizes each group.
func Summarize(results []model.FoldResult) []ModeSummary {
	var order []string
	groups := make(map[string][]model.FoldResult)
	for _, r := range results {
		if _, ok := groups[r.Mode]; !ok {
			order = append(order, r.Mode)
		}
		groups[r.Mode] = append(groups[r.Mode], r)
	}
	out := make([]ModeSummary, 0, len(order))
	for _, mode := range order {
		out = append(out, SummarizeMode(mode, groups[mode]))
	}
	return out
}

// SummarizeMode summarizes test fitness, active nodes and the generation
// at which each selected chromosome was found. The standard deviation is
// the sample deviation and is 0 for fewer than two results.
func SummarizeMode(mode string, results []model.FoldResult) ModeSummary {
	s := ModeSummary{Mode: mode, Runs: len(results)}
	if len(results) == 0 {
		return s
	}
	fitness := make([]float64, len(results))
	active := make([]float64, len(results))
	generations := make([]float64, len(results))
	for i, r := range results {
		fitness[i] = r.TestFitness
		active[i] = float64(r.ActiveNodes)
		generations[i] = float64(r.Generation)
	}

	s.AverageFitness = stat.Mean(fitness, nil)
	s.MedianFitness = Median(fitness)
	if len(fitness) > 1 {
		s.StdFitness = stat.StdDev(fitness, nil)
	}
	s.AverageActiveNodes = stat.Mean(active, nil)
	s.MedianActiveNodes = Median(active)
	s.AverageGenerations = stat.Mean(generations, nil)
	s.MedianGenerations = Median(generations)
	return s
}

// Median returns the middle value, or the mean of the two middle values
// for an even count. The input is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
