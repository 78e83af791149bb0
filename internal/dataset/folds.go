package dataset

import (
	"errors"
	"fmt"
	"math/rand"
)

const (
	NumFolds        = 10
	TrainingFolds   = 7
	ValidationFolds = 2
)

// Shuffle returns a copy with rows permuted by NumSamples random pair swaps.
func (d *Dataset) Shuffle(rng *rand.Rand) *Dataset {
	n := d.NumSamples()
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	for i := 0; i < n; i++ {
		a, b := rng.Intn(n), rng.Intn(n)
		rows[a], rows[b] = rows[b], rows[a]
	}
	return d.subset(rows)
}

// Folds distributes samples round-robin over k folds, class by class, so
// every fold keeps roughly the class proportions of d. Samples without a
// target equal to 1 belong to no class and are left out.
func (d *Dataset) Folds(k int) ([]*Dataset, error) {
	if k < 1 {
		return nil, fmt.Errorf("fold count must be >= 1, got %d", k)
	}
	rows := make([][]int, k)
	next := 0
	for class := 0; class < d.NumOutputs; class++ {
		for s := range d.Outputs {
			if d.Outputs[s][class] != 1.0 {
				continue
			}
			rows[next] = append(rows[next], s)
			next = (next + 1) % k
		}
	}
	folds := make([]*Dataset, k)
	for i := range folds {
		folds[i] = d.subset(rows[i])
	}
	return folds, nil
}

// ReduceSampleSize keeps int(p*NumSamples) samples while preserving class
// proportions. Each class keeps int(p*count) samples, the rounding remainder
// is handed out one per class starting from class 0, and samples are taken
// in their original order. p <= 0 or p >= 1 returns d unchanged.
func (d *Dataset) ReduceSampleSize(p float64) *Dataset {
	if p <= 0 || p >= 1 {
		return d
	}
	target := int(p * float64(d.NumSamples()))

	quota := make([]int, d.NumOutputs)
	for class := range quota {
		for s := range d.Outputs {
			if d.Outputs[s][class] == 1.0 {
				quota[class]++
			}
		}
	}
	sum := 0
	for class := range quota {
		quota[class] = int(p * float64(quota[class]))
		sum += quota[class]
	}
	for i, class := 0, 0; i < target-sum; i++ {
		quota[class]++
		class = (class + 1) % d.NumOutputs
	}

	rows := make([]int, 0, target)
	for class := 0; class < d.NumOutputs && len(rows) < target; class++ {
		taken := 0
		for s := range d.Outputs {
			if taken == quota[class] || len(rows) == target {
				break
			}
			if d.Outputs[s][class] == 1.0 {
				rows = append(rows, s)
				taken++
			}
		}
	}
	return d.subset(rows)
}

// SplitIndices draws TrainingFolds distinct fold indices and then
// ValidationFolds more, all different from test.
func SplitIndices(rng *rand.Rand, test int) (training, validation []int, err error) {
	if test < 0 || test >= NumFolds {
		return nil, nil, fmt.Errorf("test fold %d not in [0,%d)", test, NumFolds)
	}
	used := map[int]bool{test: true}
	draw := func() int {
		for {
			idx := rng.Intn(NumFolds)
			if !used[idx] {
				used[idx] = true
				return idx
			}
		}
	}
	training = make([]int, TrainingFolds)
	for i := range training {
		training[i] = draw()
	}
	validation = make([]int, ValidationFolds)
	for i := range validation {
		validation[i] = draw()
	}
	return training, validation, nil
}

// Concat joins the folds named by indices, in index order.
func Concat(folds []*Dataset, indices []int) (*Dataset, error) {
	if len(folds) == 0 {
		return nil, errors.New("no folds to concatenate")
	}
	out := &Dataset{NumInputs: folds[0].NumInputs, NumOutputs: folds[0].NumOutputs}
	for _, idx := range indices {
		if idx < 0 || idx >= len(folds) {
			return nil, fmt.Errorf("fold index %d not in [0,%d)", idx, len(folds))
		}
		out.Inputs = append(out.Inputs, folds[idx].Inputs...)
		out.Outputs = append(out.Outputs, folds[idx].Outputs...)
	}
	return out, nil
}
