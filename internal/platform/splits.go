package platform

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"cgpde/internal/dataset"
)

// FoldSets are the three sets of one fold.
type FoldSets struct {
	Training   *dataset.Dataset
	Validation *dataset.Dataset
	Test       *dataset.Dataset
}

func RepetitionSeed(rep int) int64 { return int64(rep + 50) }

func FoldSeed(rep, fold int) int64 { return int64(rep*10 + fold + 5) }

// RepetitionFolds shuffles data with the repetition seed, keeps the
// stratified samplePercentage of it and splits the rest into
// dataset.NumFolds folds.
func RepetitionFolds(data *dataset.Dataset, rep int, samplePercentage float64) ([]*dataset.Dataset, error) {
	rng := rand.New(rand.NewSource(RepetitionSeed(rep)))
	folds, err := data.Shuffle(rng).ReduceSampleSize(samplePercentage).Folds(dataset.NumFolds)
	if err != nil {
		return nil, fmt.Errorf("repetition %d: %w", rep, err)
	}
	return folds, nil
}

// SplitFold uses fold as the test set and draws the training and
// validation folds from rng.
func SplitFold(rng *rand.Rand, folds []*dataset.Dataset, fold int) (FoldSets, error) {
	training, validation, err := dataset.SplitIndices(rng, fold)
	if err != nil {
		return FoldSets{}, err
	}
	sets := FoldSets{Test: folds[fold]}
	if sets.Training, err = dataset.Concat(folds, training); err != nil {
		return FoldSets{}, err
	}
	if sets.Validation, err = dataset.Concat(folds, validation); err != nil {
		return FoldSets{}, err
	}
	return sets, nil
}

// SplitFiles returns the paths WriteSplits uses for one fold:
// dir/TRN/TRN_<rep>_<fold>.txt and the VLD and TST equivalents.
func SplitFiles(dir string, rep, fold int) (training, validation, test string) {
	name := func(kind string) string {
		return filepath.Join(dir, kind, fmt.Sprintf("%s_%d_%d.txt", kind, rep, fold))
	}
	return name("TRN"), name("VLD"), name("TST")
}

func WriteSplits(dir string, rep, fold int, sets FoldSets) error {
	paths := [3]string{}
	paths[0], paths[1], paths[2] = SplitFiles(dir, rep, fold)
	for i, d := range []*dataset.Dataset{sets.Training, sets.Validation, sets.Test} {
		if err := os.MkdirAll(filepath.Dir(paths[i]), 0o755); err != nil {
			return err
		}
		if err := d.SaveFile(paths[i]); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(paths[i]), err)
		}
	}
	return nil
}

// Split writes the fold sets of every repetition exactly as an experiment
// with the same settings would draw them.
func Split(data *dataset.Dataset, repetitions int, samplePercentage float64, dir string) error {
	for rep := 0; rep < repetitions; rep++ {
		folds, err := RepetitionFolds(data, rep, samplePercentage)
		if err != nil {
			return err
		}
		for fold := range folds {
			rng := rand.New(rand.NewSource(FoldSeed(rep, fold)))
			sets, err := SplitFold(rng, folds, fold)
			if err != nil {
				return err
			}
			if err := WriteSplits(dir, rep, fold, sets); err != nil {
				return err
			}
		}
	}
	return nil
}
